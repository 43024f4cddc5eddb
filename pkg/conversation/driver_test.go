package conversation_test

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/llm"
)

func TestConversation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Conversation Suite")
}

var _ = Describe("TrimMessages", func() {
	toolCallMessage := func(id, name string) llm.Message {
		return llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: id, Name: name, Arguments: json.RawMessage(`{}`)},
			},
		}
	}

	It("leaves short logs untouched", func() {
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "persona"),
			llm.NewTextMessage(llm.RoleUser, "hi"),
		}
		Expect(conversation.TrimMessages(messages, 10)).To(Equal(messages))
	})

	It("keeps the system message plus the last N others", func() {
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "persona"),
			llm.NewTextMessage(llm.RoleUser, "one"),
			llm.NewTextMessage(llm.RoleAssistant, "first"),
			llm.NewTextMessage(llm.RoleUser, "two"),
			llm.NewTextMessage(llm.RoleAssistant, "second"),
		}

		got := conversation.TrimMessages(messages, 2)
		Expect(got).To(HaveLen(3))
		Expect(got[0].Role).To(Equal(llm.RoleSystem))
		Expect(got[1].Content).To(Equal("two"))
		Expect(got[2].Content).To(Equal("second"))
	})

	It("never keeps a tool message without its assistant tool_calls entry", func() {
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "persona"),
			llm.NewTextMessage(llm.RoleUser, "find flights"),
			toolCallMessage("call_1", "search_flights"),
			llm.NewToolMessage("call_1", "search_flights", `{"success":true}`),
			llm.NewTextMessage(llm.RoleAssistant, "Here you go."),
		}

		got := conversation.TrimMessages(messages, 2)
		for _, msg := range got {
			Expect(msg.Role).NotTo(Equal(llm.RoleTool))
		}
		Expect(got).To(HaveLen(2))
		Expect(got[1].Content).To(Equal("Here you go."))
	})

	It("keeps a tool batch whole when the window covers it", func() {
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "persona"),
			llm.NewTextMessage(llm.RoleUser, "find flights"),
			toolCallMessage("call_1", "search_flights"),
			llm.NewToolMessage("call_1", "search_flights", `{"success":true}`),
			llm.NewTextMessage(llm.RoleAssistant, "Here you go."),
		}

		got := conversation.TrimMessages(messages, 3)
		Expect(got).To(HaveLen(4))
		Expect(got[1].ToolCalls).To(HaveLen(1))
		Expect(got[2].Role).To(Equal(llm.RoleTool))
		Expect(got[2].ToolCallID).To(Equal("call_1"))
	})

	It("drops the whole remainder of a multi-result batch", func() {
		batch := llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "search_flights", Arguments: json.RawMessage(`{}`)},
				{ID: "call_2", Name: "view_booking", Arguments: json.RawMessage(`{}`)},
			},
		}
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "persona"),
			batch,
			llm.NewToolMessage("call_1", "search_flights", `{"success":true}`),
			llm.NewToolMessage("call_2", "view_booking", `{"success":true}`),
			llm.NewTextMessage(llm.RoleAssistant, "Done."),
		}

		got := conversation.TrimMessages(messages, 2)
		Expect(got).To(HaveLen(2))
		Expect(got[0].Role).To(Equal(llm.RoleSystem))
		Expect(got[1].Content).To(Equal("Done."))
	})

	It("treats a negative keep count as zero", func() {
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "persona"),
			llm.NewTextMessage(llm.RoleUser, "hi"),
		}
		got := conversation.TrimMessages(messages, -1)
		Expect(got).To(HaveLen(1))
		Expect(got[0].Role).To(Equal(llm.RoleSystem))
	})
})

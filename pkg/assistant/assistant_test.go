package assistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/assistant"
	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/conversation/inmemory"
	"github.com/flightdeskco/flightdesk/pkg/eventstream"
	"github.com/flightdeskco/flightdesk/pkg/llm"
	"github.com/flightdeskco/flightdesk/pkg/llm/completion"
	"github.com/flightdeskco/flightdesk/pkg/tools"
)

func TestAssistant(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Assistant Suite")
}

type step struct {
	resp *llm.ChatResponse
	err  error
}

type scriptedClient struct {
	steps    []step
	requests []*llm.ChatRequest
}

func (c *scriptedClient) Complete(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.requests = append(c.requests, req)
	if len(c.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := c.steps[0]
	c.steps = c.steps[1:]
	return next.resp, next.err
}

type stubHandler struct {
	name    string
	execute func(ctx context.Context, userID string, args map[string]any) (tools.Result, error)
	calls   int
}

func (h *stubHandler) Name() string                        { return h.name }
func (h *stubHandler) Description() string                 { return "stub" }
func (h *stubHandler) Schema() map[string]any              { return map[string]any{"type": "object"} }
func (h *stubHandler) ValidateParams(map[string]any) error { return nil }

func (h *stubHandler) Execute(ctx context.Context, userID string, args map[string]any) (tools.Result, error) {
	h.calls++
	return h.execute(ctx, userID, args)
}

type recordingPublisher struct {
	events []*eventstream.MessageProcessedEvent
}

func (p *recordingPublisher) PublishMessageProcessed(_ context.Context, event *eventstream.MessageProcessedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func textResponse(text string) step {
	return step{resp: &llm.ChatResponse{
		Message:    llm.NewTextMessage(llm.RoleAssistant, text),
		StopReason: "stop",
	}}
}

func toolResponse(text string, calls ...llm.ToolCall) step {
	return step{resp: &llm.ChatResponse{
		Message: llm.Message{
			Role:      llm.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		},
		StopReason: "tool_calls",
	}}
}

func call(id, name string, args map[string]any) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Name: name, Arguments: raw}
}

var _ = Describe("Orchestrator", func() {
	var (
		logger    *zap.Logger
		client    *scriptedClient
		store     conversation.Store
		registry  *tools.Registry
		shapers   *tools.ShaperRegistry
		instrs    *tools.InstructionRegistry
		publisher *recordingPublisher
		handler   *stubHandler
		ctx       context.Context
	)

	newOrchestrator := func(cfg assistant.Config) *assistant.Orchestrator {
		return assistant.NewOrchestrator(client, store, registry, shapers, instrs, publisher, cfg, logger)
	}

	BeforeEach(func() {
		logger, _ = zap.NewDevelopment()
		client = &scriptedClient{}
		store = inmemory.NewDriver()
		registry = tools.NewRegistry(logger)
		shapers = tools.NewShaperRegistry()
		instrs = tools.NewInstructionRegistry()
		publisher = &recordingPublisher{}
		ctx = context.Background()

		handler = &stubHandler{
			name: "lookup_widget",
			execute: func(context.Context, string, map[string]any) (tools.Result, error) {
				return tools.Result{"success": true, "widget": "blue"}, nil
			},
		}
		registry.Register(handler, "widgets")
	})

	Describe("plain answers", func() {
		It("returns the model's text without invoking tools", func() {
			client.steps = []step{textResponse("Hello there!")}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "Maya", "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Hello there!"))
			Expect(reply.Meta.Rounds).To(Equal(1))
			Expect(reply.Meta.ToolsInvoked).To(BeFalse())
			Expect(reply.Meta.ToolCalls).To(BeEmpty())
			Expect(handler.calls).To(BeZero())
		})

		It("seeds a fresh conversation with a dated system prompt naming the user", func() {
			client.steps = []step{textResponse("Hello!")}

			_, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "Maya", "hi")
			Expect(err).NotTo(HaveOccurred())

			messages, err := store.Get(ctx, "u-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(messages[0].Role).To(Equal(llm.RoleSystem))
			Expect(messages[0].Content).To(ContainSubstring("Today's date is"))
			Expect(messages[0].Content).To(ContainSubstring("Maya"))
		})

		It("reuses the stored history on the next message", func() {
			client.steps = []step{textResponse("First."), textResponse("Second.")}
			orch := newOrchestrator(assistant.Config{})

			_, err := orch.ProcessMessage(ctx, "u-1", "Maya", "one")
			Expect(err).NotTo(HaveOccurred())
			_, err = orch.ProcessMessage(ctx, "u-1", "Maya", "two")
			Expect(err).NotTo(HaveOccurred())

			secondReq := client.requests[1]
			contents := make([]string, 0, len(secondReq.Messages))
			for _, msg := range secondReq.Messages {
				contents = append(contents, msg.Content)
			}
			Expect(contents).To(ContainElement("one"))
			Expect(contents).To(ContainElement("First."))
			Expect(contents).To(ContainElement("two"))
		})
	})

	Describe("tool execution", func() {
		It("feeds tool results back and returns the follow-up answer", func() {
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", map[string]any{"q": "blue"})),
				textResponse("It's the blue widget."),
			}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "which widget?")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("It's the blue widget."))
			Expect(reply.Meta.Rounds).To(Equal(2))
			Expect(reply.Meta.ToolsInvoked).To(BeTrue())
			Expect(reply.Meta.ToolCalls).To(Equal([]string{"lookup_widget"}))
			Expect(handler.calls).To(Equal(1))

			secondReq := client.requests[1]
			last := secondReq.Messages[len(secondReq.Messages)-1]
			Expect(last.Role).To(Equal(llm.RoleTool))
			Expect(last.ToolCallID).To(Equal("c-1"))
			Expect(last.Content).To(ContainSubstring(`"widget":"blue"`))
		})

		It("sends the registered tool catalog with every request", func() {
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
				textResponse("Done."),
			}

			_, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())

			for _, req := range client.requests {
				Expect(req.Tools).To(HaveLen(1))
				Expect(req.Tools[0].Name).To(Equal("lookup_widget"))
			}
		})

		It("keeps the exchange going when a handler reports a domain failure", func() {
			handler.execute = func(context.Context, string, map[string]any) (tools.Result, error) {
				return tools.ErrorResult("no such widget"), nil
			}
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
				textResponse("I couldn't find that widget."),
			}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "find it")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("I couldn't find that widget."))

			secondReq := client.requests[1]
			last := secondReq.Messages[len(secondReq.Messages)-1]
			Expect(last.Content).To(ContainSubstring(`"success":false`))
			Expect(last.Content).To(ContainSubstring("no such widget"))
		})

		It("aborts the exchange and leaves the store untouched on an infrastructure failure", func() {
			handler.execute = func(context.Context, string, map[string]any) (tools.Result, error) {
				return nil, errors.New("widget API unreachable")
			}
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
			}

			_, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "find it")
			Expect(err).To(MatchError(ContainSubstring("widget API unreachable")))

			_, err = store.Get(ctx, "u-1")
			Expect(err).To(BeAssignableToTypeOf(conversation.ErrNotFound{}))
			Expect(publisher.events).To(BeEmpty())
		})

		It("propagates completion failures without committing", func() {
			client.steps = []step{{err: &completion.TransportError{Op: "chat", Err: errors.New("timeout")}}}

			_, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "hi")
			Expect(completion.IsTransport(err)).To(BeTrue())

			_, err = store.Get(ctx, "u-1")
			Expect(err).To(BeAssignableToTypeOf(conversation.ErrNotFound{}))
		})
	})

	Describe("deduplication", func() {
		It("executes a duplicated call within one round only once", func() {
			client.steps = []step{
				toolResponse("",
					call("c-1", "lookup_widget", map[string]any{"q": "blue"}),
					call("c-1", "lookup_widget", map[string]any{"q": "blue"})),
				textResponse("Done."),
			}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(handler.calls).To(Equal(1))
			Expect(reply.Meta.ToolCalls).To(Equal([]string{"lookup_widget"}))

			secondReq := client.requests[1]
			toolMessages := 0
			for _, msg := range secondReq.Messages {
				if msg.Role == llm.RoleTool {
					toolMessages++
				}
			}
			Expect(toolMessages).To(Equal(2))
		})

		It("ends the exchange when the model re-requests an already executed batch", func() {
			client.steps = []step{
				toolResponse("Let me check.", call("c-1", "lookup_widget", nil)),
				toolResponse("", call("c-1", "lookup_widget", nil)),
			}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(handler.calls).To(Equal(1))
			Expect(reply.Text).To(Equal("Let me check."))
			Expect(reply.Meta.Rounds).To(Equal(2))
		})

		It("deduplicates configured tools by argument hash across rounds", func() {
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", map[string]any{"q": "blue"})),
				toolResponse("", call("c-2", "lookup_widget", map[string]any{"q": "blue"})),
				textResponse("Done."),
			}
			orch := newOrchestrator(assistant.Config{
				ArgumentDedupTools: []string{"lookup_widget"},
			})

			reply, err := orch.ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Done."))
			Expect(handler.calls).To(Equal(1))

			thirdReq := client.requests[2]
			last := thirdReq.Messages[len(thirdReq.Messages)-1]
			Expect(last.Role).To(Equal(llm.RoleTool))
			Expect(last.Content).To(ContainSubstring("duplicate search"))
		})

		It("still executes configured tools when the arguments differ", func() {
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", map[string]any{"q": "blue"})),
				toolResponse("", call("c-2", "lookup_widget", map[string]any{"q": "red"})),
				textResponse("Done."),
			}
			orch := newOrchestrator(assistant.Config{
				ArgumentDedupTools: []string{"lookup_widget"},
			})

			_, err := orch.ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(handler.calls).To(Equal(2))
		})

		It("keeps going when a repeated batch contains any new call", func() {
			second := &stubHandler{
				name: "count_widgets",
				execute: func(context.Context, string, map[string]any) (tools.Result, error) {
					return tools.Result{"success": true, "count": 3}, nil
				},
			}
			registry.Register(second, "widgets")

			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
				toolResponse("",
					call("c-1", "lookup_widget", nil),
					call("c-2", "count_widgets", nil)),
				textResponse("Three blue widgets."),
			}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Three blue widgets."))
			Expect(second.calls).To(Equal(1))
			Expect(handler.calls).To(Equal(2))
		})
	})

	Describe("round limit", func() {
		It("stops after the configured bound and serves the last text seen", func() {
			for i := 0; i < 10; i++ {
				client.steps = append(client.steps,
					toolResponse("Still searching...", call(fmt.Sprintf("c-%d", i), "lookup_widget", nil)))
			}

			reply, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Meta.Rounds).To(Equal(10))
			Expect(reply.Text).To(Equal("Still searching..."))
			Expect(handler.calls).To(Equal(10))
		})

		It("falls back to a generic notice when no text was ever produced", func() {
			client.steps = []step{
				toolResponse("Checking.", call("c-1", "lookup_widget", nil)),
				toolResponse("", call("c-1", "lookup_widget", nil)),
			}
			orch := newOrchestrator(assistant.Config{MaxRounds: 2})

			reply, err := orch.ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Checking."))

			client.steps = []step{
				toolResponse("", call("d-1", "lookup_widget", nil)),
				toolResponse("", call("d-1", "lookup_widget", nil)),
			}
			reply, err = orch.ProcessMessage(ctx, "u-2", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(ContainSubstring("wasn't able to complete"))
		})
	})

	Describe("instructions and shaping", func() {
		It("embeds a registered instruction in the first successful result only", func() {
			instrs.Register("lookup_widget", "Format widget answers as a bullet list.")
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
				toolResponse("", call("c-2", "lookup_widget", nil)),
				textResponse("Done."),
			}

			_, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())

			messages, err := store.Get(ctx, "u-1")
			Expect(err).NotTo(HaveOccurred())

			instructed := 0
			for _, msg := range messages {
				if msg.Role != llm.RoleTool {
					continue
				}
				var payload map[string]any
				Expect(json.Unmarshal([]byte(msg.Content), &payload)).To(Succeed())
				if payload["formatting_instruction"] == "Format widget answers as a bullet list." {
					instructed++
				}
			}
			Expect(instructed).To(Equal(1))
		})

		It("keeps exactly one system message across instruction-bearing exchanges", func() {
			instrs.Register("lookup_widget", "Format widget answers as a bullet list.")
			orch := newOrchestrator(assistant.Config{})

			for _, id := range []string{"c-1", "c-2"} {
				client.steps = []step{
					toolResponse("", call(id, "lookup_widget", nil)),
					textResponse("Done."),
				}
				_, err := orch.ProcessMessage(ctx, "u-1", "", "go")
				Expect(err).NotTo(HaveOccurred())
			}

			messages, err := store.Get(ctx, "u-1")
			Expect(err).NotTo(HaveOccurred())

			systems := 0
			for _, msg := range messages {
				if msg.Role == llm.RoleSystem {
					systems++
				}
			}
			Expect(systems).To(Equal(1))
			Expect(messages[0].Role).To(Equal(llm.RoleSystem))
		})

		It("applies the context budget to oversized result lists", func() {
			entries := make([]string, 20)
			for i := range entries {
				entries[i] = fmt.Sprintf("FareID:f-%d|Price:100", i)
			}
			handler.execute = func(context.Context, string, map[string]any) (tools.Result, error) {
				return tools.Result{
					"success":             true,
					"all_flights_context": entries,
					"total_flights_count": 20,
				}, nil
			}
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
				textResponse("Here are your options."),
			}

			reply, err := newOrchestrator(assistant.Config{Model: "tiny-model"}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Meta.FlightsFound).To(Equal(20))

			secondReq := client.requests[1]
			last := secondReq.Messages[len(secondReq.Messages)-1]
			var payload map[string]any
			Expect(json.Unmarshal([]byte(last.Content), &payload)).To(Succeed())
			kept := payload["all_flights_context"].([]any)
			Expect(len(kept)).To(BeNumerically("<", 20))
			Expect(payload["truncation_note"]).To(ContainSubstring("to fit the context window"))
		})
	})

	Describe("events", func() {
		It("publishes a processed-message event after committing", func() {
			client.steps = []step{
				toolResponse("", call("c-1", "lookup_widget", nil)),
				textResponse("Done."),
			}

			_, err := newOrchestrator(assistant.Config{}).ProcessMessage(ctx, "u-1", "", "go")
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.events).To(HaveLen(1))
			event := publisher.events[0]
			Expect(event.EventType).To(Equal(eventstream.EventTypeMessageProcessed))
			Expect(event.UserID).To(Equal("u-1"))
			Expect(event.Rounds).To(Equal(2))
			Expect(event.ToolsInvoked).To(BeTrue())
			Expect(event.ToolCalls).To(Equal([]string{"lookup_widget"}))
			Expect(event.EventID).NotTo(BeEmpty())
			Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		})
	})

	Describe("Reset and History", func() {
		It("deletes the stored conversation", func() {
			client.steps = []step{textResponse("Hi.")}
			orch := newOrchestrator(assistant.Config{})

			_, err := orch.ProcessMessage(ctx, "u-1", "", "hi")
			Expect(err).NotTo(HaveOccurred())

			Expect(orch.Reset(ctx, "u-1")).To(Succeed())
			_, err = orch.History(ctx, "u-1")
			Expect(err).To(BeAssignableToTypeOf(conversation.ErrNotFound{}))
		})
	})

	It("expires conversations after the configured TTL", func() {
		client.steps = []step{textResponse("Hi.")}
		orch := newOrchestrator(assistant.Config{HistoryTTL: 30 * time.Millisecond})

		_, err := orch.ProcessMessage(ctx, "u-1", "", "hi")
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() error {
			_, err := store.Get(ctx, "u-1")
			return err
		}).Should(BeAssignableToTypeOf(conversation.ErrNotFound{}))
	})
})

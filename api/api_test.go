package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/assistant"
	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/conversation/inmemory"
	"github.com/flightdeskco/flightdesk/pkg/llm"
	"github.com/flightdeskco/flightdesk/pkg/llm/completion"
	"github.com/flightdeskco/flightdesk/pkg/worker"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

type fakeProcessor struct {
	mu    sync.Mutex
	seen  []string
	reply *assistant.Reply
	err   error
}

func (p *fakeProcessor) ProcessMessage(_ context.Context, userID, _, text string) (*assistant.Reply, error) {
	p.mu.Lock()
	p.seen = append(p.seen, userID+":"+text)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	if p.reply != nil {
		return p.reply, nil
	}
	return &assistant.Reply{Text: "echo: " + text, Meta: assistant.Metadata{Rounds: 1}}, nil
}

func (p *fakeProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.seen))
	copy(out, p.seen)
	return out
}

var _ = Describe("Server", func() {
	var (
		server    *Server
		processor *fakeProcessor
		pool      *worker.Pool
		store     conversation.Store
		ctx       context.Context
	)

	BeforeEach(func() {
		logger, _ := zap.NewDevelopment()
		processor = &fakeProcessor{}
		store = inmemory.NewDriver()
		ctx = context.Background()

		var err error
		pool, err = worker.NewPool(&worker.Config{
			Processor: processor,
			Logger:    logger,
		})
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(Config{ListenAddr: ":0"}, pool, store, logger)
	})

	AfterEach(func() {
		pool.Close()
	})

	postJSON := func(path, body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := server.app.Test(req, int(5*time.Second/time.Millisecond))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decodeBody := func(resp *http.Response, out any) {
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(data, out)).To(Succeed())
	}

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /v1/messages", func() {
		It("processes a message and returns the reply", func() {
			resp := postJSON("/v1/messages", `{"user_id":"u-1","user_name":"Maya","text":"hello"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var reply assistant.Reply
			decodeBody(resp, &reply)
			Expect(reply.Text).To(Equal("echo: hello"))
			Expect(reply.Meta.Rounds).To(Equal(1))
		})

		It("rejects a missing user_id", func() {
			resp := postJSON("/v1/messages", `{"text":"hello"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects missing text", func() {
			resp := postJSON("/v1/messages", `{"user_id":"u-1"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed body", func() {
			resp := postJSON("/v1/messages", `{not json`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("maps completion transport failures to 502", func() {
			processor.err = &completion.TransportError{Op: "chat", Err: errors.New("timeout")}
			resp := postJSON("/v1/messages", `{"user_id":"u-1","text":"hello"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			var body ErrorResponse
			decodeBody(resp, &body)
			Expect(body.Error).To(ContainSubstring("temporarily unavailable"))
		})

		It("maps other exchange failures to 500", func() {
			processor.err = errors.New("boom")
			resp := postJSON("/v1/messages", `{"user_id":"u-1","text":"hello"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("POST /v1/messages/async", func() {
		It("queues the message and returns 202", func() {
			resp := postJSON("/v1/messages/async", `{"user_id":"u-1","text":"later"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			Eventually(processor.processed).Should(ContainElement("u-1:later"))
		})

		It("rejects invalid payloads before queuing", func() {
			resp := postJSON("/v1/messages/async", `{"text":"no user"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Consistently(processor.processed).Should(BeEmpty())
		})
	})

	Describe("GET /v1/conversations/:user_id", func() {
		It("returns 404 for an unknown user", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/conversations/u-missing", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns the stored message log", func() {
			messages := []llm.Message{
				llm.NewTextMessage(llm.RoleSystem, "You are a travel assistant."),
				llm.NewTextMessage(llm.RoleUser, "hi"),
				llm.NewTextMessage(llm.RoleAssistant, "Hello!"),
			}
			Expect(store.Put(ctx, "u-1", messages, time.Hour)).To(Succeed())

			req := httptest.NewRequest(http.MethodGet, "/v1/conversations/u-1", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body ConversationResponse
			decodeBody(resp, &body)
			Expect(body.UserID).To(Equal("u-1"))
			Expect(body.Count).To(Equal(3))
		})
	})

	Describe("DELETE /v1/conversations/:user_id", func() {
		It("removes the conversation", func() {
			Expect(store.Put(ctx, "u-1", []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")}, time.Hour)).To(Succeed())

			req := httptest.NewRequest(http.MethodDelete, "/v1/conversations/u-1", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			_, err = store.Get(ctx, "u-1")
			Expect(err).To(BeAssignableToTypeOf(conversation.ErrNotFound{}))
		})

		It("is a no-op for an absent conversation", func() {
			req := httptest.NewRequest(http.MethodDelete, "/v1/conversations/u-missing", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})
	})
})

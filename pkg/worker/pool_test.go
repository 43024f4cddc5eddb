package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/assistant"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed map[string][]string
	delay     time.Duration
	err       error
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{processed: map[string][]string{}}
}

func (p *recordingProcessor) ProcessMessage(_ context.Context, userID, _, text string) (*assistant.Reply, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.processed[userID] = append(p.processed[userID], text)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return &assistant.Reply{Text: "ok: " + text, Meta: assistant.Metadata{Rounds: 1}}, nil
}

func (p *recordingProcessor) messagesFor(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.processed[userID]))
	copy(out, p.processed[userID])
	return out
}

func newTestPool(processor Processor) *Pool {
	logger, _ := zap.NewDevelopment()

	wp, err := NewPool(&Config{
		Processor: processor,
		Logger:    logger,
	})
	Expect(err).NotTo(HaveOccurred())

	return wp
}

var _ = Describe("Worker Pool", func() {
	var processor *recordingProcessor

	BeforeEach(func() {
		processor = newRecordingProcessor()
	})

	Describe("NewPool", func() {
		It("requires a processor", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the shard has capacity", func() {
			wp := newTestPool(processor)
			ok := wp.Enqueue(Job{UserID: "u-1", Text: "hello"})
			Expect(ok).To(BeTrue())
			wp.Close()
		})

		It("drops jobs when the shard queue is full", func() {
			blocked := make(chan struct{})
			slow := &blockingProcessor{release: blocked}
			wp, err := NewPool(&Config{
				Processor:  slow,
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			// First job occupies the worker, second fills the queue.
			Expect(wp.Enqueue(Job{UserID: "u-1", Text: "a"})).To(BeTrue())
			Eventually(slow.started).Should(Receive())
			Expect(wp.Enqueue(Job{UserID: "u-1", Text: "b"})).To(BeTrue())
			Expect(wp.Enqueue(Job{UserID: "u-1", Text: "c"})).To(BeFalse())

			close(blocked)
			wp.Close()
		})
	})

	Describe("processing", func() {
		It("processes a fire-and-forget job", func() {
			wp := newTestPool(processor)
			wp.Enqueue(Job{UserID: "u-1", Text: "hello"})
			wp.Close()

			Expect(processor.messagesFor("u-1")).To(Equal([]string{"hello"}))
		})

		It("delivers the outcome on the done channel", func() {
			wp := newTestPool(processor)
			done := make(chan Outcome, 1)
			wp.Enqueue(Job{UserID: "u-1", Text: "hello", Done: done})

			var outcome Outcome
			Eventually(done).Should(Receive(&outcome))
			Expect(outcome.Err).NotTo(HaveOccurred())
			Expect(outcome.Reply.Text).To(Equal("ok: hello"))
			wp.Close()
		})

		It("delivers processor errors on the done channel", func() {
			processor.err = errors.New("exchange failed")
			wp := newTestPool(processor)
			done := make(chan Outcome, 1)
			wp.Enqueue(Job{UserID: "u-1", Text: "hello", Done: done})

			var outcome Outcome
			Eventually(done).Should(Receive(&outcome))
			Expect(outcome.Err).To(MatchError("exchange failed"))
			wp.Close()
		})

		It("keeps one user's messages in arrival order", func() {
			processor.delay = 2 * time.Millisecond
			wp := newTestPool(processor)

			for _, text := range []string{"one", "two", "three", "four", "five"} {
				Expect(wp.Enqueue(Job{UserID: "u-1", Text: text})).To(BeTrue())
			}
			wp.Close()

			Expect(processor.messagesFor("u-1")).To(Equal([]string{"one", "two", "three", "four", "five"}))
		})

		It("routes the same user to the same shard every time", func() {
			wp := newTestPool(processor)
			first := wp.shardFor("u-42")
			for i := 0; i < 10; i++ {
				Expect(wp.shardFor("u-42")).To(Equal(first))
			}
			wp.Close()
		})
	})
})

type blockingProcessor struct {
	startedOnce sync.Once
	startedCh   chan struct{}
	release     chan struct{}
}

func (p *blockingProcessor) started() chan struct{} {
	p.startedOnce.Do(func() { p.startedCh = make(chan struct{}, 1) })
	return p.startedCh
}

func (p *blockingProcessor) ProcessMessage(context.Context, string, string, string) (*assistant.Reply, error) {
	p.started() <- struct{}{}
	<-p.release
	return &assistant.Reply{}, nil
}

// Package worker provides the asynchronous pool that runs assistant
// exchanges off the HTTP hot path.
//
// Each exchange mutates a single ordered conversation log per user, so
// jobs are sharded onto workers by user ID: one user's messages are
// always processed by the same worker, in arrival order, while different
// users run in parallel.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/assistant"
)

var (
	defaultNumWorkers   uint = 4
	defaultJobQueueSize uint = 64
)

// Processor runs one full assistant exchange. Satisfied by
// assistant.Orchestrator.
type Processor interface {
	ProcessMessage(ctx context.Context, userID, userName, text string) (*assistant.Reply, error)
}

// Outcome is the result of a processed job, delivered on Job.Done when
// the submitter is waiting for it.
type Outcome struct {
	Reply *assistant.Reply
	Err   error
}

// Job is one inbound user message for the pool to process.
type Job struct {
	UserID   string
	UserName string
	Text     string

	// Done, when non-nil, receives the outcome. Fire-and-forget jobs
	// leave it nil.
	Done chan Outcome
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Processor runs the exchanges.
	Processor Processor

	// NumWorkers is the number of background workers (and shards).
	NumWorkers uint

	// QueueSize is the capacity of each worker's job channel.
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool processes assistant exchanges asynchronously, one queue per
// worker shard.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Processor == nil {
		return nil, fmt.Errorf("worker pool requires a processor")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	p := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		p.queues[i] = make(chan Job, c.QueueSize)
		go p.worker(i)
	}

	return p, nil
}

// Enqueue routes a job to its user's shard. Returns true if enqueued,
// false if that shard's queue is full and the job was dropped.
func (p *Pool) Enqueue(job Job) bool {
	queue := p.queues[p.shardFor(job.UserID)]

	select {
	case queue <- job:
		p.logger.Debug("job queued",
			zap.String("user_id", job.UserID),
		)
		return true
	default:
		p.logger.Error("job not queued, shard queue full, job dropped",
			zap.String("user_id", job.UserID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	for _, queue := range p.queues {
		close(queue)
	}
	p.wg.Wait()
}

func (p *Pool) shardFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// worker continuously pulls jobs off its own shard queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queues[id] {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	reply, err := p.config.Processor.ProcessMessage(ctx, job.UserID, job.UserName, job.Text)
	if err != nil {
		p.logger.Error("async exchange failed",
			zap.String("user_id", job.UserID),
			zap.Error(err),
		)
	} else {
		p.logger.Info("exchange processed",
			zap.String("user_id", job.UserID),
			zap.Int("rounds", reply.Meta.Rounds),
			zap.Bool("tools_invoked", reply.Meta.ToolsInvoked),
		)
	}

	if job.Done != nil {
		job.Done <- Outcome{Reply: reply, Err: err}
	}
}

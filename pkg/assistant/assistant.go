// Package assistant implements the tool-calling orchestration loop that
// turns one inbound user message into a final conversational answer.
//
// Each exchange runs the completion API in rounds: the model either
// answers directly or requests tool executions, whose results are fed
// back as tool messages for the next round. The loop is bounded and
// deduplicates repeated tool requests so a looping model degrades to a
// served answer instead of burning rounds. The conversation log is
// committed to the store once, after the exchange completes; a failed
// exchange leaves the stored history untouched.
package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/budget"
	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/eventstream"
	"github.com/flightdeskco/flightdesk/pkg/llm"
	"github.com/flightdeskco/flightdesk/pkg/llm/completion"
	"github.com/flightdeskco/flightdesk/pkg/tools"
)

const (
	// DefaultMaxRounds bounds the completion/tool exchange per message.
	DefaultMaxRounds = 10

	// DefaultHistoryTTL is how long an idle conversation survives.
	DefaultHistoryTTL = 24 * time.Hour

	// DefaultModel is used when the configuration names none.
	DefaultModel = "gpt-4o-mini"

	// fallbackAnswer is served when the exchange ends without the model
	// ever producing textual content.
	fallbackAnswer = "I wasn't able to complete that request. Could you rephrase or try again?"
)

const defaultSystemPrompt = `You are FlightDesk, a helpful travel assistant. You help users search for flights, review and cancel their bookings, and check their travel history. Use the available tools to fetch real data; never invent flight details, prices, or booking references. Answer in the user's language, keep replies concise, and ask for missing details (dates, airports, passenger count) instead of guessing.`

// Config holds the orchestrator settings.
type Config struct {
	// Model is the completion model identifier. Context limits are
	// derived from it.
	Model string

	// SystemPrompt overrides the built-in assistant persona.
	SystemPrompt string

	// Domain selects which registered tool handlers are exposed to the
	// model. Empty exposes all.
	Domain string

	// MaxRounds bounds the exchange loop. Zero means DefaultMaxRounds.
	MaxRounds int

	// HistoryTTL is the conversation expiry reset on every commit. Zero
	// means DefaultHistoryTTL.
	HistoryTTL time.Duration

	// Temperature, when set, is forwarded to the completion API.
	Temperature *float64

	// ArgumentDedupTools names tools whose calls are additionally
	// deduplicated by argument hash within one exchange, regardless of
	// call ID. Used for expensive external searches the model tends to
	// re-request verbatim.
	ArgumentDedupTools []string
}

// Metadata summarizes what one exchange did, for callers and events.
type Metadata struct {
	Rounds       int      `json:"rounds"`
	ToolsInvoked bool     `json:"tools_invoked"`
	ToolCalls    []string `json:"tool_calls,omitempty"`
	FlightsFound int      `json:"flights_found,omitempty"`
}

// Reply is the outcome of one processed message.
type Reply struct {
	Text string   `json:"text"`
	Meta Metadata `json:"meta"`
}

// Orchestrator runs the multi-round completion/tool exchange.
type Orchestrator struct {
	completion   completion.Client
	store        conversation.Store
	registry     *tools.Registry
	shapers      *tools.ShaperRegistry
	instructions *tools.InstructionRegistry
	publisher    eventstream.Publisher
	logger       *zap.Logger
	cfg          Config

	now func() time.Time
}

// NewOrchestrator wires the orchestrator. The publisher may be nil when
// event publishing is disabled.
func NewOrchestrator(
	client completion.Client,
	store conversation.Store,
	registry *tools.Registry,
	shapers *tools.ShaperRegistry,
	instructions *tools.InstructionRegistry,
	publisher eventstream.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = DefaultHistoryTTL
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if shapers == nil {
		shapers = tools.NewShaperRegistry()
	}
	if instructions == nil {
		instructions = tools.NewInstructionRegistry()
	}

	return &Orchestrator{
		completion:   client,
		store:        store,
		registry:     registry,
		shapers:      shapers,
		instructions: instructions,
		publisher:    publisher,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// ProcessMessage runs one full exchange for the user's message and
// returns the final answer. The stored conversation is updated only on
// success; a completion transport failure or a tool infrastructure
// failure returns an error and leaves the store as it was.
func (o *Orchestrator) ProcessMessage(ctx context.Context, userID, userName, text string) (*Reply, error) {
	started := o.now()
	limits := budget.LimitsFor(o.cfg.Model)

	history, err := o.loadHistory(ctx, userID, userName)
	if err != nil {
		return nil, fmt.Errorf("loading conversation for %s: %w", userID, err)
	}
	history = append(history, llm.NewTextMessage(llm.RoleUser, text))

	meta := Metadata{}
	executed := map[string]bool{}
	executedArgs := map[string]bool{}
	injected := map[string]bool{}
	lastText := ""
	final := ""
	done := false

	for round := 1; round <= o.cfg.MaxRounds; round++ {
		meta.Rounds = round

		req := &llm.ChatRequest{
			Model:       o.cfg.Model,
			Messages:    o.buildRequestMessages(history, limits),
			Tools:       o.registry.Catalog(o.cfg.Domain),
			Temperature: o.cfg.Temperature,
		}

		resp, err := o.completion.Complete(ctx, req)
		if err != nil {
			o.logger.Error("completion request failed",
				zap.String("user_id", userID),
				zap.Int("round", round),
				zap.Bool("transport", completion.IsTransport(err)),
				zap.Error(err))
			return nil, err
		}

		if resp.Message.Content != "" {
			lastText = resp.Message.Content
		}

		if !resp.HasToolCalls() {
			history = append(history, llm.NewTextMessage(llm.RoleAssistant, resp.Message.Content))
			final = resp.Message.Content
			done = true
			break
		}

		if o.allExecuted(resp.Message.ToolCalls, round, executed) {
			o.logger.Warn("model repeated an already executed tool batch, ending exchange",
				zap.String("user_id", userID),
				zap.Int("round", round))
			final = lastText
			if final == "" {
				final = fallbackAnswer
			}
			history = append(history, llm.NewTextMessage(llm.RoleAssistant, final))
			done = true
			break
		}

		history = append(history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
		})
		meta.ToolsInvoked = true

		seen := map[string]bool{}
		for _, call := range resp.Message.ToolCalls {
			key := identityKey(call, round)
			if seen[key] {
				o.logger.Warn("skipping duplicate tool call within round",
					zap.String("user_id", userID),
					zap.Int("round", round),
					zap.String("tool", call.Name))
				dup := tools.ErrorResult("duplicate tool call skipped")
				history = append(history, llm.NewToolMessage(call.ID, call.Name, dup.JSON()))
				continue
			}
			seen[key] = true
			executed[key] = true

			if argKey, ok := o.argumentKey(call); ok {
				if executedArgs[argKey] {
					o.logger.Warn("skipping repeated search with identical arguments",
						zap.String("user_id", userID),
						zap.Int("round", round),
						zap.String("tool", call.Name))
					dup := tools.ErrorResult("duplicate search: identical arguments already executed in this exchange")
					history = append(history, llm.NewToolMessage(call.ID, call.Name, dup.JSON()))
					continue
				}
				executedArgs[argKey] = true
			}

			result, err := o.executeCall(ctx, userID, call, limits, &meta, injected)
			if err != nil {
				return nil, err
			}
			history = append(history, llm.NewToolMessage(call.ID, call.Name, result))
		}
	}

	if !done {
		o.logger.Warn("exchange hit round limit without a final answer",
			zap.String("user_id", userID),
			zap.Int("rounds", o.cfg.MaxRounds))
		final = lastText
		if final == "" {
			final = fallbackAnswer
		}
		history = append(history, llm.NewTextMessage(llm.RoleAssistant, final))
	}

	history = conversation.TrimMessages(history, limits.MaxHistoryMessages)
	if err := o.store.Put(ctx, userID, history, o.cfg.HistoryTTL); err != nil {
		// The answer is already produced; losing persistence degrades
		// continuity, not this reply.
		o.logger.Error("failed to commit conversation",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	meta.ToolCalls = lo.Uniq(meta.ToolCalls)
	o.publish(ctx, userID, started, meta)

	return &Reply{Text: final, Meta: meta}, nil
}

// Reset drops the user's stored conversation.
func (o *Orchestrator) Reset(ctx context.Context, userID string) error {
	err := o.store.Delete(ctx, userID)
	var nf conversation.ErrNotFound
	if errors.As(err, &nf) {
		return nil
	}
	return err
}

// History returns the user's stored conversation log.
func (o *Orchestrator) History(ctx context.Context, userID string) ([]llm.Message, error) {
	return o.store.Get(ctx, userID)
}

func (o *Orchestrator) loadHistory(ctx context.Context, userID, userName string) ([]llm.Message, error) {
	history, err := o.store.Get(ctx, userID)
	if err == nil {
		return history, nil
	}

	var nf conversation.ErrNotFound
	if !errors.As(err, &nf) {
		return nil, err
	}

	prompt := o.cfg.SystemPrompt
	prompt += fmt.Sprintf("\n\nToday's date is %s.", o.now().Format("Monday, 2 January 2006"))
	if userName != "" {
		prompt += fmt.Sprintf(" You are speaking with %s.", userName)
	}
	return []llm.Message{llm.NewTextMessage(llm.RoleSystem, prompt)}, nil
}

// buildRequestMessages trims history to the model's message budget and
// re-applies the tool-message character cap to carried-forward results.
func (o *Orchestrator) buildRequestMessages(history []llm.Message, limits budget.Limits) []llm.Message {
	trimmed := conversation.TrimMessages(history, limits.MaxHistoryMessages)

	out := make([]llm.Message, len(trimmed))
	copy(out, trimmed)
	for i, msg := range out {
		if msg.Role == llm.RoleTool {
			out[i].Content = limits.TruncateText(msg.Content)
		}
	}
	return out
}

// allExecuted reports whether every requested call was already executed
// in an earlier round. A strict subset still contains new work, so only
// a fully repeated batch counts as a stall.
func (o *Orchestrator) allExecuted(calls []llm.ToolCall, round int, executed map[string]bool) bool {
	for _, call := range calls {
		if !executed[identityKey(call, round)] {
			return false
		}
	}
	return len(calls) > 0
}

// executeCall dispatches one tool call, shapes its result, applies the
// context budget, and returns the serialized tool-message content. The
// tool's registered formatting instruction is embedded in the first
// successful result per exchange; the conversation log itself carries a
// single system message, always first, so instructions never become
// extra system entries. The only error returned is an infrastructure
// failure, which aborts the exchange.
func (o *Orchestrator) executeCall(ctx context.Context, userID string, call llm.ToolCall, limits budget.Limits, meta *Metadata, injected map[string]bool) (string, error) {
	raw, err := o.registry.Dispatch(ctx, call.Name, userID, call.ArgumentMap())
	if err != nil {
		o.logger.Error("tool infrastructure failure, aborting exchange",
			zap.String("user_id", userID),
			zap.String("tool", call.Name),
			zap.Error(err))
		return "", fmt.Errorf("executing %s: %w", call.Name, err)
	}
	meta.ToolCalls = append(meta.ToolCalls, call.Name)

	shaped, err := o.shapers.Shape(call.Name, raw)
	if err != nil {
		o.logger.Warn("result shaping failed",
			zap.String("tool", call.Name),
			zap.Error(err))
		shaped = tools.ErrorResult(err.Error())
	}

	if count, ok := intField(shaped, "total_flights_count"); ok && count > meta.FlightsFound {
		meta.FlightsFound = count
	}

	if entries, ok := stringList(shaped["all_flights_context"]); ok {
		truncated, note := limits.TruncateList(entries)
		shaped["all_flights_context"] = truncated
		if note != "" {
			shaped["truncation_note"] = note
		}
	}

	if instruction, ok := o.instructions.For(call.Name); ok && !injected[call.Name] {
		if success, _ := shaped["success"].(bool); success {
			shaped["formatting_instruction"] = instruction
			injected[call.Name] = true
		}
	}

	return limits.TruncateText(shaped.JSON()), nil
}

func (o *Orchestrator) publish(ctx context.Context, userID string, started time.Time, meta Metadata) {
	if o.publisher == nil {
		return
	}

	event := &eventstream.MessageProcessedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeMessageProcessed,
		EventID:       uuid.NewString(),
		EmittedAt:     o.now(),
		UserID:        userID,
		Rounds:        meta.Rounds,
		ToolsInvoked:  meta.ToolsInvoked,
		ToolCalls:     meta.ToolCalls,
		FlightsFound:  meta.FlightsFound,
		DurationMs:    o.now().Sub(started).Milliseconds(),
	}
	if err := o.publisher.PublishMessageProcessed(ctx, event); err != nil {
		o.logger.Warn("failed to publish processed-message event",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// argumentKey builds the within-exchange dedup key for tools configured
// for argument-hash dedup. The hash covers the raw argument JSON.
func (o *Orchestrator) argumentKey(call llm.ToolCall) (string, bool) {
	for _, name := range o.cfg.ArgumentDedupTools {
		if name == call.Name {
			sum := sha256.Sum256(call.Arguments)
			return call.Name + ":" + hex.EncodeToString(sum[:]), true
		}
	}
	return "", false
}

// identityKey names a tool call for dedup purposes. Provider call IDs
// are preferred; calls without one fall back to a round-scoped name.
func identityKey(call llm.ToolCall, round int) string {
	if call.ID != "" {
		return call.ID
	}
	return fmt.Sprintf("round:%d:%s", round, call.Name)
}

func intField(r tools.Result, key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

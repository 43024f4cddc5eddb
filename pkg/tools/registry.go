package tools

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/llm"
)

// DomainAll selects every registered handler regardless of domain tag.
const DomainAll = "*"

type registration struct {
	handler Handler
	domain  string
}

// Registry holds the tool handlers available to the orchestrator.
// Handler sets are assembled once at startup; registration under an
// existing name overwrites and warns rather than failing.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]registration
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		handlers: make(map[string]registration),
	}
}

// Register adds a handler under a domain tag. Last registered wins on a
// name collision.
func (r *Registry) Register(h Handler, domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := h.Name()
	if _, exists := r.handlers[name]; exists {
		r.logger.Warn("overwriting existing tool handler", zap.String("tool", name))
	} else {
		r.order = append(r.order, name)
	}
	r.handlers[name] = registration{handler: h, domain: domain}
}

// Dispatch validates and executes the named tool. Unknown names and
// handler failures, including panics, come back as structured error
// results so the exchange can continue; only infrastructure errors from
// Execute are returned as errors.
func (r *Registry) Dispatch(ctx context.Context, name, userID string, args map[string]any) (result Result, err error) {
	r.mu.RLock()
	reg, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("dispatch of unsupported function", zap.String("tool", name))
		return ErrorResult(fmt.Sprintf("unsupported function: %s", name)), nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked",
				zap.String("tool", name),
				zap.Any("panic", rec))
			result = ErrorResult(fmt.Sprintf("tool %s failed: %v", name, rec))
			err = nil
		}
	}()

	if verr := reg.handler.ValidateParams(args); verr != nil {
		r.logger.Warn("tool arguments rejected",
			zap.String("tool", name),
			zap.Error(verr))
		return ErrorResult(verr.Error()), nil
	}

	return reg.handler.Execute(ctx, userID, args)
}

// HandlersFor returns the handlers registered under the given domain tag,
// in registration order. DomainAll (or an empty tag) returns everything.
func (r *Registry) HandlersFor(domain string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handler, 0, len(r.order))
	for _, name := range r.order {
		reg := r.handlers[name]
		if domain == DomainAll || domain == "" || reg.domain == domain {
			out = append(out, reg.handler)
		}
	}
	return out
}

// Catalog builds the ordered tool list sent to the completion API.
func (r *Registry) Catalog(domain string) []llm.ToolDefinition {
	handlers := r.HandlersFor(domain)

	defs := make([]llm.ToolDefinition, 0, len(handlers))
	for _, h := range handlers {
		defs = append(defs, llm.ToolDefinition{
			Name:        h.Name(),
			Description: h.Description(),
			Parameters:  h.Schema(),
		})
	}
	return defs
}

// Package budget derives per-model context-window limits and applies the
// truncation policy that keeps tool results inside those limits.
//
// Context windows vary by an order of magnitude across models, so a single
// hardcoded truncation constant either wastes headroom on large-context
// models or silently overflows small ones. Deriving limits from the model
// identifier keeps truncation proportional without per-model special
// casing anywhere else.
package budget

import "strings"

const (
	// headroomTokens is reserved for system/user/assistant overhead.
	headroomTokens = 5000

	// charsPerToken converts token budgets into character budgets.
	// Deliberately conservative: structured/JSON-heavy text tokenizes
	// less efficiently than prose.
	charsPerToken = 3.5

	// charsPerFlight is the assumed serialized cost of one flight
	// context string.
	charsPerFlight = 1500

	// tokensPerHistoryMessage is the assumed average cost of one
	// history message.
	tokensPerHistoryMessage = 500

	// toolSharePercent of the post-headroom budget goes to a single
	// tool message; historySharePercent of what remains goes to history.
	toolSharePercent    = 60
	historySharePercent = 40

	// defaultModelTokens is used when the model is entirely unknown.
	defaultModelTokens = 16000

	// aggressiveFlightCap is the fallback list length when a tool
	// message still overflows after per-item truncation.
	aggressiveFlightCap = 5

	truncationMarker = "...[truncated]"
)

// modelTokens maps known model identifiers to their total context window.
// Longest-prefix matching handles dated variants like gpt-4o-2024-08-06.
var modelTokens = map[string]int{
	"gpt-4o":        128000,
	"gpt-4o-mini":   128000,
	"gpt-4-turbo":   128000,
	"gpt-4.1":       1000000,
	"gpt-4":         8192,
	"gpt-3.5-turbo": 16385,
	"o1":            200000,
	"o3":            200000,
	"llama3":        8192,
	"mistral":       32768,
}

// Limits holds the derived ceilings for one model. Immutable and cheap to
// recompute, so callers may hold a copy or call LimitsFor per exchange.
type Limits struct {
	MaxTotalTokens       int
	MaxToolMessageTokens int
	MaxToolMessageChars  int
	MaxFlightsInContext  int
	MaxCharsPerFlight    int
	MaxHistoryMessages   int
}

// LimitsFor computes the context limits for the given model identifier.
func LimitsFor(model string) Limits {
	total := tokensForModel(model)

	remainder := total - headroomTokens
	if remainder < 1000 {
		remainder = 1000
	}

	toolTokens := remainder * toolSharePercent / 100
	toolChars := int(float64(toolTokens) * charsPerToken)

	maxFlights := toolChars / charsPerFlight
	if maxFlights < 1 {
		maxFlights = 1
	}

	historyTokens := (remainder - toolTokens) * historySharePercent / 100
	maxHistory := historyTokens / tokensPerHistoryMessage
	if maxHistory < 4 {
		maxHistory = 4
	}

	return Limits{
		MaxTotalTokens:       total,
		MaxToolMessageTokens: toolTokens,
		MaxToolMessageChars:  toolChars,
		MaxFlightsInContext:  maxFlights,
		MaxCharsPerFlight:    charsPerFlight,
		MaxHistoryMessages:   maxHistory,
	}
}

// tokensForModel looks up the model's capacity, falling back to the
// longest matching name prefix, then to a conservative default.
func tokensForModel(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))
	if tokens, ok := modelTokens[model]; ok {
		return tokens
	}

	best := 0
	bestLen := -1
	for prefix, tokens := range modelTokens {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = tokens
			bestLen = len(prefix)
		}
	}
	if bestLen >= 0 {
		return best
	}

	return defaultModelTokens
}

package flights

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/fares"
	"github.com/flightdeskco/flightdesk/pkg/tools"
)

// defaultOptionLimit caps the structured options handed to the model;
// the full context-string list still carries every fare.
const defaultOptionLimit = 5

// SearchResultShaper flattens raw fare-search responses into the compact
// form the model consumes: parsed options plus one context string per
// fare.
type SearchResultShaper struct {
	parser *fares.Parser
	logger *zap.Logger
}

// NewSearchResultShaper creates the fare-search result shaper.
func NewSearchResultShaper(parser *fares.Parser, logger *zap.Logger) *SearchResultShaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchResultShaper{parser: parser, logger: logger}
}

func (s *SearchResultShaper) CanShape(toolName string) bool {
	return toolName == SearchToolName
}

// Shape parses the provider payload out of a successful search result.
// Malformed payloads degrade to a handler-level error result; failures
// pass through untouched.
func (s *SearchResultShaper) Shape(toolName string, raw tools.Result) (tools.Result, error) {
	if success, ok := raw["success"].(bool); !ok || !success {
		return raw, nil
	}

	response, ok := raw["data"].(*fares.SearchResponse)
	if !ok {
		s.logger.Error("search result carries no fare response payload")
		return tools.ErrorResult("flight search returned an unexpected payload"), nil
	}

	parsed, err := s.parser.Parse(response, fares.SortCheapest, defaultOptionLimit)
	if errors.Is(err, fares.ErrInvalidShape) {
		s.logger.Warn("fare response failed shape validation", zap.Error(err))
		return failure(err.Error(),
			"The flight search did not return any usable options. Please try adjusting the dates or route."), nil
	}
	if err != nil {
		return tools.ErrorResult(err.Error()), nil
	}

	message, _ := raw["message"].(string)

	return tools.Result{
		"success":             true,
		"message":             fmt.Sprintf("%s Found %d flight options.", message, parsed.TotalCount),
		"options":             parsed.Options,
		"all_flights_context": parsed.AllFlightsContext,
		"total_flights_count": parsed.TotalCount,
	}, nil
}

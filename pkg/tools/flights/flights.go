// Package flights implements the travel tool handlers the assistant can
// invoke: fare search, booking lookup, cancellation and travel history.
package flights

import (
	"context"

	"github.com/flightdeskco/flightdesk/pkg/fares"
	"github.com/flightdeskco/flightdesk/pkg/tools"
	"github.com/flightdeskco/flightdesk/pkg/travelapi"
)

// Domain is the registry tag for travel tool handlers.
const Domain = "travel"

// TravelClient is the slice of the travel API the handlers need.
type TravelClient interface {
	SearchAvailability(ctx context.Context, payload *travelapi.AvailabilityPayload) (*fares.SearchResponse, error)
	GetBooking(ctx context.Context, bookingID, userID string) (*travelapi.Booking, error)
	CancelBooking(ctx context.Context, bookingID, userID string) (bool, error)
	TravelHistory(ctx context.Context, userID string) (*travelapi.TravelHistory, error)
}

// failure builds an error result carrying both a machine-readable error
// and a user-presentable message for the model to relay.
func failure(err, message string) tools.Result {
	return tools.Result{
		"success": false,
		"error":   err,
		"message": message,
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an integer argument, tolerating the float64 values JSON
// decoding produces. The second return reports whether the key was
// present and numeric.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// boolArg reads a boolean argument, tolerating the string forms models
// sometimes produce.
func boolArg(args map[string]any, key string) (bool, bool) {
	switch v := args[key].(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true", "yes", "1", "True":
			return true, true
		case "false", "no", "0", "False":
			return false, true
		}
	}
	return false, false
}

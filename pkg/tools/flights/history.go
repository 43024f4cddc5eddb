package flights

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/tools"
	"github.com/flightdeskco/flightdesk/pkg/travelapi"
)

// TravelHistoryHandler implements the view_travel_history tool.
type TravelHistoryHandler struct {
	client TravelClient
	logger *zap.Logger
}

// NewTravelHistoryHandler creates the travel history handler.
func NewTravelHistoryHandler(client TravelClient, logger *zap.Logger) *TravelHistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TravelHistoryHandler{client: client, logger: logger}
}

func (h *TravelHistoryHandler) Name() string { return "view_travel_history" }

func (h *TravelHistoryHandler) Description() string {
	return "Retrieve the traveler's booking history: past and upcoming trips."
}

func (h *TravelHistoryHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (h *TravelHistoryHandler) ValidateParams(args map[string]any) error {
	if _, present := args["user_id"]; present && stringArg(args, "user_id") == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	return nil
}

func (h *TravelHistoryHandler) Execute(ctx context.Context, userID string, args map[string]any) (tools.Result, error) {
	// The model may name a user explicitly; default to the requester.
	target := stringArg(args, "user_id")
	if target == "" {
		target = userID
	}

	h.logger.Info("viewing travel history", zap.String("user_id", target))

	history, err := h.client.TravelHistory(ctx, target)
	if err != nil {
		if travelapi.IsTransport(err) {
			return nil, err
		}
		return tools.Result{
			"success":        false,
			"error":          fmt.Sprintf("Failed to retrieve travel history: %v", err),
			"user_id":        target,
			"total_bookings": 0,
			"bookings":       []travelapi.Booking{},
		}, nil
	}

	return tools.Result{
		"success":        true,
		"user_id":        history.UserID,
		"total_bookings": len(history.Bookings),
		"bookings":       history.Bookings,
	}, nil
}

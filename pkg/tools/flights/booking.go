package flights

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/tools"
	"github.com/flightdeskco/flightdesk/pkg/travelapi"
)

// ViewBookingHandler implements the view_booking tool.
type ViewBookingHandler struct {
	client TravelClient
	logger *zap.Logger
}

// NewViewBookingHandler creates the booking lookup handler.
func NewViewBookingHandler(client TravelClient, logger *zap.Logger) *ViewBookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewBookingHandler{client: client, logger: logger}
}

func (h *ViewBookingHandler) Name() string { return "view_booking" }

func (h *ViewBookingHandler) Description() string {
	return "Retrieve and display the details of an existing booking by its booking ID."
}

func (h *ViewBookingHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"booking_id": map[string]any{
				"type":        "string",
				"description": "Booking identifier (e.g., BK12345678)",
			},
		},
		"required": []string{"booking_id"},
	}
}

func (h *ViewBookingHandler) ValidateParams(args map[string]any) error {
	if stringArg(args, "booking_id") == "" {
		return fmt.Errorf("booking_id is required")
	}
	return nil
}

func (h *ViewBookingHandler) Execute(ctx context.Context, userID string, args map[string]any) (tools.Result, error) {
	bookingID := stringArg(args, "booking_id")

	h.logger.Info("viewing booking",
		zap.String("booking_id", bookingID),
		zap.String("user_id", userID))

	booking, err := h.client.GetBooking(ctx, bookingID, userID)
	if err != nil {
		if travelapi.IsTransport(err) {
			return nil, err
		}
		return failure(fmt.Sprintf("Failed to retrieve booking: %v", err),
			fmt.Sprintf("I could not retrieve booking %s right now.", bookingID)), nil
	}

	if booking == nil {
		return failure(fmt.Sprintf("Booking %s not found or does not belong to user", bookingID),
			fmt.Sprintf("Booking %s was not found.", bookingID)), nil
	}

	return tools.Result{
		"success": true,
		"booking": booking,
	}, nil
}

// CancelBookingHandler implements the cancel_booking tool. Cancellation
// only proceeds once the traveler has explicitly confirmed.
type CancelBookingHandler struct {
	client TravelClient
	logger *zap.Logger
}

// NewCancelBookingHandler creates the booking cancellation handler.
func NewCancelBookingHandler(client TravelClient, logger *zap.Logger) *CancelBookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CancelBookingHandler{client: client, logger: logger}
}

func (h *CancelBookingHandler) Name() string { return "cancel_booking" }

func (h *CancelBookingHandler) Description() string {
	return "Cancel a booking if the traveler confirms. Always confirm with the user before canceling."
}

func (h *CancelBookingHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"booking_id": map[string]any{
				"type":        "string",
				"description": "Booking identifier to cancel (e.g., BK12345678)",
			},
			"confirmation": map[string]any{
				"type":        "boolean",
				"description": "Whether the user has confirmed they want to cancel this booking. Must be true to proceed with cancellation.",
			},
		},
		"required": []string{"booking_id", "confirmation"},
	}
}

func (h *CancelBookingHandler) ValidateParams(args map[string]any) error {
	if stringArg(args, "booking_id") == "" {
		return fmt.Errorf("booking_id is required")
	}
	if _, ok := boolArg(args, "confirmation"); !ok {
		return fmt.Errorf("confirmation must be a boolean")
	}
	return nil
}

func (h *CancelBookingHandler) Execute(ctx context.Context, userID string, args map[string]any) (tools.Result, error) {
	bookingID := stringArg(args, "booking_id")
	confirmed, _ := boolArg(args, "confirmation")

	if !confirmed {
		return tools.Result{
			"success":   false,
			"cancelled": false,
			"error":     "Cancellation requires user confirmation",
			"message":   "Please confirm that you want to cancel this booking.",
		}, nil
	}

	h.logger.Info("cancelling booking",
		zap.String("booking_id", bookingID),
		zap.String("user_id", userID))

	cancelled, err := h.client.CancelBooking(ctx, bookingID, userID)
	if err != nil {
		if travelapi.IsTransport(err) {
			return nil, err
		}
		return tools.Result{
			"success":   false,
			"cancelled": false,
			"error":     fmt.Sprintf("Failed to cancel booking: %v", err),
		}, nil
	}

	if !cancelled {
		return tools.Result{
			"success":    false,
			"cancelled":  false,
			"booking_id": bookingID,
			"error":      "Failed to cancel booking. Booking may not exist or may already be cancelled.",
		}, nil
	}

	return tools.Result{
		"success":    true,
		"cancelled":  true,
		"booking_id": bookingID,
		"message":    fmt.Sprintf("Booking %s has been successfully cancelled.", bookingID),
	}, nil
}

// Package travelapi is the HTTP client for the travel provider: fare
// availability searches, bookings and travel history.
package travelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/fares"
)

const (
	defaultTimeout = 30 * time.Second

	// Availability searches regularly take longer than other calls.
	defaultSearchTimeout = 60 * time.Second
)

// TransportError indicates the provider API was unreachable, timed out,
// or answered with a server error. Fatal for the ongoing exchange.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("travel api transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Config holds client configuration.
type Config struct {
	// BaseURL of the provider API.
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Tenant identifies the organization on multi-tenant deployments.
	Tenant string

	// Timeout for booking and history calls. Defaults to 30s.
	Timeout time.Duration

	// SearchTimeout for availability searches. Defaults to 60s.
	SearchTimeout time.Duration
}

// Client calls the travel provider API.
type Client struct {
	baseURL      string
	apiKey       string
	tenant       string
	httpClient   *http.Client
	searchClient *http.Client
	logger       *zap.Logger
}

// NewClient creates a travel API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	searchTimeout := cfg.SearchTimeout
	if searchTimeout == 0 {
		searchTimeout = defaultSearchTimeout
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		tenant:       cfg.Tenant,
		httpClient:   &http.Client{Timeout: timeout},
		searchClient: &http.Client{Timeout: searchTimeout},
		logger:       logger,
	}
}

// SearchAvailability runs a fare-availability search. The response shape
// is exactly what the fares parser consumes.
func (c *Client) SearchAvailability(ctx context.Context, payload *AvailabilityPayload) (*fares.SearchResponse, error) {
	c.logger.Info("starting flight availability search",
		zap.Int("legs", len(payload.Legs)))

	var response fares.SearchResponse
	if err := c.do(ctx, c.searchClient, http.MethodPost, "/api/travel/flight/availability", payload, &response); err != nil {
		return nil, err
	}

	c.logger.Info("flight availability search completed",
		zap.Int("fares", len(response.Fares)))
	return &response, nil
}

// GetBooking retrieves a booking by ID. Returns (nil, nil) when the
// booking does not exist or does not belong to the user.
func (c *Client) GetBooking(ctx context.Context, bookingID, userID string) (*Booking, error) {
	path := fmt.Sprintf("/api/travel/bookings/%s?user_id=%s",
		url.PathEscape(bookingID), url.QueryEscape(userID))

	var booking Booking
	err := c.do(ctx, c.httpClient, http.MethodGet, path, nil, &booking)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// CancelBooking cancels a booking. Returns false when the booking does
// not exist or was already cancelled.
func (c *Client) CancelBooking(ctx context.Context, bookingID, userID string) (bool, error) {
	path := fmt.Sprintf("/api/travel/bookings/%s?user_id=%s",
		url.PathEscape(bookingID), url.QueryEscape(userID))

	err := c.do(ctx, c.httpClient, http.MethodDelete, path, nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TravelHistory retrieves all bookings for a user.
func (c *Client) TravelHistory(ctx context.Context, userID string) (*TravelHistory, error) {
	path := "/api/travel/bookings?user_id=" + url.QueryEscape(userID)

	var history TravelHistory
	if err := c.do(ctx, c.httpClient, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	if history.UserID == "" {
		history.UserID = userID
	}
	return &history, nil
}

// errNotFound marks a 404 from the provider; callers translate it into
// their own domain semantics.
var errNotFound = errors.New("not found")

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: "encode request", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: "build request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.tenant != "" {
		req.Header.Set("Tenant", c.tenant)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("travel api error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return &TransportError{
			Op:  method + " " + path,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}

package flights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/tools"
	"github.com/flightdeskco/flightdesk/pkg/travelapi"
)

const (
	// SearchToolName is the function name the model calls for fare
	// searches.
	SearchToolName = "search_flights"

	// searchCacheTTL is how long an identical search for the same user
	// returns the cached result instead of hitting the provider again.
	// The model occasionally re-requests the same search within one
	// exchange; 30 seconds absorbs that without serving stale fares.
	searchCacheTTL = 30 * time.Second
)

// SearchHandler implements the search_flights tool.
type SearchHandler struct {
	client TravelClient
	logger *zap.Logger
	cache  *gocache.Cache
}

// NewSearchHandler creates the fare-search handler.
func NewSearchHandler(client TravelClient, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		client: client,
		logger: logger,
		cache:  gocache.New(searchCacheTTL, time.Minute),
	}
}

func (h *SearchHandler) Name() string { return SearchToolName }

func (h *SearchHandler) Description() string {
	return "Find and suggest flight options. Requires: flight type (one-way or round-trip), origin, destination, departure date, return date (if round-trip), cabin class (defaults to economy if not specified)."
}

func (h *SearchHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flight_type": map[string]any{
				"type":        "string",
				"enum":        []string{"one-way", "round-trip"},
				"description": "Type of flight: one-way or round-trip",
			},
			"origin": map[string]any{
				"type":        "string",
				"description": "Origin airport or city code (e.g., JFK, LAX, New York, NYC)",
			},
			"destination": map[string]any{
				"type":        "string",
				"description": "Destination airport or city code (e.g., LHR, CDG, Paris, London)",
			},
			"departure_date": map[string]any{
				"type":        "string",
				"description": "Departure date. Pass relative date expressions as-is (e.g., 'tomorrow', 'mañana', 'next monday') or absolute dates in YYYY-MM-DD format. Do NOT convert relative dates to absolute dates yourself.",
			},
			"return_date": map[string]any{
				"type":        "string",
				"description": "Return date, same formats as departure_date. Required for round-trip.",
			},
			"cabin_class": map[string]any{
				"type":        "string",
				"enum":        []string{"economy", "business", "first", "premium economy"},
				"description": "Cabin class (defaults to economy if not specified)",
			},
			"passengers": map[string]any{
				"type":        "integer",
				"description": "Number of passengers",
				"default":     1,
				"minimum":     1,
			},
		},
		"required": []string{"flight_type", "origin", "destination", "departure_date"},
	}
}

func (h *SearchHandler) ValidateParams(args map[string]any) error {
	for _, key := range []string{"flight_type", "origin", "destination", "departure_date"} {
		if stringArg(args, key) == "" {
			return fmt.Errorf("missing required parameter: %s", key)
		}
	}

	flightType := stringArg(args, "flight_type")
	if flightType != travelapi.FlightTypeOneWay && flightType != travelapi.FlightTypeRoundTrip {
		return fmt.Errorf("flight_type must be 'one-way' or 'round-trip'")
	}

	if flightType == travelapi.FlightTypeRoundTrip && stringArg(args, "return_date") == "" {
		return fmt.Errorf("return_date is required for round-trip flights")
	}

	if _, present := args["passengers"]; present {
		n, ok := intArg(args, "passengers")
		if !ok || n <= 0 {
			return fmt.Errorf("passengers must be a positive integer")
		}
	}

	return nil
}

func (h *SearchHandler) Execute(ctx context.Context, userID string, args map[string]any) (tools.Result, error) {
	passengers, ok := intArg(args, "passengers")
	if !ok {
		return failure("Missing passengers",
			"Number of passengers is required. Please specify how many passengers will be traveling."), nil
	}
	if passengers <= 0 {
		return failure("Invalid passengers", "Number of passengers must be at least 1."), nil
	}

	cabinClass := stringArg(args, "cabin_class")
	if cabinClass == "" {
		return failure("Missing cabin class",
			"Cabin class is required. Please specify: economy, business, first, or premium economy."), nil
	}

	criteria := travelapi.SearchCriteria{
		FlightType:    stringArg(args, "flight_type"),
		Origin:        stringArg(args, "origin"),
		Destination:   stringArg(args, "destination"),
		DepartureDate: stringArg(args, "departure_date"),
		ReturnDate:    stringArg(args, "return_date"),
		CabinClass:    cabinClass,
		Passengers:    passengers,
	}

	if criteria.FlightType == travelapi.FlightTypeRoundTrip {
		origin, oerr := travelapi.NormalizeAirportCode(criteria.Origin)
		destination, derr := travelapi.NormalizeAirportCode(criteria.Destination)
		if oerr == nil && derr == nil && origin == destination {
			return failure("Invalid round-trip airports",
				fmt.Sprintf("For round-trip flights, origin and destination airports must be different. Both are currently: %s", origin)), nil
		}
	}

	payload, err := travelapi.BuildAvailabilityPayload(criteria)
	if err != nil {
		h.logger.Warn("rejected flight search parameters", zap.Error(err))
		return failure(err.Error(), fmt.Sprintf("Invalid flight search parameters: %v", err)), nil
	}

	key, err := cacheKey(userID, payload)
	if err == nil {
		if cached, found := h.cache.Get(key); found {
			h.logger.Info("returning cached flight search result",
				zap.String("user_id", userID))
			return cached.(tools.Result), nil
		}
	}

	h.logger.Info("initiating flight availability search",
		zap.String("user_id", userID),
		zap.String("origin", criteria.Origin),
		zap.String("destination", criteria.Destination),
		zap.String("departure", criteria.DepartureDate),
		zap.Int("passengers", passengers))

	response, err := h.client.SearchAvailability(ctx, payload)
	if err != nil {
		if travelapi.IsTransport(err) {
			return nil, err
		}
		h.logger.Error("flight search failed", zap.Error(err))
		return failure(fmt.Sprintf("Failed to search flights: %v", err),
			fmt.Sprintf("I encountered an error while searching for flights: %v", err)), nil
	}

	result := tools.Result{
		"success": true,
		"message": fmt.Sprintf("Found flight options for %s to %s.", criteria.Origin, criteria.Destination),
		"data":    response,
	}

	if key != "" {
		h.cache.Set(key, result, searchCacheTTL)
	}

	return result, nil
}

// cacheKey hashes the normalized payload per user, so identical searches
// within the TTL are served from cache.
func cacheKey(userID string, payload *travelapi.AvailabilityPayload) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return userID + ":" + hex.EncodeToString(sum[:]), nil
}

// Package fares parses fare-search responses from the travel provider and
// flattens them into compact flight options and context strings.
package fares

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Sort orders accepted by Parse.
const (
	SortCheapest      = "cheapest"
	SortMostExpensive = "most_expensive"
)

// ErrInvalidShape reports a response missing the expected fare structure.
var ErrInvalidShape = errors.New("invalid fare response shape")

var datetimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
}

// Parser turns raw provider fare responses into flight options.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a Parser. A nil logger disables logging.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse flattens a fare-search response into a sorted list of flight
// options plus one pipe-delimited context string per option. The limit
// applies only to Options; AllFlightsContext and TotalCount always cover
// the complete result set so downstream truncation can make its own
// choices. A limit of zero or less means no limit.
func (p *Parser) Parse(resp *SearchResponse, sortOrder string, limit int) (*Result, error) {
	if resp == nil || resp.Fares == nil {
		return nil, fmt.Errorf("%w: Fares is missing", ErrInvalidShape)
	}
	if len(resp.Fares) == 0 {
		return nil, fmt.Errorf("%w: no fares found in response", ErrInvalidShape)
	}

	options := make([]FlightOption, 0, len(resp.Fares))
	for i, fare := range resp.Fares {
		// Fares without passenger information cannot be priced; skip.
		if len(fare.PaxFares) == 0 {
			continue
		}
		options = append(options, p.parseFare(fare, i))
	}

	sort.SliceStable(options, func(a, b int) bool {
		if sortOrder == SortMostExpensive {
			return options[a].TotalAmount > options[b].TotalAmount
		}
		return options[a].TotalAmount < options[b].TotalAmount
	})

	context := make([]string, 0, len(options))
	for _, opt := range options {
		context = append(context, buildContextString(opt))
	}

	total := len(options)
	if limit > 0 && len(options) > limit {
		options = options[:limit]
	}

	return &Result{
		Options:           options,
		AllFlightsContext: context,
		TotalCount:        total,
	}, nil
}

func (p *Parser) parseFare(fare Fare, index int) FlightOption {
	pax := fare.PaxFares[0]

	var (
		segments         []Segment
		outbound         []Segment
		ret              []Segment
		legs             []LegInfo
		outboundProvided int
		returnProvided   int
	)

	for _, leg := range fare.Legs {
		if len(leg.Options) == 0 {
			continue
		}
		opt := leg.Options[0]

		legs = append(legs, LegInfo{
			LegNumber:      leg.LegNumber,
			FlightOptionID: opt.FlightOptionID,
			OptionDuration: opt.OptionDuration,
		})

		parsed := make([]Segment, 0, len(opt.Segments))
		for _, raw := range opt.Segments {
			parsed = append(parsed, parseSegment(raw))
		}

		segments = append(segments, parsed...)
		if leg.LegNumber == 1 {
			outbound = parsed
			outboundProvided = opt.OptionDuration
		} else {
			ret = parsed
			returnProvided = opt.OptionDuration
		}
	}

	totalAmount := fare.TotalAmountWithFees
	if totalAmount == 0 {
		totalAmount = fare.TotalAmount
	}

	id := fare.FareID
	if id == "" {
		id = fare.RecommendationID
	}
	if id == "" {
		id = fmt.Sprintf("fare_%d", index+1)
	}

	roundTrip := len(legs) > 1

	outboundDur := p.legDuration(outbound, outboundProvided, "outbound")
	returnDur := 0
	if len(ret) > 0 {
		returnDur = p.legDuration(ret, returnProvided, "return")
	}

	var totalDur int
	if roundTrip && len(ret) > 0 {
		// Each leg duration already includes its own layovers.
		totalDur = outboundDur + returnDur
	} else {
		totalDur = p.durationWithLayovers(segments)
	}

	return FlightOption{
		ID:                id,
		ValidatingCarrier: fare.ValidatingCarrier,
		TotalAmount:       totalAmount,
		Currency:          fare.Currency,
		LastTicketingDate: fare.LastTicketingDate,
		Segments:          segments,
		OutboundSegments:  outbound,
		ReturnSegments:    ret,
		RoundTrip:         roundTrip,
		Price: Price{
			Base:          fare.FareAmount,
			Taxes:         fare.TaxAmount,
			Service:       fare.ServiceAmount,
			Commission:    fare.CommissionAmount,
			Total:         fare.TotalAmount,
			TotalWithFees: fare.TotalAmountWithFees,
			Currency:      fare.Currency,
			PaxCount:      pax.Count,
		},
		RecommendationID: fare.RecommendationID,
		PolicyStatus:     fare.ApprovalEvaluationStatus,
		Legs:             legs,
		OutboundDuration: outboundDur,
		ReturnDuration:   returnDur,
		TotalDuration:    totalDur,
	}
}

func parseSegment(raw RawSegment) Segment {
	return Segment{
		Airline:           raw.Airline,
		OperatingAirline:  raw.OperatingAirline,
		FlightNumber:      raw.FlightNumber,
		BookingClass:      raw.BookingClass,
		CabinClass:        raw.CabinClass,
		DepartureAirport:  raw.Departure.AirportCode,
		DepartureCity:     endpointCity(raw.Departure),
		ArrivalAirport:    raw.Arrival.AirportCode,
		ArrivalCity:       endpointCity(raw.Arrival),
		DepartureDateTime: mergeDateTime(raw.Departure.Date, raw.Departure.Time),
		ArrivalDateTime:   mergeDateTime(raw.Arrival.Date, raw.Arrival.Time),
		Duration:          raw.Duration,
		Baggage:           raw.Baggage,
		BrandName:         raw.BrandName,
	}
}

func endpointCity(e Endpoint) string {
	if e.City != "" {
		return e.City
	}
	return e.CityName
}

// mergeDateTime combines the provider's separate date (YYYY-MM-DD) and
// time (HH:mm) strings into an ISO datetime.
func mergeDateTime(date, clock string) string {
	return date + "T" + clock + ":00"
}

// legDuration prefers the provider-supplied duration, which already
// includes layover time, and computes one only when it is absent.
func (p *Parser) legDuration(segments []Segment, provided int, label string) int {
	if provided > 0 {
		return provided
	}
	computed := p.durationWithLayovers(segments)
	p.logger.Warn("provider leg duration missing, computed from segments",
		zap.String("leg", label),
		zap.Int("minutes", computed))
	return computed
}

// durationWithLayovers computes total minutes from the first departure to
// the last arrival, which inherently captures layover time. When the
// timestamps are unusable it degrades to the sum of per-segment durations,
// losing layover time.
func (p *Parser) durationWithLayovers(segments []Segment) int {
	if len(segments) == 0 {
		return 0
	}

	depStr := segments[0].DepartureDateTime
	arrStr := segments[len(segments)-1].ArrivalDateTime

	dep, depErr := parseDateTime(depStr)
	arr, arrErr := parseDateTime(arrStr)
	if depErr != nil || arrErr != nil {
		fallback := sumSegmentDurations(segments)
		p.logger.Warn("unusable segment timestamps, using sum of segment durations",
			zap.String("departure", depStr),
			zap.String("arrival", arrStr),
			zap.Int("minutes", fallback))
		return fallback
	}

	minutes := int(arr.Sub(dep).Minutes())
	if minutes < 0 {
		fallback := sumSegmentDurations(segments)
		p.logger.Error("negative duration from segment timestamps, using sum of segment durations",
			zap.String("departure", depStr),
			zap.String("arrival", arrStr),
			zap.Int("minutes", fallback))
		return fallback
	}

	return minutes
}

func sumSegmentDurations(segments []Segment) int {
	total := 0
	for _, seg := range segments {
		total += seg.Duration
	}
	return total
}

func parseDateTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range datetimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

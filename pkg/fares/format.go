package fares

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// buildContextString serializes one flight option into a single
// pipe-delimited key:value line. The consuming party is a language model
// asked to quote exact figures back to a user; a flat label-prefixed
// format costs fewer tokens than JSON and keeps fields from being
// misattributed across nested structures.
func buildContextString(opt FlightOption) string {
	route := formatRoute(opt.Segments)
	airlines := airlinesLabel(opt.Segments)
	baggage := baggageStatus(opt.Segments)
	policy := policyLabel(opt.PolicyStatus)

	if opt.RoundTrip && len(opt.ReturnSegments) > 0 {
		outFirst := opt.OutboundSegments[0]
		outLast := opt.OutboundSegments[len(opt.OutboundSegments)-1]
		retFirst := opt.ReturnSegments[0]
		retLast := opt.ReturnSegments[len(opt.ReturnSegments)-1]

		fields := []string{
			"FareID:" + opt.ID,
			"FlightType:RoundTrip",
			"Route:" + route,
			"TotalPrice:" + formatAmount(opt.TotalAmount),
			"Currency:" + opt.Currency,
			"TotalDuration:" + strconv.Itoa(opt.TotalDuration),
			"Airlines:" + airlines,
			"OutboundAirlines:" + airlinesLabel(opt.OutboundSegments),
			"OutboundSegments:" + strconv.Itoa(len(opt.OutboundSegments)),
			"OutboundStops:" + strconv.Itoa(stops(opt.OutboundSegments)),
			"OutboundDuration:" + strconv.Itoa(opt.OutboundDuration),
			"OutboundDeparture:" + outFirst.DepartureDateTime,
			"OutboundArrival:" + outLast.ArrivalDateTime,
			"OutboundSegments:[" + formatSegments(opt.OutboundSegments, "Outbound") + "]",
			"ReturnAirlines:" + airlinesLabel(opt.ReturnSegments),
			"ReturnSegments:" + strconv.Itoa(len(opt.ReturnSegments)),
			"ReturnStops:" + strconv.Itoa(stops(opt.ReturnSegments)),
			"ReturnDuration:" + strconv.Itoa(opt.ReturnDuration),
			"ReturnDeparture:" + retFirst.DepartureDateTime,
			"ReturnArrival:" + retLast.ArrivalDateTime,
			"ReturnSegments:[" + formatSegments(opt.ReturnSegments, "Return") + "]",
			"PolicyStatus:" + policy,
			"LastTicketingDate:" + opt.LastTicketingDate,
			"BaggageStatus:" + baggage,
			"ValidatingCarrier:" + opt.ValidatingCarrier,
			"RecommendationID:" + opt.RecommendationID,
		}
		return strings.Join(fields, "|")
	}

	var departure, arrival string
	if len(opt.Segments) > 0 {
		departure = opt.Segments[0].DepartureDateTime
		arrival = opt.Segments[len(opt.Segments)-1].ArrivalDateTime
	}

	fields := []string{
		"FareID:" + opt.ID,
		"FlightType:OneWay",
		"Route:" + route,
		"Departure:" + departure,
		"Arrival:" + arrival,
		"TotalDuration:" + strconv.Itoa(opt.TotalDuration),
		"NumSegments:" + strconv.Itoa(len(opt.Segments)),
		"NumStops:" + strconv.Itoa(stops(opt.Segments)),
		"Airlines:" + airlines,
		"Segments:[" + formatSegments(opt.Segments, "") + "]",
		"Price:" + formatAmount(opt.TotalAmount),
		"Currency:" + opt.Currency,
		"PolicyStatus:" + policy,
		"LastTicketingDate:" + opt.LastTicketingDate,
		"BaggageStatus:" + baggage,
		"ValidatingCarrier:" + opt.ValidatingCarrier,
		"RecommendationID:" + opt.RecommendationID,
	}
	return strings.Join(fields, "|")
}

func formatSegments(segments []Segment, legPrefix string) string {
	parts := make([]string, 0, len(segments))
	for i, seg := range segments {
		airline := seg.Airline
		if seg.OperatingAirline != "" && seg.OperatingAirline != seg.Airline {
			airline = fmt.Sprintf("%s(op:%s)", seg.Airline, seg.OperatingAirline)
		}

		parts = append(parts, fmt.Sprintf("%sSeg%d:{Airline:%s,FlightNumber:%s%d,Departure:%s,Arrival:%s,Duration:%d,Baggage:%s}",
			legPrefix, i+1,
			airline,
			seg.Airline, seg.FlightNumber,
			formatEndpoint(seg.DepartureAirport, seg.DepartureCity, seg.DepartureDateTime),
			formatEndpoint(seg.ArrivalAirport, seg.ArrivalCity, seg.ArrivalDateTime),
			seg.Duration,
			seg.Baggage,
		))
	}
	return strings.Join(parts, "|")
}

func formatEndpoint(airport, city, datetime string) string {
	if city != "" {
		return fmt.Sprintf("%s(%s)@%s", airport, city, datetime)
	}
	return airport + "@" + datetime
}

func formatRoute(segments []Segment) string {
	if len(segments) == 0 {
		return "->"
	}
	first := segments[0]
	last := segments[len(segments)-1]

	origin := first.DepartureAirport
	if first.DepartureCity != "" {
		origin = fmt.Sprintf("%s(%s)", first.DepartureAirport, first.DepartureCity)
	}
	destination := last.ArrivalAirport
	if last.ArrivalCity != "" {
		destination = fmt.Sprintf("%s(%s)", last.ArrivalAirport, last.ArrivalCity)
	}
	return origin + "->" + destination
}

// airlines returns the deduplicated, sorted union of marketing and
// operating carrier codes across the given segments.
func airlines(segments []Segment) []string {
	seen := make(map[string]struct{})
	for _, seg := range segments {
		airline := strings.TrimSpace(seg.Airline)
		operating := strings.TrimSpace(seg.OperatingAirline)
		if airline != "" {
			seen[airline] = struct{}{}
		}
		if operating != "" && operating != airline {
			seen[operating] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func airlinesLabel(segments []Segment) string {
	codes := airlines(segments)
	if len(codes) == 0 {
		return "N/A"
	}
	return strings.Join(codes, ",")
}

func stops(segments []Segment) int {
	if len(segments) <= 1 {
		return 0
	}
	return len(segments) - 1
}

// baggageStatus reports HasBaggage only when every segment carries a real
// baggage allowance.
func baggageStatus(segments []Segment) string {
	if len(segments) == 0 {
		return "NoBaggage"
	}
	for _, seg := range segments {
		switch strings.ToUpper(strings.TrimSpace(seg.Baggage)) {
		case "", "NONE", "NO", "0":
			return "NoBaggage"
		}
	}
	return "HasBaggage"
}

func policyLabel(status string) string {
	switch status {
	case "in_policy":
		return "InPolicy"
	case "requires_approval":
		return "RequiresApproval"
	default:
		return status
	}
}

// formatAmount renders an amount without a fixed precision, so 450
// stays "450" and 450.5 stays "450.5".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package travelapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSearchDaysAhead bounds how far in the future a flight date may be.
const MaxSearchDaysAhead = 365

var threeLetterCode = regexp.MustCompile(`[A-Z]{3}`)

// cityAirports maps common city names to their main airport code, used
// when the model passes a city instead of an IATA code.
var cityAirports = map[string]string{
	"NEWYORK":     "NYC",
	"NEWYORKCITY": "NYC",
	"LOSANGELES":  "LAX",
	"LA":          "LAX",
	"SANFRANCISCO": "SFO",
	"SF":           "SFO",
	"CHICAGO":      "ORD",
	"LONDON":       "LHR",
	"PARIS":        "CDG",
	"MADRID":       "MAD",
	"BARCELONA":    "BCN",
	"BUENOSAIRES":  "EZE",
	"BA":           "EZE",
	"CORDOBA":      "COR",
	"MENDOZA":      "MDZ",
	"ROME":         "FCO",
	"MILAN":        "MXP",
	"TOKYO":        "NRT",
	"DUBAI":        "DXB",
	"SYDNEY":       "SYD",
	"MELBOURNE":    "MEL",
}

// NormalizeAirportCode reduces an airport code or city name to exactly
// three uppercase letters.
func NormalizeAirportCode(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("airport code cannot be empty")
	}

	code := strings.ToUpper(strings.TrimSpace(input))

	if len(code) == 3 && isAlpha(code) {
		return code, nil
	}

	if match := threeLetterCode.FindString(code); match != "" {
		return match, nil
	}

	normalized := strings.NewReplacer(" ", "", "-", "").Replace(code)
	if mapped, ok := cityAirports[normalized]; ok {
		return mapped, nil
	}
	for city, mapped := range cityAirports {
		if strings.Contains(normalized, city) || strings.Contains(city, normalized) {
			return mapped, nil
		}
	}

	// Last resort, may not be accurate.
	if len(code) >= 3 {
		return code[:3], nil
	}

	return "", fmt.Errorf("cannot extract valid 3-character airport code from: %s", input)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// MapCabinClass converts a cabin class name to the provider's one-letter
// code, defaulting to economy.
func MapCabinClass(cabinClass string) string {
	switch strings.ToLower(strings.TrimSpace(cabinClass)) {
	case "business", "business class", "b":
		return "B"
	case "first", "first class", "f":
		return "F"
	case "premium economy", "premium", "premium economy class", "w":
		return "W"
	default:
		return "Y"
	}
}

var (
	isoDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dmyDate     = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	inDays      = regexp.MustCompile(`in\s+(\d+)\s+days?`)
	daysFromNow = regexp.MustCompile(`(\d+)\s+days?\s+from\s+now`)
)

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "miércoles": time.Wednesday, "miercoles": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sábado": time.Saturday, "sabado": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday,
}

// FormatDate normalizes a date string to YYYY-MM-DD, accepting a handful
// of common layouts. Unparseable input comes back unchanged.
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	if isoDate.MatchString(s) {
		return s
	}
	if dmyDate.MatchString(s) {
		parts := strings.Split(s, "-")
		return parts[2] + "-" + parts[1] + "-" + parts[0]
	}

	for _, layout := range []string{"2006-01-02", "02/01/2006", "01/02/2006", "02-01-2006", "2006/01/02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// ParseRelativeDate resolves expressions like "tomorrow", "mañana",
// "next monday" or "in 5 days" against today. The assistant is told to
// pass such expressions through verbatim rather than guessing dates
// itself. Returns the zero time when the expression is not recognized.
func ParseRelativeDate(s string, today time.Time) time.Time {
	expr := strings.ToLower(strings.TrimSpace(s))
	if expr == "" {
		return time.Time{}
	}

	day := dateOnly(today)

	switch expr {
	case "today", "hoy":
		return day
	case "tomorrow", "mañana", "manana":
		return day.AddDate(0, 0, 1)
	case "day after tomorrow", "pasado mañana":
		return day.AddDate(0, 0, 2)
	}

	for name, weekday := range weekdays {
		next := strings.Contains(expr, "next "+name) ||
			strings.Contains(expr, "próximo "+name) ||
			strings.Contains(expr, "proximo "+name) ||
			strings.Contains(expr, "el "+name+" que viene")
		if next {
			ahead := int(weekday - day.Weekday())
			if ahead <= 0 {
				ahead += 7
			}
			return day.AddDate(0, 0, ahead)
		}

		if strings.Contains(expr, "this "+name) || strings.Contains(expr, "este "+name) {
			ahead := int(weekday - day.Weekday())
			if ahead < 0 {
				ahead += 7
			}
			return day.AddDate(0, 0, ahead)
		}
	}

	if strings.Contains(expr, "next week") ||
		strings.Contains(expr, "próxima semana") ||
		strings.Contains(expr, "proxima semana") {
		return day.AddDate(0, 0, 7)
	}

	if m := inDays.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		return day.AddDate(0, 0, n)
	}
	if m := daysFromNow.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		return day.AddDate(0, 0, n)
	}

	return time.Time{}
}

// ValidateFutureDate resolves a date string (absolute or relative) to
// YYYY-MM-DD and checks it is between today and maxDaysAhead days out.
func ValidateFutureDate(s string, maxDaysAhead int) (string, error) {
	if s == "" {
		return "", fmt.Errorf("date is required")
	}

	today := dateOnly(time.Now())

	resolved := ParseRelativeDate(s, today)
	if resolved.IsZero() {
		formatted := FormatDate(s)
		parsed, err := time.Parse("2006-01-02", formatted)
		if err != nil {
			return "", fmt.Errorf("invalid date: %s", s)
		}
		resolved = parsed
	}

	if resolved.Before(today) {
		return "", fmt.Errorf("flight date %s is in the past, date must be today or in the future", resolved.Format("2006-01-02"))
	}

	if maxDaysAhead > 0 {
		ahead := int(resolved.Sub(today).Hours() / 24)
		if ahead > maxDaysAhead {
			maxDate := today.AddDate(0, 0, maxDaysAhead)
			return "", fmt.Errorf("flight date %s is more than %d days in the future, maximum allowed date is %s",
				resolved.Format("2006-01-02"), maxDaysAhead, maxDate.Format("2006-01-02"))
		}
	}

	return resolved.Format("2006-01-02"), nil
}

// dateOnly drops the time-of-day component, keeping calendar comparisons
// independent of the wall clock.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildAvailabilityPayload converts normalized search criteria into the
// provider request body, validating airports and dates along the way.
func BuildAvailabilityPayload(criteria SearchCriteria) (*AvailabilityPayload, error) {
	origin, err := NormalizeAirportCode(criteria.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid airport code: %w", err)
	}
	destination, err := NormalizeAirportCode(criteria.Destination)
	if err != nil {
		return nil, fmt.Errorf("invalid airport code: %w", err)
	}

	departure, err := ValidateFutureDate(criteria.DepartureDate, MaxSearchDaysAhead)
	if err != nil {
		return nil, err
	}

	passengers := criteria.Passengers
	if passengers <= 0 {
		passengers = 1
	}

	payload := &AvailabilityPayload{
		Passengers: []PassengerCount{{Count: passengers, Type: "ADT"}},
		Legs: []SearchLeg{{
			DepartureAirportCity: origin,
			FlightDate:           departure,
			ArrivalAirportCity:   destination,
		}},
		CabinClasses: []string{},
	}

	if criteria.FlightType == FlightTypeRoundTrip && criteria.ReturnDate != "" {
		ret, err := ValidateFutureDate(criteria.ReturnDate, MaxSearchDaysAhead)
		if err != nil {
			return nil, err
		}
		// Both dates are YYYY-MM-DD, so string order is date order.
		if ret < departure {
			return nil, fmt.Errorf("return date %s must be after departure date %s", ret, departure)
		}
		payload.Legs = append(payload.Legs, SearchLeg{
			DepartureAirportCity: destination,
			FlightDate:           ret,
			ArrivalAirportCity:   origin,
		})
	}

	if criteria.CabinClass != "" {
		payload.CabinClasses = []string{MapCabinClass(criteria.CabinClass)}
	}

	return payload, nil
}

package travelapi

import "time"

// AvailabilityPayload is the flight-availability request body. Field
// names are a compatibility contract with the provider API.
type AvailabilityPayload struct {
	Passengers   []PassengerCount `json:"passengers"`
	Legs         []SearchLeg      `json:"legs"`
	CabinClasses []string         `json:"cabin_classes"`
}

// PassengerCount is one passenger-type entry in a search payload.
type PassengerCount struct {
	Count int    `json:"Count"`
	Type  string `json:"Type"`
}

// SearchLeg is one direction of a requested journey.
type SearchLeg struct {
	DepartureAirportCity string `json:"DepartureAirportCity"`
	FlightDate           string `json:"FlightDate"`
	ArrivalAirportCity   string `json:"ArrivalAirportCity"`
}

// Flight types accepted in search criteria.
const (
	FlightTypeOneWay    = "one-way"
	FlightTypeRoundTrip = "round-trip"
)

// SearchCriteria is the normalized user intent for a fare search, before
// conversion into the provider payload.
type SearchCriteria struct {
	FlightType    string
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	CabinClass    string
	Passengers    int
}

// Booking is a confirmed reservation as the provider reports it.
type Booking struct {
	BookingID     string     `json:"booking_id"`
	FlightID      string     `json:"flight_id"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureTime time.Time  `json:"departure_time"`
	ArrivalTime   time.Time  `json:"arrival_time"`
	Passengers    int        `json:"passengers"`
	TotalPrice    float64    `json:"total_price"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	BookingDate   *time.Time `json:"booking_date,omitempty"`
	Airline       string     `json:"airline"`
	FlightNumber  string     `json:"flight_number"`
}

// TravelHistory is a user's past and upcoming bookings.
type TravelHistory struct {
	UserID   string    `json:"user_id"`
	Bookings []Booking `json:"bookings"`
}

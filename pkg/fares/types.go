package fares

// Wire types mirror the provider's fare-search response. Field names and
// nesting are a compatibility contract with the upstream API and must not
// be renamed.

// SearchResponse is the top-level fare-search payload.
type SearchResponse struct {
	Fares []Fare `json:"Fares"`
}

// Fare is one priced itinerary offer.
type Fare struct {
	FareID                   string    `json:"FareID"`
	ValidatingCarrier        string    `json:"ValidatingCarrier"`
	FareAmount               float64   `json:"FareAmount"`
	TaxAmount                float64   `json:"TaxAmount"`
	ServiceAmount            float64   `json:"ServiceAmount"`
	CommissionAmount         float64   `json:"CommissionAmount"`
	TotalAmount              float64   `json:"TotalAmount"`
	TotalAmountWithFees      float64   `json:"TotalAmountWithFees"`
	Currency                 string    `json:"Currency"`
	LastTicketingDate        string    `json:"LastTicketingDate"`
	RecommendationID         string    `json:"recommendation_id"`
	ApprovalEvaluationStatus string    `json:"approval_evaluation_status"`
	PaxFares                 []PaxFare `json:"PaxFares"`
	Legs                     []Leg     `json:"Legs"`
}

// PaxFare is the per-passenger-type price breakdown.
type PaxFare struct {
	PaxType string `json:"PaxType"`
	Count   int    `json:"Count"`
}

// Leg groups the flight options for one direction of travel. LegNumber 1
// is the outbound direction, anything later is the return.
type Leg struct {
	LegNumber int         `json:"LegNumber"`
	Options   []LegOption `json:"Options"`
}

// LegOption is one concrete routing for a leg.
type LegOption struct {
	FlightOptionID string       `json:"FlightOptionID"`
	OptionDuration int          `json:"OptionDuration"`
	Segments       []RawSegment `json:"Segments"`
}

// RawSegment is a single flight within a leg option.
type RawSegment struct {
	Airline          string   `json:"Airline"`
	OperatingAirline string   `json:"OperatingAirline"`
	FlightNumber     int      `json:"FlightNumber"`
	BookingClass     string   `json:"BookingClass"`
	CabinClass       string   `json:"CabinClass"`
	Departure        Endpoint `json:"Departure"`
	Arrival          Endpoint `json:"Arrival"`
	Duration         int      `json:"Duration"`
	Baggage          string   `json:"Baggage"`
	BrandName        string   `json:"BrandName"`
}

// Endpoint describes one end of a segment. Date and Time arrive as
// separate strings and are merged into an ISO datetime during parsing.
type Endpoint struct {
	AirportCode string `json:"AirportCode"`
	City        string `json:"City"`
	CityName    string `json:"CityName"`
	Date        string `json:"Date"`
	Time        string `json:"Time"`
}

// Segment is the flattened, parsed form of a RawSegment.
type Segment struct {
	Airline           string `json:"airline"`
	OperatingAirline  string `json:"operating_airline,omitempty"`
	FlightNumber      int    `json:"flight_number"`
	BookingClass      string `json:"booking_class,omitempty"`
	CabinClass        string `json:"cabin_class,omitempty"`
	DepartureAirport  string `json:"departure_airport"`
	DepartureCity     string `json:"departure_city,omitempty"`
	ArrivalAirport    string `json:"arrival_airport"`
	ArrivalCity       string `json:"arrival_city,omitempty"`
	DepartureDateTime string `json:"departure_datetime"`
	ArrivalDateTime   string `json:"arrival_datetime"`
	Duration          int    `json:"duration_minutes"`
	Baggage           string `json:"baggage"`
	BrandName         string `json:"brand_name,omitempty"`
}

// Price is the fare's price breakdown for the first passenger group.
type Price struct {
	Base          float64 `json:"base"`
	Taxes         float64 `json:"taxes"`
	Service       float64 `json:"service"`
	Commission    float64 `json:"commission"`
	Total         float64 `json:"total"`
	TotalWithFees float64 `json:"total_with_fees"`
	Currency      string  `json:"currency"`
	PaxCount      int     `json:"pax_count"`
}

// LegInfo records which provider option was selected for a leg.
type LegInfo struct {
	LegNumber      int    `json:"leg_number"`
	FlightOptionID string `json:"flight_option_id"`
	OptionDuration int    `json:"option_duration"`
}

// FlightOption is one fully parsed, bookable flight choice. Derived and
// immutable once constructed; it lives for the duration of a single tool
// execution.
type FlightOption struct {
	ID                     string    `json:"id"`
	ValidatingCarrier      string    `json:"validating_carrier"`
	TotalAmount            float64   `json:"total_amount"`
	Currency               string    `json:"currency"`
	LastTicketingDate      string    `json:"last_ticketing_date"`
	Segments          []Segment `json:"segments"`
	OutboundSegments  []Segment `json:"outbound_segments"`
	ReturnSegments    []Segment `json:"return_segments,omitempty"`
	RoundTrip         bool      `json:"is_round_trip"`
	Price             Price     `json:"price"`
	RecommendationID  string    `json:"recommendation_id"`
	PolicyStatus      string    `json:"approval_evaluation_status"`
	Legs              []LegInfo `json:"legs"`
	OutboundDuration  int       `json:"outbound_duration_minutes"`
	ReturnDuration    int       `json:"return_duration_minutes"`
	TotalDuration     int       `json:"total_duration_minutes"`
}

// Result is the parser's output. AllFlightsContext and TotalCount always
// cover the complete result set; only Options is limited.
type Result struct {
	Options           []FlightOption `json:"options"`
	AllFlightsContext []string       `json:"all_flights_context"`
	TotalCount        int            `json:"total_count"`
}

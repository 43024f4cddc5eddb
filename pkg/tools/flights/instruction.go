package flights

import "github.com/flightdeskco/flightdesk/pkg/tools"

// searchInstruction steers how the model presents fare-search results.
// Injected into the conversation right after a successful search so it
// applies to that result without permanently bloating the system prompt.
const searchInstruction = `**CRITICAL: Your entire response MUST NOT exceed 4000 characters.**
**CRITICAL: Always reply in the same language as the user's message.**
If there are many results, show only the top 5-7 options and mention that more are available on request.

Format every option the same way.

For round-trip flights (FlightType:RoundTrip): start with the option number and "Round Trip", then total price (combined outbound + return), total duration, baggage, last ticketing date, and policy status. Then an outbound section listing all OutboundSegments one per line with OutboundStops and OutboundDuration, and a return section listing all ReturnSegments with ReturnStops and ReturnDuration.

For one-way flights (FlightType:OneWay): start with the option number and either "Direct" (NumStops is 0) or the number of stops, then total duration, price, baggage, last ticketing date, and policy status, followed by all segments one per line as: {flight_number} - {origin} {departure_time} -> {destination} {arrival_time}.

Rules:
- Use the stop fields directly (NumStops, OutboundStops, ReturnStops); do not recount segments.
- Duration fields already include layover time between segments.
- Policy status: in_policy -> "In Policy", requires_approval -> "Requires Approval", out_of_policy -> "Out of Policy".
- If the user asked for a specific airline, filter using the Airlines fields (IATA codes, e.g. AA, BA, LH).
- Do not include explanations, intros, or summaries; output only the formatted options.`

// RegisterInstructions wires the flight formatting instructions into the
// given registry.
func RegisterInstructions(reg *tools.InstructionRegistry) {
	reg.Register(SearchToolName, searchInstruction)
}

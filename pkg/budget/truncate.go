package budget

import "fmt"

// TruncateList applies the three-step truncation policy to a bounded list
// destined for a single tool message:
//
//  1. cap the list length to MaxFlightsInContext;
//  2. cap each element to MaxCharsPerFlight, appending a marker;
//  3. if the serialized whole still exceeds MaxToolMessageChars, fall
//     back to an aggressive item cap and report it in the returned note.
//
// The returned note is empty when nothing was cut, otherwise a short
// explanation suitable for appending to the tool message so the model
// knows the list is incomplete. The same policy is re-applied when
// previously truncated tool messages are carried forward into later
// rounds' history.
func (l Limits) TruncateList(items []string) ([]string, string) {
	total := len(items)
	note := ""

	if len(items) > l.MaxFlightsInContext {
		items = items[:l.MaxFlightsInContext]
		note = fmt.Sprintf("Showing %d of %d entries to fit the context window.", len(items), total)
	}

	out := make([]string, len(items))
	copy(out, items)
	for i, item := range out {
		if len(item) > l.MaxCharsPerFlight {
			out[i] = item[:l.MaxCharsPerFlight] + truncationMarker
		}
	}

	if serializedLen(out) > l.MaxToolMessageChars && len(out) > aggressiveFlightCap {
		out = out[:aggressiveFlightCap]
		note = fmt.Sprintf("Result set truncated aggressively: showing %d of %d entries to fit the context window.", len(out), total)
	}

	return out, note
}

// TruncateText caps a single string to the tool-message character budget.
func (l Limits) TruncateText(text string) string {
	if len(text) <= l.MaxToolMessageChars {
		return text
	}
	return text[:l.MaxToolMessageChars] + truncationMarker
}

func serializedLen(items []string) int {
	n := 0
	for _, item := range items {
		n += len(item) + 4 // quotes, comma, slack for JSON escaping
	}
	return n
}

package tools

// Shaper post-processes a raw tool result into the form the model should
// see, e.g. flattening a fare-search payload into context strings. Shapers
// are consulted in registration order; the first one that reports it can
// shape a tool's result wins.
type Shaper interface {
	// CanShape reports whether this shaper handles results from the
	// named tool.
	CanShape(toolName string) bool

	// Shape transforms the raw result. Returning an error surfaces a
	// structured failure to the model instead of the raw payload.
	Shape(toolName string, raw Result) (Result, error)
}

// ShaperRegistry holds result shapers in registration order.
type ShaperRegistry struct {
	shapers []Shaper
}

// NewShaperRegistry creates an empty shaper registry.
func NewShaperRegistry() *ShaperRegistry {
	return &ShaperRegistry{}
}

// Register appends a shaper. Order matters: the first matching shaper is
// used.
func (s *ShaperRegistry) Register(shaper Shaper) {
	s.shapers = append(s.shapers, shaper)
}

// Shape runs the first matching shaper over the raw result. Results with
// no matching shaper pass through unchanged.
func (s *ShaperRegistry) Shape(toolName string, raw Result) (Result, error) {
	for _, shaper := range s.shapers {
		if shaper.CanShape(toolName) {
			return shaper.Shape(toolName, raw)
		}
	}
	return raw, nil
}

package model

// Front is a network entry point through which outbound requests are routed
// by prefixing the target URL.
type Front struct {
	// Name is a human readable label used in logs.
	Name string

	// Prefix is prepended verbatim to every target URL. An empty prefix
	// means the request goes to the origin directly.
	Prefix string
}

// Apply returns the effective URL for target when routed through f.
// A nil front leaves target unchanged.
func (f *Front) Apply(target string) string {
	if f == nil || f.Prefix == "" {
		return target
	}
	return f.Prefix + target
}

// IsDirect reports whether f routes requests to the origin unmodified.
func (f *Front) IsDirect() bool {
	return f == nil || f.Prefix == ""
}

// String returns the front name, or "direct" for a nil front.
func (f *Front) String() string {
	if f == nil {
		return "direct"
	}
	if f.Name == "" {
		return f.Prefix
	}
	return f.Name
}

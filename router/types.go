package router

// Request is the normalized representation of one routing invocation.
// Metadata is caller-supplied and passed through untouched; RequestID is an
// opaque correlation token. A Request lives for the duration of a single
// routing call.
type Request struct {
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Prediction is the intermediate, not-yet-validated candidate produced by
// either the primary or the fallback classifier. Only the service consumes
// it, to build the final Output.
type Prediction struct {
	Intent       string
	Confidence   float64
	Reasoning    string
	Language     string
	FallbackUsed bool
	Metadata     map[string]any
}

// Output is the externally visible, schema-validated routing record. Every
// Output that leaves the service has passed ValidateOutput; none is returned
// or logged unvalidated.
type Output struct {
	Intent        string         `json:"intent"`
	Confidence    float64        `json:"confidence"`
	Language      string         `json:"language"`
	Reasoning     string         `json:"reasoning"`
	Timestamp     string         `json:"timestamp"`
	RouterVersion string         `json:"router_version"`
	FallbackUsed  bool           `json:"fallback_used"`
	Metadata      map[string]any `json:"metadata"`
}

// RouteOptions carries the optional per-call parameters of Route.
type RouteOptions struct {
	Metadata        map[string]any
	RequestID       string
	OfflineOverride bool
}

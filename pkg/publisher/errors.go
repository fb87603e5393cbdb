package publisher

import (
	"fmt"
)

// Response texts for malformed requests. These are part of the HTTP
// contract and are returned verbatim as plain-text bodies.
const (
	badRequestErrorMessage = `Bad request, expected request format: { "metrics": [ { "name" : "...", "type" : "...", "value" : "..." }, ... ] }`

	invalidMetricTypeErrorMessage = "Bad request, invalid type. Valid metric types are: string, double, int, float, long, boolean, base64Binary."
)

// ValidationError reports a structurally invalid request or an unsupported
// type/value combination. It maps to HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ParseError reports a textual metric value that failed to parse as its
// declared numeric type. It stems from client-supplied data, so it also
// maps to HTTP 400, but it is kept distinct from ValidationError so callers
// can tell a malformed request from a malformed value.
type ParseError struct {
	Metric string
	Type   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse value of metric %q as %s: %v", e.Metric, e.Type, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PublishError reports a failure from the cloud backend during the publish
// call. The backend's own message is surfaced to the HTTP caller.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("cannot publish topic %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

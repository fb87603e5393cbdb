package publisher

// PublishRequest is the body of a publish call: a non-empty, ordered list of
// metrics to forward to the cloud backend.
type PublishRequest struct {
	Metrics []Metric `json:"metrics"`
}

// Metric is one named, typed value. Value arrives from JSON as a number
// (float64), a string or a bool; Translate coerces it to the declared Type.
type Metric struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the message body handed to a cloud backend: a set of named,
// typed metric values plus the timestamp the payload was assembled at.
// Metrics keep their insertion order, which is preserved by the codecs.
type Payload struct {
	Timestamp time.Time

	names  []string
	values map[string]interface{}
}

// New creates an empty payload stamped with the given time.
func New(timestamp time.Time) *Payload {
	return &Payload{
		Timestamp: timestamp,
		values:    make(map[string]interface{}),
	}
}

// AddMetric appends a metric value under the given name. Adding a name that
// is already present overwrites its value but keeps the original position.
func (p *Payload) AddMetric(name string, value interface{}) {
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Metric returns the value stored under name, if any.
func (p *Payload) Metric(name string) (interface{}, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Names returns the metric names in insertion order.
func (p *Payload) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Len returns the number of metrics in the payload.
func (p *Payload) Len() int {
	return len(p.names)
}

// MarshalJSON encodes the payload as
// {"timestamp": <epoch millis>, "metrics": {...}} with the metrics object
// written in insertion order. The standard library marshals maps sorted by
// key, so the object is assembled by hand here.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	buf.WriteString(fmt.Sprintf("%d", p.Timestamp.UnixMilli()))
	buf.WriteString(`,"metrics":{`)
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metric name %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.values[name])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metric %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

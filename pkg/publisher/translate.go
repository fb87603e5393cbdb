package publisher

import (
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

// Translate validates a publish request and coerces each metric value to its
// declared type, producing the outgoing payload stamped with now. It is a
// pure function of its input and the supplied clock reading.
//
// Numeric JSON values arrive as float64. Declared types are matched
// case-insensitively. Integer coercions truncate, they do not round.
// base64Binary stores the literal bytes of the source string; no base64
// decoding is performed.
func Translate(request *PublishRequest, now time.Time) (*payload.Payload, error) {
	if request == nil || len(request.Metrics) == 0 {
		return nil, &ValidationError{Message: badRequestErrorMessage}
	}

	out := payload.New(now)
	for _, metric := range request.Metrics {
		if metric.Name == "" {
			return nil, &ValidationError{Message: badRequestErrorMessage}
		}

		metricType := strings.ToLower(metric.Type)
		switch value := metric.Value.(type) {
		case float64:
			switch metricType {
			case "int":
				out.AddMetric(metric.Name, int32(value))
			case "long":
				out.AddMetric(metric.Name, int64(value))
			case "double":
				out.AddMetric(metric.Name, value)
			case "float":
				out.AddMetric(metric.Name, float32(value))
			case "string":
				out.AddMetric(metric.Name, stringifyNumber(value))
			default:
				return nil, &ValidationError{Message: invalidMetricTypeErrorMessage}
			}
		case string:
			switch metricType {
			case "base64binary":
				out.AddMetric(metric.Name, []byte(value))
			case "string":
				out.AddMetric(metric.Name, value)
			case "int":
				parsed, err := strconv.ParseInt(value, 10, 32)
				if err != nil {
					return nil, &ParseError{Metric: metric.Name, Type: "int", Err: err}
				}
				out.AddMetric(metric.Name, int32(parsed))
			case "long":
				parsed, err := strconv.ParseInt(value, 10, 64)
				if err != nil {
					return nil, &ParseError{Metric: metric.Name, Type: "long", Err: err}
				}
				out.AddMetric(metric.Name, parsed)
			case "double":
				parsed, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, &ParseError{Metric: metric.Name, Type: "double", Err: err}
				}
				out.AddMetric(metric.Name, parsed)
			case "float":
				parsed, err := strconv.ParseFloat(value, 32)
				if err != nil {
					return nil, &ParseError{Metric: metric.Name, Type: "float", Err: err}
				}
				out.AddMetric(metric.Name, float32(parsed))
			default:
				return nil, &ValidationError{Message: invalidMetricTypeErrorMessage}
			}
		case bool:
			// Booleans pass through regardless of the declared type.
			out.AddMetric(metric.Name, value)
		default:
			return nil, &ValidationError{Message: invalidMetricTypeErrorMessage}
		}
	}

	return out, nil
}

// stringifyNumber renders a numeric metric value as a decimal string.
// Integral values keep a trailing ".0" (5 stringifies as "5.0", not "5"),
// since the value arrived as a floating-point number.
func stringifyNumber(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

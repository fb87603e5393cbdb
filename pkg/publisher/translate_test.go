package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateCoercions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Numeric Values", func(t *testing.T) {
		request := &PublishRequest{Metrics: []Metric{
			{Name: "i", Type: "int", Value: 3.9},
			{Name: "l", Type: "long", Value: 4000000000.0},
			{Name: "d", Type: "double", Value: 21.5},
			{Name: "f", Type: "float", Value: 1.5},
			{Name: "s", Type: "string", Value: 5.0},
			{Name: "s2", Type: "string", Value: 2.5},
		}}

		p, err := Translate(request, now)
		require.NoError(t, err)
		require.Equal(t, 6, p.Len())

		v, _ := p.Metric("i")
		assert.Equal(t, int32(3), v, "int coercion must truncate, not round")
		v, _ = p.Metric("l")
		assert.Equal(t, int64(4000000000), v)
		v, _ = p.Metric("d")
		assert.Equal(t, 21.5, v)
		v, _ = p.Metric("f")
		assert.Equal(t, float32(1.5), v)
		v, _ = p.Metric("s")
		assert.Equal(t, "5.0", v, "integral numerics stringify with a trailing .0")
		v, _ = p.Metric("s2")
		assert.Equal(t, "2.5", v)
	})

	t.Run("Textual Values", func(t *testing.T) {
		request := &PublishRequest{Metrics: []Metric{
			{Name: "i", Type: "int", Value: "42"},
			{Name: "l", Type: "long", Value: "9000000000"},
			{Name: "d", Type: "double", Value: "2.5"},
			{Name: "f", Type: "float", Value: "0.25"},
			{Name: "s", Type: "string", Value: "hello"},
			{Name: "b", Type: "base64Binary", Value: "hello"},
		}}

		p, err := Translate(request, now)
		require.NoError(t, err)

		v, _ := p.Metric("i")
		assert.Equal(t, int32(42), v)
		v, _ = p.Metric("l")
		assert.Equal(t, int64(9000000000), v)
		v, _ = p.Metric("d")
		assert.Equal(t, 2.5, v)
		v, _ = p.Metric("f")
		assert.Equal(t, float32(0.25), v)
		v, _ = p.Metric("s")
		assert.Equal(t, "hello", v)
		v, _ = p.Metric("b")
		assert.Equal(t, []byte("hello"), v, "base64Binary must store the literal bytes, not a base64 decoding")
	})

	t.Run("Boolean Passthrough", func(t *testing.T) {
		// The declared type is not consulted for boolean values.
		request := &PublishRequest{Metrics: []Metric{
			{Name: "a", Type: "boolean", Value: true},
			{Name: "b", Type: "string", Value: false},
		}}

		p, err := Translate(request, now)
		require.NoError(t, err)

		v, _ := p.Metric("a")
		assert.Equal(t, true, v)
		v, _ = p.Metric("b")
		assert.Equal(t, false, v)
	})

	t.Run("Case Insensitive Types", func(t *testing.T) {
		request := &PublishRequest{Metrics: []Metric{
			{Name: "d", Type: "DOUBLE", Value: 1.25},
			{Name: "b", Type: "Base64Binary", Value: "raw"},
		}}

		p, err := Translate(request, now)
		require.NoError(t, err)

		v, _ := p.Metric("d")
		assert.Equal(t, 1.25, v)
		v, _ = p.Metric("b")
		assert.Equal(t, []byte("raw"), v)
	})
}

func TestTranslatePreservesOrderAndTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	request := &PublishRequest{Metrics: []Metric{
		{Name: "zeta", Type: "int", Value: 1.0},
		{Name: "alpha", Type: "int", Value: 2.0},
		{Name: "mid", Type: "int", Value: 3.0},
	}}

	p, err := Translate(request, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, p.Names())
	assert.Equal(t, now, p.Timestamp)
}

func TestTranslateValidation(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Nil Request", func(t *testing.T) {
		_, err := Translate(nil, now)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Message, "expected request format")
	})

	t.Run("Empty Metrics", func(t *testing.T) {
		_, err := Translate(&PublishRequest{Metrics: []Metric{}}, now)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Missing Name", func(t *testing.T) {
		_, err := Translate(&PublishRequest{Metrics: []Metric{{Type: "int", Value: 1.0}}}, now)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Unknown Type Numeric", func(t *testing.T) {
		_, err := Translate(&PublishRequest{Metrics: []Metric{{Name: "m", Type: "unknown", Value: 5.0}}}, now)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Message, "invalid type")
	})

	t.Run("Base64Binary Rejects Numbers", func(t *testing.T) {
		_, err := Translate(&PublishRequest{Metrics: []Metric{{Name: "m", Type: "base64Binary", Value: 5.0}}}, now)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Unsupported Value Kind", func(t *testing.T) {
		_, err := Translate(&PublishRequest{Metrics: []Metric{{Name: "m", Type: "string", Value: []interface{}{1.0}}}}, now)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestTranslateParseErrors(t *testing.T) {
	now := time.Now().UTC()

	for _, metricType := range []string{"int", "long", "double", "float"} {
		t.Run(metricType, func(t *testing.T) {
			request := &PublishRequest{Metrics: []Metric{{Name: "m", Type: metricType, Value: "not-a-number"}}}
			_, err := Translate(request, now)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "m", parseErr.Metric)
			assert.Equal(t, metricType, parseErr.Type)
		})
	}
}

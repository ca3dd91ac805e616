package sink

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
)

type mockReporter struct {
	ErrorInError error
}

func (m *mockReporter) Error(err error) {
	m.ErrorInError = err
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	line := map[string]interface{}{}
	err := json.Unmarshal(buf.Bytes(), &line)
	assert.NoError(t, err)
	return line
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{
			name: "Defaults",
			opts: Options{},
		},
		{
			name: "JSON",
			opts: Options{
				Format:      JSON,
				Name:        "instance",
				Environment: "test",
				Region:      "local",
			},
		},
		{
			name: "Logfmt",
			opts: Options{
				Format: Logfmt,
				Name:   "instance",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.opts)

			assert.NotNil(t, s)
		})
	}
}

func TestTelemetrySinkLog(t *testing.T) {
	tests := []struct {
		name          string
		level         Level
		message       string
		attrs         Attributes
		expectedLevel string
	}{
		{
			name:          "Debug",
			level:         Debug,
			message:       "resolved endpoint arguments",
			attrs:         Attributes{"key": "value"},
			expectedLevel: "debug",
		},
		{
			name:          "Warn",
			level:         Warn,
			message:       "Async task main blocked for 0.250 seconds",
			attrs:         Attributes{"duration": 0.25},
			expectedLevel: "warn",
		},
		{
			name:          "Error",
			level:         Error,
			message:       "validation failed",
			attrs:         nil,
			expectedLevel: "error",
		},
		{
			name:          "UnknownLevelFallsBackToInfo",
			level:         Level("verbose"),
			message:       "message",
			attrs:         nil,
			expectedLevel: "info",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			s := New(Options{Writer: buf})

			s.Log(tc.level, tc.message, tc.attrs)

			line := decodeLine(t, buf)
			assert.Equal(t, tc.expectedLevel, line["level"])
			assert.Equal(t, tc.message, line["message"])
			for k := range tc.attrs {
				assert.Contains(t, line, k)
			}
		})
	}
}

func TestTelemetrySinkSpan(t *testing.T) {
	tracer := mocktracer.New()
	buf := &bytes.Buffer{}
	s := New(Options{Writer: buf, Tracer: tracer})

	span := s.Span("GET /items/{id} endpoint function", Attributes{
		"method": "GET",
		"route":  "/items/{id}",
	})
	span.End()

	spans := tracer.FinishedSpans()
	assert.Len(t, spans, 1)
	assert.Equal(t, "GET /items/{id} endpoint function", spans[0].OperationName)
	assert.Equal(t, "GET", spans[0].Tag("method"))
	assert.Equal(t, "/items/{id}", spans[0].Tag("route"))
}

func TestTelemetrySinkException(t *testing.T) {
	reporter := &mockReporter{}
	buf := &bytes.Buffer{}
	s := New(Options{Writer: buf, Reporter: reporter})

	s.Exception("error logging endpoint arguments")

	line := decodeLine(t, buf)
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "error logging endpoint arguments", line["message"])
	assert.EqualError(t, reporter.ErrorInError, "error logging endpoint arguments")
}

func TestTelemetrySinkWithTags(t *testing.T) {
	tracer := mocktracer.New()
	buf := &bytes.Buffer{}
	s := New(Options{Writer: buf, Tracer: tracer})

	tagged := s.WithTags("slow-async")
	tagged.Log(Warn, "message", nil)

	line := decodeLine(t, buf)
	assert.Equal(t, "slow-async", line["tags"])

	buf.Reset()
	doubled := tagged.WithTags("extra")
	doubled.Log(Warn, "message", nil)

	line = decodeLine(t, buf)
	assert.Equal(t, "slow-async,extra", line["tags"])

	// The original sink is not affected by derivation.
	buf.Reset()
	s.Log(Warn, "message", nil)
	line = decodeLine(t, buf)
	assert.NotContains(t, line, "tags")

	span := tagged.Span("name", nil)
	span.End()
	spans := tracer.FinishedSpans()
	assert.Len(t, spans, 1)
	assert.Equal(t, "slow-async", spans[0].Tag("tags"))
}

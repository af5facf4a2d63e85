package tracing

import (
	"context"
	"errors"
	"testing"

	"resume-ats/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMaskPII(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"a":                  "*",
		"张三":                 "张*",
		"王小明":                "王*明",
		"13812345678":        "13*******78",
		"jane.doe@gmail.com": "ja**************om",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskPII(in), in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab...fg", TruncateString("abcdefg_xyz_fg", 7))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "Ja****oe", SafeAttributeValue("candidate.name", "Jane Doe", 100))
	assert.Equal(t, "parsed/Jane_Doe.json", SafeAttributeValue("record.key", "parsed/Jane_Doe.json", 100))
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordHTTPError(span, errors.New("boom"), 503)
	RecordError(nil, errors.New("ignored"), ErrorTypeInternal)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("error.category", "server_error"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("error.type", string(ErrorTypeHTTP)))
}

func TestInitProviderDisabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

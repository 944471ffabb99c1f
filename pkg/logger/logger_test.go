package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLogger_LevelFilterAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("progress"))

	log.Debug("hidden")
	log.Info("lesson completed", UserID("u-1"), LessonID(10), XPAmount(200), Latency(1500*time.Millisecond))
	log.Error("submit failed", Err(errors.New("database is locked")))

	got := lines(t, &buf)
	require.Len(t, got, 2)

	assert.Equal(t, "INFO", got[0]["level"])
	assert.Equal(t, "lesson completed", got[0]["msg"])
	assert.Equal(t, "progress", got[0]["component"])
	assert.Equal(t, "u-1", got[0]["user_id"])
	assert.Equal(t, float64(10), got[0]["lesson_id"])
	assert.Equal(t, "1.5s", got[0]["latency"])
	assert.NotContains(t, got[0], "source")

	assert.Equal(t, "ERROR", got[1]["level"])
	assert.Equal(t, "database is locked", got[1]["error"])
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: LevelDebug})
	_ = base.With(String("request_id", "r-1"))

	base.Info("plain")
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.NotContains(t, got[0], "request_id")
}

func TestLogger_SourcePointsAtCaller(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Level: LevelInfo, AddSource: true}).Info("with source")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	src, ok := got[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(src["file"].(string), "logger_test.go"), src["file"])
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Level: LevelInfo, Format: FormatText}).Info("purchase", CourseID(7))

	assert.Contains(t, buf.String(), "msg=purchase")
	assert.Contains(t, buf.String(), "course_id=7")
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).WithRequestID("req-42")

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("from context")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "req-42", got[0][RequestIDKey])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithTrace(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})

	assert.Same(t, log, log.WithTrace(context.Background()))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	log.WithTrace(ctx).Info("traced")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, sc.TraceID().String(), got[0]["trace_id"])
	assert.Equal(t, sc.SpanID().String(), got[0]["span_id"])
}

func TestNop(t *testing.T) {
	Nop().Error("discarded")
}

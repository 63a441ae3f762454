package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// helper to set test logger writing JSON to buffer
func setupTestLogger(buf *bytes.Buffer) {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: false,
	})
	slog.SetDefault(slog.New(handler))
}

func TestGetTraceID(t *testing.T) {
	ctxWithID := context.WithValue(context.Background(), traceIDKey, "loan-group-7")
	assert.Equal(t, "loan-group-7", getTraceID(ctxWithID))

	assert.Empty(t, getTraceID(context.Background()))

	ctxWrongType := context.WithValue(context.Background(), traceIDKey, 42)
	assert.Empty(t, getTraceID(ctxWrongType))
}

func TestCtxInfo_InjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf)

	ctx := WithTraceID(context.Background(), "collection-abc")
	CtxInfo(ctx, "installment collected", slog.Int("sequenceNumber", 3))

	log := buf.String()
	assert.Contains(t, log, `"trace_id":"collection-abc"`)
	assert.Contains(t, log, `"msg":"installment collected"`)
	assert.Contains(t, log, `"sequenceNumber":3`)
}

func TestCtxWarn_NoTraceID(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf)

	CtxWarn(context.Background(), "overpayment folded into target")

	log := buf.String()
	assert.NotContains(t, log, `"trace_id"`)
	assert.Contains(t, log, `"level":"WARN"`)
}

func TestCtxError_IncludesErrorAndTraceID(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf)

	ctx := WithTraceID(context.Background(), "trace-error")
	CtxError(ctx, "ledger invariant broken", errors.New("sum mismatch"))

	log := buf.String()
	assert.Contains(t, log, `"error":"sum mismatch"`)
	assert.Contains(t, log, `"trace_id":"trace-error"`)
	assert.Contains(t, log, `"level":"ERROR"`)
}

func TestCtxDebug(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf)

	CtxDebug(WithTraceID(context.Background(), "dbg"), "debug line")

	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
	assert.Contains(t, buf.String(), `"trace_id":"dbg"`)
}

func TestNonContextLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf)

	Info("info message")
	Warn("warn message")
	Debug("debug message")
	Error("error message", errors.New("fail"))

	log := buf.String()
	assert.Contains(t, log, `"msg":"info message"`)
	assert.Contains(t, log, `"msg":"warn message"`)
	assert.Contains(t, log, `"msg":"debug message"`)
	assert.Contains(t, log, `"error":"fail"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

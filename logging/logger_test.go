package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
}

func TestNewJSONLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSONLogger(buf, slog.LevelInfo)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, `"msg":"test message"`)
	assert.Contains(t, output, `"key":"value"`)

	// Verify it's valid JSON
	var parsed map[string]any
	err := json.Unmarshal([]byte(output), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "test message", parsed["msg"])
	assert.Equal(t, "value", parsed["key"])
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	require.NotNil(t, logger)

	// NopLogger should not panic and should discard all output
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	childLogger := logger.With("parent_key", "parent_value")
	require.NotNil(t, childLogger)

	childLogger.Info("child message", "child_key", "child_value")

	output := buf.String()
	assert.Contains(t, output, "parent_key=parent_value")
	assert.Contains(t, output, "child_key=child_value")
}

func TestLogger_WithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	compLogger := logger.WithComponent("chain")
	compLogger.Info("component message")

	output := buf.String()
	assert.Contains(t, output, "component=chain")
}

func TestAttributeConstructors(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{"Component", Component("chain"), "component=chain"},
		{"BlockNum", BlockNum(12345), "block_num=12345"},
		{"Hash", Hash([]byte{0xde, 0xad, 0xbe, 0xef}), "hash=deadbeef"},
		{"TxHash", TxHash([]byte{0xca, 0xfe}), "tx_hash=cafe"},
		{"BlockHash", BlockHash([]byte{0xba, 0xbe}), "block_hash=babe"},
		{"Witness", Witness("initminer"), "witness=initminer"},
		{"Account", Account("alice"), "account=alice"},
		{"Symbol", Symbol("BERRY"), "symbol=BERRY"},
		{"Operation", Operation("transfer"), "operation=transfer"},
		{"Count", Count(42), "count=42"},
		{"Size", Size(1024), "size_bytes=1024"},
		{"Revision", Revision(5), "revision=5"},
		{"ChainID", ChainID("testnet-1"), "chain_id=testnet-1"},
		{"Reason", Reason("expired"), "reason=expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewTextLogger(buf, slog.LevelInfo)
			logger.Info("test", tt.attr)

			output := buf.String()
			assert.Contains(t, output, tt.expected)
		})
	}
}

func TestDurationAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSONLogger(buf, slog.LevelInfo)

	d := 150 * time.Millisecond
	logger.Info("test", Duration(d))

	var parsed map[string]any
	err := json.Unmarshal(buf.Bytes(), &parsed)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, parsed["duration_ms"], 0.1)
}

func TestErrorAttribute(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	err := assert.AnError
	logger.Info("test", Error(err))

	output := buf.String()
	assert.Contains(t, output, "error=")
}

func TestErrorAttribute_Nil(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelInfo)

	// Nil error should produce empty attribute
	logger.Info("test", Error(nil))

	output := buf.String()
	// Should not contain "error=" when error is nil
	assert.NotContains(t, output, "error=")
}

func TestLogLevels(t *testing.T) {
	// Test that log levels filter correctly
	buf := &bytes.Buffer{}
	logger := NewTextLogger(buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestBytesToHex(t *testing.T) {
	tests := []struct {
		input    []byte
		expected string
	}{
		{nil, ""},
		{[]byte{}, ""},
		{[]byte{0x00}, "00"},
		{[]byte{0xff}, "ff"},
		{[]byte{0xde, 0xad, 0xbe, 0xef}, "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := bytesToHex(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNopHandler(t *testing.T) {
	h := nopHandler{}

	// All methods should be no-ops
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelError))
	assert.NoError(t, h.Handle(context.Background(), slog.Record{}))
	assert.Equal(t, h, h.WithAttrs(nil))
	assert.Equal(t, h, h.WithGroup("test"))
}

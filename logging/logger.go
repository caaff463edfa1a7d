package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is a structured logger interface for stakeberry.
// It wraps slog.Logger with convenience methods for common logging patterns.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the given handler.
func New(handler slog.Handler) *Logger {
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a new Logger with text output format.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a new Logger with JSON output format.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewJSONHandler(w, opts))
}

// NewDevelopmentLogger creates a logger suitable for development.
// Uses text format with debug level output to stderr.
func NewDevelopmentLogger() *Logger {
	return NewTextLogger(os.Stderr, slog.LevelDebug)
}

// NewProductionLogger creates a logger suitable for production.
// Uses JSON format with info level output to stdout.
func NewProductionLogger() *Logger {
	return NewJSONLogger(os.Stdout, slog.LevelInfo)
}

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() *Logger {
	return New(nopHandler{})
}

// With returns a new Logger with the given attributes added to every log entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithComponent returns a new Logger with a component attribute.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// Common attribute constructors for chain-specific fields.

// Component creates a component attribute for identifying the source module.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// BlockNum creates a block number attribute.
func BlockNum(n uint32) slog.Attr {
	return slog.Int64("block_num", int64(n))
}

// Hash creates a hash attribute (hex-encoded).
func Hash(h []byte) slog.Attr {
	return slog.String("hash", bytesToHex(h))
}

// TxHash creates a transaction hash attribute (hex-encoded).
func TxHash(h []byte) slog.Attr {
	return slog.String("tx_hash", bytesToHex(h))
}

// BlockHash creates a block hash attribute (hex-encoded).
func BlockHash(h []byte) slog.Attr {
	return slog.String("block_hash", bytesToHex(h))
}

// Witness creates a witness account attribute.
func Witness(name string) slog.Attr {
	return slog.String("witness", name)
}

// Account creates an account name attribute.
func Account(name string) slog.Attr {
	return slog.String("account", name)
}

// Symbol creates an asset symbol attribute.
func Symbol(s string) slog.Attr {
	return slog.String("symbol", s)
}

// Operation creates an operation type attribute.
func Operation(t string) slog.Attr {
	return slog.String("operation", t)
}

// Duration creates a duration attribute in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d.Nanoseconds())/1e6)
}

// DurationSeconds creates a duration attribute in seconds.
func DurationSeconds(d time.Duration) slog.Attr {
	return slog.Float64("duration_s", d.Seconds())
}

// Count creates a count attribute.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Size creates a size attribute in bytes.
func Size(n int) slog.Attr {
	return slog.Int("size_bytes", n)
}

// Revision creates a state revision attribute.
func Revision(v int64) slog.Attr {
	return slog.Int64("revision", v)
}

// ChainID creates a chain ID attribute.
func ChainID(id string) slog.Attr {
	return slog.String("chain_id", id)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Reason creates a reason attribute.
func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}

// Progress creates a progress attribute (0.0 to 1.0).
func Progress(p float64) slog.Attr {
	return slog.Float64("progress", p)
}

// bytesToHex converts bytes to hex string.
func bytesToHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	const hexDigits = "0123456789abcdef"
	hex := make([]byte, len(b)*2)
	for i, v := range b {
		hex[i*2] = hexDigits[v>>4]
		hex[i*2+1] = hexDigits[v&0x0f]
	}
	return string(hex)
}

// nopHandler is a slog.Handler that discards all logs.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

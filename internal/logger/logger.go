package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu   sync.RWMutex
	base *slog.Logger
)

type ctxKey struct{}

// Init replaces the process logger. Every record carries service=tournament_market.
func Init(level string, json bool) {
	InitWriter(os.Stdout, level, json)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, json bool) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	l := slog.New(h).With("service", "tournament_market")

	mu.Lock()
	base = l
	mu.Unlock()
	slog.SetDefault(l)
}

// parseLevel accepts slog level names in any case; anything else is info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func Get() *slog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l == nil {
		Init("info", false)
		return Get()
	}
	return l
}

// NewContext stores a request-scoped logger (actor, request id) in ctx.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithContext returns the request-scoped logger, or the process one.
func WithContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return Get()
}

// Ledger groups the fields every wallet movement is logged with.
func Ledger(userID, wallet, kind string, amount, balanceAfter int64) slog.Attr {
	return slog.Group("ledger",
		slog.String("user_id", userID),
		slog.String("wallet", wallet),
		slog.String("type", kind),
		slog.Int64("amount", amount),
		slog.Int64("balance_after", balanceAfter),
	)
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }

func Info(msg string, args ...any) { Get().Info(msg, args...) }

func Warn(msg string, args ...any) { Get().Warn(msg, args...) }

func Error(msg string, args ...any) { Get().Error(msg, args...) }

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}

func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

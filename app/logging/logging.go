// Package logging configures zerolog and provides the request logging middleware.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const requestIDKey ctxKey = "logging_request_id"

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

// Config controls logger initialization.
type Config struct {
	Style string // "console" or "json"
	Level string // "debug", "info", "warn", "error"
}

var defaultTimeFmt = time.RFC3339

// Init configures zerolog globals and returns the base logger.
func Init(cfg Config) zerolog.Logger {
	return initWithWriter(cfg, os.Stderr)
}

func initWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = defaultTimeFmt
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	logger := zerolog.New(selectWriter(cfg.Style, out)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// WithRequestID stores (or generates) a request ID on the context.
func WithRequestID(ctx context.Context, requestID string) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, requestID), requestID
}

// RequestID returns the request ID stored on ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns the global logger annotated with the request ID.
func FromContext(ctx context.Context) *zerolog.Logger {
	logger := log.Logger
	if id := RequestID(ctx); id != "" {
		logger = logger.With().Str("request_id", id).Logger()
	}
	return &logger
}

// RequestLogger assigns a request ID and logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, id := WithRequestID(c.Request.Context(), c.GetHeader(RequestIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func parseLevel(level string) zerolog.Level {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "", "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		fmt.Fprintf(os.Stderr, "logging: invalid level %q; using %q\n", normalized, "info")
		return zerolog.InfoLevel
	}
}

func selectWriter(style string, out io.Writer) io.Writer {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "console", "":
		return zerolog.ConsoleWriter{Out: out, TimeFormat: defaultTimeFmt}
	case "json":
		return out
	default:
		fmt.Fprintf(os.Stderr, "logging: invalid style %q; using %q\n", style, "json")
		return out
	}
}

package tlog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/steveiliop56/adhub/internal/config"
)

// Logger carries the three streams: app for service events, http for access logs and audit for
// connection and credential changes.
type Logger struct {
	Audit zerolog.Logger
	HTTP  zerolog.Logger
	App   zerolog.Logger
}

var (
	Audit = zerolog.Nop()
	HTTP  = zerolog.Nop()
	App   = zerolog.Nop()
)

func NewLogger(cfg config.LogConfig) *Logger {
	return NewLoggerTo(cfg, os.Stderr)
}

// NewLoggerTo builds the streams on top of out. The console writer is only used for plain text.
func NewLoggerTo(cfg config.LogConfig, out io.Writer) *Logger {
	if !cfg.Json {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	baseLogger := zerolog.New(out).
		With().
		Timestamp().
		Logger().
		Level(parseLogLevel(cfg.Level))

	return &Logger{
		// Audit lines are records of who did what, the call site adds nothing
		Audit: createLogger("audit", cfg.Streams.Audit, baseLogger),
		HTTP:  createLogger("http", cfg.Streams.HTTP, baseLogger),
		App:   createLogger("app", cfg.Streams.App, baseLogger.With().Caller().Logger()),
	}
}

func NewSimpleLogger() *Logger {
	return NewLogger(config.LogConfig{
		Level: "info",
		Json:  false,
		Streams: config.LogStreams{
			HTTP:  config.LogStreamConfig{Enabled: true},
			App:   config.LogStreamConfig{Enabled: true},
			Audit: config.LogStreamConfig{Enabled: false},
		},
	})
}

func (l *Logger) Init() {
	Audit = l.Audit
	HTTP = l.HTTP
	App = l.App
}

func createLogger(stream string, streamCfg config.LogStreamConfig, baseLogger zerolog.Logger) zerolog.Logger {
	if !streamCfg.Enabled {
		return zerolog.Nop()
	}
	subLogger := baseLogger.With().Str("log_stream", stream).Logger()
	if streamCfg.Level != "" {
		subLogger = subLogger.Level(parseLogLevel(streamCfg.Level))
	}
	return subLogger
}

func parseLogLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warn().Err(err).Str("level", level).Msg("Invalid log level, defaulting to info")
		parsedLevel = zerolog.InfoLevel
	}
	return parsedLevel
}

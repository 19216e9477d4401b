package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type loggerConfig struct {
	Level     string
	Format    string
	AddSource bool
}

func LoggerFromViper() (*slog.Logger, error) {
	logCfg := loggerConfig{
		Level:     viper.GetString("logging.level"),
		Format:    viper.GetString("logging.format"),
		AddSource: viper.GetBool("logging.add_source"),
	}
	if strings.TrimSpace(logCfg.Level) == "" && viper.GetBool("trace") {
		logCfg.Level = "debug"
	}
	return newLoggerFromConfig(logCfg, os.Stderr)
}

func newLoggerFromConfig(cfg loggerConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseSlogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	return slog.New(h), nil
}

func parseSlogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level: %s", s)
	}
}

// SDKLogger routes Println/Printf style logging from third-party SDKs into slog
// at debug level. Secrets are replaced before the line is emitted.
type SDKLogger struct {
	Logger    *slog.Logger
	Component string
	Secrets   []string
}

func (l SDKLogger) Println(v ...interface{}) {
	l.emit(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l SDKLogger) Printf(format string, v ...interface{}) {
	l.emit(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l SDKLogger) emit(line string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range l.Secrets {
		if s = strings.TrimSpace(s); s != "" {
			line = strings.ReplaceAll(line, s, "[redacted]")
		}
	}
	logger.Debug("sdk_log", "component", l.Component, "line", line)
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// DefaultLogger is set by the first successful New call and used as a
// fallback by components constructed without an explicit logger.
var DefaultLogger *Logger

// Logger writes structured JSON to a log file and colored text to stdout.
type Logger struct {
	level      slog.Level
	jsonLogger *slog.Logger
	textLogger *slog.Logger
	logFile    *os.File
	mu         sync.RWMutex
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// textHandler renders records as "[time] [LEVEL] message" with ANSI colors.
type textHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "DEBUG", colorDebug
	case slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	default:
		levelStr, levelColor = "INFO", colorInfo
	}

	output := fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
		colorTime, timeStr, colorReset,
		levelColor, levelStr, colorReset,
		r.Message)

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *textHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *textHandler) WithGroup(string) slog.Handler      { return h }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger writing JSON records to Dir/Filename and text to stdout.
func New(cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(cfg.Dir, cfg.Filename)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	level := parseLevel(cfg.Level)

	logger := &Logger{
		level:      level,
		jsonLogger: slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})),
		textLogger: slog.New(&textHandler{writer: os.Stdout, level: level}),
		logFile:    file,
	}

	if DefaultLogger == nil {
		DefaultLogger = logger
	}
	return logger, nil
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(args) > 0 && strings.Contains(msg, "%") {
		msg = fmt.Sprintf(msg, args...)
	}

	ctx := context.Background()
	l.jsonLogger.Log(ctx, level, msg)
	l.textLogger.Log(ctx, level, msg)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// FormatLog prefixes a message with a single module tag, e.g. "[publish] done".
// Messages that already start with "[" are returned unchanged.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" || strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) DebugTag(tag, msg string, args ...any) { l.Debug(FormatLog(tag, msg), args...) }
func (l *Logger) InfoTag(tag, msg string, args ...any)  { l.Info(FormatLog(tag, msg), args...) }
func (l *Logger) WarnTag(tag, msg string, args ...any)  { l.Warn(FormatLog(tag, msg), args...) }
func (l *Logger) ErrorTag(tag, msg string, args ...any) { l.Error(FormatLog(tag, msg), args...) }

// Slog exposes the structured logger for integrations that expect *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.jsonLogger
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}

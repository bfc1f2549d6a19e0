package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	// level is shared by every handler created by this package
	level = new(slog.LevelVar)

	mu     sync.Mutex
	output io.Writer = os.Stdout

	// Colors for different log levels
	infoColor    = color.New(color.FgGreen).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	debugColor   = color.New(color.FgCyan).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	keyColor     = color.New(color.FgHiBlack).SprintFunc()
)

// ColorTextHandler writes one coloured line per record
type ColorTextHandler struct {
	w     io.Writer
	attrs []slog.Attr
	group string
}

// NewColorTextHandler creates a new ColorTextHandler
func NewColorTextHandler(w io.Writer) *ColorTextHandler {
	return &ColorTextHandler{w: w}
}

// Handle handles the log record
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelText = debugColor("DEBUG")
	case slog.LevelInfo:
		levelText = infoColor("INFO")
	case slog.LevelWarn:
		levelText = warnColor("WARN")
	case slog.LevelError:
		levelText = errorColor("ERROR")
	default:
		levelText = r.Level.String()
	}

	var b strings.Builder
	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)
		return true
	})

	mu.Lock()
	defer mu.Unlock()
	// Leading carriage return keeps lines clean when a spinner shares the terminal
	_, err := fmt.Fprintf(h.w, "\r%s %s%s\n", levelText, r.Message, b.String())
	return err
}

func (h *ColorTextHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Key == "source" || a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	b.WriteString(" ")
	b.WriteString(keyColor(key + "="))
	b.WriteString(formatAttrValue(a.Value))
}

// formatAttrValue formats a slog.Value as a string
func formatAttrValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		return fmt.Sprintf("%.3f", v.Float64())
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Format("15:04:05")
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return fmt.Sprintf("%q", err.Error())
		}
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

// WithAttrs returns a new handler carrying the given attributes
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &ColorTextHandler{w: h.w, group: h.group}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

// WithGroup returns a new handler that prefixes keys with name
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	g := name
	if h.group != "" {
		g = h.group + "." + name
	}
	return &ColorTextHandler{w: h.w, attrs: h.attrs, group: g}
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= level.Level()
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the colour handler as the default slog logger
func Init(levelName string) {
	level.Set(ParseLevel(levelName))

	mu.Lock()
	w := output
	mu.Unlock()

	if f, ok := w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		color.NoColor = true
	}

	slog.SetDefault(slog.New(NewColorTextHandler(w)))
	Debug("Logging initialized", "level", level.Level().String())
}

// SetOutput sets the output writer for the logger
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
	slog.SetDefault(slog.New(NewColorTextHandler(w)))
}

// IsDebug reports whether debug records are emitted
func IsDebug() bool {
	return level.Level() <= slog.LevelDebug
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Success logs an info record rendered in the success colour
func Success(msg string, args ...any) {
	slog.Info(successColor(msg), args...)
}

// ContextualLogger tags every record with a component name and fixed attributes
type ContextualLogger struct {
	component string
	attrs     []any
}

// NewContextualLogger returns a logger for component with the given key/value pairs
func NewContextualLogger(component string, kv ...any) *ContextualLogger {
	return &ContextualLogger{component: component, attrs: kv}
}

// With returns a copy carrying additional key/value pairs
func (l *ContextualLogger) With(kv ...any) *ContextualLogger {
	attrs := append(append([]any{}, l.attrs...), kv...)
	return &ContextualLogger{component: l.component, attrs: attrs}
}

func (l *ContextualLogger) args(kv []any) []any {
	out := make([]any, 0, 2+len(l.attrs)+len(kv))
	out = append(out, "component", l.component)
	out = append(out, l.attrs...)
	return append(out, kv...)
}

func (l *ContextualLogger) Debug(msg string, kv ...any) { slog.Debug(msg, l.args(kv)...) }
func (l *ContextualLogger) Info(msg string, kv ...any)  { slog.Info(msg, l.args(kv)...) }
func (l *ContextualLogger) Warn(msg string, kv ...any)  { slog.Warn(msg, l.args(kv)...) }
func (l *ContextualLogger) Error(msg string, kv ...any) { slog.Error(msg, l.args(kv)...) }

// Timer measures an operation and logs its duration when stopped
type Timer struct {
	log   *ContextualLogger
	op    string
	start time.Time
}

// StartTimer begins timing op
func (l *ContextualLogger) StartTimer(op string) *Timer {
	l.Debug("Operation started", "operation", op)
	return &Timer{log: l, op: op, start: time.Now()}
}

// Stop logs the elapsed time and returns it
func (t *Timer) Stop(kv ...any) time.Duration {
	elapsed := time.Since(t.start)
	t.log.Debug("Operation finished", append([]any{"operation", t.op, "duration", elapsed}, kv...)...)
	return elapsed
}

package logging

import "fmt"

// LogTemplate pairs an emoji and prefix with the level a user-facing message is logged at
type LogTemplate struct {
	emoji  string
	prefix string
	level  LogLevel
	dryRun bool
}

// LogLevel represents the logging level for templates
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelSuccess
	LevelWarn
	LevelError
	LevelDebug
)

// Engine milestone templates
var (
	RunTemplate      = LogTemplate{emoji: "🚀", prefix: "Run", level: LevelInfo}
	RowTemplate      = LogTemplate{emoji: "📄", prefix: "Row", level: LevelInfo}
	BlockTemplate    = LogTemplate{emoji: "🔁", prefix: "Block", level: LevelInfo}
	StepOKTemplate   = LogTemplate{emoji: "✅", prefix: "", level: LevelSuccess}
	StepFailTemplate = LogTemplate{emoji: "❌", prefix: "", level: LevelError}
	RetryTemplate    = LogTemplate{emoji: "🔄", prefix: "Retrying", level: LevelWarn}
	SkipTemplate     = LogTemplate{emoji: "⏭", prefix: "Skipping", level: LevelDebug}
	PauseTemplate    = LogTemplate{emoji: "⏸", prefix: "Paused", level: LevelInfo}
	ResumeTemplate   = LogTemplate{emoji: "▶", prefix: "Resumed", level: LevelInfo}
	StopTemplate     = LogTemplate{emoji: "🛑", prefix: "Stopping", level: LevelWarn}
	SearchTemplate   = LogTemplate{emoji: "🔍", prefix: "Searching for", level: LevelDebug}
	FoundTemplate    = LogTemplate{emoji: "✓", prefix: "Found", level: LevelSuccess}
	NotFoundTemplate = LogTemplate{emoji: "✗", prefix: "Not found", level: LevelWarn}
	ConnectTemplate  = LogTemplate{emoji: "🔌", prefix: "Connecting to", level: LevelInfo}
	SaveTemplate     = LogTemplate{emoji: "💾", prefix: "Saved", level: LevelSuccess}
)

// Dry-run device templates
var (
	DryRunMoveTemplate       = LogTemplate{emoji: "🖱", prefix: "Would move to", level: LevelInfo, dryRun: true}
	DryRunClickTemplate      = LogTemplate{emoji: "🖱", prefix: "Would click", level: LevelInfo, dryRun: true}
	DryRunDragTemplate       = LogTemplate{emoji: "🖱", prefix: "Would drag", level: LevelInfo, dryRun: true}
	DryRunScrollTemplate     = LogTemplate{emoji: "🖱", prefix: "Would scroll", level: LevelInfo, dryRun: true}
	DryRunTypeTemplate       = LogTemplate{emoji: "📝", prefix: "Would type", level: LevelInfo, dryRun: true}
	DryRunKeyTemplate        = LogTemplate{emoji: "⌨️", prefix: "Would send keys", level: LevelInfo, dryRun: true}
	DryRunScreenshotTemplate = LogTemplate{emoji: "📸", prefix: "Would take screenshot", level: LevelInfo, dryRun: true}
)

// Format formats the template with the provided message
func (t LogTemplate) Format(message string) string {
	if t.dryRun {
		return fmt.Sprintf("%s [DRY-RUN] %s: %s", t.emoji, t.prefix, message)
	}
	if t.prefix != "" {
		return fmt.Sprintf("%s %s: %s", t.emoji, t.prefix, message)
	}
	return fmt.Sprintf("%s %s", t.emoji, message)
}

// Log logs the message at the template's level. kv pairs are attached as attributes.
func (t LogTemplate) Log(message string, kv ...any) {
	formatted := t.Format(message)
	switch t.level {
	case LevelInfo:
		Info(formatted, kv...)
	case LevelSuccess:
		Success(formatted, kv...)
	case LevelWarn:
		Warn(formatted, kv...)
	case LevelError:
		Error(formatted, kv...)
	case LevelDebug:
		Debug(formatted, kv...)
	}
}

// Logf logs the message using printf-style formatting
func (t LogTemplate) Logf(format string, args ...any) {
	t.Log(fmt.Sprintf(format, args...))
}

// Found logs a successful search
func Found(text string, x, y int) {
	FoundTemplate.Logf("%q at (%d,%d)", text, x, y)
}

// NotFound logs an unsuccessful search
func NotFound(text string) {
	NotFoundTemplate.Logf("%q", text)
}

// StepOK logs a completed step
func StepOK(name string, kv ...any) {
	StepOKTemplate.Log(name, kv...)
}

// StepFailed logs a failed step
func StepFailed(name string, err error, kv ...any) {
	StepFailTemplate.Log(fmt.Sprintf("%s: %v", name, err), kv...)
}

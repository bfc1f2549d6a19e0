package tui

import (
	"time"
)

// LogLevel is the severity of a monitor log line
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelWarn
	LogLevelError
	LogLevelSuccess
)

// LogEntry is one line in the monitor's event log
type LogEntry struct {
	Timestamp time.Time
	Content   string
	Level     LogLevel
}

// LogManager keeps the most recent maxSize entries
type LogManager struct {
	entries []LogEntry
	maxSize int
}

// NewLogManager creates a log holding at most maxSize entries
func NewLogManager(maxSize int) *LogManager {
	return &LogManager{
		entries: make([]LogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, dropping the oldest when full
func (lm *LogManager) Add(content string, level LogLevel) {
	lm.entries = append(lm.entries, LogEntry{Timestamp: time.Now(), Content: content, Level: level})
	if len(lm.entries) > lm.maxSize {
		lm.entries = lm.entries[1:]
	}
}

// Recent returns the last n entries
func (lm *LogManager) Recent(n int) []LogEntry {
	if n >= len(lm.entries) {
		return lm.entries
	}
	return lm.entries[len(lm.entries)-n:]
}

// ProgressTracker counts finished rows against the expected total
type ProgressTracker struct {
	Total     int
	Succeeded int
	Failed    int
	StartTime time.Time
}

// NewProgressTracker starts tracking total rows
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{Total: total, StartTime: time.Now()}
}

// Record counts one finished row
func (pt *ProgressTracker) Record(success bool) {
	if success {
		pt.Succeeded++
	} else {
		pt.Failed++
	}
}

// Done returns the number of finished rows
func (pt *ProgressTracker) Done() int {
	return pt.Succeeded + pt.Failed
}

// Progress returns the finished share between 0 and 1
func (pt *ProgressTracker) Progress() float64 {
	if pt.Total <= 0 {
		return 0
	}
	return min(float64(pt.Done())/float64(pt.Total), 1)
}

// ETA estimates the remaining time from the average row duration
func (pt *ProgressTracker) ETA() time.Duration {
	done := pt.Done()
	if done == 0 || done >= pt.Total {
		return 0
	}
	perRow := time.Since(pt.StartTime) / time.Duration(done)
	return perRow * time.Duration(pt.Total-done)
}

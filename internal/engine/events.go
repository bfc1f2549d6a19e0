package engine

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionResult is the outcome of one row (or one standalone pass, Row == StandaloneRow)
type ExecutionResult struct {
	RunID        string        `json:"run_id"`
	Row          int           `json:"row"`
	Success      bool          `json:"success"`
	Aborted      bool          `json:"aborted,omitempty"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	StepFailures int           `json:"step_failures,omitempty"`
}

// StepRecord is the structured record produced for every executed step
type StepRecord struct {
	RunID     string        `json:"run_id"`
	Row       int           `json:"row"`
	StepIndex int           `json:"step_index"`
	StepID    string        `json:"step_id"`
	Name      string        `json:"name"`
	Kind      string        `json:"kind"`
	Success   bool          `json:"success"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// EventType names a notification
type EventType string

const (
	EventStateChanged  EventType = "state_changed"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventRowCompleted  EventType = "row_completed"
	EventRunFinished   EventType = "run_finished"
	EventRunError      EventType = "run_error"
)

// Event is a notification published to observers. Only the fields relevant
// to Type are set.
type Event struct {
	Type    EventType        `json:"type"`
	Time    time.Time        `json:"time"`
	RunID   string           `json:"run_id,omitempty"`
	State   State            `json:"state"`
	Step    *StepRecord      `json:"step,omitempty"`
	Result  *ExecutionResult `json:"result,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Observer receives events. OnEvent is called from the worker goroutine and
// from whichever goroutine calls Start, Pause, Resume, Stop or Reset, so
// implementations must be safe for concurrent use. State change events are
// delivered with the controller lock released: an observer may read State,
// Results, RunID or Macro, but calling a control method back synchronously
// deadlocks. Hand those off to another goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// notifier fans events out to observers
type notifier struct {
	mu        sync.RWMutex
	observers []Observer
}

func (n *notifier) add(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

func (n *notifier) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, o := range n.observers {
		o.OnEvent(e)
	}
}

// ChannelObserver forwards events to a buffered channel, dropping events
// when the reader falls behind.
type ChannelObserver struct {
	C       chan Event
	dropped atomic.Int64
}

// NewChannelObserver returns an observer with a buffer of size
func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{C: make(chan Event, size)}
}

func (c *ChannelObserver) OnEvent(e Event) {
	select {
	case c.C <- e:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many events did not fit in the buffer
func (c *ChannelObserver) Dropped() int64 {
	return c.dropped.Load()
}

// RecordWriter writes every step record as one JSON line
type RecordWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewRecordWriter returns an observer writing step records to w
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{enc: json.NewEncoder(w)}
}

func (r *RecordWriter) OnEvent(e Event) {
	if e.Type != EventStepCompleted || e.Step == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = r.enc.Encode(e.Step)
	}
}

// Err returns the first write error, if any
func (r *RecordWriter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

package engine

import (
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/variables"
)

// StandaloneRow is the row index used when a macro runs without row data
const StandaloneRow = -1

// RowSource supplies row data and accepts status write-back
type RowSource interface {
	RowCount() int
	PendingRows() []int
	RowData(index int) (map[string]string, error)
	UpdateRowStatus(index int, status string) error
}

// Gate is consulted before every step. Checkpoint blocks while execution is
// paused and returns ErrAborted once a stop has been requested.
type Gate interface {
	Checkpoint() error
}

type openGate struct{}

func (openGate) Checkpoint() error { return nil }

// ExecutionContext is the mutable state of one run, passed explicitly through
// every call. It is created at run start and discarded at run end.
type ExecutionContext struct {
	RunID     string
	Macro     *macro.Macro
	Rows      RowSource
	Variables map[string]string
	// Row is the current row index, or StandaloneRow
	Row     int
	RowData map[string]string

	gate         Gate
	stepFailures int
}

// NewExecutionContext builds a context seeded with the macro's variables
func NewExecutionContext(runID string, m *macro.Macro, rows RowSource, gate Gate) *ExecutionContext {
	if gate == nil {
		gate = openGate{}
	}
	var vars map[string]string
	if m != nil {
		vars = variables.Clone(m.Variables)
	} else {
		vars = map[string]string{}
	}
	return &ExecutionContext{
		RunID:     runID,
		Macro:     m,
		Rows:      rows,
		Variables: vars,
		Row:       StandaloneRow,
		gate:      gate,
	}
}

// EnterRow loads a row's data over the macro variables. Row data wins on conflicts.
func (ec *ExecutionContext) EnterRow(index int, data map[string]string) {
	ec.Row = index
	ec.RowData = data
	ec.stepFailures = 0
	var base map[string]string
	if ec.Macro != nil {
		base = ec.Macro.Variables
	}
	ec.Variables = variables.Merge(base, data)
}

// Resolve substitutes placeholders in text from the current variables
func (ec *ExecutionContext) Resolve(text string) string {
	return variables.Resolve(text, ec.Variables)
}

// StepFailures counts the steps that failed in the current row, including
// failures tolerated by the Continue policy.
func (ec *ExecutionContext) StepFailures() int {
	return ec.stepFailures
}

func (ec *ExecutionContext) checkpoint() error {
	return ec.gate.Checkpoint()
}

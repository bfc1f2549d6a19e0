package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/repeat"
)

// Controller owns the run state machine:
//
//	Idle -> Running <-> Paused -> Stopping -> Idle | Error
//
// One worker goroutine executes rows and steps strictly in order while the
// caller stays free to Pause, Resume or Stop. State and the pause gate are
// guarded by a single mutex.
type Controller struct {
	interp *Interpreter
	events *notifier
	log    *logging.ContextualLogger

	// RowDelay is the pause between rows
	RowDelay time.Duration

	mu      sync.Mutex
	gate    *sync.Cond
	emitMu  sync.Mutex
	state   State
	paused  bool
	stopReq bool
	cancel  context.CancelFunc
	done    chan struct{}

	macro   *macro.Macro
	rows    RowSource
	blocks  []repeat.Block
	runID   string
	results []ExecutionResult
	runErr  error
}

// NewController builds an idle controller around an interpreter
func NewController(interp *Interpreter) *Controller {
	c := &Controller{
		interp:   interp,
		events:   &notifier{},
		log:      logging.NewContextualLogger("controller"),
		RowDelay: constants.RowDelay,
	}
	c.gate = sync.NewCond(&c.mu)
	interp.Observe(ObserverFunc(c.events.emit))
	return c
}

// Observe registers an observer for every event of every run
func (c *Controller) Observe(o Observer) {
	c.events.add(o)
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Results returns the row results of the current or last run
func (c *Controller) Results() []ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ExecutionResult(nil), c.results...)
}

// RunID returns the id of the current or last run
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Macro returns the loaded macro
func (c *Controller) Macro() *macro.Macro {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.macro
}

// Load validates m and makes it the macro for the next run. rows may be nil
// for standalone execution. A failed Load leaves the previous macro in place.
func (c *Controller) Load(m *macro.Macro, rows RowSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		verr := &ValidationError{}
		verr.Add("", "", "cannot load while controller is %s", c.state)
		return fmt.Errorf("%w: %w", ErrBusy, verr)
	}

	verr := &ValidationError{}
	if err := macro.Validate(m); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	var blocks []repeat.Block
	if m != nil {
		var err error
		blocks, err = repeat.FindBlocks(m.Steps)
		var blockErr *ValidationError
		if errors.As(err, &blockErr) {
			verr.Merge(blockErr)
		}
	}
	if err := verr.Err(); err != nil {
		c.log.Warn("Macro rejected", "problems", len(verr.Problems))
		return err
	}

	c.macro = m
	c.rows = rows
	c.blocks = blocks
	c.log.Debug("Macro loaded", "macro", m.Name, "steps", len(m.Steps), "blocks", len(blocks))
	return nil
}

// Reset returns a controller in the Error state to Idle
func (c *Controller) Reset() {
	c.transition(func() bool {
		if c.state != StateError {
			return false
		}
		c.state = StateIdle
		return true
	})
}

// Start launches a run on a worker goroutine. Cancelling ctx is treated as Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.macro == nil {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrBusy, state)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.paused = false
	c.stopReq = false
	c.results = nil
	c.runErr = nil
	c.runID = uuid.NewString()
	c.done = make(chan struct{})
	done := c.done
	c.state = StateRunning
	runID, name := c.runID, c.macro.Name
	c.mu.Unlock()
	logging.RunTemplate.Logf("%s (%s)", name, runID)
	c.emitState(StateRunning, runID)

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-done:
		}
	}()
	go c.worker(runCtx, done)
	return nil
}

// Wait blocks until the current run ends and returns its fatal error, if any
func (c *Controller) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Run starts a run and waits for it
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Wait()
}

// Pause closes the gate; the worker blocks before its next step. Only effective while Running.
func (c *Controller) Pause() {
	c.transition(func() bool {
		if c.state != StateRunning {
			return false
		}
		c.paused = true
		c.state = StatePaused
		return true
	})
}

// Resume reopens the gate. Only effective while Paused.
func (c *Controller) Resume() {
	resumed := c.transition(func() bool {
		if c.state != StatePaused {
			return false
		}
		c.paused = false
		c.state = StateRunning
		c.gate.Broadcast()
		return true
	})
	if resumed {
		logging.ResumeTemplate.Log(c.RunID())
	}
}

// TogglePause pauses a running controller or resumes a paused one
func (c *Controller) TogglePause() {
	if c.State() == StatePaused {
		c.Resume()
		return
	}
	c.Pause()
}

// Stop requests termination at the next step or row boundary and releases a held pause.
// An in-flight device action is never interrupted.
func (c *Controller) Stop() {
	changed := c.transition(func() bool {
		if c.state != StateRunning && c.state != StatePaused {
			return false
		}
		c.stopReq = true
		c.paused = false
		c.state = StateStopping
		if c.cancel != nil {
			c.cancel()
		}
		c.gate.Broadcast()
		return true
	})
	if changed {
		logging.StopTemplate.Log("at next step boundary")
	}
}

// transition applies fn under the lock and publishes the new state only when
// fn reports a change. emitMu keeps notifications in transition order and is
// always taken before mu; observers run with mu released.
func (c *Controller) transition(fn func() bool) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	changed := fn()
	state, runID := c.state, c.runID
	c.mu.Unlock()
	if changed {
		c.emitState(state, runID)
	}
	return changed
}

func (c *Controller) emitState(s State, runID string) {
	switch s {
	case StatePaused:
		logging.PauseTemplate.Log(runID)
	case StateRunning:
		c.log.Debug("State changed", "state", s.String())
	}
	c.events.emit(Event{Type: EventStateChanged, RunID: runID, State: s})
}

// Checkpoint implements Gate: it blocks while paused and reports a stop request
func (c *Controller) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.stopReq {
		c.gate.Wait()
	}
	if c.stopReq {
		return ErrAborted
	}
	return nil
}

func (c *Controller) stopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopReq
}

func (c *Controller) worker(ctx context.Context, done chan struct{}) {
	defer close(done)

	c.mu.Lock()
	m, rows, blocks, runID := c.macro, c.rows, c.blocks, c.runID
	c.mu.Unlock()

	log := c.log.With("run", runID)
	timer := log.StartTimer("run")

	ec := NewExecutionContext(runID, m, rows, c)
	err := c.safely(func() error {
		if len(blocks) > 0 {
			return c.runBlocks(ctx, ec, blocks)
		}
		return c.runRows(ctx, ec)
	})

	elapsed := timer.Stop("rows", len(c.Results()))
	if err != nil {
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
		log.Error("Run failed", "error", err)
		c.events.emit(Event{Type: EventRunError, RunID: runID, Message: err.Error()})
		c.finish(StateError)
		return
	}

	logging.RunTemplate.Logf("%s finished in %s", m.Name, elapsed.Round(time.Millisecond))
	c.finish(StateIdle)
	c.events.emit(Event{Type: EventRunFinished, RunID: runID})
}

// safely converts a panic on the worker into an InternalError
func (c *Controller) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InternalError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}

func (c *Controller) finish(s State) {
	c.transition(func() bool {
		c.paused = false
		c.stopReq = false
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		changed := c.state != s
		c.state = s
		return changed
	})
}

// runRows executes the whole macro once per pending row, or once standalone
func (c *Controller) runRows(ctx context.Context, ec *ExecutionContext) error {
	var targets []int
	if ec.Rows != nil {
		targets = ec.Rows.PendingRows()
	}
	if len(targets) == 0 {
		c.log.Info("Running standalone", "macro", ec.Macro.Name)
		res, err := c.runRow(ctx, ec, StandaloneRow, ec.Macro.Steps)
		c.complete(ec, res, false, "")
		return err
	}

	for n, row := range targets {
		if c.stopping() {
			break
		}
		if err := ec.checkpoint(); err != nil {
			break
		}
		logging.RowTemplate.Logf("%d (%d/%d)", row, n+1, len(targets))
		res, err := c.runRow(ctx, ec, row, ec.Macro.Steps)
		c.complete(ec, res, true, constants.StatusDone)
		if err != nil {
			return err
		}
		if n < len(targets)-1 {
			c.pauseBetweenRows(ctx)
		}
	}
	return nil
}

// runBlocks executes steps outside blocks once and each block once per row of its row set
func (c *Controller) runBlocks(ctx context.Context, ec *ExecutionContext, blocks []repeat.Block) error {
	steps := ec.Macro.Steps
	for i := 0; i < len(steps); {
		if err := ec.checkpoint(); err != nil {
			return nil
		}

		b, isBlock := repeat.BlockAt(blocks, i)
		if !isBlock {
			// Gather the run of steps up to the next block and execute it standalone
			j := i
			for j < len(steps) {
				if _, next := repeat.BlockAt(blocks, j); next {
					break
				}
				j++
			}
			ec.EnterRow(StandaloneRow, nil)
			start := time.Now()
			err := c.interp.RunSteps(ctx, ec, steps[i:j])
			c.complete(ec, c.result(ec, StandaloneRow, start, err), false, "")
			switch {
			case IsFatal(err):
				return err
			case IsAborted(err):
				return nil
			case err != nil:
				c.log.Warn("Steps outside blocks failed, skipping the rest of the macro", "error", err)
				return nil
			}
			i = j
			continue
		}

		if err := c.runBlock(ctx, ec, b); err != nil {
			return err
		}
		i = b.End + 1
	}
	return nil
}

func (c *Controller) runBlock(ctx context.Context, ec *ExecutionContext, b repeat.Block) error {
	body := b.Body(ec.Macro.Steps)
	var targets []int
	if ec.Rows != nil {
		targets = repeat.RowSet(b.Spec, ec.Rows.RowCount(), ec.Rows.PendingRows())
	}
	logging.BlockTemplate.Logf("%s over %d rows (%s)", b.PairID, len(targets), b.Spec.Mode)

	if ec.Rows == nil {
		res, err := c.runRow(ctx, ec, StandaloneRow, body)
		c.complete(ec, res, false, "")
		return err
	}

	status := b.Close.Status
	if status == "" {
		status = constants.StatusDone
	}
	for n, row := range targets {
		if c.stopping() {
			return nil
		}
		if err := ec.checkpoint(); err != nil {
			return nil
		}
		logging.RowTemplate.Logf("%d (%d/%d) in block %s", row, n+1, len(targets), b.PairID)
		res, err := c.runRow(ctx, ec, row, body)
		c.complete(ec, res, b.Close.MarkComplete, status)
		if err != nil {
			return err
		}
		if n < len(targets)-1 {
			c.pauseBetweenRows(ctx)
		}
	}
	return nil
}

// runRow executes steps for one row. The returned error is non-nil only for
// faults that must end the run.
func (c *Controller) runRow(ctx context.Context, ec *ExecutionContext, row int, steps []macro.Step) (ExecutionResult, error) {
	start := time.Now()
	var data map[string]string
	if row != StandaloneRow {
		var err error
		data, err = ec.Rows.RowData(row)
		if err != nil {
			ec.EnterRow(row, nil)
			return c.result(ec, row, start, &DataAccessError{Row: row, Err: err}), nil
		}
	}
	ec.EnterRow(row, data)

	err := c.interp.RunSteps(ctx, ec, steps)
	res := c.result(ec, row, start, err)
	if IsFatal(err) {
		return res, err
	}
	return res, nil
}

func (c *Controller) result(ec *ExecutionContext, row int, start time.Time, err error) ExecutionResult {
	res := ExecutionResult{
		RunID:        ec.RunID,
		Row:          row,
		Success:      err == nil,
		Aborted:      IsAborted(err),
		Err:          err,
		Duration:     time.Since(start),
		StepFailures: ec.StepFailures(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// complete records a row result, writes its status back and notifies observers.
// Aborted rows keep their previous status.
func (c *Controller) complete(ec *ExecutionContext, res ExecutionResult, writeBack bool, doneStatus string) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()

	if writeBack && !res.Aborted && ec.Rows != nil && res.Row != StandaloneRow {
		status := doneStatus
		if !res.Success {
			status = constants.StatusFailedPrefix + res.Error
		}
		if err := ec.Rows.UpdateRowStatus(res.Row, status); err != nil {
			c.log.Warn("Failed to write row status", "row", res.Row, "error", err)
		}
	}

	r := res
	c.events.emit(Event{Type: EventRowCompleted, RunID: res.RunID, Result: &r})
}

func (c *Controller) pauseBetweenRows(ctx context.Context) {
	if c.RowDelay > 0 {
		_ = sleepContext(ctx, c.RowDelay)
	}
}

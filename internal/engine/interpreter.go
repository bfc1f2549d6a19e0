package engine

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/repeat"
	"github.com/jeeftor/rowpilot/internal/textmatch"
	"github.com/jeeftor/rowpilot/internal/variables"
)

// Derived variables exposed inside loops
const (
	VarLoopIndex = "loop_index"
	VarLoopTotal = "loop_total"
	VarLoopRow   = "loop_row"
)

// maxWhileIterations bounds a while_image loop that sets no count
const maxWhileIterations = 100

// Interpreter executes steps against the device collaborators
type Interpreter struct {
	dev     device.Device
	ocr     device.OCR
	images  device.ImageMatcher
	matcher *textmatch.Matcher

	// Origin is added to text match coordinates when no region is scanned
	Origin macro.Point
	// RetryDelay is the pause between attempts of a Retry step
	RetryDelay time.Duration
	// PollInterval paces wait_text and wait_image
	PollInterval time.Duration

	events *notifier
	sleep  func(context.Context, time.Duration) error
	log    *logging.ContextualLogger
}

// NewInterpreter wires the collaborators. OCR and image matching are optional;
// steps needing a missing service fail with a DeviceActionError.
func NewInterpreter(b device.Bundle) *Interpreter {
	in := &Interpreter{
		dev:          b.Device,
		ocr:          b.OCR,
		images:       b.Images,
		RetryDelay:   constants.RetryDelay,
		PollInterval: constants.WatchPollInterval,
		events:       &notifier{},
		sleep:        sleepContext,
		log:          logging.NewContextualLogger("interpreter"),
	}
	if b.OCR != nil {
		in.matcher = textmatch.New(b.OCR)
	}
	return in
}

// Matcher exposes the text matcher so callers can tune its retry delay
func (in *Interpreter) Matcher() *textmatch.Matcher {
	return in.matcher
}

// Observe registers an observer for step events
func (in *Interpreter) Observe(o Observer) {
	in.events.add(o)
}

// RunSteps executes steps in order. Disabled steps are skipped and repeat
// markers are skipped together with their body. It returns the first error
// a step's policy did not absorb.
func (in *Interpreter) RunSteps(ctx context.Context, ec *ExecutionContext, steps []macro.Step) error {
	for i := 0; i < len(steps); {
		step := steps[i]
		if err := ec.checkpoint(); err != nil {
			return err
		}
		switch {
		case !step.Enabled:
			logging.SkipTemplate.Log(step.Label(), "reason", "disabled")
			i++
			continue
		case step.Kind() == macro.KindRepeatBegin:
			logging.SkipTemplate.Log(step.Label(), "reason", "repeat block outside block mode")
			i = repeat.SkipPast(steps, i)
			continue
		case step.Kind() == macro.KindRepeatEnd:
			i++
			continue
		}

		if err := in.Execute(ctx, ec, step, in.indexOf(ec, step, i)); err != nil {
			return err
		}
		i++
	}
	return nil
}

// indexOf reports the top-level macro index for records, falling back to the local index
func (in *Interpreter) indexOf(ec *ExecutionContext, step macro.Step, local int) int {
	if ec.Macro != nil {
		if i := ec.Macro.StepIndex(step.ID); i >= 0 {
			return i
		}
	}
	return local
}

// Execute runs one step and applies its error policy. A nil return means the
// row may continue: the step succeeded, or failed under the Continue policy.
func (in *Interpreter) Execute(ctx context.Context, ec *ExecutionContext, step macro.Step, index int) error {
	start := time.Now()
	rec := StepRecord{
		RunID:     ec.RunID,
		Row:       ec.Row,
		StepIndex: index,
		StepID:    step.ID,
		Name:      step.Label(),
		Kind:      string(step.Kind()),
	}
	started := rec
	in.events.emit(Event{Type: EventStepStarted, RunID: ec.RunID, Step: &started})

	attempts := step.Attempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		rec.Attempts = attempt
		err = in.dispatch(ctx, ec, step)
		if !retryable(err) || attempt == attempts {
			break
		}
		logging.RetryTemplate.Logf("%s (attempt %d/%d): %v", step.Label(), attempt+1, attempts, err)
		if serr := in.sleep(ctx, in.RetryDelay); serr != nil {
			err = ErrAborted
			break
		}
	}

	rec.Duration = time.Since(start)
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}
	in.events.emit(Event{Type: EventStepCompleted, RunID: ec.RunID, Step: &rec})

	switch {
	case err == nil:
		logging.StepOK(step.Label(), "row", ec.Row, "duration", rec.Duration)
		return nil
	case IsAborted(err) || IsFatal(err):
		return err
	}

	var nested *stepError
	if !errors.As(err, &nested) {
		ec.stepFailures++
	}
	logging.StepFailed(step.Label(), err, "row", ec.Row, "policy", string(step.OnError))
	if step.OnError == macro.PolicyContinue {
		return nil
	}
	return &stepError{label: step.Label(), err: err}
}

// dispatch performs the step's action. The switch covers every kind.
func (in *Interpreter) dispatch(ctx context.Context, ec *ExecutionContext, step macro.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InternalError{Err: fmt.Errorf("panic in %s step %s: %v", step.Kind(), step.ID, r)}
		}
	}()

	// Device primitives run to completion even if a stop cancels ctx
	dctx := context.WithoutCancel(ctx)

	switch a := step.Action.(type) {
	case macro.Click:
		return in.click(dctx, a.X, a.Y, a.Button, a.Clicks, a.Interval)
	case macro.Move:
		return in.device("move", in.dev.Move(dctx, a.X, a.Y, seconds(a.Duration)))
	case macro.Drag:
		return in.device("drag", in.dev.Drag(dctx, a.From, a.To, a.Button, seconds(a.Duration)))
	case macro.Scroll:
		return in.device("scroll", in.dev.Scroll(dctx, a.X, a.Y, a.Amount))
	case macro.TypeText:
		return in.typeText(dctx, ec, a)
	case macro.Hotkey:
		keys := make([]string, len(a.Keys))
		for i, k := range a.Keys {
			keys[i] = ec.Resolve(k)
		}
		return in.device("hotkey", in.dev.Hotkey(dctx, keys...))
	case macro.Wait:
		return in.wait(ctx, seconds(a.Seconds))
	case macro.WaitImage:
		return in.waitImage(ctx, ec, a)
	case macro.WaitText:
		return in.waitText(ctx, ec, a)
	case macro.Screenshot:
		return in.screenshot(dctx, ec, a)
	case macro.ImageSearch:
		return in.imageSearch(dctx, ec, a)
	case macro.TextSearch:
		return in.textSearch(ctx, ec, a)
	case macro.If:
		return in.runIf(ctx, ec, step, a)
	case macro.Loop:
		return in.runLoop(ctx, ec, step, a)
	case macro.RepeatBegin, macro.RepeatEnd:
		// Iteration is owned by the controller in block mode
		return nil
	case nil:
		return &InternalError{Err: fmt.Errorf("step %s has no action", step.ID)}
	default:
		return &InternalError{Err: fmt.Errorf("unhandled step kind %s", step.Kind())}
	}
}

func (in *Interpreter) device(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceActionError{Op: op, Err: err}
}

func (in *Interpreter) click(ctx context.Context, x, y int, button macro.Button, clicks int, interval float64) error {
	if button == "" {
		button = macro.ButtonLeft
	}
	clicks = max(clicks, 1)
	if interval <= 0 || clicks == 1 {
		return in.device("click", in.dev.Click(ctx, x, y, button, clicks))
	}
	for i := 0; i < clicks; i++ {
		if i > 0 {
			time.Sleep(seconds(interval))
		}
		if err := in.dev.Click(ctx, x, y, button, 1); err != nil {
			return in.device("click", err)
		}
	}
	return nil
}

func (in *Interpreter) typeText(dctx context.Context, ec *ExecutionContext, a macro.TypeText) error {
	text := a.Text
	if a.UseVariables {
		text = ec.Resolve(text)
	}
	if a.Interval <= 0 {
		return in.device("type", in.dev.TypeText(dctx, text))
	}
	for _, r := range text {
		if err := in.dev.TypeText(dctx, string(r)); err != nil {
			return in.device("type", err)
		}
		time.Sleep(seconds(a.Interval))
	}
	return nil
}

func (in *Interpreter) wait(ctx context.Context, d time.Duration) error {
	if err := in.sleep(ctx, d); err != nil {
		return ErrAborted
	}
	return nil
}

func (in *Interpreter) requireImages() error {
	if in.images == nil {
		return &DeviceActionError{Op: "image search", Err: errors.New("no image matcher configured")}
	}
	return nil
}

func (in *Interpreter) requireOCR() error {
	if in.matcher == nil {
		return &DeviceActionError{Op: "text search", Err: errors.New("no OCR service configured")}
	}
	return nil
}

func (in *Interpreter) findImage(ctx context.Context, path string, region *macro.Region, confidence float64) (*device.ImageMatch, error) {
	if err := in.requireImages(); err != nil {
		return nil, err
	}
	if confidence <= 0 {
		confidence = constants.DefaultImageConfidence
	}
	m, err := in.images.Find(ctx, path, region, confidence)
	if err != nil {
		return nil, &DeviceActionError{Op: "image search", Err: err}
	}
	return m, nil
}

func (in *Interpreter) imageSearch(ctx context.Context, ec *ExecutionContext, a macro.ImageSearch) error {
	path := ec.Resolve(a.ImagePath)
	m, err := in.findImage(ctx, path, a.Region, a.Confidence)
	if err != nil {
		return err
	}
	if m == nil {
		return &MatchNotFoundError{Kind: "image", Target: path}
	}
	if a.ClickOnFind {
		c := m.Center()
		return in.click(ctx, c.X+a.ClickOffset.X, c.Y+a.ClickOffset.Y, macro.ButtonLeft, 1, 0)
	}
	return nil
}

func (in *Interpreter) searchText(ctx context.Context, target string, opts textmatch.Options) (*textmatch.Match, error) {
	if err := in.requireOCR(); err != nil {
		return nil, err
	}
	if opts.Region == nil {
		opts.Origin = in.Origin
	}
	m, err := in.matcher.Find(ctx, target, opts)
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, textmatch.ErrNotFound):
		return nil, &MatchNotFoundError{Kind: "text", Target: target, Err: err}
	case errors.Is(err, context.Canceled):
		return nil, ErrAborted
	default:
		return nil, &DeviceActionError{Op: "text search", Err: err}
	}
}

func (in *Interpreter) textSearch(ctx context.Context, ec *ExecutionContext, a macro.TextSearch) error {
	target := ec.Resolve(a.Text)
	if a.Column != "" {
		v, ok := ec.Variables[a.Column]
		if !ok {
			return &DataAccessError{Row: ec.Row, Name: a.Column, Err: errors.New("column not present in row or variables")}
		}
		target = v
	}
	if strings.TrimSpace(target) == "" {
		return &DataAccessError{Row: ec.Row, Name: a.Column, Err: errors.New("search text is empty")}
	}

	m, err := in.searchText(ctx, target, textmatch.Options{
		Exact:      a.Exact,
		Threshold:  a.Confidence,
		MaxRetries: a.MaxRetries,
		Region:     a.Region,
	})
	if err != nil {
		return err
	}
	if a.ClickOnFind {
		return in.click(context.WithoutCancel(ctx), m.Center.X+a.ClickOffset.X, m.Center.Y+a.ClickOffset.Y, macro.ButtonLeft, 1, 0)
	}
	return nil
}

// poll calls check every PollInterval until it reports found or timeout elapses
func (in *Interpreter) poll(ctx context.Context, timeout time.Duration, check func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		found, err := check()
		if err != nil || found {
			return found, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := in.sleep(ctx, in.PollInterval); err != nil {
			return false, ErrAborted
		}
	}
}

func (in *Interpreter) waitImage(ctx context.Context, ec *ExecutionContext, a macro.WaitImage) error {
	path := ec.Resolve(a.ImagePath)
	found, err := in.poll(ctx, seconds(a.Timeout), func() (bool, error) {
		m, err := in.findImage(context.WithoutCancel(ctx), path, a.Region, a.Confidence)
		return m != nil, err
	})
	if err != nil {
		return err
	}
	if !found {
		return &MatchNotFoundError{Kind: "image", Target: path}
	}
	return nil
}

func (in *Interpreter) waitText(ctx context.Context, ec *ExecutionContext, a macro.WaitText) error {
	target := ec.Resolve(a.Text)
	found, err := in.poll(ctx, seconds(a.Timeout), func() (bool, error) {
		_, err := in.searchText(ctx, target, textmatch.Options{Exact: a.Exact, Region: a.Region, MaxRetries: 1})
		var missing *MatchNotFoundError
		if errors.As(err, &missing) {
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		return err
	}
	if !found {
		return &MatchNotFoundError{Kind: "text", Target: target}
	}
	return nil
}

func (in *Interpreter) screenshot(ctx context.Context, ec *ExecutionContext, a macro.Screenshot) error {
	img, err := in.dev.Screenshot(ctx, a.Region)
	if err != nil {
		return &DeviceActionError{Op: "screenshot", Err: err}
	}
	path := ec.Resolve(a.Path)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &DeviceActionError{Op: "screenshot", Err: err}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return &DeviceActionError{Op: "screenshot", Err: err}
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return &DeviceActionError{Op: "screenshot", Err: err}
	}
	logging.SaveTemplate.Log(path)
	return nil
}

// evaluate decides an If condition against the current context
func (in *Interpreter) evaluate(ctx context.Context, ec *ExecutionContext, c macro.Condition) (bool, error) {
	switch c.Type {
	case macro.CondImageExists:
		m, err := in.findImage(context.WithoutCancel(ctx), ec.Resolve(c.ImagePath), c.Region, c.Confidence)
		return m != nil, err
	case macro.CondTextExists:
		_, err := in.searchText(ctx, ec.Resolve(c.Text), textmatch.Options{Exact: c.Exact, Region: c.Region, Threshold: c.Confidence, MaxRetries: 1})
		var missing *MatchNotFoundError
		if errors.As(err, &missing) {
			return false, nil
		}
		return err == nil, err
	case macro.CondVariableEquals, macro.CondVariableContains, macro.CondVariableGreater, macro.CondVariableLess:
		return compareVariable(c.Type, ec.Variables[c.Variable], ec.Resolve(c.Value)), nil
	default:
		return false, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

// compareVariable compares numerically when both sides parse as numbers and lexically otherwise
func compareVariable(kind macro.ConditionType, value, operand string) bool {
	switch kind {
	case macro.CondVariableEquals:
		return value == operand
	case macro.CondVariableContains:
		return strings.Contains(value, operand)
	}

	a, errA := strconv.ParseFloat(strings.TrimSpace(value), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(operand), 64)
	numeric := errA == nil && errB == nil
	if kind == macro.CondVariableGreater {
		if numeric {
			return a > b
		}
		return value > operand
	}
	if numeric {
		return a < b
	}
	return value < operand
}

func (in *Interpreter) runIf(ctx context.Context, ec *ExecutionContext, step macro.Step, a macro.If) error {
	ok, err := in.evaluate(ctx, ec, a.Condition)
	if IsAborted(err) {
		return err
	}
	if err != nil {
		in.log.Warn("Condition evaluation failed, taking else branch", "step", step.ID, "error", err)
		ok = false
	}
	in.log.Debug("Condition evaluated", "step", step.ID, "type", string(a.Condition.Type), "result", ok)
	if ok {
		return in.RunSteps(ctx, ec, a.Then)
	}
	return in.RunSteps(ctx, ec, a.Else)
}

// runLoop re-executes the referenced steps. The variable map and row data in
// effect before the loop are restored on every exit path.
func (in *Interpreter) runLoop(ctx context.Context, ec *ExecutionContext, step macro.Step, a macro.Loop) error {
	if ec.Macro == nil {
		return &InternalError{Err: errors.New("loop executed without a macro")}
	}
	body := make([]macro.Step, 0, len(a.StepIDs))
	for _, id := range a.StepIDs {
		s, ok := ec.Macro.StepByID(id)
		if !ok {
			return &InternalError{Err: fmt.Errorf("loop %s references unknown step %q", step.ID, id)}
		}
		body = append(body, s)
	}

	saved, savedData := ec.Variables, ec.RowData
	defer func() { ec.Variables, ec.RowData = saved, savedData }()

	iterate := func(i, total int, extra map[string]string) error {
		ec.Variables = variables.Merge(saved, extra, map[string]string{
			VarLoopIndex: strconv.Itoa(i + 1),
			VarLoopTotal: strconv.Itoa(total),
		})
		return in.RunSteps(ctx, ec, body)
	}

	switch a.Mode {
	case macro.LoopRows:
		rows := a.Rows
		if len(rows) == 0 && ec.Rows != nil {
			for i := 0; i < ec.Rows.RowCount(); i++ {
				rows = append(rows, i)
			}
		}
		for i, row := range rows {
			if ec.Rows == nil {
				return &DataAccessError{Row: row, Err: errors.New("no row source for row loop")}
			}
			data, err := ec.Rows.RowData(row)
			if err != nil {
				return &DataAccessError{Row: row, Err: err}
			}
			ec.RowData = data
			extra := variables.Merge(data, map[string]string{VarLoopRow: strconv.Itoa(row)})
			if err := iterate(i, len(rows), extra); err != nil {
				return err
			}
		}
	case macro.LoopWhileImage:
		limit := a.Count
		if limit <= 0 {
			limit = maxWhileIterations
		}
		for i := 0; i < limit; i++ {
			m, err := in.findImage(context.WithoutCancel(ctx), ec.Resolve(a.ImagePath), nil, 0)
			if err != nil {
				return err
			}
			if m == nil {
				break
			}
			if err := iterate(i, limit, nil); err != nil {
				return err
			}
		}
	default:
		for i := 0; i < a.Count; i++ {
			if err := iterate(i, a.Count, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

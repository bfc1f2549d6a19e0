package macro

import (
	"fmt"
	"strings"
)

// Kind identifies the payload carried by a Step
type Kind string

const (
	KindClick       Kind = "click"
	KindMove        Kind = "move"
	KindDrag        Kind = "drag"
	KindScroll      Kind = "scroll"
	KindType        Kind = "type"
	KindHotkey      Kind = "hotkey"
	KindWait        Kind = "wait"
	KindWaitImage   Kind = "wait_image"
	KindWaitText    Kind = "wait_text"
	KindScreenshot  Kind = "screenshot"
	KindImageSearch Kind = "image_search"
	KindTextSearch  Kind = "text_search"
	KindIf          Kind = "if"
	KindLoop        Kind = "loop"
	KindRepeatBegin Kind = "repeat_begin"
	KindRepeatEnd   Kind = "repeat_end"
)

// kindAliases maps long-form names found in older macro files to canonical kinds
var kindAliases = map[string]Kind{
	"mouse_click":     KindClick,
	"mouse_move":      KindMove,
	"mouse_drag":      KindDrag,
	"mouse_scroll":    KindScroll,
	"keyboard_type":   KindType,
	"keyboard_hotkey": KindHotkey,
	"wait_time":       KindWait,
	"ocr_text":        KindTextSearch,
	"if_condition":    KindIf,
	"excel_row_start": KindRepeatBegin,
	"excel_row_end":   KindRepeatEnd,
}

// ParseKind normalizes a kind name, accepting aliases
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	k := Kind(name)
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("unknown step kind %q", s)
	}
	return k, nil
}

// IsDeviceAction reports whether the kind drives the mouse or keyboard directly
func (k Kind) IsDeviceAction() bool {
	switch k {
	case KindClick, KindMove, KindDrag, KindScroll, KindType, KindHotkey:
		return true
	}
	return false
}

// IsMarker reports whether the kind is a repeat block marker
func (k Kind) IsMarker() bool {
	return k == KindRepeatBegin || k == KindRepeatEnd
}

// ErrorPolicy is the per-step failure handling mode
type ErrorPolicy string

const (
	PolicyStop     ErrorPolicy = "stop"
	PolicyContinue ErrorPolicy = "continue"
	PolicyRetry    ErrorPolicy = "retry"
)

// Button is a mouse button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// RepeatMode selects the rows a repeat block iterates over
type RepeatMode string

const (
	RepeatAll            RepeatMode = "all"
	RepeatIncompleteOnly RepeatMode = "incomplete-only"
	RepeatSpecificCount  RepeatMode = "specific-count"
	RepeatRange          RepeatMode = "range"
)

// ParseRepeatMode accepts both dashed and underscored spellings
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "", "all":
		return RepeatAll, nil
	case "incomplete-only", "incomplete":
		return RepeatIncompleteOnly, nil
	case "specific-count", "count":
		return RepeatSpecificCount, nil
	case "range":
		return RepeatRange, nil
	}
	return "", fmt.Errorf("unknown repeat mode %q", s)
}

// LoopMode selects how a loop iterates
type LoopMode string

const (
	LoopCount      LoopMode = "count"
	LoopRows       LoopMode = "rows"
	LoopWhileImage LoopMode = "while_image"
)

// ConditionType is the predicate evaluated by an If step
type ConditionType string

const (
	CondImageExists      ConditionType = "image_exists"
	CondTextExists       ConditionType = "text_exists"
	CondVariableEquals   ConditionType = "variable_equals"
	CondVariableContains ConditionType = "variable_contains"
	CondVariableGreater  ConditionType = "variable_greater"
	CondVariableLess     ConditionType = "variable_less"
)

// Region is a rectangle in screen coordinates
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width" validate:"gt=0"`
	Height int `json:"height" yaml:"height" validate:"gt=0"`
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Contains reports whether the point lies inside the region
func (r Region) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.Width && y < r.Y+r.Height
}

// Point is a screen coordinate
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

package macro

import "encoding/json"

// Action is the kind-specific payload of a Step. The set of implementations is closed.
type Action interface {
	Kind() Kind
	isAction()
}

// Click presses a mouse button at a point in screen coordinates
type Click struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Button   Button  `json:"button" validate:"omitempty,oneof=left right middle"`
	Clicks   int     `json:"clicks" validate:"gte=1"`
	Interval float64 `json:"interval" validate:"gte=0"`
}

// Move moves the pointer, gliding over Duration seconds when positive
type Move struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

// Drag presses at From, moves to To and releases
type Drag struct {
	From     Point   `json:"from"`
	To       Point   `json:"to"`
	Button   Button  `json:"button" validate:"omitempty,oneof=left right middle"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

// Scroll turns the wheel at a point. Positive amounts scroll up.
type Scroll struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Amount int `json:"amount" validate:"ne=0"`
}

// TypeText types a string
type TypeText struct {
	Text         string  `json:"text" validate:"required"`
	Interval     float64 `json:"interval" validate:"gte=0"`
	UseVariables bool    `json:"use_variables"`
}

// Hotkey presses keys together, e.g. ctrl+c
type Hotkey struct {
	Keys []string `json:"keys" validate:"required,min=1,dive,required"`
}

// Wait sleeps for a fixed time
type Wait struct {
	Seconds float64 `json:"seconds" validate:"gt=0"`
}

// WaitImage polls until a template image appears
type WaitImage struct {
	ImagePath  string  `json:"image_path" validate:"required"`
	Timeout    float64 `json:"timeout" validate:"gt=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Region     *Region `json:"region,omitempty"`
}

// WaitText polls until text appears
type WaitText struct {
	Text    string  `json:"text" validate:"required"`
	Timeout float64 `json:"timeout" validate:"gt=0"`
	Exact   bool    `json:"exact"`
	Region  *Region `json:"region,omitempty"`
}

// Screenshot captures the screen or a region to a file
type Screenshot struct {
	Path   string  `json:"path" validate:"required"`
	Region *Region `json:"region,omitempty"`
}

// ImageSearch locates a template image and optionally clicks its centre
type ImageSearch struct {
	ImagePath   string  `json:"image_path" validate:"required"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	Region      *Region `json:"region,omitempty"`
	ClickOnFind bool    `json:"click_on_find"`
	ClickOffset Point   `json:"click_offset"`
}

// TextSearch locates on-screen text. Either Text or Column must be set;
// Column reads the target from the current row.
type TextSearch struct {
	Text        string  `json:"text" validate:"required_without=Column"`
	Column      string  `json:"column,omitempty" validate:"required_without=Text"`
	Exact       bool    `json:"exact"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	Region      *Region `json:"region,omitempty"`
	ClickOnFind bool    `json:"click_on_find"`
	ClickOffset Point   `json:"click_offset"`
	MaxRetries  int     `json:"max_retries" validate:"gte=0"`
}

// Condition is the predicate of an If step
type Condition struct {
	Type       ConditionType `json:"type" validate:"required,oneof=image_exists text_exists variable_equals variable_contains variable_greater variable_less"`
	ImagePath  string        `json:"image_path,omitempty" validate:"required_if=Type image_exists"`
	Text       string        `json:"text,omitempty" validate:"required_if=Type text_exists"`
	Variable   string        `json:"variable,omitempty"`
	Value      string        `json:"value,omitempty"`
	Exact      bool          `json:"exact,omitempty"`
	Region     *Region       `json:"region,omitempty"`
	Confidence float64       `json:"confidence,omitempty" validate:"gte=0,lte=1"`
}

// If runs Then when the condition holds and Else otherwise
type If struct {
	Condition Condition `json:"condition"`
	Then      []Step    `json:"then,omitempty" validate:"-"`
	Else      []Step    `json:"else,omitempty" validate:"-"`
}

// Loop re-runs the referenced top-level steps
type Loop struct {
	Mode      LoopMode `json:"mode" validate:"required,oneof=count rows while_image"`
	Count     int      `json:"count" validate:"gte=0"`
	StepIDs   []string `json:"steps" validate:"required,min=1"`
	Rows      []int    `json:"rows,omitempty" validate:"dive,gte=0"`
	ImagePath string   `json:"image_path,omitempty" validate:"required_if=Mode while_image"`
}

// RepeatBegin opens a block repeated once per selected row
type RepeatBegin struct {
	PairID string     `json:"pair_id" validate:"required"`
	Mode   RepeatMode `json:"mode"`
	Count  int        `json:"count" validate:"gte=0"`
	Start  int        `json:"start" validate:"gte=0"`
	End    int        `json:"end" validate:"gte=0"`
}

// RepeatEnd closes the block with the same PairID
type RepeatEnd struct {
	PairID       string `json:"pair_id" validate:"required"`
	MarkComplete bool   `json:"mark_complete"`
	Status       string `json:"status,omitempty"`
}

func (Click) Kind() Kind       { return KindClick }
func (Move) Kind() Kind        { return KindMove }
func (Drag) Kind() Kind        { return KindDrag }
func (Scroll) Kind() Kind      { return KindScroll }
func (TypeText) Kind() Kind    { return KindType }
func (Hotkey) Kind() Kind      { return KindHotkey }
func (Wait) Kind() Kind        { return KindWait }
func (WaitImage) Kind() Kind   { return KindWaitImage }
func (WaitText) Kind() Kind    { return KindWaitText }
func (Screenshot) Kind() Kind  { return KindScreenshot }
func (ImageSearch) Kind() Kind { return KindImageSearch }
func (TextSearch) Kind() Kind  { return KindTextSearch }
func (If) Kind() Kind          { return KindIf }
func (Loop) Kind() Kind        { return KindLoop }
func (RepeatBegin) Kind() Kind { return KindRepeatBegin }
func (RepeatEnd) Kind() Kind   { return KindRepeatEnd }

func (Click) isAction()       {}
func (Move) isAction()        {}
func (Drag) isAction()        {}
func (Scroll) isAction()      {}
func (TypeText) isAction()    {}
func (Hotkey) isAction()      {}
func (Wait) isAction()        {}
func (WaitImage) isAction()   {}
func (WaitText) isAction()    {}
func (Screenshot) isAction()  {}
func (ImageSearch) isAction() {}
func (TextSearch) isAction()  {}
func (If) isAction()          {}
func (Loop) isAction()        {}
func (RepeatBegin) isAction() {}
func (RepeatEnd) isAction()   {}

// UnmarshalJSON accepts any spelling ParseRepeatMode does
func (m *RepeatMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRepeatMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

package macro

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Step is one automation instruction: a common header plus exactly one Action payload
type Step struct {
	ID          string
	Name        string
	Description string
	Enabled     bool
	OnError     ErrorPolicy
	RetryCount  int
	Action      Action
}

// header is the wire form of the fields shared by every kind
type header struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Kind        Kind        `json:"kind"`
	Description string      `json:"description,omitempty"`
	Enabled     bool        `json:"enabled"`
	OnError     ErrorPolicy `json:"on_error,omitempty"`
	RetryCount  int         `json:"retry_count,omitempty"`
}

// NewStep builds an enabled step with a fresh id and the Stop policy
func NewStep(name string, action Action) Step {
	return Step{
		ID:      uuid.NewString(),
		Name:    name,
		Enabled: true,
		OnError: PolicyStop,
		Action:  action,
	}
}

// Kind returns the kind of the payload, or "" for an empty step
func (s Step) Kind() Kind {
	if s.Action == nil {
		return ""
	}
	return s.Action.Kind()
}

// Label is the step name, falling back to kind and id
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s[%s]", s.Kind(), s.ID)
}

// Attempts is how many times the step may run before it is reported failed
func (s Step) Attempts() int {
	if s.OnError == PolicyRetry {
		return s.RetryCount + 1
	}
	return 1
}

// UnmarshalJSON decodes the header and dispatches the payload through the kind registry
func (s *Step) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	action, err := decodeAction(data)
	if err != nil {
		if h.ID != "" {
			return fmt.Errorf("step %s: %w", h.ID, err)
		}
		return err
	}

	*s = Step{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		Enabled:     true,
		OnError:     h.OnError,
		RetryCount:  h.RetryCount,
		Action:      action,
	}
	if e := gjson.GetBytes(data, "enabled"); e.Exists() {
		s.Enabled = e.Bool()
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.OnError == "" {
		s.OnError = PolicyStop
	}
	return nil
}

// MarshalJSON writes the payload fields and header fields into one flat object
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Action == nil {
		return nil, fmt.Errorf("step %s has no action", s.ID)
	}
	payload, err := json.Marshal(s.Action)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	head, err := json.Marshal(header{
		ID:          s.ID,
		Name:        s.Name,
		Kind:        s.Kind(),
		Description: s.Description,
		Enabled:     s.Enabled,
		OnError:     s.OnError,
		RetryCount:  s.RetryCount,
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(head, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// Macro is an ordered list of steps plus variables and metadata
type Macro struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
	Steps       []Step            `json:"steps"`
	Variables   map[string]string `json:"variables,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// StepIndex returns the top-level position of the step with id, or -1
func (m *Macro) StepIndex(id string) int {
	for i, s := range m.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// StepByID returns the top-level step with id
func (m *Macro) StepByID(id string) (Step, bool) {
	if i := m.StepIndex(id); i >= 0 {
		return m.Steps[i], true
	}
	return Step{}, false
}

// HasRepeatBlocks reports whether any top-level step opens a repeat block
func (m *Macro) HasRepeatBlocks() bool {
	for _, s := range m.Steps {
		if s.Kind() == KindRepeatBegin {
			return true
		}
	}
	return false
}

// Walk visits every step depth-first, including If branches
func Walk(steps []Step, fn func(s Step, depth int)) {
	walk(steps, 0, fn)
}

func walk(steps []Step, depth int, fn func(Step, int)) {
	for _, s := range steps {
		fn(s, depth)
		if branch, ok := s.Action.(If); ok {
			walk(branch.Then, depth+1, fn)
			walk(branch.Else, depth+1, fn)
		}
	}
}

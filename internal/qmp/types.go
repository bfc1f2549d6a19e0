package qmp

import "encoding/json"

// Command is a QMP request
type Command struct {
	Execute   string `json:"execute"`
	Arguments any    `json:"arguments,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Response is any message read from the socket: a greeting, a command
// result or an asynchronous event.
type Response struct {
	QMP    json.RawMessage `json:"QMP,omitempty"`
	Return json.RawMessage `json:"return,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Error is the error member of a failed command
type Error struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

// Status is the result of query-status
type Status struct {
	Running    bool   `json:"running"`
	Status     string `json:"status"`
	Singlestep bool   `json:"singlestep,omitempty"`
}

// KeyValue is one entry of a send-key keys list
type KeyValue struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// InputEvent is one entry of an input-send-event events list
type InputEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func absEvent(axis string, value int) InputEvent {
	return InputEvent{Type: "abs", Data: map[string]any{"axis": axis, "value": value}}
}

func btnEvent(button string, down bool) InputEvent {
	return InputEvent{Type: "btn", Data: map[string]any{"button": button, "down": down}}
}

package qmp

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a method is called on a disconnected client
var ErrNotConnected = errors.New("not connected to QMP socket")

// ErrUnknownKey is returned for a key name or character with no QEMU key code
var ErrUnknownKey = errors.New("no QEMU key code")

// CommandError is a command rejected by QEMU
type CommandError struct {
	Command string
	Class   string
	Desc    string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed: %s: %s", e.Command, e.Class, e.Desc)
}

package devices

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Direction tells input ports from output ports.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

func (d Direction) title() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

var (
	// ErrInit reports that the host MIDI subsystem could not be opened.
	ErrInit = errors.New("failed to initialize MIDI devices")
	// ErrPortNotFound matches every *PortNotFoundError.
	ErrPortNotFound = errors.New("MIDI port not found")
)

// InitError wraps the driver error behind ErrInit.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInit, e.Err)
}

func (e *InitError) Is(target error) bool { return target == ErrInit }

func (e *InitError) Unwrap() error { return e.Err }

// PortNotFoundError is returned when no visible port carries the requested name.
type PortNotFoundError struct {
	Dir  Direction
	Name string
}

func (e *PortNotFoundError) Error() string {
	return fmt.Sprintf("invalid %s port: %s", e.Dir, e.Name)
}

func (e *PortNotFoundError) Is(target error) bool { return target == ErrPortNotFound }

// Package router relays MIDI messages from one input port to one output port.
package router

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/leafo/midiroute/internal/devices"
)

// Route binds an input port to an output port. Build it with NewRoute or
// Resolve; it is not modified afterwards.
type Route struct {
	Source devices.In
	Target devices.Out
}

// NewRoute pairs source with target. Both ports are required.
func NewRoute(source devices.In, target devices.Out) (Route, error) {
	if source == nil {
		return Route{}, errors.New("route has no source port")
	}
	if target == nil {
		return Route{}, errors.New("route has no target port")
	}
	return Route{Source: source, Target: target}, nil
}

// Resolve looks both names up in dir. The target is resolved first, so when
// both names are unknown the output port is reported.
func Resolve(dir *devices.Directory, sourceName, targetName string) (Route, error) {
	target, err := dir.FindOutput(targetName)
	if err != nil {
		return Route{}, err
	}

	source, err := dir.FindInput(sourceName)
	if err != nil {
		return Route{}, err
	}

	return NewRoute(source, target)
}

// ResolveVirtual looks the source up in dir, then publishes a virtual output
// port called virtualName as the target.
func ResolveVirtual(dir *devices.Directory, sourceName, virtualName string) (Route, error) {
	source, err := dir.FindInput(sourceName)
	if err != nil {
		return Route{}, err
	}

	target, err := dir.OpenVirtualOutput(virtualName)
	if err != nil {
		return Route{}, err
	}

	return NewRoute(source, target)
}

// String renders the route as "source -> target".
func (r Route) String() string {
	return fmt.Sprintf("%s -> %s", r.Source, r.Target)
}

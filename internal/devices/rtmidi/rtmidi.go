// Package rtmidi opens the host MIDI subsystem through rtmidi. It needs cgo
// and the platform MIDI headers, so it is kept apart from package devices.
package rtmidi

import (
	"io"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/leafo/midiroute/internal/devices"
)

// Open initializes rtmidi and returns a Directory over its ports. Listings
// are written to w.
func Open(w io.Writer) (*devices.Directory, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, &devices.InitError{Err: err}
	}
	return devices.New(devices.NewDriverSystem(drv), w), nil
}

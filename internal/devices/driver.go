package devices

import (
	"log/slog"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// SysExBufferSize bounds the SysEx dumps a listener can receive. The driver
// default of 1024 bytes drops typical patch and sample dumps.
const SysExBufferSize = 1 << 16

// virtualOutDriver is implemented by gomidi drivers that can publish ports.
type virtualOutDriver interface {
	OpenVirtualOut(name string) (drivers.Out, error)
}

// DriverSystem adapts a gomidi driver to System.
type DriverSystem struct {
	drv drivers.Driver
}

// NewDriverSystem wraps drv. Closing the system closes drv.
func NewDriverSystem(drv drivers.Driver) *DriverSystem {
	return &DriverSystem{drv: drv}
}

func (s *DriverSystem) Ins() ([]In, error) {
	ins, err := s.drv.Ins()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get MIDI inputs")
	}

	ports := make([]In, len(ins))
	for i, in := range ins {
		ports[i] = &driverIn{in: in}
	}
	return ports, nil
}

func (s *DriverSystem) Outs() ([]Out, error) {
	outs, err := s.drv.Outs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get MIDI outputs")
	}

	ports := make([]Out, len(outs))
	for i, out := range outs {
		ports[i] = &driverOut{out: out}
	}
	return ports, nil
}

func (s *DriverSystem) OpenVirtualOut(name string) (Out, error) {
	vd, ok := s.drv.(virtualOutDriver)
	if !ok {
		return nil, errors.Errorf("MIDI driver %s cannot create virtual ports", s.drv)
	}
	out, err := vd.OpenVirtualOut(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create virtual output %q", name)
	}
	return &driverOut{out: out}, nil
}

func (s *DriverSystem) Close() error {
	return s.drv.Close()
}

type driverIn struct {
	in drivers.In
}

func (p *driverIn) String() string { return p.in.String() }

func (p *driverIn) Listen(onMsg func(msg []byte)) (func(), error) {
	if err := p.in.Open(); err != nil {
		return nil, errors.Wrapf(err, "failed to open input %q", p.in.String())
	}

	// Every message class passes; the driver ignores nothing.
	stop, err := midi.ListenTo(p.in, func(msg midi.Message, timestampms int32) {
		onMsg(msg)
	},
		midi.UseSysEx(),
		midi.UseTimeCode(),
		midi.UseActiveSense(),
		midi.SysExBufferSize(SysExBufferSize),
		midi.HandleError(func(listenErr error) {
			slog.Warn("MIDI listener error", "port", p.in.String(), "err", listenErr)
		}),
	)
	if err != nil {
		p.closeIn()
		return nil, errors.Wrapf(err, "failed to listen on %q", p.in.String())
	}

	return func() {
		stop()
		p.closeIn()
	}, nil
}

func (p *driverIn) closeIn() {
	if err := p.in.Close(); err != nil {
		slog.Warn("failed to close MIDI input", "port", p.in.String(), "err", err)
	}
}

type driverOut struct {
	out drivers.Out
}

func (p *driverOut) String() string { return p.out.String() }

func (p *driverOut) Connect() (Conn, error) {
	if err := p.out.Open(); err != nil {
		return nil, errors.Wrapf(err, "failed to open output %q", p.out.String())
	}

	send, err := midi.SendTo(p.out)
	if err != nil {
		if closeErr := p.out.Close(); closeErr != nil {
			slog.Warn("failed to close MIDI output", "port", p.out.String(), "err", closeErr)
		}
		return nil, errors.Wrapf(err, "failed to create sender for %q", p.out.String())
	}
	return &driverConn{out: p.out, send: send}, nil
}

type driverConn struct {
	out  drivers.Out
	send func(midi.Message) error
}

func (c *driverConn) Send(msg []byte) error { return c.send(msg) }

func (c *driverConn) Close() error { return c.out.Close() }

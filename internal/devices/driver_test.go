package devices

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/testdrv"
)

// loopback returns the single input and output of a testdrv driver. Sends on
// the output are delivered synchronously to whatever listens on the input.
func loopback(t *testing.T) (*DriverSystem, In, Out) {
	t.Helper()
	sys := NewDriverSystem(testdrv.New("loop"))
	t.Cleanup(func() { sys.Close() })

	ins, err := sys.Ins()
	require.NoError(t, err)
	require.Len(t, ins, 1)
	outs, err := sys.Outs()
	require.NoError(t, err)
	require.Len(t, outs, 1)
	return sys, ins[0], outs[0]
}

func TestDriverForwardsEveryMessageClass(t *testing.T) {
	bigSysEx := bytes.Repeat([]byte{0x01}, 4096)
	bigSysEx[0], bigSysEx[len(bigSysEx)-1] = 0xF0, 0xF7

	tests := []struct {
		name string
		msg  []byte
	}{
		{"note on", []byte{0x90, 0x3C, 0x64}},
		{"note off", []byte{0x80, 0x3C, 0x00}},
		{"control change", []byte{0xB3, 0x07, 0x64}},
		{"program change", []byte{0xC0, 0x05}},
		{"timing clock", []byte{0xF8}},
		{"start", []byte{0xFA}},
		{"active sensing", []byte{0xFE}},
		{"time code quarter frame", []byte{0xF1, 0x21}},
		{"song select", []byte{0xF3, 0x02}},
		{"sysex", []byte{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}},
		{"large sysex", bigSysEx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, in, out := loopback(t)

			var got [][]byte
			stop, err := in.Listen(func(msg []byte) {
				got = append(got, append([]byte(nil), msg...))
			})
			require.NoError(t, err)
			defer stop()

			conn, err := out.Connect()
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.Send(tt.msg))
			assert.Equal(t, [][]byte{tt.msg}, got)
		})
	}
}

func TestDriverForwardsInterleavedStream(t *testing.T) {
	_, in, out := loopback(t)

	var got [][]byte
	stop, err := in.Listen(func(msg []byte) {
		got = append(got, append([]byte(nil), msg...))
	})
	require.NoError(t, err)

	conn, err := out.Connect()
	require.NoError(t, err)

	stream := [][]byte{
		{0x90, 0x3C, 0x64},
		{0xFE},
		{0xF8},
		{0xF0, 0x43, 0x10, 0x4C, 0xF7},
		{0x80, 0x3C, 0x00},
	}
	for _, msg := range stream {
		require.NoError(t, conn.Send(msg))
	}
	stop()
	require.NoError(t, conn.Close())

	assert.Equal(t, stream, got)
}

func TestDriverSystemNames(t *testing.T) {
	sys, in, out := loopback(t)
	dir := New(sys, &bytes.Buffer{})

	found, err := dir.FindInput("loop-in")
	require.NoError(t, err)
	assert.Equal(t, in.String(), found.String())

	_, err = dir.FindOutput("loop-out")
	require.NoError(t, err)
	assert.Equal(t, "loop-out", out.String())
}

func TestDriverSystemWithoutVirtualPorts(t *testing.T) {
	sys, _, _ := loopback(t)

	_, err := sys.OpenVirtualOut("Router Out")
	assert.ErrorContains(t, err, "cannot create virtual ports")
}

var errListen = errors.New("listen refused")

// refusingIn is a driver input whose Listen always fails.
type refusingIn struct {
	drivers.In
	closes int
}

func (p *refusingIn) Listen(func([]byte, int32), drivers.ListenConfig) (func(), error) {
	return nil, errListen
}

func (p *refusingIn) Close() error {
	p.closes++
	return p.In.Close()
}

func TestDriverListenFailureClosesInput(t *testing.T) {
	_, in, _ := loopback(t)
	refusing := &refusingIn{In: in.(*driverIn).in}

	stop, err := (&driverIn{in: refusing}).Listen(func([]byte) {})
	assert.Nil(t, stop)
	assert.ErrorIs(t, err, errListen)
	assert.ErrorContains(t, err, `failed to listen on "loop-in"`)
	assert.Equal(t, 1, refusing.closes)
	assert.False(t, refusing.IsOpen())
}

var errReopen = errors.New("reopen refused")

// reportsClosedOut claims to be closed after its first Open, so the sender
// setup tries to open it again and fails.
type reportsClosedOut struct {
	drivers.Out
	opens  int
	closes int
}

func (p *reportsClosedOut) Open() error {
	p.opens++
	if p.opens > 1 {
		return errReopen
	}
	return p.Out.Open()
}

func (p *reportsClosedOut) IsOpen() bool { return false }

func (p *reportsClosedOut) Close() error {
	p.closes++
	return p.Out.Close()
}

func TestDriverConnectFailureClosesOutput(t *testing.T) {
	_, _, out := loopback(t)
	port := &reportsClosedOut{Out: out.(*driverOut).out}

	conn, err := (&driverOut{out: port}).Connect()
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, errReopen)
	assert.Equal(t, 1, port.closes)
}

func TestDriverConnCloseClosesPort(t *testing.T) {
	_, _, out := loopback(t)
	port := out.(*driverOut).out

	conn, err := out.Connect()
	require.NoError(t, err)
	assert.True(t, port.IsOpen())

	require.NoError(t, conn.Close())
	assert.False(t, port.IsOpen())
	assert.ErrorIs(t, conn.Send([]byte{0x90, 0x3C, 0x64}), drivers.ErrPortClosed)
}

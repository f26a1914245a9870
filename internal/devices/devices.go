// Package devices enumerates the MIDI ports visible on the host and resolves
// them by name.
package devices

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// In is an input-capable port.
type In interface {
	String() string
	// Listen opens the port and calls onMsg once per inbound message until
	// stop is called. onMsg runs on a goroutine owned by the driver and must
	// not block indefinitely.
	Listen(onMsg func(msg []byte)) (stop func(), err error)
}

// Out is an output-capable port.
type Out interface {
	String() string
	// Connect opens a persistent connection for sending.
	Connect() (Conn, error)
}

// Conn is an open connection to an output port.
type Conn interface {
	Send(msg []byte) error
	Close() error
}

// System is the host MIDI subsystem.
type System interface {
	Ins() ([]In, error)
	Outs() ([]Out, error)
	Close() error
}

// VirtualOutOpener is implemented by systems that can publish an output port
// of their own for other applications to connect to.
type VirtualOutOpener interface {
	OpenVirtualOut(name string) (Out, error)
}

// PortInfo describes one visible port.
type PortInfo struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Listing is a snapshot of every visible port.
type Listing struct {
	Inputs  []PortInfo `json:"inputs"`
	Outputs []PortInfo `json:"outputs"`
}

// Directory lists and looks up ports of a System. Listings are written to w.
type Directory struct {
	sys System
	w   io.Writer
}

// New returns a Directory over sys that writes listings to w.
func New(sys System, w io.Writer) *Directory {
	return &Directory{sys: sys, w: w}
}

func (d *Directory) Close() error {
	return d.sys.Close()
}

// Snapshot enumerates inputs and outputs once.
func (d *Directory) Snapshot() (*Listing, error) {
	ins, err := d.sys.Ins()
	if err != nil {
		return nil, err
	}
	outs, err := d.sys.Outs()
	if err != nil {
		return nil, err
	}

	return &Listing{
		Inputs:  portInfos(ins),
		Outputs: portInfos(outs),
	}, nil
}

// List prints all input ports, then all output ports, numbered from 0.
// An empty category prints a single "No ... ports found." line.
func (d *Directory) List() error {
	listing, err := d.Snapshot()
	if err != nil {
		return err
	}

	printPorts(d.w, Input, listing.Inputs)
	printPorts(d.w, Output, listing.Outputs)
	return nil
}

// ListJSON writes the same enumeration as List as an indented JSON document.
func (d *Directory) ListJSON() error {
	listing, err := d.Snapshot()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(d.w)
	enc.SetIndent("", "  ")
	return enc.Encode(listing)
}

// FindInput returns the first input port named exactly name.
func (d *Directory) FindInput(name string) (In, error) {
	ins, err := d.sys.Ins()
	if err != nil {
		return nil, err
	}

	in, ok := find(ins, name)
	if !ok {
		return nil, &PortNotFoundError{Dir: Input, Name: name}
	}
	return in, nil
}

// FindOutput returns the first output port named exactly name.
func (d *Directory) FindOutput(name string) (Out, error) {
	outs, err := d.sys.Outs()
	if err != nil {
		return nil, err
	}

	out, ok := find(outs, name)
	if !ok {
		return nil, &PortNotFoundError{Dir: Output, Name: name}
	}
	return out, nil
}

// OpenVirtualOutput publishes a new output port called name.
func (d *Directory) OpenVirtualOutput(name string) (Out, error) {
	v, ok := d.sys.(VirtualOutOpener)
	if !ok {
		return nil, errors.New("MIDI system does not support virtual ports")
	}
	return v.OpenVirtualOut(name)
}

// find does a linear search; duplicates resolve to the first port.
func find[P fmt.Stringer](ports []P, name string) (P, bool) {
	for _, p := range ports {
		if p.String() == name {
			return p, true
		}
	}
	var zero P
	return zero, false
}

func portNames[P fmt.Stringer](ports []P) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

func portInfos[P fmt.Stringer](ports []P) []PortInfo {
	infos := make([]PortInfo, len(ports))
	for i, p := range ports {
		infos[i] = PortInfo{Number: i, Name: p.String()}
	}
	return infos
}

func printPorts(w io.Writer, dir Direction, ports []PortInfo) {
	if len(ports) == 0 {
		fmt.Fprintf(w, "No %s ports found.\n", dir)
		return
	}

	fmt.Fprintf(w, "%s ports:\n", dir.title())
	for _, p := range ports {
		fmt.Fprintf(w, "%d: %s\n", p.Number, p.Name)
	}
}

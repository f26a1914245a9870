package devices

import (
	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
)

// SelectInput asks the operator to pick an input port. A lone port is
// returned without prompting.
func (d *Directory) SelectInput() (In, error) {
	ins, err := d.sys.Ins()
	if err != nil {
		return nil, err
	}

	idx, err := selectPort(Input, portNames(ins))
	if err != nil {
		return nil, err
	}
	return ins[idx], nil
}

// SelectOutput asks the operator to pick an output port.
func (d *Directory) SelectOutput() (Out, error) {
	outs, err := d.sys.Outs()
	if err != nil {
		return nil, err
	}

	idx, err := selectPort(Output, portNames(outs))
	if err != nil {
		return nil, err
	}
	return outs[idx], nil
}

func selectPort(dir Direction, names []string) (int, error) {
	switch len(names) {
	case 0:
		return 0, errors.Errorf("no MIDI %s ports found", dir)
	case 1:
		return 0, nil
	}

	prompt := promptui.Select{
		Label: dir.title() + " port",
		Items: names,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to select %s port", dir)
	}
	return idx, nil
}

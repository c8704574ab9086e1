//go:build cgo

package audio

import (
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// openMIDIOut opens an rtmidi output port.
func openMIDIOut(port string) (func(midi.Message) error, func() error, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("rtmididrv: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("list midi outputs: %w", err)
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}

	i, ok := pickPort(names, port)
	if !ok {
		drv.Close()
		return nil, nil, fmt.Errorf("no midi output matching %q among %d ports", port, len(outs))
	}
	out := outs[i]
	if err := out.Open(); err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("open midi output %s: %w", out, err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		out.Close()
		drv.Close()
		return nil, nil, fmt.Errorf("midi output %s: %w", out, err)
	}
	slog.Info("midi: connected", "port", out.String())

	closer := func() error {
		err := out.Close()
		drv.Close()
		return err
	}
	return send, closer, nil
}

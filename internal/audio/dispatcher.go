package audio

import (
	"log/slog"

	"github.com/ayusman/veloma/internal/music"
)

// Dispatcher delivers each frame's commands to a sink. While the sink is not
// ready, or after a send fails, the undelivered commands collapse to the
// newest instrument change and the newest note command, which are retried
// on the next frame. Nothing blocks waiting for the sink.
// A Dispatcher is used from a single goroutine.
type Dispatcher struct {
	sink    Sink
	pending []music.Command
	dropped int
}

// NewDispatcher returns a dispatcher for sink.
func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// Sink returns the sink commands are delivered to.
func (d *Dispatcher) Sink() Sink {
	return d.sink
}

// Dispatch delivers pending commands followed by cmds and returns how many
// reached the sink.
func (d *Dispatcher) Dispatch(cmds []music.Command) int {
	queue := append(d.pending, cmds...)
	d.pending = nil
	if len(queue) == 0 {
		return 0
	}

	if !d.sink.Ready() {
		d.hold(queue)
		return 0
	}

	for i, c := range queue {
		if err := Apply(d.sink, c); err != nil {
			slog.Warn("audio: send failed, retrying next frame", "command", c.String(), "error", err)
			d.hold(queue[i:])
			return i
		}
	}
	return len(queue)
}

// Pending returns the number of commands waiting for the next frame.
func (d *Dispatcher) Pending() int {
	return len(d.pending)
}

// Dropped returns how many commands were superseded while the sink was
// unavailable.
func (d *Dispatcher) Dropped() int {
	return d.dropped
}

func (d *Dispatcher) hold(queue []music.Command) {
	var program, note *music.Command
	for i := range queue {
		if queue[i].Kind == music.CommandProgram {
			program = &queue[i]
		} else {
			note = &queue[i]
		}
	}

	var kept []music.Command
	if program != nil {
		kept = append(kept, *program)
	}
	if note != nil {
		kept = append(kept, *note)
	}
	d.dropped += len(queue) - len(kept)
	d.pending = kept
}

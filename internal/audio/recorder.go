package audio

import (
	"sync"

	"github.com/ayusman/veloma/internal/music"
)

// Recorder is a Sink that records every delivered command. Its readiness
// and failures can be controlled to exercise the retry path.
type Recorder struct {
	mu       sync.Mutex
	commands []music.Command
	notReady bool
	err      error
	closed   bool
}

// NewRecorder returns a ready recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetReady controls what Ready reports.
func (r *Recorder) SetReady(ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notReady = !ready
}

// SetError makes every following call fail with err until cleared with nil.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []music.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]music.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Reset forgets the recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}

func (r *Recorder) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.notReady && !r.closed
}

func (r *Recorder) record(c music.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.err != nil {
		return r.err
	}
	r.commands = append(r.commands, c)
	return nil
}

func (r *Recorder) Play(pitch, volume float64) error {
	return r.record(music.Play(pitch, volume))
}

func (r *Recorder) Update(pitch, volume float64) error {
	return r.record(music.Update(pitch, volume))
}

func (r *Recorder) Stop() error {
	return r.record(music.Stop())
}

func (r *Recorder) SetInstrument(name string) error {
	return r.record(music.ProgramChange(name))
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

package tracker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ayusman/veloma/internal/detector"
)

// Frame is one line of a landmark recording: the offset from the start of
// the recording and the hands seen in that frame.
type Frame struct {
	OffsetMs int64                    `json:"t_ms"`
	Hands    []detector.HandLandmarks `json:"hands"`
}

// ReplaySource plays back a recording of landmark frames, one per Latest
// call. It is used to run the application without a camera and in tests.
type ReplaySource struct {
	mu     sync.Mutex
	frames []Frame
	index  int
	loop   bool
	start  time.Time
}

// NewReplaySource returns a source over the given frames.
func NewReplaySource(frames []Frame, loop bool) *ReplaySource {
	return &ReplaySource{
		frames: frames,
		loop:   loop,
		start:  time.Unix(0, 0).UTC(),
	}
}

// LoadRecording reads a JSON lines recording from path.
func LoadRecording(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return ReadRecording(f)
}

// ReadRecording decodes JSON lines frames from r. Blank lines are skipped.
func ReadRecording(r io.Reader) ([]Frame, error) {
	var frames []Frame
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var fr Frame
		if err := json.Unmarshal(sc.Bytes(), &fr); err != nil {
			return nil, fmt.Errorf("recording line %d: %w", line, err)
		}
		frames = append(frames, fr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("recording is empty")
	}
	return frames, nil
}

// WriteRecording encodes frames as JSON lines.
func WriteRecording(w io.Writer, frames []Frame) error {
	enc := json.NewEncoder(w)
	for i := range frames {
		if err := enc.Encode(&frames[i]); err != nil {
			return fmt.Errorf("write recording: %w", err)
		}
	}
	return nil
}

// Latest returns the next recorded frame. A non-looping source reports
// false once the recording is exhausted.
func (s *ReplaySource) Latest() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return Snapshot{}, false
	}
	if s.index >= len(s.frames) {
		if !s.loop {
			return Snapshot{}, false
		}
		s.index = 0
	}
	fr := s.frames[s.index]
	s.index++

	t := s.start.Add(time.Duration(fr.OffsetMs) * time.Millisecond)
	return NewSnapshot(t, fr.Hands), true
}

// Remaining returns how many frames are left before the recording ends.
func (s *ReplaySource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) - s.index
}

// Close is a no-op.
func (s *ReplaySource) Close() error {
	return nil
}

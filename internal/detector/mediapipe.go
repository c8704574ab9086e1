package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	serviceScript = "hand_service.py"
	// serviceIdleTimeout shuts the Python process down when no frames arrive.
	serviceIdleTimeout = 30 * time.Second
)

// ErrServiceNotFound is returned when the landmark service script cannot be located.
var ErrServiceNotFound = errors.New("hand landmark service not found")

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes; the
// service answers each frame with one JSON line.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.Script
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceNotFound, err)
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		d.kill()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.kill()
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.kill()
		return nil, fmt.Errorf("read response: %w", err)
	}

	hands, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()

	return filterHands(hands, d.config), nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := findVenvPython()
	if python == "" {
		python = "python3"
	}

	maxHands := d.config.MaxHands
	if maxHands <= 0 {
		maxHands = 2
	}
	d.cmd = exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(maxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start hand service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	slog.Info("detector: hand service started", "python", python, "script", d.script)

	return nil
}

// kill tears the service down after a protocol error; the next Detect restarts it.
func (d *MediaPipeDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	if err := d.shutdown(); err != nil {
		slog.Debug("detector: hand service exited", "err", err)
	}
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(serviceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			slog.Debug("detector: idle shutdown", "err", err)
		}
	})
}

func findServiceScript() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".veloma", "scripts", serviceScript))
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".veloma", "venv", "bin", "python"))
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// serviceResponse is one JSON line from the landmark service.
type serviceResponse struct {
	Hands []serviceHand `json:"hands"`
	Error string        `json:"error,omitempty"`
}

type serviceHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// parseResponse decodes a service line. Hands with a short landmark list
// are skipped rather than zero-filled.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("hand service: %s", resp.Error)
	}

	hands := make([]HandLandmarks, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
		copy(lm.Points[:], h.Points)
		hands = append(hands, lm)
	}
	return hands, nil
}

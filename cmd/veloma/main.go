package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/veloma/internal/app"
	"github.com/ayusman/veloma/internal/audio"
	"github.com/ayusman/veloma/internal/capture"
	"github.com/ayusman/veloma/internal/config"
	"github.com/ayusman/veloma/internal/detector"
	"github.com/ayusman/veloma/internal/server"
	"github.com/ayusman/veloma/internal/store"
	"github.com/ayusman/veloma/internal/tracker"
	"github.com/ayusman/veloma/internal/tray"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the YAML configuration file")
	record := flag.String("record", "", "write the tracked landmarks to this file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	initLogger(*debug)

	if err := run(*configPath, *record); err != nil {
		slog.Error("veloma: fatal", "error", err)
		os.Exit(1)
	}
}

func initLogger(debug bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

func run(configPath, record string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.Info("veloma: starting", "config", configPath, "detector", cfg.Detector.Kind, "sink", cfg.Audio.Sink)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	scale, err := cfg.StartScale(catalog)
	if err != nil {
		return err
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	if record != "" {
		f, err := os.Create(record)
		if err != nil {
			src.Close()
			return fmt.Errorf("create recording: %w", err)
		}
		slog.Info("veloma: recording landmarks", "path", record)
		src = tracker.NewRecordingSource(src, f)
	}

	sink, err := openSink(cfg)
	if err != nil {
		src.Close()
		return err
	}

	a, err := app.New(app.Config{
		Source:  src,
		Sink:    sink,
		Store:   st,
		Catalog: catalog,
		FPS:     cfg.Camera.FPS,
		Scale:   scale,
		Mapping: cfg.Mapping,
		Volume:  cfg.Audio.Options,
	})
	if err != nil {
		src.Close()
		sink.Close()
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("veloma: shutdown", "error", err)
		}
	}()
	if err := a.Start(); err != nil {
		return err
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		slog.Info("veloma: serving static files", "dir", staticDir)
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Pipeline:  a,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	if cfg.Tray {
		runTray(ctx, a, stop, "http://"+cfg.Server.Addr)
	} else {
		<-ctx.Done()
	}

	slog.Info("veloma: shutting down")
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	default:
		return nil
	}
}

// openSource builds the landmark source selected by the configuration.
func openSource(cfg *config.Config) (tracker.Source, error) {
	switch cfg.Detector.Kind {
	case config.DetectorReplay:
		frames, err := tracker.LoadRecording(cfg.Detector.Recording)
		if err != nil {
			return nil, err
		}
		return tracker.NewReplaySource(frames, cfg.Detector.Loop), nil

	case config.DetectorMock:
		cam := capture.NewBlankCamera(cfg.Camera.Width, cfg.Camera.Height)
		return tracker.NewCameraSource(cam, detector.NewMockDetector(), cfg.Server.Preview)

	default:
		det, err := detector.NewMediaPipeDetector(cfg.Detector.Config)
		if err != nil {
			return nil, err
		}
		src, err := tracker.NewCameraSource(capture.NewCamera(cfg.Camera), det, cfg.Server.Preview)
		if err != nil {
			det.Close()
			return nil, err
		}
		return src, nil
	}
}

// openSink builds the audio output selected by the configuration.
func openSink(cfg *config.Config) (audio.Sink, error) {
	switch cfg.Audio.Sink {
	case config.SinkMIDI:
		return audio.OpenMIDISink(cfg.Audio.MIDI)
	case config.SinkSynth:
		return audio.OpenSynthSink(cfg.Audio.Synth)
	default:
		return audio.Nop{}, nil
	}
}

// runTray shows the tray menu until it is quit or ctx is done. It must run
// on the main goroutine.
func runTray(ctx context.Context, a *app.App, stop func(), url string) {
	t := tray.New(a)
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			slog.Warn("veloma: open browser", "url", url, "error", err)
		}
	})
	t.OnQuit(stop)

	statuses, cancel := a.Subscribe()
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case st := <-statuses:
				t.SetStatus(st)
			}
		}
	}()

	t.Run()
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}

// Package tray provides the system tray menu for Veloma.
package tray

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/veloma/internal/app"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
)

// Controller is the part of the application driven from the menu.
type Controller interface {
	Settings() app.Settings
	SetMode(m gesture.Mode) error
	SetHandAssignment(h gesture.HandAssignment) error
	SetScale(sc music.ScaleConfig) error
	SetEnabled(enabled bool)
	IsEnabled() bool
	Catalog() *music.Catalog
}

// Tray represents the system tray application.
type Tray struct {
	ctl        Controller
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuStatus  *systray.MenuItem
	menuMode    *systray.MenuItem
	menuHands   *systray.MenuItem
	scaleItems  map[string]*systray.MenuItem
	instrItems  map[string]*systray.MenuItem
	octaveItems map[int]*systray.MenuItem
	lastStatus  string
}

// New creates a new Tray driving ctl.
func New(ctl Controller) *Tray {
	return &Tray{ctl: ctl}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Veloma")
	systray.SetTooltip("Veloma hand theremin")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.ctl.IsEnabled()), "Start or stop sound")
	t.menuStatus = systray.AddMenuItem("Note: -", "Current note")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuMode = systray.AddMenuItem("Theremin mode", "Glide between notes instead of snapping to the scale")
	t.menuHands = systray.AddMenuItem("Two hands", "Right hand for pitch, left hand for volume")

	menuScale := systray.AddMenuItem("Scale", "Notes the pitch hand snaps to")
	t.scaleItems = make(map[string]*systray.MenuItem)
	for _, s := range t.ctl.Catalog().Scales() {
		t.scaleItems[s.Name] = menuScale.AddSubMenuItem(s.Title(), "")
	}

	menuOctaves := systray.AddMenuItem("Octaves", "Width of the pitch range")
	t.octaveItems = make(map[int]*systray.MenuItem)
	for n := music.MinOctaves; n <= music.MaxOctaves; n++ {
		t.octaveItems[n] = menuOctaves.AddSubMenuItem(fmt.Sprintf("%d", n), "")
	}

	menuInstrument := systray.AddMenuItem("Instrument", "Sound played in discrete mode")
	t.instrItems = make(map[string]*systray.MenuItem)
	for _, in := range music.Instruments() {
		t.instrItems[in.Name] = menuInstrument.AddSubMenuItem(in.Title, "")
	}
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Veloma")
	t.mu.Unlock()

	t.refresh()

	for name, item := range t.scaleItems {
		go t.watch(item, func() { t.handleScale(name) })
	}
	for n, item := range t.octaveItems {
		go t.watch(item, func() { t.handleOctaves(n) })
	}
	for name, item := range t.instrItems {
		go t.watch(item, func() { t.handleInstrument(name) })
	}

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuMode.ClickedCh:
				t.handleMode()
			case <-t.menuHands.ClickedCh:
				t.handleHands()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) watch(item *systray.MenuItem, fn func()) {
	for range item.ClickedCh {
		fn()
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Playing"
	}
	return "○ Paused"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.ctl.SetEnabled(!t.ctl.IsEnabled())
	t.refresh()
}

// handleMode switches between discrete and theremin mode.
func (t *Tray) handleMode() {
	mode := gesture.ModeContinuous
	if t.ctl.Settings().Mapping.Mode == gesture.ModeContinuous {
		mode = gesture.ModeDiscrete
	}
	t.apply(t.ctl.SetMode(mode))
}

// handleHands switches between one- and two-handed control.
func (t *Tray) handleHands() {
	hands := gesture.HandsTwo
	if t.ctl.Settings().Mapping.Hands == gesture.HandsTwo {
		hands = gesture.HandsSingle
	}
	t.apply(t.ctl.SetHandAssignment(hands))
}

func (t *Tray) handleScale(name string) {
	scale, ok := t.ctl.Catalog().Lookup(name)
	if !ok {
		return
	}
	sc := t.ctl.Settings().Scale
	sc.Scale = scale
	t.apply(t.ctl.SetScale(sc))
}

func (t *Tray) handleOctaves(n int) {
	sc := t.ctl.Settings().Scale
	sc.Octaves = n
	t.apply(t.ctl.SetScale(sc))
}

func (t *Tray) handleInstrument(name string) {
	sc := t.ctl.Settings().Scale
	sc.Instrument = name
	t.apply(t.ctl.SetScale(sc))
}

func (t *Tray) apply(err error) {
	if err != nil {
		slog.Warn("tray: setting rejected", "error", err)
	}
	t.refresh()
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// refresh checks the menu items matching the pending settings.
func (t *Tray) refresh() {
	s := t.ctl.Settings()

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuToggle == nil {
		return
	}

	t.menuToggle.SetTitle(toggleTitle(t.ctl.IsEnabled()))
	check(t.menuMode, s.Mapping.Mode == gesture.ModeContinuous)
	check(t.menuHands, s.Mapping.Hands == gesture.HandsTwo)
	for name, item := range t.scaleItems {
		check(item, name == s.Scale.Scale.Name)
	}
	for n, item := range t.octaveItems {
		check(item, n == s.Scale.Octaves)
	}
	for name, item := range t.instrItems {
		check(item, name == s.Scale.Instrument)
	}
}

func check(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// SetStatus shows the sounding note of st in the menu.
func (t *Tray) SetStatus(st app.Status) {
	line := StatusLine(st)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.menuStatus == nil || line == t.lastStatus {
		return
	}
	t.lastStatus = line
	t.menuStatus.SetTitle(line)
}

// StatusLine formats the status menu entry.
func StatusLine(st app.Status) string {
	switch {
	case !st.Enabled:
		return "Paused"
	case st.State != music.StateActive || st.Note == "":
		return "Note: -"
	case st.Settings.Mapping.Mode == gesture.ModeContinuous:
		return fmt.Sprintf("Pitch: %.1f (%s)", st.Playback.Pitch, st.Note)
	}
	return "Note: " + st.Note
}

// IsEnabled returns whether sound is on.
func (t *Tray) IsEnabled() bool {
	return t.ctl.IsEnabled()
}

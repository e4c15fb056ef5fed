// Package tray provides a system tray interface for the mudra gesture trainer.
package tray

import (
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// StatusInterval is how often the status line is refreshed.
const StatusInterval = time.Second

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(enabled bool)
	onMirror    func(mirror bool)
	onSave      func()
	onTrain     func()
	onDashboard func()
	onQuit      func()
	status      func() string
	enabled     bool
	mirror      bool
	mu          sync.RWMutex
	stop        chan struct{}

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuMirror *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance with recognition enabled and the given
// initial mirror setting.
func New(mirror bool) *Tray {
	return &Tray{
		enabled: true,
		mirror:  mirror,
		stop:    make(chan struct{}),
	}
}

// OnToggle sets the callback called when recognition is enabled or disabled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnMirror sets the callback called when mirroring is toggled.
func (t *Tray) OnMirror(fn func(mirror bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMirror = fn
}

// OnSave sets the callback called to persist staged samples.
func (t *Tray) OnSave(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSave = fn
}

// OnTrain sets the callback called to retrain the model.
func (t *Tray) OnTrain(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrain = fn
}

// OnDashboard sets the callback called when the dashboard menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// StatusFunc sets the function polled for the status line.
func (t *Tray) StatusFunc(fn func() string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = fn
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
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Gesture Trainer")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture recognition")
	t.menuMirror = systray.AddMenuItemCheckbox("Mirror camera", "Flip the camera horizontally", t.mirror)
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Status: starting", "Pipeline status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSave := systray.AddMenuItem("Save Samples", "Persist staged samples")
	menuTrain := systray.AddMenuItem("Train Model", "Retrain on the saved dataset")
	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go t.refreshStatus()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuMirror.ClickedCh:
				t.handleMirror()
			case <-menuSave.ClickedCh:
				t.handleSave()
			case <-menuTrain.ClickedCh:
				t.handleTrain()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-t.stop:
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

func (t *Tray) refreshStatus() {
	ticker := time.NewTicker(StatusInterval)
	defer ticker.Stop()

	for {
		t.mu.RLock()
		status := t.status
		t.mu.RUnlock()
		if status != nil {
			t.SetStatus(status())
		}

		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}

// handleSave handles the save menu item click.
func (t *Tray) handleSave() {
	t.mu.RLock()
	callback := t.onSave
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleTrain handles the train menu item click.
func (t *Tray) handleTrain() {
	t.mu.RLock()
	callback := t.onTrain
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleMirror handles the mirror checkbox click.
func (t *Tray) handleMirror() {
	t.mu.Lock()
	t.mirror = !t.mirror
	mirror := t.mirror

	if t.menuMirror != nil {
		if mirror {
			t.menuMirror.Check()
		} else {
			t.menuMirror.Uncheck()
		}
	}

	callback := t.onMirror
	t.mu.Unlock()

	if callback != nil {
		callback(mirror)
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

// SetStatus updates the status line in the menu.
func (t *Tray) SetStatus(status string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle("Status: " + status)
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// IsMirrored returns the current mirror state.
func (t *Tray) IsMirrored() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mirror
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

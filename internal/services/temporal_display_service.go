package services

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// DefaultDisplayInterval is how often active displays are redrawn.
const DefaultDisplayInterval = 100 * time.Millisecond

// TemporalDisplayService draws single-line, self-erasing status displays such as the
// typing indicator shown while a chat message is outstanding.
type TemporalDisplayService struct {
	initialized    bool
	out            io.Writer
	interval       time.Duration
	activeDisplays map[string]*Display
	mu             sync.RWMutex
	writeMu        sync.Mutex
}

// Display is an active temporal display with its own goroutine and rendering logic.
type Display struct {
	id        string
	stopCh    chan struct{}
	done      chan struct{}
	startTime time.Time
	condition func(elapsed time.Duration) bool
	renderer  func(elapsed time.Duration) string
	running   bool
	lastWidth int // visible width of the last output, for cleanup
}

// NewTemporalDisplayService creates a service drawing to out (stdout when nil).
func NewTemporalDisplayService(out io.Writer, interval time.Duration) *TemporalDisplayService {
	if out == nil {
		out = os.Stdout
	}
	if interval <= 0 {
		interval = DefaultDisplayInterval
	}
	return &TemporalDisplayService{
		out:            out,
		interval:       interval,
		activeDisplays: make(map[string]*Display),
	}
}

// Name returns the service name "temporal-display" for registration.
func (t *TemporalDisplayService) Name() string {
	return "temporal-display"
}

// Initialize sets up the TemporalDisplayService for operation.
func (t *TemporalDisplayService) Initialize() error {
	t.initialized = true
	return nil
}

// StartTypingIndicator shows "<label> is typing" with animated dots and elapsed seconds
// until Stop is called.
func (t *TemporalDisplayService) StartTypingIndicator(id, label string, style lipgloss.Style) error {
	renderer := func(elapsed time.Duration) string {
		dots := strings.Repeat(".", int(elapsed/(300*time.Millisecond))%3+1)
		return style.Render(fmt.Sprintf("%s is typing%-3s %ds", label, dots, int(elapsed.Seconds())))
	}
	return t.StartCustomDisplay(id, func(time.Duration) bool { return false }, renderer)
}

// StartCustomDisplay starts a display that redraws renderer(elapsed) until condition(elapsed)
// holds or Stop is called. An existing display with the same id is replaced.
func (t *TemporalDisplayService) StartCustomDisplay(id string, condition func(time.Duration) bool, renderer func(time.Duration) string) error {
	if !t.initialized {
		return fmt.Errorf("temporal display service not initialized")
	}
	if condition == nil || renderer == nil {
		return fmt.Errorf("condition and renderer functions cannot be nil")
	}

	t.mu.Lock()
	existing := t.activeDisplays[id]
	if existing != nil {
		t.stopDisplayUnsafe(existing)
	}
	display := &Display{
		id:        id,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		startTime: time.Now(),
		condition: condition,
		renderer:  renderer,
		running:   true,
	}
	t.activeDisplays[id] = display
	t.mu.Unlock()

	if existing != nil {
		<-existing.done
	}
	go t.runDisplay(display)
	return nil
}

// Stop stops a display and waits until its line has been erased.
func (t *TemporalDisplayService) Stop(id string) error {
	if !t.initialized {
		return fmt.Errorf("temporal display service not initialized")
	}

	t.mu.Lock()
	display, exists := t.activeDisplays[id]
	if !exists {
		t.mu.Unlock()
		return fmt.Errorf("display with id '%s' not found", id)
	}
	t.stopDisplayUnsafe(display)
	t.mu.Unlock()

	<-display.done
	return nil
}

// StopAll stops every active display and waits for them to finish.
func (t *TemporalDisplayService) StopAll() error {
	if !t.initialized {
		return fmt.Errorf("temporal display service not initialized")
	}

	t.mu.Lock()
	displays := make([]*Display, 0, len(t.activeDisplays))
	for _, display := range t.activeDisplays {
		t.stopDisplayUnsafe(display)
		displays = append(displays, display)
	}
	t.mu.Unlock()

	for _, display := range displays {
		<-display.done
	}
	return nil
}

// IsActive checks if a temporal display with the given ID is currently running.
func (t *TemporalDisplayService) IsActive(id string) bool {
	if !t.initialized {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	display, exists := t.activeDisplays[id]
	return exists && display.running
}

func (t *TemporalDisplayService) runDisplay(display *Display) {
	ticker := time.NewTicker(t.interval)
	defer func() {
		ticker.Stop()
		t.clearLine(display)

		t.mu.Lock()
		if t.activeDisplays[display.id] == display {
			delete(t.activeDisplays, display.id)
		}
		display.running = false
		t.mu.Unlock()
		close(display.done)
	}()

	for {
		select {
		case <-display.stopCh:
			return
		case <-ticker.C:
			elapsed := time.Since(display.startTime)
			if display.condition(elapsed) {
				return
			}
			t.draw(display, display.renderer(elapsed))
		}
	}
}

// draw overwrites the current line with content.
func (t *TemporalDisplayService) draw(display *Display, content string) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if display.lastWidth > 0 {
		_, _ = fmt.Fprint(t.out, "\r"+strings.Repeat(" ", display.lastWidth)+"\r")
	}
	_, _ = fmt.Fprint(t.out, "\r"+content)
	display.lastWidth = ansi.StringWidth(content)
}

func (t *TemporalDisplayService) clearLine(display *Display) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if display.lastWidth > 0 {
		_, _ = fmt.Fprint(t.out, "\r"+strings.Repeat(" ", display.lastWidth)+"\r")
		display.lastWidth = 0
	}
}

// stopDisplayUnsafe signals a display to stop; the caller holds t.mu.
func (t *TemporalDisplayService) stopDisplayUnsafe(display *Display) {
	select {
	case <-display.stopCh:
	default:
		close(display.stopCh)
	}
}

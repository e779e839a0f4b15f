// Package shell provides the interactive terminal client for foodchat.
// It renders controller snapshots and turns REPL input into controller intents.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"foodchat/internal/controller"
	"foodchat/internal/logger"
	"foodchat/internal/services"
	"foodchat/pkg/chattypes"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
)

const (
	typingDisplayID = "typing"
	assistantLabel  = "assistant"

	// sessionIDWidth bounds the session id shown in the chat prompt.
	sessionIDWidth = 18
)

// Controller is the part of the controller the shell drives.
type Controller interface {
	Snapshot() chattypes.Snapshot
	Subscribe(fn func(chattypes.Snapshot)) func()
	SubmitLogin(ctx context.Context, email, password string) (chattypes.Snapshot, error)
	SubmitRegister(ctx context.Context, email, password string) (chattypes.Snapshot, error)
	SwitchView(view chattypes.View) (chattypes.Snapshot, error)
	Logout() chattypes.Snapshot
	SendMessage(ctx context.Context, text string) (chattypes.Snapshot, error)
}

// HealthChecker probes the chat service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds the rendering collaborators of a Session.
type Config struct {
	Out      io.Writer
	Theme    *services.Theme
	Markdown *services.MarkdownService // nil prints replies verbatim
	Typing   *services.TemporalDisplayService
	Health   HealthChecker
	// Status lists extra label/value pairs for the status command, e.g. backend URLs.
	Status [][2]string
	// PromptChanged receives the new prompt after every view change.
	PromptChanged func(prompt string)
}

// Session renders controller snapshots as a line-oriented transcript.
type Session struct {
	ctrl Controller
	cfg  Config
	log  *log.Logger

	mu          sync.Mutex
	prev        chattypes.Snapshot
	lastShown   chattypes.Message
	typing      bool
	unsubscribe func()
}

// NewSession creates a Session for ctrl. Call Attach to start rendering.
func NewSession(ctrl Controller, cfg Config) *Session {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Theme == nil {
		cfg.Theme = services.NewThemeService().GetThemeByName(services.PlainTheme)
	}
	return &Session{ctrl: ctrl, cfg: cfg, log: logger.NewStyledLogger("Shell")}
}

// Attach subscribes to the controller and prints the current conversation when a
// session was restored.
func (s *Session) Attach() {
	snap := s.ctrl.Snapshot()

	s.mu.Lock()
	s.prev = snap
	if snap.State == chattypes.StateChat {
		s.printMessagesLocked(snap.Messages)
	} else if len(snap.Messages) > 0 {
		s.lastShown = snap.Messages[0]
	}
	s.mu.Unlock()

	s.notifyPrompt(snap)
	s.unsubscribe = s.ctrl.Subscribe(s.render)
}

// Detach stops rendering and clears the typing indicator.
func (s *Session) Detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Lock()
	s.stopTypingLocked()
	s.mu.Unlock()
}

// Prompt returns the REPL prompt for snap.
func (s *Session) Prompt(snap chattypes.Snapshot) string {
	var label string
	switch {
	case snap.State == chattypes.StateChat && snap.SessionID != "":
		label = fmt.Sprintf("foodchat[%s]", ansi.Truncate(snap.SessionID, sessionIDWidth, "…"))
	case snap.State == chattypes.StateChat:
		label = "foodchat"
	default:
		label = string(snap.View)
	}
	return s.cfg.Theme.Prompt.Render(label+">") + " "
}

// render is the controller listener. Listeners may run on timer goroutines, so output
// is serialized by s.mu.
func (s *Session) render(snap chattypes.Snapshot) {
	s.mu.Lock()
	prev := s.prev
	if snap.Seq <= prev.Seq {
		s.mu.Unlock()
		s.log.Debug("Dropping stale snapshot", "seq", snap.Seq, "last", prev.Seq)
		return
	}
	s.prev = snap

	if snap.Sending && !s.typing {
		s.startTypingLocked()
	}
	if !snap.Sending {
		s.stopTypingLocked()
	}

	switch {
	case prev.State != chattypes.StateChat && snap.State == chattypes.StateChat:
		s.printLocked(s.cfg.Theme.Success.Render("Logged in."))
		s.printMessagesLocked(snap.Messages)
	case prev.State == chattypes.StateChat && snap.State != chattypes.StateChat:
		// History was reset to the greeting; show only what follows it.
		if len(snap.Messages) > 0 {
			s.lastShown = snap.Messages[0]
			s.printMessagesLocked(snap.Messages[1:])
		}
		s.printLocked(s.cfg.Theme.Muted.Render("Logged out. Use login or register to continue."))
	default:
		s.printMessagesLocked(s.unshown(snap.Messages))
	}

	if prev.View == chattypes.ViewRegister && snap.View == chattypes.ViewLogin && prev.Form.Success != "" {
		s.printLocked(s.cfg.Theme.Muted.Render("Now log in with your new account."))
	}
	s.mu.Unlock()

	if prev.View != snap.View || prev.State != snap.State || prev.SessionID != snap.SessionID {
		s.notifyPrompt(snap)
	}
}

// unshown returns the messages after the last printed one. If the last printed message
// is no longer in history, everything is new.
func (s *Session) unshown(messages []chattypes.Message) []chattypes.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ID == s.lastShown.ID && messages[i].Timestamp.Equal(s.lastShown.Timestamp) {
			return messages[i+1:]
		}
	}
	return messages
}

// printMessagesLocked prints assistant messages. User messages are already on screen as
// typed input, so they only advance the cursor.
func (s *Session) printMessagesLocked(messages []chattypes.Message) {
	for _, msg := range messages {
		s.lastShown = msg
		if msg.IsUser() {
			continue
		}
		s.printLocked(s.formatMessage(msg, false))
	}
}

func (s *Session) formatMessage(msg chattypes.Message, withTime bool) string {
	style := s.cfg.Theme.SenderStyle(msg.IsUser())
	label := style.Render(string(msg.Sender) + ":")
	if withTime {
		label = s.cfg.Theme.Muted.Render(msg.Timestamp.Local().Format(time.Kitchen)) + " " + label
	}

	text := msg.Text
	if !msg.IsUser() && s.cfg.Markdown != nil {
		text = s.cfg.Markdown.RenderOrPlain(text)
	}
	if strings.Contains(text, "\n") {
		return label + "\n" + text
	}
	return label + " " + text
}

func (s *Session) startTypingLocked() {
	if s.cfg.Typing == nil {
		return
	}
	if err := s.cfg.Typing.StartTypingIndicator(typingDisplayID, assistantLabel, s.cfg.Theme.Muted); err != nil {
		s.log.Debug("Typing indicator unavailable", "error", err)
		return
	}
	s.typing = true
}

func (s *Session) stopTypingLocked() {
	if !s.typing {
		return
	}
	s.typing = false
	if err := s.cfg.Typing.Stop(typingDisplayID); err != nil {
		s.log.Debug("Typing indicator already stopped", "error", err)
	}
}

func (s *Session) printLocked(line string) {
	_, _ = fmt.Fprintln(s.cfg.Out, line)
}

func (s *Session) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printLocked(line)
}

func (s *Session) notifyPrompt(snap chattypes.Snapshot) {
	if s.cfg.PromptChanged != nil {
		s.cfg.PromptChanged(s.Prompt(snap))
	}
}

// Login submits the login form, switching to it first when the register form is shown.
func (s *Session) Login(ctx context.Context, email, password string) {
	s.submit(ctx, chattypes.ViewLogin, email, password, s.ctrl.SubmitLogin)
}

// Register submits the register form. On success the controller returns to the login
// form after a short delay.
func (s *Session) Register(ctx context.Context, email, password string) {
	s.submit(ctx, chattypes.ViewRegister, email, password, s.ctrl.SubmitRegister)
}

func (s *Session) submit(ctx context.Context, view chattypes.View, email, password string,
	fn func(context.Context, string, string) (chattypes.Snapshot, error)) {
	snap := s.ctrl.Snapshot()
	if snap.State != chattypes.StateChat && snap.View != view {
		if _, err := s.ctrl.SwitchView(view); err != nil {
			s.println(s.cfg.Theme.Error.Render(err.Error()))
			return
		}
	}

	snap, err := fn(ctx, email, password)
	switch {
	case errors.Is(err, controller.ErrAuthInFlight):
		s.println(s.cfg.Theme.Muted.Render("Still waiting for the previous request."))
	case snap.Form.Error != "":
		s.println(s.cfg.Theme.Error.Render(snap.Form.Error))
	case snap.Form.Success != "":
		s.println(s.cfg.Theme.Success.Render(snap.Form.Success))
	case err != nil:
		s.println(s.cfg.Theme.Error.Render(err.Error()))
	}
}

// Send sends a chat message. The reply, an error notice or the expiry notice is printed
// by the snapshot listener.
func (s *Session) Send(ctx context.Context, text string) {
	_, err := s.ctrl.SendMessage(ctx, text)
	switch {
	case err == nil, errors.Is(err, controller.ErrEmptyMessage):
	case errors.Is(err, controller.ErrNotAuthenticated):
		s.println(s.cfg.Theme.Notice.Render("You are not logged in. Use login or register first."))
	case errors.Is(err, controller.ErrSendInFlight):
		s.println(s.cfg.Theme.Muted.Render("Still waiting for the previous reply."))
	default:
		s.println(s.cfg.Theme.Error.Render(err.Error()))
	}
}

// SwitchTo shows the login or register form.
func (s *Session) SwitchTo(view chattypes.View) {
	if _, err := s.ctrl.SwitchView(view); err != nil {
		s.println(s.cfg.Theme.Notice.Render(fmt.Sprintf("Cannot switch to %s: %v", view, err)))
	}
}

// Logout ends the session. The listener prints the confirmation.
func (s *Session) Logout() {
	if s.ctrl.Snapshot().State != chattypes.StateChat {
		s.println(s.cfg.Theme.Muted.Render("Not logged in."))
		return
	}
	s.ctrl.Logout()
}

// Status prints the controller state as a key/value list.
func (s *Session) Status() {
	snap := s.ctrl.Snapshot()
	sessionID := snap.SessionID
	if sessionID == "" {
		sessionID = "-"
	}
	pairs := [][2]string{
		{"state", string(snap.State)},
		{"view", string(snap.View)},
		{"session", sessionID},
		{"messages", fmt.Sprintf("%d", len(snap.Messages))},
	}
	if snap.Sending {
		pairs = append(pairs, [2]string{"sending", "yes"})
	}
	pairs = append(pairs, s.cfg.Status...)
	s.println(s.cfg.Theme.CreateKeyValueList(pairs).String())
}

// History prints the whole conversation with timestamps.
func (s *Session) History() {
	snap := s.ctrl.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range snap.Messages {
		s.printLocked(s.formatMessage(msg, true))
	}
}

// CheckHealth probes the chat service and prints the outcome.
func (s *Session) CheckHealth(ctx context.Context) error {
	if s.cfg.Health == nil {
		return fmt.Errorf("no health check configured")
	}
	if err := s.cfg.Health.Health(ctx); err != nil {
		s.println(s.cfg.Theme.Error.Render(err.Error()))
		return err
	}
	s.println(s.cfg.Theme.Success.Render("Chat service is healthy."))
	return nil
}

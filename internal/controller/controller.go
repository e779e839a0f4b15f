// Package controller implements the session controller: it owns the credential, the
// conversation session identity, the message history and the single in-flight chat request,
// and it forces a logout when the chat service rejects the credential.
//
// Intent methods (SubmitLogin, SubmitRegister, SendMessage, SwitchView, Logout) return a
// Snapshot of the resulting state. Network and application failures never escape as errors;
// they end up in the snapshot as a form error or a history entry. The only errors returned
// are admission rejections, which leave the state untouched.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"foodchat/internal/logger"
	"foodchat/internal/services"
	"foodchat/internal/sessionid"
	"foodchat/internal/storage"
	"foodchat/pkg/chattypes"

	"github.com/charmbracelet/log"
)

// Admission rejections. The controller state is unchanged when one of these is returned.
var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrSendInFlight       = errors.New("a message is already being sent")
	ErrNotAuthenticated   = errors.New("not logged in")
	ErrAuthInFlight       = errors.New("an authentication request is already in progress")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidView        = errors.New("view not available in the current state")
)

// DefaultRegisterRedirectDelay is how long the register confirmation stays visible
// before the form switches to login.
const DefaultRegisterRedirectDelay = 1500 * time.Millisecond

// Authenticator submits credentials to the authentication service.
type Authenticator interface {
	Submit(ctx context.Context, kind chattypes.AuthKind, email, password string) (*services.AuthResult, error)
}

// ChatSender delivers one user turn to the assistant service.
type ChatSender interface {
	Send(ctx context.Context, token, sessionID, text string) (*services.ChatReply, error)
}

// Deps are the collaborators composed by the controller.
type Deps struct {
	Store storage.Store
	Auth  Authenticator
	Chat  ChatSender
	IDs   sessionid.Generator
}

// Options tune user-facing behavior. Zero values select the defaults.
type Options struct {
	Greeting              string
	RegisterRedirectDelay time.Duration
	Clock                 func() time.Time
}

// Controller is the session/authentication/message lifecycle controller.
// It is safe for use from multiple goroutines; mutations are serialized.
type Controller struct {
	mu sync.Mutex

	store storage.Store
	auth  Authenticator
	chat  ChatSender
	ids   sessionid.Generator

	greeting      string
	redirectDelay time.Duration
	now           func() time.Time
	log           *log.Logger

	state     chattypes.State
	view      chattypes.View
	token     string
	sessionID string
	messages  []chattypes.Message
	nextID    int64
	sending   bool
	form      chattypes.FormState

	// epoch changes on every logout so late replies from a previous session are dropped.
	epoch uint64
	// formEpoch changes whenever the auth form is destroyed.
	formEpoch uint64
	redirect  *time.Timer

	// seq numbers published snapshots; delivery happens outside mu and may reorder.
	seq          uint64
	listeners    map[int]func(chattypes.Snapshot)
	nextListener int
}

// New builds a controller and restores the chat state from storage when both the
// credential and the session identity are persisted. A lone key is discarded.
func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Store == nil || deps.Auth == nil || deps.Chat == nil {
		return nil, errors.New("controller requires a store, an auth client and a chat client")
	}
	if deps.IDs == nil {
		deps.IDs = sessionid.New()
	}
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	if opts.RegisterRedirectDelay <= 0 {
		opts.RegisterRedirectDelay = DefaultRegisterRedirectDelay
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	c := &Controller{
		store:         deps.Store,
		auth:          deps.Auth,
		chat:          deps.Chat,
		ids:           deps.IDs,
		greeting:      opts.Greeting,
		redirectDelay: opts.RegisterRedirectDelay,
		now:           opts.Clock,
		log:           logger.NewStyledLogger("Controller"),
		state:         chattypes.StateUnauthenticated,
		view:          chattypes.ViewLogin,
		listeners:     make(map[int]func(chattypes.Snapshot)),
	}
	c.resetHistoryLocked()
	c.restoreLocked()
	return c, nil
}

func (c *Controller) restoreLocked() {
	token, hasToken := c.store.Get(storage.KeyAccessToken)
	sid, hasSID := c.store.Get(storage.KeySessionID)
	hasToken = hasToken && token != ""
	hasSID = hasSID && sid != ""

	switch {
	case hasToken && hasSID:
		c.token = token
		c.sessionID = sid
		c.state = chattypes.StateChat
		c.view = chattypes.ViewChat
		c.log.Info("Restored session", "session_id", sid)
	case hasToken || hasSID:
		c.log.Warn("Discarding incomplete persisted session", "has_token", hasToken, "has_session_id", hasSID)
		c.store.Remove(storage.KeyAccessToken)
		c.store.Remove(storage.KeySessionID)
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() chattypes.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current authentication state.
func (c *Controller) State() chattypes.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive a snapshot after every state change, including
// changes made by timers. Deliveries from different goroutines may arrive out of order;
// compare Snapshot.Seq to discard stale ones. The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(chattypes.Snapshot)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close stops a pending register redirect. The controller remains usable.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRedirectLocked()
}

func (c *Controller) snapshotLocked() chattypes.Snapshot {
	messages := make([]chattypes.Message, len(c.messages))
	copy(messages, c.messages)
	return chattypes.Snapshot{
		Seq:       c.seq,
		State:     c.state,
		View:      c.view,
		HasToken:  c.token != "",
		SessionID: c.sessionID,
		Messages:  messages,
		Sending:   c.sending,
		Form:      c.form,
	}
}

// commitLocked takes a snapshot and the current listeners; the caller must unlock
// before calling publish so listeners may call back into the controller.
func (c *Controller) commitLocked() (chattypes.Snapshot, []func(chattypes.Snapshot)) {
	c.seq++
	snap := c.snapshotLocked()
	listeners := make([]func(chattypes.Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return snap, listeners
}

func publish(snap chattypes.Snapshot, listeners []func(chattypes.Snapshot)) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func (c *Controller) appendLocked(sender chattypes.Sender, text string) chattypes.Message {
	msg := chattypes.Message{
		ID:        c.nextID,
		Sender:    sender,
		Text:      text,
		Timestamp: c.now(),
	}
	c.nextID++
	c.messages = append(c.messages, msg)
	return msg
}

func (c *Controller) resetHistoryLocked() {
	c.messages = nil
	c.nextID = 1
	c.appendLocked(chattypes.SenderAssistant, c.greeting)
}

func (c *Controller) resetFormLocked() {
	c.form = chattypes.FormState{}
	c.formEpoch++
	c.stopRedirectLocked()
}

func (c *Controller) stopRedirectLocked() {
	if c.redirect != nil {
		c.redirect.Stop()
		c.redirect = nil
	}
}

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodchat/internal/logger"
	"foodchat/internal/services"
	"foodchat/internal/storage"
	"foodchat/pkg/chattypes"
)

// User-facing texts.
const (
	DefaultGreeting        = "Hello! I'm your food assistant. What would you like to eat today? 🍜"
	DefaultRegisterSuccess = "Registration successful! Redirecting to login..."
	SessionExpiredNotice   = "⚠️ Your session has expired. Please log in again."
	MissingCredentials     = "Please enter both email and password."
)

// ErrorNotice wraps a chat failure description as an assistant history entry.
func ErrorNotice(message string) string {
	message = strings.TrimRight(strings.TrimSpace(message), ".")
	if message == "" {
		message = "unknown error"
	}
	return fmt.Sprintf("⚠️ Error: %s. Please try again.", message)
}

// SubmitLogin submits credentials to the login endpoint. On success the credential is
// persisted, the session identity is reused or created, and the controller enters chat.
// On failure the form error is set and nothing else changes.
func (c *Controller) SubmitLogin(ctx context.Context, email, password string) (chattypes.Snapshot, error) {
	return c.submit(ctx, chattypes.AuthLogin, email, password)
}

// SubmitRegister submits credentials to the register endpoint. On success a confirmation
// is shown and the view switches to login, with the form cleared, after the redirect delay.
// Registering never authenticates.
func (c *Controller) SubmitRegister(ctx context.Context, email, password string) (chattypes.Snapshot, error) {
	return c.submit(ctx, chattypes.AuthRegister, email, password)
}

func (c *Controller) submit(ctx context.Context, kind chattypes.AuthKind, email, password string) (chattypes.Snapshot, error) {
	email = strings.TrimSpace(email)

	c.mu.Lock()
	if c.form.Submitting {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrAuthInFlight
	}
	if email == "" || password == "" {
		c.form.Email = email
		c.form.Error = MissingCredentials
		c.form.Success = ""
		snap, listeners := c.commitLocked()
		c.mu.Unlock()
		publish(snap, listeners)
		return snap, ErrMissingCredentials
	}

	c.stopRedirectLocked()
	c.form.Email = email
	c.form.Submitting = true
	c.form.Error = ""
	c.form.Success = ""
	formEpoch := c.formEpoch
	snap, listeners := c.commitLocked()
	c.mu.Unlock()
	publish(snap, listeners)

	c.log.Debug("Submitting credentials", "kind", kind, "email", email)
	result, err := c.auth.Submit(ctx, kind, email, password)

	c.mu.Lock()
	if formEpoch != c.formEpoch {
		// The form was torn down (view switch or logout) while the request was in flight.
		// The current form belongs to someone else, so it is left alone.
		snap = c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	c.form.Submitting = false

	switch {
	case err != nil:
		c.form.Error = authErrorText(err)
		c.log.Warn("Authentication failed", "kind", kind, "error", err)
	case kind == chattypes.AuthLogin:
		c.enterChatLocked(result.Token)
	default:
		c.form.Success = result.Message
		if c.form.Success == "" {
			c.form.Success = DefaultRegisterSuccess
		}
		c.scheduleRedirectLocked()
		c.log.Info("Registered account", "email", email)
	}

	snap, listeners = c.commitLocked()
	c.mu.Unlock()
	publish(snap, listeners)
	return snap, nil
}

func authErrorText(err error) string {
	var authErr *services.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return services.GenericAuthFailure
}

// enterChatLocked persists the credential and binds a session identity. An existing
// persisted identity is reused; a new one is only minted when none exists.
func (c *Controller) enterChatLocked(token string) {
	c.store.Set(storage.KeyAccessToken, token)
	c.token = token

	sid, ok := c.store.Get(storage.KeySessionID)
	if !ok || sid == "" {
		sid = c.ids.Generate()
		c.store.Set(storage.KeySessionID, sid)
	}
	c.sessionID = sid

	from := c.state
	c.state = chattypes.StateChat
	c.view = chattypes.ViewChat
	c.resetFormLocked()
	logger.StateTransition(string(from), string(c.state), "login")
	c.log.Info("Logged in", "state", c.state, "from", from, "session_id", sid)
}

func (c *Controller) scheduleRedirectLocked() {
	c.stopRedirectLocked()
	formEpoch := c.formEpoch
	c.redirect = time.AfterFunc(c.redirectDelay, func() {
		c.mu.Lock()
		if formEpoch != c.formEpoch || c.view != chattypes.ViewRegister || c.form.Success == "" {
			c.mu.Unlock()
			return
		}
		c.redirect = nil
		c.view = chattypes.ViewLogin
		c.resetFormLocked()
		snap, listeners := c.commitLocked()
		c.mu.Unlock()
		publish(snap, listeners)
	})
}

// SwitchView toggles between the login and register forms. The form is cleared and a
// pending register redirect is cancelled. Switching to chat is only valid when
// authenticated.
func (c *Controller) SwitchView(view chattypes.View) (chattypes.Snapshot, error) {
	c.mu.Lock()
	valid := false
	switch view {
	case chattypes.ViewLogin, chattypes.ViewRegister:
		valid = c.state == chattypes.StateUnauthenticated
	case chattypes.ViewChat:
		valid = c.state == chattypes.StateChat
	}
	if !valid {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrInvalidView
	}

	c.view = view
	c.resetFormLocked()
	snap, listeners := c.commitLocked()
	c.mu.Unlock()
	publish(snap, listeners)
	return snap, nil
}

// Logout clears the credential and the session identity from storage and memory and
// resets history to the greeting. Calling it again is a no-op in effect.
func (c *Controller) Logout() chattypes.Snapshot {
	c.mu.Lock()
	c.logoutLocked("user request")
	snap, listeners := c.commitLocked()
	c.mu.Unlock()
	publish(snap, listeners)
	return snap
}

func (c *Controller) logoutLocked(reason string) {
	c.store.Remove(storage.KeyAccessToken)
	c.store.Remove(storage.KeySessionID)

	from := c.state
	c.token = ""
	c.sessionID = ""
	c.state = chattypes.StateUnauthenticated
	c.view = chattypes.ViewLogin
	c.sending = false
	c.epoch++
	c.resetHistoryLocked()
	c.resetFormLocked()
	if from != c.state {
		logger.StateTransition(string(from), string(c.state), reason)
		c.log.Info("Logged out", "state", c.state, "from", from, "reason", reason)
	}
}

// SendMessage appends the user message, calls the chat service outside the lock and
// appends the outcome: the reply, an error notice, or (on an unauthorized response) a
// forced logout followed by the expiry notice. At most one send is outstanding.
func (c *Controller) SendMessage(ctx context.Context, text string) (chattypes.Snapshot, error) {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	var rejection error
	switch {
	case c.state != chattypes.StateChat:
		rejection = ErrNotAuthenticated
	case trimmed == "":
		rejection = ErrEmptyMessage
	case c.sending:
		rejection = ErrSendInFlight
	}
	if rejection != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, rejection
	}

	c.appendLocked(chattypes.SenderUser, trimmed)
	c.sending = true
	token, sid, epoch := c.token, c.sessionID, c.epoch
	snap, listeners := c.commitLocked()
	c.mu.Unlock()
	publish(snap, listeners)

	reply, err := c.chat.Send(ctx, token, sid, trimmed)

	c.mu.Lock()
	if epoch != c.epoch {
		// Logout already cleared the send flag; a send of a later session may be in flight.
		c.log.Debug("Dropping reply from an ended session", "session_id", sid)
		snap = c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	c.sending = false
	switch {
	case err == nil:
		c.appendLocked(chattypes.SenderAssistant, reply.Text)
	case services.IsUnauthorized(err):
		c.log.Warn("Credential rejected by chat service", "session_id", sid, "error", err)
		c.logoutLocked("credential expired")
		c.appendLocked(chattypes.SenderAssistant, SessionExpiredNotice)
	default:
		c.log.Warn("Chat request failed", "session_id", sid, "error", err)
		c.appendLocked(chattypes.SenderAssistant, ErrorNotice(err.Error()))
	}
	snap, listeners = c.commitLocked()
	c.mu.Unlock()
	publish(snap, listeners)
	return snap, nil
}

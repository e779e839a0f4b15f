// Package chattypes defines the conversation and session state types shared between the
// foodchat controller and any presentation layer that renders it.
package chattypes

import "time"

// Sender identifies who authored a message in the conversation history.
type Sender string

const (
	// SenderUser marks messages typed by the operator.
	SenderUser Sender = "user"
	// SenderAssistant marks replies, error notices and the greeting.
	SenderAssistant Sender = "assistant"
)

// Message is a single entry of the append-only conversation history.
// IDs are monotonic within one controller instance.
type Message struct {
	ID        int64     `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the message was authored by the operator.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// State is the authentication state of the controller.
type State string

const (
	// StateUnauthenticated is the initial state; no credential is held.
	StateUnauthenticated State = "unauthenticated"
	// StateChat means a credential and session identity are held.
	StateChat State = "chat"
)

// View is the screen a presentation layer should show.
// It only diverges from State while the operator moves between the login and register forms.
type View string

const (
	ViewLogin    View = "login"
	ViewRegister View = "register"
	ViewChat     View = "chat"
)

// AuthKind selects the auth service endpoint.
type AuthKind string

const (
	AuthLogin    AuthKind = "login"
	AuthRegister AuthKind = "register"
)

// FormState is the transient state of the login/register form.
// It is reset every time the view changes.
type FormState struct {
	Email      string `json:"email"`
	Submitting bool   `json:"submitting"`
	Error      string `json:"error,omitempty"`
	Success    string `json:"success,omitempty"`
}

// Snapshot is an immutable copy of the controller state handed to renderers and subscribers.
type Snapshot struct {
	// Seq increases with every published change; a listener seeing a Seq no greater than
	// the last one it handled is looking at a stale delivery.
	Seq       uint64    `json:"seq"`
	State     State     `json:"state"`
	View      View      `json:"view"`
	HasToken  bool      `json:"has_token"`
	SessionID string    `json:"session_id,omitempty"`
	Messages  []Message `json:"messages"`
	Sending   bool      `json:"sending"`
	Form      FormState `json:"form"`
}

// LastMessage returns the newest history entry, or false if the history is empty.
func (s Snapshot) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"foodchat/pkg/chattypes"
)

// Messages surfaced when the remote body carries no usable explanation.
const (
	GenericAuthFailure = "Operation failed. Please check your details and try again."
	NoTokenReturned    = "no token returned"
	AuthUnreachable    = "cannot reach the authentication service"
	InvalidAuthReply   = "invalid response from the authentication service"
	InvalidChatReply   = "invalid response from the chat service"
)

// ErrUnauthorized matches chat errors whose credential was rejected (errors.Is).
var ErrUnauthorized = errors.New("unauthorized")

// AuthError is returned by AuthClient.Submit for every failure: rejected credentials,
// transport failures and malformed success bodies.
type AuthError struct {
	Kind       chattypes.AuthKind
	StatusCode int // 0 for transport failures
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ChatErrorKind classifies a failed chat send.
type ChatErrorKind int

const (
	// ChatUnauthorized means the credential is invalid or expired; the session must end.
	ChatUnauthorized ChatErrorKind = iota
	// ChatApplication is any other non-2xx response.
	ChatApplication
	// ChatTransport covers unreachable hosts, timeouts and unreadable bodies.
	ChatTransport
)

func (k ChatErrorKind) String() string {
	switch k {
	case ChatUnauthorized:
		return "unauthorized"
	case ChatApplication:
		return "application"
	case ChatTransport:
		return "transport"
	default:
		return fmt.Sprintf("ChatErrorKind(%d)", int(k))
	}
}

// ChatError is returned by ChatClient.Send for every failed send.
type ChatError struct {
	Kind       ChatErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ChatError) Error() string {
	return e.Message
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnauthorized) identify forced-logout failures.
func (e *ChatError) Is(target error) bool {
	return target == ErrUnauthorized && e.Kind == ChatUnauthorized
}

// IsUnauthorized reports whether err is a chat error requiring logout.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// decodeObject parses body as a JSON object. ok is false for empty or non-object bodies.
func decodeObject(body []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// textField returns the field as display text. Strings are returned as-is, validation error
// lists ({"detail": [{"msg": ...}]}) are joined, any other JSON value is returned compacted.
// Missing, null and empty-string fields yield "".
func textField(obj map[string]json.RawMessage, name string) string {
	raw, ok := obj[name]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

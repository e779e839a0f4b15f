package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"foodchat/internal/logger"
)

// Chat service endpoints, relative to the configured base URL.
const (
	ChatPath   = "/v1/chat"
	HealthPath = "/health"
)

// ChatReply is the successful outcome of ChatClient.Send.
type ChatReply struct {
	Text      string
	SessionID string // echoed by the service when present
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatClient sends one message per user turn to the conversational assistant service.
type ChatClient struct {
	initialized bool
	baseURL     string
	http        *HTTPRequestService
}

// NewChatClient creates a ChatClient for the service at baseURL.
func NewChatClient(baseURL string, httpService *HTTPRequestService) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpService,
	}
}

// Name returns the service name "chat" for registration.
func (c *ChatClient) Name() string {
	return "chat"
}

// Initialize validates configuration and prepares the underlying transport.
func (c *ChatClient) Initialize() error {
	if c.baseURL == "" {
		return fmt.Errorf("chat service base URL is required")
	}
	if c.http == nil {
		return fmt.Errorf("chat client requires an HTTP request service")
	}
	if err := c.http.Initialize(); err != nil {
		return err
	}
	c.initialized = true
	logger.ServiceOperation("chat", "initialize", c.baseURL)
	return nil
}

// BaseURL returns the chat service base URL.
func (c *ChatClient) BaseURL() string {
	return c.baseURL
}

// Send posts text for the given session. Exactly one attempt is made.
// Failures are *ChatError values; use IsUnauthorized to detect a rejected credential.
func (c *ChatClient) Send(ctx context.Context, token, sessionID, text string) (*ChatReply, error) {
	if !c.initialized {
		return nil, &ChatError{Kind: ChatTransport, Message: "chat client not initialized"}
	}

	logger.Debug("Sending chat message", "session_id", sessionID, "length", len(text))

	headers := map[string]string{"Authorization": "Bearer " + token}
	resp, err := c.http.PostJSON(ctx, c.baseURL+ChatPath, chatRequest{Message: text, SessionID: sessionID}, headers)
	if err != nil {
		return nil, &ChatError{Kind: ChatTransport, Message: err.Error(), Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logger.Debug("Chat credential rejected", "session_id", sessionID)
		return nil, &ChatError{
			Kind:       ChatUnauthorized,
			StatusCode: resp.StatusCode,
			Message:    "session expired",
			Err:        ErrUnauthorized,
		}
	}

	body, isObject := decodeObject(resp.Body)

	if !resp.IsSuccess() {
		message := fmt.Sprintf("server error: %d", resp.StatusCode)
		if isObject {
			if detail := textField(body, "detail"); detail != "" {
				message = detail
			}
		}
		logger.Debug("Chat request failed", "status_code", resp.StatusCode, "message", message)
		return nil, &ChatError{Kind: ChatApplication, StatusCode: resp.StatusCode, Message: message}
	}

	if !json.Valid(resp.Body) {
		return nil, &ChatError{
			Kind:       ChatTransport,
			StatusCode: resp.StatusCode,
			Message:    InvalidChatReply,
			Err:        fmt.Errorf("response body is not valid JSON"),
		}
	}

	reply := &ChatReply{Text: replyText(body, isObject, resp.Body)}
	if isObject {
		reply.SessionID = textField(body, "session_id")
	}
	return reply, nil
}

// replyText takes "response", then "output", then the whole body re-serialized.
// The service contract is loose, so an unexpected shape is shown rather than rejected.
func replyText(body map[string]json.RawMessage, isObject bool, raw []byte) string {
	if isObject {
		if text := textField(body, "response"); text != "" {
			return text
		}
		if text := textField(body, "output"); text != "" {
			return text
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Health probes GET /health and expects a 2xx response.
func (c *ChatClient) Health(ctx context.Context) error {
	if !c.initialized {
		return fmt.Errorf("chat client not initialized")
	}

	resp, err := c.http.Get(ctx, c.baseURL+HealthPath, map[string]string{"Accept": "application/json"})
	if err != nil {
		return fmt.Errorf("chat service unreachable: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("chat service unhealthy: %s", resp.Status)
	}

	if body, ok := decodeObject(resp.Body); ok {
		if status := textField(body, "status"); status != "" && !strings.EqualFold(status, "ok") {
			return fmt.Errorf("chat service reported status %q", status)
		}
	}
	return nil
}

// GetServiceInfo returns information about the chat client.
func (c *ChatClient) GetServiceInfo() map[string]interface{} {
	return map[string]interface{}{
		"name":        c.Name(),
		"initialized": c.initialized,
		"base_url":    c.baseURL,
	}
}

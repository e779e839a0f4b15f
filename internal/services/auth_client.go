package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"foodchat/internal/logger"
	"foodchat/pkg/chattypes"
)

// Auth service endpoints, relative to the configured base URL.
const (
	LoginPath    = "/api/auth/login"
	RegisterPath = "/api/auth/register"
)

// AuthResult is the successful outcome of AuthClient.Submit.
type AuthResult struct {
	Kind      chattypes.AuthKind
	Token     string // login only
	TokenType string // login only, usually "bearer"
	Message   string // register only, optional confirmation
}

// credentials is the JSON body sent to both endpoints.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthClient issues login and register requests against the authentication service.
// It never retries and never persists anything; the caller decides what to keep.
type AuthClient struct {
	initialized bool
	baseURL     string
	http        *HTTPRequestService
}

// NewAuthClient creates an AuthClient for the service at baseURL.
func NewAuthClient(baseURL string, httpService *HTTPRequestService) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpService,
	}
}

// Name returns the service name "auth" for registration.
func (a *AuthClient) Name() string {
	return "auth"
}

// Initialize validates configuration and prepares the underlying transport.
func (a *AuthClient) Initialize() error {
	if a.baseURL == "" {
		return fmt.Errorf("auth service base URL is required")
	}
	if a.http == nil {
		return fmt.Errorf("auth client requires an HTTP request service")
	}
	if err := a.http.Initialize(); err != nil {
		return err
	}
	a.initialized = true
	logger.ServiceOperation("auth", "initialize", a.baseURL)
	return nil
}

// BaseURL returns the auth service base URL.
func (a *AuthClient) BaseURL() string {
	return a.baseURL
}

// Submit sends exactly one login or register request. Every failure is an *AuthError.
func (a *AuthClient) Submit(ctx context.Context, kind chattypes.AuthKind, email, password string) (*AuthResult, error) {
	if !a.initialized {
		return nil, &AuthError{Kind: kind, Message: GenericAuthFailure, Err: fmt.Errorf("auth client not initialized")}
	}

	var path string
	switch kind {
	case chattypes.AuthLogin:
		path = LoginPath
	case chattypes.AuthRegister:
		path = RegisterPath
	default:
		return nil, &AuthError{Kind: kind, Message: GenericAuthFailure, Err: fmt.Errorf("unknown auth kind %q", kind)}
	}

	logger.Debug("Submitting credentials", "kind", kind, "endpoint", path, "email", email)

	resp, err := a.http.PostJSON(ctx, a.baseURL+path, credentials{Email: email, Password: password}, nil)
	if err != nil {
		return nil, &AuthError{Kind: kind, Message: AuthUnreachable, Err: err}
	}

	body, isObject := decodeObject(resp.Body)

	if !resp.IsSuccess() {
		message := GenericAuthFailure
		if isObject {
			if detail := textField(body, "detail"); detail != "" {
				message = detail
			} else if msg := textField(body, "message"); msg != "" {
				message = msg
			}
		}
		logger.Debug("Auth request rejected", "kind", kind, "status_code", resp.StatusCode, "message", message)
		return nil, &AuthError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    message,
			Err:        fmt.Errorf("auth service returned %s", resp.Status),
		}
	}

	if !isObject {
		return nil, &AuthError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    InvalidAuthReply,
			Err:        fmt.Errorf("response body is not a JSON object"),
		}
	}

	if kind == chattypes.AuthRegister {
		return &AuthResult{Kind: kind, Message: textField(body, "message")}, nil
	}

	var token, tokenType string
	_ = json.Unmarshal(body["access_token"], &token)
	_ = json.Unmarshal(body["token_type"], &tokenType)
	if token == "" {
		return nil, &AuthError{Kind: kind, StatusCode: resp.StatusCode, Message: NoTokenReturned}
	}

	logger.Debug("Login succeeded", "token_length", len(token), "token_type", tokenType)
	return &AuthResult{Kind: kind, Token: token, TokenType: tokenType}, nil
}

// Login is shorthand for Submit(ctx, AuthLogin, ...).
func (a *AuthClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return a.Submit(ctx, chattypes.AuthLogin, email, password)
}

// Register is shorthand for Submit(ctx, AuthRegister, ...).
func (a *AuthClient) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	return a.Submit(ctx, chattypes.AuthRegister, email, password)
}

// GetServiceInfo returns information about the auth client.
func (a *AuthClient) GetServiceInfo() map[string]interface{} {
	return map[string]interface{}{
		"name":        a.Name(),
		"initialized": a.initialized,
		"base_url":    a.baseURL,
	}
}

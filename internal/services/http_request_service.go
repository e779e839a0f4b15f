// Package services provides the HTTP clients and terminal rendering services used by foodchat.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"foodchat/internal/logger"
)

// DefaultHTTPTimeout bounds a single request when no timeout is configured.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPRequestService provides HTTP/HTTPS request operations.
// This service is stateless and focuses on simple request/response operations.
type HTTPRequestService struct {
	initialized bool
	timeout     time.Duration
	client      *http.Client
}

// HTTPRequest represents an HTTP request configuration.
type HTTPRequest struct {
	Method  string            // HTTP method (GET, POST, ...)
	URL     string            // Request URL
	Headers map[string]string // HTTP headers
	Body    []byte            // Request body (for POST, PUT, etc.)
}

// HTTPResponse represents an HTTP response.
type HTTPResponse struct {
	StatusCode int               // HTTP status code
	Status     string            // HTTP status message
	Headers    map[string]string // Response headers
	Body       []byte            // Response body
}

// IsSuccess reports whether the status code is 2xx.
func (r *HTTPResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewHTTPRequestService creates a new HTTPRequestService. A non-positive timeout selects DefaultHTTPTimeout.
func NewHTTPRequestService(timeout time.Duration) *HTTPRequestService {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPRequestService{
		initialized: false,
		timeout:     timeout,
	}
}

// Name returns the service name "http_request" for registration.
func (h *HTTPRequestService) Name() string {
	return "http_request"
}

// Initialize sets up the HTTPRequestService for operation.
func (h *HTTPRequestService) Initialize() error {
	if h.initialized {
		return nil
	}
	h.client = &http.Client{
		Timeout: h.timeout,
	}
	h.initialized = true
	logger.Debug("HTTPRequestService initialized", "timeout", h.timeout.String())
	return nil
}

// Timeout returns the per-request timeout.
func (h *HTTPRequestService) Timeout() time.Duration {
	return h.timeout
}

// SetTimeout configures the request timeout.
func (h *HTTPRequestService) SetTimeout(timeout time.Duration) {
	oldTimeout := h.timeout
	h.timeout = timeout
	if h.client != nil {
		h.client.Timeout = timeout
	}
	logger.Debug("HTTP request timeout updated", "old_timeout", oldTimeout.String(), "new_timeout", timeout.String())
}

// SendRequest sends an HTTP request and returns the response.
// Non-2xx responses are returned without error; only transport failures produce an error.
func (h *HTTPRequestService) SendRequest(ctx context.Context, request HTTPRequest) (*HTTPResponse, error) {
	if !h.initialized {
		logger.Error("HTTP request attempted on uninitialized service")
		return nil, fmt.Errorf("http request service not initialized")
	}

	if request.URL == "" {
		logger.Error("HTTP request attempted with empty URL")
		return nil, fmt.Errorf("URL is required")
	}

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	logger.Debug("Starting HTTP request",
		"method", method,
		"url", request.URL,
		"timeout", h.timeout.String(),
		"headers_count", len(request.Headers),
		"body_length", len(request.Body))

	var bodyReader io.Reader
	if len(request.Body) > 0 {
		bodyReader = bytes.NewReader(request.Body)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, request.URL, bodyReader)
	if err != nil {
		logger.Error("Failed to create HTTP request", "error", err, "method", method, "url", request.URL)
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range request.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		logger.Error("Failed to execute HTTP request", "error", err, "method", method, "url", request.URL)
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error on close
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("Failed to read response body", "error", err, "method", method, "url", request.URL, "status_code", resp.StatusCode)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	logger.Debug("HTTP request completed",
		"method", method,
		"url", request.URL,
		"status_code", resp.StatusCode,
		"body_length", len(bodyBytes))

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    responseHeaders,
		Body:       bodyBytes,
	}, nil
}

// Get performs a simple GET request.
func (h *HTTPRequestService) Get(ctx context.Context, url string, headers map[string]string) (*HTTPResponse, error) {
	return h.SendRequest(ctx, HTTPRequest{
		Method:  http.MethodGet,
		URL:     url,
		Headers: headers,
	})
}

// PostJSON encodes payload as JSON and POSTs it with JSON content negotiation headers.
// Extra headers override the defaults.
func (h *HTTPRequestService) PostJSON(ctx context.Context, url string, payload interface{}, headers map[string]string) (*HTTPResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	merged := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	for k, v := range headers {
		merged[k] = v
	}

	return h.SendRequest(ctx, HTTPRequest{
		Method:  http.MethodPost,
		URL:     url,
		Headers: merged,
		Body:    body,
	})
}

// GetServiceInfo returns information about the HTTP request service.
func (h *HTTPRequestService) GetServiceInfo() map[string]interface{} {
	return map[string]interface{}{
		"name":        h.Name(),
		"initialized": h.initialized,
		"timeout":     h.timeout.String(),
	}
}

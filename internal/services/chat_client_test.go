package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatClient(t *testing.T, handler http.HandlerFunc) (*ChatClient, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewChatClient(server.URL, NewHTTPRequestService(0))
	require.NoError(t, client.Initialize())
	return client, &calls
}

func TestChatClient_SendRequestShape(t *testing.T) {
	client, _ := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ChatPath, r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"message": "xin chào", "session_id": "sess_1"}, body)

		writeJSON(w, http.StatusOK, `{"response":"chào bạn","session_id":"sess_1"}`)
	})

	reply, err := client.Send(context.Background(), "tok1", "sess_1", "xin chào")
	require.NoError(t, err)
	assert.Equal(t, "chào bạn", reply.Text)
	assert.Equal(t, "sess_1", reply.SessionID)
}

func TestChatClient_ReplyExtraction(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"response field", `{"response":"hello"}`, "hello"},
		{"output fallback", `{"output":"from output"}`, "from output"},
		{"empty response falls through", `{"response":"","output":"second"}`, "second"},
		{"null response falls through", `{"response":null,"output":"second"}`, "second"},
		{"raw body fallback", `{"answer": "42"}`, `{"answer":"42"}`},
		{"non-object body", `["a","b"]`, `["a","b"]`},
		{"structured response", `{"response":{"items":[1,2]}}`, `{"items":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})

			reply, err := client.Send(context.Background(), "tok", "sess", "hi")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, reply.Text)
		})
	}
}

func TestChatClient_Unauthorized(t *testing.T) {
	client, calls := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
	})

	reply, err := client.Send(context.Background(), "expired", "sess", "hi")
	assert.Nil(t, reply)
	assert.True(t, IsUnauthorized(err))
	assert.ErrorIs(t, err, ErrUnauthorized)

	var chatErr *ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, ChatUnauthorized, chatErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, chatErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestChatClient_ApplicationErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"detail", http.StatusInternalServerError, `{"detail":"db down"}`, "db down"},
		{"no detail", http.StatusServiceUnavailable, `{"error":"x"}`, "server error: 503"},
		{"not json", http.StatusBadGateway, `bad gateway`, "server error: 502"},
		{"forbidden is not unauthorized", http.StatusForbidden, `{"detail":"forbidden"}`, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Send(context.Background(), "tok", "sess", "hi")
			assert.False(t, IsUnauthorized(err))

			var chatErr *ChatError
			require.ErrorAs(t, err, &chatErr)
			assert.Equal(t, ChatApplication, chatErr.Kind)
			assert.Equal(t, tt.expected, chatErr.Error())
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "chat client must not retry")
		})
	}
}

func TestChatClient_MalformedSuccessBody(t *testing.T) {
	client, _ := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"response": "truncated`)
	})

	_, err := client.Send(context.Background(), "tok", "sess", "hi")
	var chatErr *ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, ChatTransport, chatErr.Kind)
	assert.Equal(t, InvalidChatReply, chatErr.Message)
}

func TestChatClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewChatClient(url, NewHTTPRequestService(0))
	require.NoError(t, client.Initialize())

	_, err := client.Send(context.Background(), "tok", "sess", "hi")
	var chatErr *ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, ChatTransport, chatErr.Kind)
	assert.NotNil(t, errors.Unwrap(chatErr))
	assert.False(t, IsUnauthorized(err))
}

func TestChatClient_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client, _ := newTestChatClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, HealthPath, r.URL.Path)
			writeJSON(w, http.StatusOK, `{"status":"ok"}`)
		})
		assert.NoError(t, client.Health(context.Background()))
	})

	t.Run("plain text heartbeat", func(t *testing.T) {
		client, _ := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("."))
		})
		assert.NoError(t, client.Health(context.Background()))
	})

	t.Run("degraded", func(t *testing.T) {
		client, _ := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"status":"degraded"}`)
		})
		assert.ErrorContains(t, client.Health(context.Background()), "degraded")
	})

	t.Run("server error", func(t *testing.T) {
		client, _ := newTestChatClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		assert.ErrorContains(t, client.Health(context.Background()), "unhealthy")
	})
}

func TestChatErrorKind_String(t *testing.T) {
	assert.Equal(t, "unauthorized", ChatUnauthorized.String())
	assert.Equal(t, "application", ChatApplication.String())
	assert.Equal(t, "transport", ChatTransport.String())
	assert.Equal(t, "ChatErrorKind(9)", ChatErrorKind(9).String())
}

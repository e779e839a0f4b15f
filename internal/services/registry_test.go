package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock service for testing
type MockService struct {
	name             string
	initializeCalled bool
	initializeError  error
	calls            *[]string
}

func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

func (m *MockService) Name() string {
	return m.name
}

func (m *MockService) Initialize() error {
	m.initializeCalled = true
	if m.calls != nil {
		*m.calls = append(*m.calls, m.name)
	}
	return m.initializeError
}

func TestRegistry_NewRegistry(t *testing.T) {
	registry := NewRegistry()

	assert.NotNil(t, registry)
	assert.Empty(t, registry.services)
}

func TestRegistry_RegisterService_Duplicate(t *testing.T) {
	registry := NewRegistry()
	service1 := NewMockService("duplicate")
	service2 := NewMockService("duplicate")

	require.NoError(t, registry.RegisterService(service1))

	err := registry.RegisterService(service2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "service duplicate already registered")

	retrieved, err := registry.GetService("duplicate")
	assert.NoError(t, err)
	assert.Same(t, service1, retrieved)
}

func TestRegistry_GetService(t *testing.T) {
	registry := NewRegistry()
	service := NewMockService("test")
	require.NoError(t, registry.RegisterService(service))

	retrieved, err := registry.GetService("test")
	assert.NoError(t, err)
	assert.Same(t, service, retrieved)
	assert.True(t, registry.HasService("test"))

	retrieved, err = registry.GetService("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Nil(t, retrieved)
	assert.False(t, registry.HasService("nonexistent"))
}

func TestRegistry_InitializeAll_InRegistrationOrder(t *testing.T) {
	var calls []string
	registry := NewRegistry()
	for _, name := range []string{"http_request", "auth", "chat"} {
		svc := NewMockService(name)
		svc.calls = &calls
		require.NoError(t, registry.RegisterService(svc))
	}

	require.NoError(t, registry.InitializeAll())
	assert.Equal(t, []string{"http_request", "auth", "chat"}, calls)
	assert.Equal(t, []string{"auth", "chat", "http_request"}, registry.Names())
}

func TestRegistry_InitializeAll_Error(t *testing.T) {
	registry := NewRegistry()
	failing := NewMockService("broken")
	failing.initializeError = errors.New("boom")
	require.NoError(t, registry.RegisterService(failing))

	err := registry.InitializeAll()
	assert.ErrorContains(t, err, "failed to initialize service broken")
	assert.ErrorIs(t, err, failing.initializeError)
}

func TestLookup(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterService(NewHTTPRequestService(0)))
	require.NoError(t, registry.RegisterService(NewMockService("mock")))

	httpService, err := Lookup[*HTTPRequestService](registry, "http_request")
	require.NoError(t, err)
	assert.Equal(t, "http_request", httpService.Name())

	_, err = Lookup[*HTTPRequestService](registry, "mock")
	assert.ErrorContains(t, err, "unexpected type")

	_, err = Lookup[*HTTPRequestService](registry, "missing")
	assert.ErrorContains(t, err, "not found")
}

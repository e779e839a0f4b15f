// Package testutils provides deterministic generators and helpers for foodchat tests.
// Generated values keep the production formats so they pass the same validation.
package testutils

import (
	"fmt"
	"sync"
	"time"
)

// BaseTime is the first instant returned by a Clock.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// SessionIDs is a deterministic session identity generator.
// It returns sess_000000001_<millis>, sess_000000002_<millis+1>, etc.
type SessionIDs struct {
	mu    sync.Mutex
	count int
}

// NewSessionIDs creates a generator starting at 1.
func NewSessionIDs() *SessionIDs {
	return &SessionIDs{}
}

// Generate returns the next identifier.
func (g *SessionIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count++
	return fmt.Sprintf("sess_%09x_%d", g.count, BaseTime.UnixMilli()+int64(g.count))
}

// Count returns how many identifiers were generated.
func (g *SessionIDs) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Clock returns incrementing deterministic timestamps.
// Each call is 1 second later than the previous one, starting at BaseTime+1s.
type Clock struct {
	mu    sync.Mutex
	ticks int64
}

// NewClock creates a clock at BaseTime.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the next timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++
	return BaseTime.Add(time.Duration(c.ticks) * time.Second)
}

// DeterministicUUID formats n as a version 4 UUID string:
// 00000001-0000-4000-8000-000000000001 for n=1.
func DeterministicUUID(n uint64) string {
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", n, n)
}

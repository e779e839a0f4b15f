// Package sessionid generates the opaque identifiers that correlate one conversation thread
// on the chat service. Identifiers are correlation keys, not secrets.
package sessionid

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Prefix starts every generated identifier.
const Prefix = "sess_"

// randomLen is the number of random characters between the prefix and the time component.
const randomLen = 9

// Pattern matches identifiers produced by the default generator.
var Pattern = regexp.MustCompile(`^sess_[0-9a-f]{9}_[0-9]{13,}$`)

// Generator produces session identities.
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// Generate calls f.
func (f GeneratorFunc) Generate() string {
	return f()
}

// TimeGenerator combines a random component from a v4 UUID with a millisecond timestamp.
// The timestamp never repeats within one generator even when called twice in the same millisecond.
type TimeGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// New returns the default generator.
func New() *TimeGenerator {
	return &TimeGenerator{now: time.Now}
}

// Generate returns a new identifier of the form sess_<9 hex chars>_<unix millis>.
func (g *TimeGenerator) Generate() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:randomLen]
	return fmt.Sprintf("%s%s_%d", Prefix, random, g.nextMillis())
}

func (g *TimeGenerator) nextMillis() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return ms
}

// Valid reports whether id looks like an identifier produced by TimeGenerator.
func Valid(id string) bool {
	return Pattern.MatchString(id)
}

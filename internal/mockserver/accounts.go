package mockserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Account and token errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrBadCredentials     = errors.New("incorrect email or password")
	ErrInvalidCredentials = errors.New("could not validate credentials")
)

// Response details, matching the upstream services.
const (
	DetailEmailTaken         = "Email already registered"
	DetailBadCredentials     = "Incorrect email or password"
	DetailInvalidCredentials = "Could not validate credentials"
	DetailRegistered         = "User registered successfully"
)

type account struct {
	email        string
	passwordHash []byte
	createdAt    time.Time
}

// Accounts stores registered users with bcrypt password hashes.
type Accounts struct {
	mu    sync.RWMutex
	users map[string]account
	cost  int
	now   func() time.Time
}

// NewAccounts creates an empty account table. A cost below bcrypt.MinCost selects bcrypt.DefaultCost.
func NewAccounts(cost int) *Accounts {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{users: make(map[string]account), cost: cost, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register adds a user. Emails are compared case-insensitively.
func (a *Accounts) Register(email, password string) error {
	key := normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.users[key]; exists {
		return ErrEmailTaken
	}
	a.users[key] = account{email: key, passwordHash: hash, createdAt: a.now()}
	return nil
}

// Verify checks the password for email.
func (a *Accounts) Verify(email, password string) error {
	a.mu.RLock()
	acct, ok := a.users[normalizeEmail(email)]
	a.mu.RUnlock()
	if !ok {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// Len returns the number of registered users.
func (a *Accounts) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

type grant struct {
	email     string
	expiresAt time.Time
}

// Tokens issues opaque bearer tokens that expire after a fixed TTL.
type Tokens struct {
	mu     sync.Mutex
	grants map[string]grant
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token table.
func NewTokens(ttl time.Duration) *Tokens {
	return &Tokens{grants: make(map[string]grant), ttl: ttl, now: time.Now}
}

// Issue returns a new token for email.
func (t *Tokens) Issue(email string) string {
	token := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants[token] = grant{email: normalizeEmail(email), expiresAt: t.now().Add(t.ttl)}
	return token
}

// Validate returns the email bound to token. Expired tokens are removed.
func (t *Tokens) Validate(token string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.grants[token]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if !t.now().Before(g.expiresAt) {
		delete(t.grants, token)
		return "", ErrInvalidCredentials
	}
	return g.email, nil
}

// Revoke invalidates token.
func (t *Tokens) Revoke(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.grants, token)
}

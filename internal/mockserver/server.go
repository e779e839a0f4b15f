// Package mockserver runs local stand-ins for the authentication service and the
// conversational assistant service so foodchat can be exercised without the real backends.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"foodchat/internal/logger"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// Config configures both mock backends.
type Config struct {
	AuthAddr   string
	ChatAddr   string
	TokenTTL   time.Duration
	BcryptCost int
}

// Server owns the shared account and token tables and serves both routers.
type Server struct {
	cfg      Config
	accounts *Accounts
	tokens   *Tokens
	chat     *Conversations
	log      *log.Logger
}

// New creates a Server. A non-positive TokenTTL selects one hour.
func New(cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Server{
		cfg:      cfg,
		accounts: NewAccounts(cfg.BcryptCost),
		tokens:   NewTokens(cfg.TokenTTL),
		chat:     NewConversations(),
		log:      logger.NewStyledLogger("MockServer"),
	}
}

// Accounts exposes the account table, e.g. for seeding users.
func (s *Server) Accounts() *Accounts {
	return s.accounts
}

// Tokens exposes the token table, e.g. for revoking a token to simulate expiry.
func (s *Server) Tokens() *Tokens {
	return s.tokens
}

func (s *Server) baseRouter(name string) chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogger(s.log.WithPrefix(name)))
	r.Use(chiMiddleware.Heartbeat("/ping"))
	return r
}

// AuthHandler serves POST /api/auth/login and POST /api/auth/register.
func (s *Server) AuthHandler() http.Handler {
	r := s.baseRouter("auth")
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
	})
	return r
}

// ChatHandler serves POST /v1/chat and GET /health.
func (s *Server) ChatHandler() http.Handler {
	r := s.baseRouter("chat")
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(s.requireBearer).Post("/v1/chat", s.handleChat)
	return r
}

// Run serves both backends until ctx is cancelled, then shuts them down gracefully.
func (s *Server) Run(ctx context.Context) error {
	authLn, err := net.Listen("tcp", s.cfg.AuthAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.AuthAddr, err)
	}
	chatLn, err := net.Listen("tcp", s.cfg.ChatAddr)
	if err != nil {
		_ = authLn.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ChatAddr, err)
	}
	return s.Serve(ctx, authLn, chatLn)
}

// Serve is Run on caller-provided listeners.
func (s *Server) Serve(ctx context.Context, authLn, chatLn net.Listener) error {
	servers := []*http.Server{
		{Handler: s.AuthHandler(), ReadHeaderTimeout: 10 * time.Second},
		{Handler: s.ChatHandler(), ReadHeaderTimeout: 10 * time.Second},
	}
	listeners := []net.Listener{authLn, chatLn}

	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		srv, ln := servers[i], listeners[i]
		g.Go(func() error {
			s.log.Info("Listening", "endpoint", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		s.log.Info("Stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(l *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Debug(r.Method+" "+r.URL.Path,
				"status_code", ww.Status(),
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", chiMiddleware.GetReqID(r.Context()))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// decodeBody decodes a JSON object and reports missing required string fields in the
// validation list format ({"detail": [{"loc", "msg", "type"}]}).
func decodeBody(w http.ResponseWriter, r *http.Request, dst map[string]*string, required ...string) bool {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []fieldError{{
			Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid",
		}})
		return false
	}

	var problems []fieldError
	for name, target := range dst {
		value, ok := raw[name]
		if !ok || string(value) == "null" {
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			problems = append(problems, fieldError{Loc: []string{"body", name}, Msg: "Input should be a valid string", Type: "string_type"})
		}
	}
	for _, name := range required {
		if _, ok := raw[name]; !ok {
			problems = append(problems, fieldError{Loc: []string{"body", name}, Msg: "Field required", Type: "missing"})
		}
	}
	if len(problems) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, problems)
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if !decodeBody(w, r, map[string]*string{"email": &email, "password": &password}, "email", "password") {
		return
	}

	if err := s.accounts.Verify(email, password); err != nil {
		writeDetail(w, http.StatusBadRequest, DetailBadCredentials)
		return
	}

	token := s.tokens.Issue(email)
	s.log.Info("Issued token", "email", normalizeEmail(email))
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if !decodeBody(w, r, map[string]*string{"email": &email, "password": &password}, "email", "password") {
		return
	}
	if !strings.Contains(email, "@") {
		writeDetail(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	switch err := s.accounts.Register(email, password); {
	case errors.Is(err, ErrEmailTaken):
		writeDetail(w, http.StatusBadRequest, DetailEmailTaken)
		return
	case err != nil:
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("Registered user", "email", normalizeEmail(email))
	writeJSON(w, http.StatusOK, map[string]string{"message": DetailRegistered})
}

type ctxKey struct{}

// requireBearer rejects requests without a valid, unexpired bearer token.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		email, err := s.tokens.Validate(strings.TrimSpace(token))
		if !ok || err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, DetailInvalidCredentials)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, email)))
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var message, sessionID string
	if !decodeBody(w, r, map[string]*string{"message": &message, "session_id": &sessionID}, "message") {
		return
	}
	if strings.TrimSpace(message) == "" {
		writeDetail(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	email, _ := r.Context().Value(ctxKey{}).(string)
	sessionID, reply := s.chat.Reply(email, sessionID, message)
	writeJSON(w, http.StatusOK, map[string]string{"response": reply, "session_id": sessionID})
}

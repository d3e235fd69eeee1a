package session

import (
	"sync"

	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

// Session holds the bearer credential and identity of the logged-in operator.
// It replaces process-wide token storage: the gateway is handed a Session at
// construction and calls Invalidate when the backend answers 401.
type Session struct {
	mu                sync.RWMutex
	user              *model.User
	onUnauthenticated func()
	logger            *logrus.Logger
}

// New creates an empty session. onUnauthenticated may be nil.
func New(onUnauthenticated func(), logger *logrus.Logger) *Session {
	return &Session{
		onUnauthenticated: onUnauthenticated,
		logger:            logger,
	}
}

// NewWithToken creates a session that is already authenticated with token,
// e.g. one taken from the environment.
func NewWithToken(username, token string, onUnauthenticated func(), logger *logrus.Logger) *Session {
	s := New(onUnauthenticated, logger)
	if token != "" {
		s.Establish(model.User{Username: username, Token: token})
	}
	return s
}

// Token returns the current bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Token
}

// Identity returns the logged-in user.
func (s *Session) Identity() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Establish stores the identity returned by a successful login.
func (s *Session) Establish(user model.User) {
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	s.logger.Debugf("Session established for %s", user.Username)
}

// Clear logs out without notifying anyone.
func (s *Session) Clear() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

// Invalidate drops the credential and fires the unauthenticated callback.
// It is safe to call more than once; the callback fires only when a
// credential was actually dropped.
func (s *Session) Invalidate() {
	s.mu.Lock()
	had := s.user != nil
	s.user = nil
	cb := s.onUnauthenticated
	s.mu.Unlock()

	if !had {
		return
	}
	s.logger.Warn("Session invalidated by the backend")
	if cb != nil {
		cb()
	}
}

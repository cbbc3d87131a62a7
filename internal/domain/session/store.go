package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// API is the subset of the control panel client the store needs.
type API interface {
	SessionData(ctx context.Context) (types.SessionData, error)
	Login(ctx context.Context, cred types.PasswordCredential) (types.SessionState, error)
	Logout(ctx context.Context) error
	ResetPassword(ctx context.Context, userName, newPassword string) error
	ChangePassword(ctx context.Context, req types.UpdatePassword) error
	AddUser(ctx context.Context, cred types.PasswordCredential) error
	SetToken(token string)
}

// LoginResult tells the caller whether login finished.
type LoginResult int

const (
	LoggedIn LoginResult = iota
	// NeedsChangePassword means the account has a one-time password. The
	// session is not logged in until InitializePassword succeeds.
	NeedsChangePassword
)

func (r LoginResult) String() string {
	switch r {
	case LoggedIn:
		return "logged-in"
	case NeedsChangePassword:
		return "needs-change-password"
	default:
		return fmt.Sprintf("LoginResult(%d)", int(r))
	}
}

// State is the client's belief about the session. Known is false until the
// first authoritative read has completed.
type State struct {
	Known    bool
	LoggedIn bool
	UserName string
}

// Store holds the session state. Every mutating operation ends with a fresh
// read from the server; the store never guesses.
type Store struct {
	api API
	log *logging.Logger

	mu        sync.RWMutex
	state     State
	known     chan struct{}
	knownOnce sync.Once
}

// NewStore returns a store in the not-yet-known state. Call Refresh to
// perform the initial read.
func NewStore(api API, log *logging.Logger) *Store {
	return &Store{
		api:   api,
		log:   logging.OrNop(log).Named("session"),
		known: make(chan struct{}),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LoggedIn reports whether the last authoritative read said logged in.
func (s *Store) LoggedIn() bool {
	return s.State().LoggedIn
}

// WaitKnown blocks until the first authoritative read has completed.
func (s *Store) WaitKnown(ctx context.Context) (State, error) {
	select {
	case <-s.known:
		return s.State(), nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Refresh re-reads the session from the server. On failure the previous
// state is kept.
func (s *Store) Refresh(ctx context.Context) (State, error) {
	data, err := s.api.SessionData(ctx)
	if err != nil {
		s.log.Warn("session read failed", zap.Error(err))
		return s.State(), fmt.Errorf("read session: %w", err)
	}

	token := ""
	if data.LoggedIn {
		token = data.AccessToken
	}
	s.api.SetToken(token)

	s.mu.Lock()
	s.state = State{Known: true, LoggedIn: data.LoggedIn, UserName: data.UserName}
	st := s.state
	s.mu.Unlock()

	s.knownOnce.Do(func() { close(s.known) })
	s.log.Debug("session refreshed", zap.Bool("logged_in", st.LoggedIn))
	return st, nil
}

// Login authenticates. On NeedsChangePassword the state is left untouched
// and the caller must follow up with InitializePassword.
func (s *Store) Login(ctx context.Context, userName, password string) (LoginResult, error) {
	resp, err := s.api.Login(ctx, types.PasswordCredential{UserName: userName, Password: password})
	if err != nil {
		return LoggedIn, fmt.Errorf("login: %w", err)
	}
	if resp.NeedsChangePassword {
		s.log.Info("password change required", logging.User(userName))
		return NeedsChangePassword, nil
	}

	if _, err := s.Refresh(ctx); err != nil {
		return LoggedIn, err
	}
	return LoggedIn, nil
}

// Logout revokes the session and re-reads the state even if the revoke
// failed, so the store reflects what the server believes.
func (s *Store) Logout(ctx context.Context) error {
	logoutErr := s.api.Logout(ctx)
	if logoutErr != nil {
		logoutErr = fmt.Errorf("logout: %w", logoutErr)
	}
	_, refreshErr := s.Refresh(ctx)
	return errors.Join(logoutErr, refreshErr)
}

// InitializePassword sets the first password after a NeedsChangePassword
// login and re-reads the state.
func (s *Store) InitializePassword(ctx context.Context, userName, newPassword string) error {
	if err := s.api.ResetPassword(ctx, userName, newPassword); err != nil {
		return fmt.Errorf("initialize password: %w", err)
	}
	_, err := s.Refresh(ctx)
	return err
}

// ChangePassword changes the logged-in user's password.
func (s *Store) ChangePassword(ctx context.Context, current, next string) error {
	if err := s.api.ChangePassword(ctx, types.UpdatePassword{Password: current, NewPassword: next}); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// AddUser creates a user who must set a new password on first login.
func (s *Store) AddUser(ctx context.Context, userName, password string) error {
	if err := s.api.AddUser(ctx, types.PasswordCredential{UserName: userName, Password: password}); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

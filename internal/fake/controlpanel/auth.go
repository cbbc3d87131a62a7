package controlpanel

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// SessionCookie is the name of the cookie holding the session id.
const SessionCookie = "premises_session"

const tokenKey = "fake-panel.user"

// ErrDuplicateUser is returned by AddUser for a name already taken.
var ErrDuplicateUser = errors.New("user already exists")

type user struct {
	name        string
	hash        []byte
	initialized bool
}

type sessionState struct {
	accessToken    string
	changePassword string
}

// AllowedPassword reports whether password satisfies the control panel's
// password rule: at least 8 characters with a letter and a digit.
func AllowedPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	if !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz") {
		return false
	}
	return strings.ContainsAny(password, "0123456789")
}

// AddUser seeds an account. An uninitialized user must choose a new
// password on first login.
func (s *Server) AddUser(name, password string, initialized bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[name]; exists {
		return ErrDuplicateUser
	}
	s.users[name] = &user{name: name, hash: hash, initialized: initialized}
	return nil
}

// RevokeTokens invalidates every access token, as a server-side session
// expiry would.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
}

// session returns the caller's session, creating one and setting the cookie
// when create is true. Callers hold s.mu.
func (s *Server) session(c *gin.Context, create bool) *sessionState {
	if id, err := c.Cookie(SessionCookie); err == nil {
		if sess, ok := s.sessions[id]; ok {
			return sess
		}
	}
	if !create {
		return nil
	}

	id := uuid.NewString()
	sess := &sessionState{}
	s.sessions[id] = sess
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, 60*60*24*30, "/", "", false, true)
	return sess
}

// issueToken mints an access token for name. Callers hold s.mu.
func (s *Server) issueToken(name string) string {
	token := uuid.NewString()
	s.tokens[token] = name
	return token
}

func (s *Server) lookupUser(name string) (user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (s *Server) handleLogin(c *gin.Context) {
	var cred types.PasswordCredential
	if err := c.ShouldBindJSON(&cred); err != nil {
		fail(c, http.StatusOK, types.ErrBadRequest)
		return
	}

	u, found := s.lookupUser(cred.UserName)
	if !found || bcrypt.CompareHashAndPassword(u.hash, []byte(cred.Password)) != nil {
		s.log.Info("login rejected", logging.User(cred.UserName))
		fail(c, http.StatusOK, types.ErrCredential)
		return
	}

	s.mu.Lock()
	sess := s.session(c, true)
	if !u.initialized {
		sess.changePassword = u.name
		s.mu.Unlock()
		ok(c, http.StatusOK, types.SessionState{NeedsChangePassword: true})
		return
	}
	sess.accessToken = s.issueToken(u.name)
	s.mu.Unlock()

	ok(c, http.StatusOK, types.SessionState{})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.session(c, false); sess != nil {
		delete(s.tokens, sess.accessToken)
		sess.accessToken = ""
	}
	ok(c, http.StatusOK, nil)
}

func (s *Server) handleResetPassword(c *gin.Context) {
	s.mu.Lock()
	sess := s.session(c, false)
	var name string
	if sess != nil {
		name = sess.changePassword
	}
	s.mu.Unlock()
	if name == "" {
		fail(c, http.StatusOK, types.ErrBadRequest)
		return
	}

	password := c.PostForm("password")
	if !AllowedPassword(password) {
		fail(c, http.StatusOK, types.ErrPasswordRule)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		fail(c, http.StatusOK, types.ErrInternal)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, exists := s.users[name]
	if !exists {
		fail(c, http.StatusOK, types.ErrBadRequest)
		return
	}
	u.hash = hash
	u.initialized = true
	sess.changePassword = ""
	sess.accessToken = s.issueToken(name)
	ok(c, http.StatusOK, nil)
}

func (s *Server) handleSessionData(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := types.SessionData{}
	if sess := s.session(c, false); sess != nil && sess.accessToken != "" {
		if name, valid := s.tokens[sess.accessToken]; valid {
			data = types.SessionData{LoggedIn: true, AccessToken: sess.accessToken, UserName: name}
		}
	}
	ok(c, http.StatusOK, data)
}

// requireToken accepts the token from the Authorization header or, for
// clients that cannot set headers on the event stream, the x-auth query
// parameter.
func (s *Server) requireToken(c *gin.Context) {
	authorization := c.GetHeader("Authorization")
	if authorization == "" {
		authorization = c.Query("x-auth")
	}
	token, found := strings.CutPrefix(authorization, "Bearer ")
	if !found {
		fail(c, http.StatusUnauthorized, types.ErrRequiresAuth)
		return
	}

	s.mu.Lock()
	name, valid := s.tokens[token]
	s.mu.Unlock()
	if !valid {
		fail(c, http.StatusUnauthorized, types.ErrRequiresAuth)
		return
	}

	c.Set(tokenKey, name)
	c.Next()
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req types.UpdatePassword
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}
	if !AllowedPassword(req.NewPassword) {
		fail(c, http.StatusBadRequest, types.ErrPasswordRule)
		return
	}

	u, found := s.lookupUser(c.GetString(tokenKey))
	if !found {
		fail(c, http.StatusInternalServerError, types.ErrInternal)
		return
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, types.ErrCredential)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.opts.BcryptCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, types.ErrInternal)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, exists := s.users[u.name]; exists {
		stored.hash = hash
		stored.initialized = true
	}
	ok(c, http.StatusOK, nil)
}

func (s *Server) handleAddUser(c *gin.Context) {
	var req types.PasswordCredential
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}
	if len(req.UserName) == 0 || len(req.UserName) > 32 {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}
	if !AllowedPassword(req.Password) {
		fail(c, http.StatusBadRequest, types.ErrPasswordRule)
		return
	}

	if err := s.AddUser(req.UserName, req.Password, false); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			fail(c, http.StatusBadRequest, types.ErrDupUserName)
			return
		}
		fail(c, http.StatusInternalServerError, types.ErrInternal)
		return
	}

	s.log.Info("user added",
		logging.User(req.UserName),
		zap.String("by", c.GetString(tokenKey)))
	ok(c, http.StatusCreated, nil)
}

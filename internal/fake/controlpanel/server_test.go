package controlpanel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

type panelClient struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func newPanel(t *testing.T) (*Server, *panelClient) {
	t.Helper()
	fake := New(Options{
		BcryptCost:  bcrypt.MinCost,
		StreamRetry: 20 * time.Millisecond,
		KeepAlive:   50 * time.Millisecond,
	})
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(func() {
		fake.Close()
		srv.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return fake, &panelClient{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (p *panelClient) call(method, path string, body any, out any) (int, types.RawResponse) {
	p.t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(p.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, p.base+path, rd)
	require.NoError(p.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	return p.send(req, out)
}

func (p *panelClient) send(req *http.Request, out any) (int, types.RawResponse) {
	p.t.Helper()
	resp, err := p.http.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()

	var env types.RawResponse
	data, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	if len(data) > 0 {
		require.NoError(p.t, json.Unmarshal(data, &env))
	}
	if out != nil && env.Success {
		require.NoError(p.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode, env
}

func (p *panelClient) login(name, password string) types.SessionState {
	p.t.Helper()
	var state types.SessionState
	_, env := p.call(http.MethodPost, "/api/internal/login", types.PasswordCredential{UserName: name, Password: password}, &state)
	require.True(p.t, env.Success, "login failed with code %d", env.ErrorCode)
	if !state.NeedsChangePassword {
		p.token = p.sessionData().AccessToken
	}
	return state
}

func (p *panelClient) sessionData() types.SessionData {
	p.t.Helper()
	var data types.SessionData
	_, env := p.call(http.MethodGet, "/api/internal/session-data", nil, &data)
	require.True(p.t, env.Success)
	return data
}

func TestLoginLogout(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))

	assert.False(t, p.sessionData().LoggedIn)

	_, env := p.call(http.MethodPost, "/api/internal/login", types.PasswordCredential{UserName: "admin", Password: "wrong"}, nil)
	assert.False(t, env.Success)
	assert.Equal(t, types.ErrCredential, env.ErrorCode)

	state := p.login("admin", "password1")
	assert.False(t, state.NeedsChangePassword)
	data := p.sessionData()
	assert.True(t, data.LoggedIn)
	assert.Equal(t, "admin", data.UserName)
	assert.NotEmpty(t, data.AccessToken)

	code, _ := p.call(http.MethodGet, "/api/v1/config", nil, nil)
	assert.Equal(t, http.StatusOK, code)

	_, env = p.call(http.MethodPost, "/api/internal/logout", nil, nil)
	assert.True(t, env.Success)
	assert.False(t, p.sessionData().LoggedIn)

	code, env = p.call(http.MethodGet, "/api/v1/config", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, types.ErrRequiresAuth, env.ErrorCode)
}

func TestResetPasswordFlow(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("newbie", "initial1", false))

	state := p.login("newbie", "initial1")
	assert.True(t, state.NeedsChangePassword)
	assert.False(t, p.sessionData().LoggedIn)

	reset := func(password string) types.RawResponse {
		form := url.Values{"username": {"newbie"}, "password": {password}}
		req, err := http.NewRequest(http.MethodPost, p.base+"/api/internal/login/reset-password", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		_, env := p.send(req, nil)
		return env
	}

	env := reset("short")
	assert.Equal(t, types.ErrPasswordRule, env.ErrorCode)

	env = reset("changed12")
	assert.True(t, env.Success)
	assert.True(t, p.sessionData().LoggedIn)

	// The user is initialized now and logs in directly.
	p.token = ""
	assert.False(t, p.login("newbie", "changed12").NeedsChangePassword)
}

func TestResetPasswordWithoutPendingLogin(t *testing.T) {
	_, p := newPanel(t)

	req, err := http.NewRequest(http.MethodPost, p.base+"/api/internal/login/reset-password", strings.NewReader("password=changed12"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, env := p.send(req, nil)
	assert.Equal(t, types.ErrBadRequest, env.ErrorCode)
}

func TestTokenFromQuery(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	req, err := http.NewRequest(http.MethodGet, p.base+"/api/v1/mcversions?x-auth="+url.QueryEscape("Bearer "+p.token), nil)
	require.NoError(t, err)
	var versions []types.MCVersion
	code, env := (&panelClient{t: t, http: http.DefaultClient}).send(req, &versions)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, versions)

	fake.RevokeTokens()
	code, _ = p.call(http.MethodGet, "/api/v1/mcversions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestConfigMergeAndLaunch(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	var cv types.ConfigAndValidity
	_, env := p.call(http.MethodGet, "/api/v1/config", nil, &cv)
	require.True(t, env.Success)
	assert.False(t, cv.IsValid)
	assert.Equal(t, "4g", *cv.Config.MachineType)
	assert.Equal(t, 30, *cv.Config.InactiveTimeout)

	code, env := p.call(http.MethodPost, "/api/v1/launch", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, types.ErrInvalidConfig, env.ErrorCode)

	_, env = p.call(http.MethodPut, "/api/v1/config", types.PendingConfig{
		ServerVersion: types.Ptr("1.21.4"),
		WorldSource:   types.Ptr(types.WorldSourceNewWorld),
		WorldName:     types.Ptr("fresh"),
		LevelType:     types.Ptr("default"),
	}, &cv)
	require.True(t, env.Success)
	assert.True(t, cv.IsValid)
	assert.Equal(t, "4g", *cv.Config.MachineType, "unchanged fields survive the merge")

	code, env = p.call(http.MethodPost, "/api/v1/launch", nil, nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.True(t, env.Success)
	assert.True(t, fake.Running())

	code, env = p.call(http.MethodPost, "/api/v1/launch", nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, types.ErrServerRunning, env.ErrorCode)

	var info types.WorldInfo
	_, env = p.call(http.MethodGet, "/api/v1/worldinfo", nil, &info)
	require.True(t, env.Success)
	assert.Equal(t, "fresh", info.WorldName)

	code, _ = p.call(http.MethodPost, "/api/v1/stop", nil, nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.False(t, fake.Running())
	assert.Equal(t, []string{"launch", "stop"}, fake.Commands())
}

func TestWorldLinks(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	for _, name := range []string{"a/b", "x@y", `c\d`, ""} {
		code, env := p.call(http.MethodPost, "/api/v1/world-link/upload", types.CreateWorldUploadLinkReq{WorldName: name, MimeType: "application/zip"}, nil)
		assert.Equal(t, http.StatusBadRequest, code, name)
		assert.Equal(t, types.ErrBadRequest, env.ErrorCode, name)
	}

	code, _ := p.call(http.MethodPost, "/api/v1/world-link/upload", types.CreateWorldUploadLinkReq{WorldName: "w", MimeType: "text/plain"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var link types.DelegatedURL
	_, env := p.call(http.MethodPost, "/api/v1/world-link/upload", types.CreateWorldUploadLinkReq{WorldName: "w", MimeType: "application/zip"}, &link)
	require.True(t, env.Success)

	req, err := http.NewRequest(http.MethodPut, link.URL, strings.NewReader("archive"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, found := fake.Object("w/user_uploaded_world.zip")
	require.True(t, found)
	assert.Equal(t, "archive", string(data))

	var worlds []types.World
	_, env = p.call(http.MethodGet, "/api/v1/worlds", nil, &worlds)
	require.True(t, env.Success)
	require.Len(t, worlds, 1)
	assert.Equal(t, "w", worlds[0].WorldName)

	code, _ = p.call(http.MethodPost, "/api/v1/world-link/download", types.CreateWorldDownloadLinkReq{ID: worlds[0].Generations[0].ID}, &link)
	assert.Equal(t, http.StatusCreated, code)

	code, _ = p.call(http.MethodDelete, "/api/v1/worlds", types.DeleteWorldInput{WorldName: "w"}, nil)
	assert.Equal(t, http.StatusNoContent, code)
	_, _ = p.call(http.MethodGet, "/api/v1/worlds", nil, &worlds)
	assert.Empty(t, worlds)
}

func TestQuickUndoSlotRange(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	for _, slot := range []int{-1, 10} {
		code, env := p.call(http.MethodPost, "/api/v1/quickundo/snapshot", types.SnapshotConfiguration{Slot: slot}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, types.ErrBadRequest, env.ErrorCode)
	}
	code, _ := p.call(http.MethodPost, "/api/v1/quickundo/undo", types.SnapshotConfiguration{Slot: 9}, nil)
	assert.Equal(t, http.StatusAccepted, code)
}

func TestUsers(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	code, env := p.call(http.MethodPost, "/api/v1/users/add", types.PasswordCredential{UserName: "guest", Password: "weak"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, types.ErrPasswordRule, env.ErrorCode)

	code, _ = p.call(http.MethodPost, "/api/v1/users/add", types.PasswordCredential{UserName: "guest", Password: "guestpw1"}, nil)
	assert.Equal(t, http.StatusCreated, code)

	_, env = p.call(http.MethodPost, "/api/v1/users/add", types.PasswordCredential{UserName: "guest", Password: "guestpw1"}, nil)
	assert.Equal(t, types.ErrDupUserName, env.ErrorCode)

	code, env = p.call(http.MethodPost, "/api/v1/users/change-password", types.UpdatePassword{Password: "nope", NewPassword: "password2"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, types.ErrCredential, env.ErrorCode)

	code, _ = p.call(http.MethodPost, "/api/v1/users/change-password", types.UpdatePassword{Password: "password1", NewPassword: "password2"}, nil)
	assert.Equal(t, http.StatusOK, code)
}

type sseFrame struct {
	id, event, data string
}

func readFrames(t *testing.T, r *bufio.Reader, n int) []sseFrame {
	t.Helper()
	var (
		out []sseFrame
		cur sseFrame
	)
	for len(out) < n {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if cur.event != "" {
				out = append(out, cur)
			}
			cur = sseFrame{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			cur.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			cur.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	return out
}

func TestStreamReplaysStatusAndHistory(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	fake.PublishStatus(status(types.EventRunning, types.PageRunning))
	fake.PublishSysstat(types.SysstatEvent{CPUUsage: 12.5, Time: 1})

	req, err := http.NewRequest(http.MethodGet, p.base+"/api/streaming?x-auth="+url.QueryEscape("Bearer "+p.token), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	frames := readFrames(t, r, 2)
	assert.Equal(t, EventStatusChanged, frames[0].event)
	assert.JSONEq(t, `{"eventCode":8,"pageCode":3}`, frames[0].data)
	assert.Equal(t, EventSysstat, frames[1].event)

	fake.PublishNotify(types.NotifyEvent{InfoCode: types.InfoSnapshotDone})
	frames = readFrames(t, r, 1)
	assert.Equal(t, EventNotify, frames[0].event)
	assert.Equal(t, "3", frames[0].id)
}

func TestSuspendedStreamsAreRefused(t *testing.T) {
	fake, p := newPanel(t)
	require.NoError(t, fake.AddUser("admin", "password1", true))
	p.login("admin", "password1")

	fake.SuspendStreams()
	req, err := http.NewRequest(http.MethodGet, p.base+"/api/streaming", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+p.token)
	code, env := p.send(req, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, types.ErrAgain, env.ErrorCode)
	assert.Zero(t, fake.StreamCount())
}

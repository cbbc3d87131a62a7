package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kofuk/premises-sub000/internal/api/client"
	"github.com/kofuk/premises-sub000/internal/api/stream"
	"github.com/kofuk/premises-sub000/internal/domain/session"
	"github.com/kofuk/premises-sub000/internal/domain/status"
	"github.com/kofuk/premises-sub000/internal/domain/wizard"
	"github.com/kofuk/premises-sub000/internal/fake/controlpanel"
	"github.com/kofuk/premises-sub000/internal/infrastructure/config"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

func setup(t *testing.T) (*controlpanel.Server, *App) {
	t.Helper()
	fake := controlpanel.New(controlpanel.Options{
		BcryptCost:  bcrypt.MinCost,
		StreamRetry: 20 * time.Millisecond,
		KeepAlive:   time.Second,
	})
	require.NoError(t, fake.AddUser("admin", "password1", true))
	srv := httptest.NewServer(fake.Handler())

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.RateLimit.Enabled = false
	cfg.Retry.MinWait = time.Millisecond
	cfg.Retry.MaxWait = 5 * time.Millisecond
	cfg.Stream.RetryInitial = 20 * time.Millisecond
	cfg.Stream.RetryMax = 50 * time.Millisecond

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		fake.Close()
		srv.Close()
	})
	return fake, a
}

func loggedIn(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()
	_, err := a.Start(ctx)
	require.NoError(t, err)
	res, err := a.Session().Login(ctx, "admin", "password1")
	require.NoError(t, err)
	require.Equal(t, session.LoggedIn, res)
}

func TestLoginThenDisconnect(t *testing.T) {
	fake, a := setup(t)
	loggedIn(t, a)

	console, err := a.MountConsole(context.Background())
	require.NoError(t, err)
	defer console.Close()

	require.Eventually(t, func() bool { return fake.StreamCount() == 1 }, waitFor, tick)
	fake.PublishStatus(types.StatusEvent{EventCode: types.EventRunning, PageCode: types.Ptr(types.PageRunning)})
	require.Eventually(t, func() bool {
		return console.Status().Snapshot().Code == types.EventRunning
	}, waitFor, tick)

	fake.SuspendStreams()
	require.Eventually(t, func() bool {
		return console.Status().Snapshot().Code == types.EventDisconnected
	}, waitFor, tick)

	snap := console.Status().Snapshot()
	assert.Equal(t, types.PageRunning, snap.PageCode, "disconnect keeps the page")
	screen, err := console.Screen()
	require.NoError(t, err)
	assert.Equal(t, ScreenRunning, screen)

	fake.ResumeStreams()
	require.Eventually(t, func() bool {
		return console.Status().Snapshot().Code == types.EventRunning
	}, waitFor, tick)
}

func TestConsoleStopsWhenTokenRevoked(t *testing.T) {
	fake, a := setup(t)
	loggedIn(t, a)

	console, err := a.MountConsole(context.Background())
	require.NoError(t, err)
	defer console.Close()
	require.Eventually(t, func() bool { return fake.StreamCount() == 1 }, waitFor, tick)

	fake.RevokeTokens()
	fake.SuspendStreams()
	fake.ResumeStreams()

	select {
	case <-console.Done():
	case <-time.After(waitFor):
		t.Fatal("console kept reconnecting with a revoked token")
	}
	assert.ErrorIs(t, console.Err(), stream.ErrRejected)
	assert.Equal(t, types.EventDisconnected, console.Status().Snapshot().Code)
}

func TestConsoleRequiresLogin(t *testing.T) {
	_, a := setup(t)
	_, err := a.Start(context.Background())
	require.NoError(t, err)

	_, err = a.MountConsole(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, _, err = a.NewWizard(context.Background(), wizard.ModeLaunch)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestMountWaitsForSession(t *testing.T) {
	_, a := setup(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := a.MountConsole(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsoleReleasesStream(t *testing.T) {
	fake, a := setup(t)
	loggedIn(t, a)

	first, err := a.MountConsole(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	second, err := a.MountConsole(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fake.StreamCount() == 2 }, waitFor, tick)

	first.Close()
	require.Eventually(t, func() bool { return fake.StreamCount() == 1 }, waitFor, tick)

	cancel()
	<-second.Done()
	require.Eventually(t, func() bool { return fake.StreamCount() == 0 }, waitFor, tick)

	fake.PublishStatus(types.StatusEvent{EventCode: types.EventRunning})
	assert.Equal(t, types.EventDisconnected, first.Status().Snapshot().Code)
}

func TestInvalidSubmitRejected(t *testing.T) {
	fake, a := setup(t)
	loggedIn(t, a)
	ctx := context.Background()

	w, release, err := a.NewWizard(ctx, wizard.ModeLaunch)
	require.NoError(t, err)
	defer release()

	assert.False(t, w.Config().IsValid)
	assert.False(t, w.CanSubmit())

	err = w.Submit(ctx)
	apiErr, ok := client.IsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, types.ErrInvalidConfig, apiErr.Code)
	assert.NotEmpty(t, apiErr.Message)
	assert.Empty(t, fake.Commands())
}

func TestWizardLaunchesServer(t *testing.T) {
	fake, a := setup(t)
	fake.SetWorlds([]types.World{{WorldName: "main"}})
	loggedIn(t, a)
	ctx := context.Background()

	console, err := a.MountConsole(ctx)
	require.NoError(t, err)
	defer console.Close()
	require.Eventually(t, func() bool { return fake.StreamCount() == 1 }, waitFor, tick)

	w, release, err := a.NewWizard(ctx, wizard.ModeLaunch)
	require.NoError(t, err)
	defer release()

	require.NoError(t, w.SetMachineType(ctx, "8g"))
	require.NoError(t, w.NextStep())
	require.NoError(t, w.SetServerVersion(ctx, "1.21.4", false))
	require.NoError(t, w.NextStep())
	require.NoError(t, w.SetWorldSource(ctx, types.WorldSourceBackups))
	require.NoError(t, w.NextStep())
	require.NoError(t, w.ChooseBackup(ctx, "main", ""))
	require.NoError(t, w.NextStep())

	require.True(t, w.CanSubmit())
	require.NoError(t, w.Submit(ctx))
	assert.Equal(t, []string{"launch"}, fake.Commands())

	require.Eventually(t, func() bool {
		screen, err := console.Screen()
		return err == nil && screen == ScreenRunning
	}, waitFor, tick)
	assert.Equal(t, "8g", types.Get(fake.PendingConfig().MachineType, ""))
}

func TestNeedsChangePassword(t *testing.T) {
	fake, a := setup(t)
	require.NoError(t, fake.AddUser("newbie", "initial1", false))
	ctx := context.Background()
	_, err := a.Start(ctx)
	require.NoError(t, err)

	res, err := a.Session().Login(ctx, "newbie", "initial1")
	require.NoError(t, err)
	assert.Equal(t, session.NeedsChangePassword, res)
	assert.False(t, a.Session().LoggedIn())

	require.NoError(t, a.Session().InitializePassword(ctx, "newbie", "changed12"))
	assert.True(t, a.Session().LoggedIn())
	assert.Equal(t, "newbie", a.Session().State().UserName)
}

func TestLogoutIsAuthoritative(t *testing.T) {
	_, a := setup(t)
	loggedIn(t, a)
	ctx := context.Background()

	require.NoError(t, a.Session().Logout(ctx))
	st, err := a.Session().Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
	assert.Equal(t, ScreenLogin, Route(st, status.PageRunning))
}

func TestToastsFromStream(t *testing.T) {
	fake, a := setup(t)
	loggedIn(t, a)

	console, err := a.MountConsole(context.Background())
	require.NoError(t, err)
	defer console.Close()
	require.Eventually(t, func() bool { return fake.StreamCount() == 1 }, waitFor, tick)

	fake.PublishNotify(types.NotifyEvent{InfoCode: types.InfoNoSnapshot, IsError: true})

	select {
	case toast := <-a.Toasts().C():
		assert.Equal(t, types.InfoNoSnapshot, toast.Code)
		assert.True(t, toast.IsError)
		assert.Equal(t, a.Catalog().Info(types.InfoNoSnapshot), toast.Message)
	case <-time.After(waitFor):
		t.Fatal("no toast delivered")
	}
}

func TestRoute(t *testing.T) {
	in := session.State{Known: true, LoggedIn: true}
	tests := []struct {
		name  string
		state session.State
		page  status.Page
		want  Screen
	}{
		{"unknown session", session.State{}, status.PageRunning, ScreenSplash},
		{"logged out", session.State{Known: true}, status.PageRunning, ScreenLogin},
		{"launch", in, status.PageLaunch, ScreenLaunch},
		{"loading", in, status.PageLoading, ScreenLoading},
		{"running", in, status.PageRunning, ScreenRunning},
		{"manual setup", in, status.PageManualSetup, ScreenManualSetup},
		{"unrecognized", in, status.Page("bogus"), ScreenUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.state, tt.page))
		})
	}
}

func TestToastsDropOldest(t *testing.T) {
	_, a := setup(t)
	q := NewToasts(a.Catalog(), 2)
	q.Notify(types.NotifyEvent{InfoCode: types.InfoSnapshotDone})
	q.Notify(types.NotifyEvent{InfoCode: types.InfoSnapshotError})
	q.Notify(types.NotifyEvent{InfoCode: types.InfoNoSnapshot})

	assert.Equal(t, types.InfoSnapshotError, (<-q.C()).Code)
	assert.Equal(t, types.InfoNoSnapshot, (<-q.C()).Code)
}

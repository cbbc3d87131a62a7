package app

import (
	"github.com/kofuk/premises-sub000/internal/api/stream"
	"github.com/kofuk/premises-sub000/internal/domain/session"
	"github.com/kofuk/premises-sub000/internal/domain/status"
)

// Console is a mounted status view. It exclusively owns one stream.
type Console struct {
	status *status.Store
	conn   *stream.Conn
}

func newConsole(st *status.Store, conn *stream.Conn, forget func(*Console)) *Console {
	c := &Console{status: st, conn: conn}
	go func() {
		<-conn.Done()
		forget(c)
	}()
	return c
}

// Status returns the console's status store.
func (c *Console) Status() *status.Store {
	return c.status
}

// Screen returns the screen the console should show now.
func (c *Console) Screen() (Screen, error) {
	page, err := c.status.Page()
	if err != nil {
		return ScreenUnknown, err
	}
	return Route(session.State{Known: true, LoggedIn: true}, page), nil
}

// Done is closed once the console's stream has stopped.
func (c *Console) Done() <-chan struct{} {
	return c.conn.Done()
}

// Err reports why the stream stopped on its own, such as
// stream.ErrRejected once the session has expired.
func (c *Console) Err() error {
	return c.conn.Err()
}

// Close stops the stream. No status update is applied after Close returns.
func (c *Console) Close() {
	c.conn.Close()
}

// Screen is the top-level view selected from session state and page code.
type Screen string

const (
	ScreenSplash      Screen = "splash"
	ScreenLogin       Screen = "login"
	ScreenLaunch      Screen = "launch"
	ScreenLoading     Screen = "loading"
	ScreenRunning     Screen = "running"
	ScreenManualSetup Screen = "manual-setup"
	ScreenUnknown     Screen = "unknown"
)

// Route picks the screen. Until the session is known nothing but a splash
// is shown, and without a session only the login screen is reachable.
func Route(st session.State, page status.Page) Screen {
	switch {
	case !st.Known:
		return ScreenSplash
	case !st.LoggedIn:
		return ScreenLogin
	}

	switch page {
	case status.PageLaunch:
		return ScreenLaunch
	case status.PageLoading:
		return ScreenLoading
	case status.PageRunning:
		return ScreenRunning
	case status.PageManualSetup:
		return ScreenManualSetup
	default:
		return ScreenUnknown
	}
}

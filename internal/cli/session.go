package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// savedSession is the on-disk form of the session cookies for one control
// panel. The access token is not stored; it is re-read from session-data.
type savedSession struct {
	URL     string        `json:"url"`
	Cookies []savedCookie `json:"cookies"`
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type cookieJar interface {
	Cookies() []*http.Cookie
	RestoreCookies(cookies []*http.Cookie) error
}

// loadSession restores cookies saved for baseURL. A missing file or a file
// for another control panel is not an error.
func loadSession(path, baseURL string, jar cookieJar) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var s savedSession
	if err := sonic.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse session file: %w", err)
	}
	if s.URL != baseURL {
		return nil
	}

	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return jar.RestoreCookies(cookies)
}

// saveSession writes the current cookies for baseURL, readable only by the
// owner.
func saveSession(path, baseURL string, jar cookieJar) error {
	if path == "" {
		return nil
	}
	s := savedSession{URL: baseURL}
	for _, c := range jar.Cookies() {
		s.Cookies = append(s.Cookies, savedCookie{Name: c.Name, Value: c.Value})
	}

	data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// DefaultLocale is used when the requested locale has no catalog and for
// keys a locale does not translate.
const DefaultLocale = "en"

//go:embed messages/*.yaml
var embedded embed.FS

type messages struct {
	Status map[int]string    `yaml:"status"`
	Error  map[int]string    `yaml:"error"`
	Info   map[int]string    `yaml:"info"`
	Text   map[string]string `yaml:"text"`
}

// Catalog resolves codes and keys to localized strings. Lookups never fail;
// a missing entry falls back to the default locale and then to a generic
// string that carries the code.
type Catalog struct {
	locale   string
	primary  *messages
	fallback *messages
}

// New loads the embedded catalog for locale.
func New(locale string) (*Catalog, error) {
	return Load(embedded, "messages", locale)
}

// MustNew is like New but panics on a malformed embedded catalog.
func MustNew(locale string) *Catalog {
	c, err := New(locale)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads <dir>/<locale>.yaml from fsys. Locales such as "ja_JP.UTF-8"
// or "ja-JP" resolve to "ja"; a locale without a file resolves to
// DefaultLocale.
func Load(fsys fs.FS, dir, locale string) (*Catalog, error) {
	fallback, err := readMessages(fsys, dir, DefaultLocale)
	if err != nil {
		return nil, err
	}

	c := &Catalog{locale: DefaultLocale, primary: fallback, fallback: fallback}

	lang := normalize(locale)
	if lang == "" || lang == DefaultLocale {
		return c, nil
	}
	if _, err := fs.Stat(fsys, path.Join(dir, lang+".yaml")); err != nil {
		return c, nil
	}

	primary, err := readMessages(fsys, dir, lang)
	if err != nil {
		return nil, err
	}
	c.locale = lang
	c.primary = primary
	return c, nil
}

// Locales lists the embedded locales.
func Locales() []string {
	entries, err := fs.ReadDir(embedded, "messages")
	if err != nil {
		return []string{DefaultLocale}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Locale returns the locale actually in use.
func (c *Catalog) Locale() string {
	return c.locale
}

// Status returns the message for a status event code.
func (c *Catalog) Status(code types.EventCode) string {
	if s, ok := lookup(c, func(m *messages) map[int]string { return m.Status }, int(code)); ok {
		return s
	}
	return c.fallbackFor("fallback_status", int(code))
}

// Error returns the message for an application error code.
func (c *Catalog) Error(code types.ErrorCode) string {
	if s, ok := lookup(c, func(m *messages) map[int]string { return m.Error }, int(code)); ok {
		return s
	}
	return c.fallbackFor("fallback_error", int(code))
}

// Info returns the message for a notification code.
func (c *Catalog) Info(code types.InfoCode) string {
	if s, ok := lookup(c, func(m *messages) map[int]string { return m.Info }, int(code)); ok {
		return s
	}
	return c.fallbackFor("fallback_info", int(code))
}

// Text returns the UI string for key, or key itself when untranslated.
func (c *Catalog) Text(key string) string {
	if s, ok := c.primary.Text[key]; ok {
		return s
	}
	if s, ok := c.fallback.Text[key]; ok {
		return s
	}
	return key
}

// HasError reports whether code has a translation.
func (c *Catalog) HasError(code types.ErrorCode) bool {
	_, ok := lookup(c, func(m *messages) map[int]string { return m.Error }, int(code))
	return ok
}

func (c *Catalog) fallbackFor(key string, code int) string {
	tmpl := c.Text(key)
	if tmpl == key {
		return fmt.Sprintf("%s (%d)", strings.TrimPrefix(key, "fallback_"), code)
	}
	return strings.ReplaceAll(tmpl, "{{code}}", strconv.Itoa(code))
}

func lookup(c *Catalog, table func(*messages) map[int]string, code int) (string, bool) {
	if s, ok := table(c.primary)[code]; ok {
		return s, true
	}
	s, ok := table(c.fallback)[code]
	return s, ok
}

func readMessages(fsys fs.FS, dir, lang string) (*messages, error) {
	data, err := fs.ReadFile(fsys, path.Join(dir, lang+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", lang, err)
	}
	var m messages
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", lang, err)
	}
	return &m, nil
}

func normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_."); i >= 0 {
		locale = locale[:i]
	}
	return locale
}

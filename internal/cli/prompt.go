package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errNoInput = errors.New("input closed")

// prompter reads answers line by line.
type prompter struct {
	raw io.Reader
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{raw: in, in: bufio.NewScanner(in), out: out}
}

// ask prints label and returns the trimmed answer, or def when the answer
// is empty.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", label)
	}
	return p.readLine(def)
}

// askSecret is ask without echo when the input is a terminal. Piped input
// is read as a plain line.
func (p *prompter) askSecret(label string) (string, error) {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)

	f, ok := p.raw.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.readLine("")
	}
	secret, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (p *prompter) readLine(def string) (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errNoInput
	}
	answer := strings.TrimSpace(p.in.Text())
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.ask(label+" (y/N)", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

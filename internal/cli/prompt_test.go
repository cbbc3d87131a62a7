package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskSecretReadsPipedInput(t *testing.T) {
	tests := []struct {
		name  string
		input func(t *testing.T) *prompter
	}{
		{
			name: "reader",
			input: func(t *testing.T) *prompter {
				return newPrompter(strings.NewReader(" hunter22 \nnext\n"), &bytes.Buffer{})
			},
		},
		{
			name: "regular file",
			input: func(t *testing.T) *prompter {
				path := filepath.Join(t.TempDir(), "stdin")
				require.NoError(t, os.WriteFile(path, []byte(" hunter22 \nnext\n"), 0o600))
				f, err := os.Open(path)
				require.NoError(t, err)
				t.Cleanup(func() { _ = f.Close() })
				return newPrompter(f, &bytes.Buffer{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.input(t)

			secret, err := p.askSecret("Password")
			require.NoError(t, err)
			assert.Equal(t, "hunter22", secret)

			next, err := p.ask("User", "")
			require.NoError(t, err)
			assert.Equal(t, "next", next, "secret and plain prompts share one line reader")

			_, err = p.askSecret("Password")
			assert.ErrorIs(t, err, errNoInput)
		})
	}
}

func TestAskSecretPrintsLabel(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("x\n"), &out)

	_, err := p.askSecret("Password")
	require.NoError(t, err)
	assert.Equal(t, "Password: ", out.String())
}

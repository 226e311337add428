package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFileRollsOver(t *testing.T) {
	name := filepath.Join(t.TempDir(), "logs", "ledger.log")
	rf, err := OpenRotatingFile(name, 1, 2)
	require.NoError(t, err)
	rf.MaxSize = 64 // bytes, to force rotation quickly
	defer rf.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 5; i++ {
		_, err := rf.Write(line)
		require.NoError(t, err)
	}

	for _, p := range []string{name, name + ".1", name + ".2"} {
		_, err := os.Stat(p)
		assert.NoError(t, err, "expected %s to exist", p)
	}
	_, err = os.Stat(name + ".3")
	assert.True(t, os.IsNotExist(err), "only MaxBackups backups are kept")

	live, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, line, live)
}

func TestRotatingFileAppendsToExisting(t *testing.T) {
	name := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, os.WriteFile(name, []byte("old\n"), 0o644))

	rf, err := OpenRotatingFile(name, 10, 1)
	require.NoError(t, err)
	_, err = rf.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, rf.Close())

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(b))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewWritesToFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "app.log")
	var console bytes.Buffer
	l := New(Options{Level: "info", File: name, MaxSizeMB: 1, MaxBackups: 1, Console: &console})
	l.Info().Str("account", "alice").Msg("hello")
	l.Debug().Msg("filtered")
	require.NoError(t, l.Close())

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"account":"alice"`)
	assert.NotContains(t, string(b), "filtered")
	assert.Contains(t, console.String(), "hello")
}

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "parley.log")

	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)
	defer l.Close()

	zl := l.GetZerolog()
	zl.Info().Str("key", "value").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "chatty", Console: true})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
}

func TestNew_RedactsSecretsInFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.log")

	l, err := New(Config{Level: "info", File: path, Redaction: true})
	require.NoError(t, err)
	defer l.Close()

	zl := l.GetZerolog()
	zl.Info().
		Str("token", "123456789:AAAAABBBBBCCCCCDDDDDEEEEEFFFFF12345").
		Msg("startup")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AAAAABBBBBCCCCCDDDDDEEEEEFFFFF12345")
	assert.Contains(t, string(data), "[REDACTED]")
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	assert.Equal(t, version, GetVersion())
	assert.NotEmpty(t, GetVersion())
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := GetRootCmd()

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"], "serve command should be registered")
	assert.True(t, names["status"], "status command should be registered")
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	root := GetRootCmd()

	require.NotNil(t, root.PersistentFlags().Lookup("config"))
	require.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

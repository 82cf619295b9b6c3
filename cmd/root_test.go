package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"compute", "batch", "catalog", "usage", "rates", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "tariff", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestComputeCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "hs", "origin", "destination", "value", "entry-date", "entry-type", "material", "material-origin", "usmca", "claim", "json"} {
		flag := computeCmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "compute should have --%s flag", name)
	}

	dest := computeCmd.Flags().Lookup("destination")
	require.NotNil(t, dest)
	assert.Equal(t, "US", dest.DefValue)
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("input")
	require.NotNil(t, flag, "batch command should have --input flag")

	limit := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit, "batch command should have --limit flag")
	assert.Equal(t, "0", limit.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCatalogCommand_HasSubcommands(t *testing.T) {
	cmds := catalogCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"validate", "show", "candidates"} {
		assert.True(t, names[name], "catalog should have subcommand %q", name)
	}
}

func TestUsageCommand_HasSubcommands(t *testing.T) {
	cmds := usageCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"record", "snapshot", "events", "import"} {
		assert.True(t, names[name], "usage should have subcommand %q", name)
	}
}

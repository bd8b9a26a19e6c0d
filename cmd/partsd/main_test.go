package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"graph",
		"--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--brotli=false",
	})

	require.NoError(t, cmd.Execute())

	graph := out.String()
	assert.Contains(t, graph, "digraph G {")
	assert.Contains(t, graph, `"zlib.DeflateService" -> e2 [style=dotted];`)
	assert.NotContains(t, graph, "brotli")
}

func TestRunCommandWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = "127.0.0.1:0"
log_level = "error"
run_for = "50ms"
`), 0o600))

	cmd := newRootCommand()
	cmd.SetArgs([]string{"run", "--config", path})
	require.NoError(t, cmd.Execute())
}

func TestInvalidConfigRejected(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{
		"graph",
		"--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--log-format", "xml",
	})
	assert.Error(t, cmd.Execute())
}

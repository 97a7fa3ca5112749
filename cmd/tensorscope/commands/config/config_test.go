package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rootOnce sync.Once
	root     *cobra.Command
)

// run executes "tensorscope config args..." under a root carrying the same
// persistent flags as the real CLI.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootOnce.Do(func() {
		root = &cobra.Command{Use: "tensorscope", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config", "", "")
		root.PersistentFlags().StringP("output", "o", "table", "")
		root.AddCommand(Cmd)
	})
	t.Setenv("HF_TOKEN", "")
	t.Setenv("HF_ENDPOINT", "")
	initForce, initInteractive, schemaFile = false, false, ""

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"config"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "init", "--config", path, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created at: "+path)
	assert.FileExists(t, path)

	_, err = run(t, "init", "--config", path, "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "init", "--config", path, "-o", "table", "--force")
	require.NoError(t, err)

	out, err = run(t, "validate", "--config", path, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Remote type:     hub")
	assert.Contains(t, out, "No hub token configured")
}

func TestConfigValidateMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := run(t, "validate", "--config", path, "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestConfigShowJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  max_concurrent: 3\n"), 0600))

	out, err := run(t, "show", "--config", path, "-o", "json")
	require.NoError(t, err)

	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	fetch, ok := shown["Fetch"].(map[string]any)
	require.True(t, ok, "fetch section present: %v", shown)
	assert.EqualValues(t, 3, fetch["MaxConcurrent"])
}

func TestConfigShowYAMLByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  revision: dev\n"), 0600))

	out, err := run(t, "show", "--config", path, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "revision: dev")
}

func TestConfigSchema(t *testing.T) {
	out, err := run(t, "schema", "-o", "table")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "tensorscope Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "remote")
	assert.Contains(t, props, "fetch")
}

func TestConfigSchemaToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")

	out, err := run(t, "schema", "--file", path, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "JSON schema written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_concurrent")
}

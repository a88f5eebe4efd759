package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// runCommand executes a command with captured output.
func runCommand(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// writeTempFile drops content into a fresh temp dir and returns its path.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleLock = `
[[package]]
name = "app"
version = "0.1.0"
dependencies = ["lib"]

[[package]]
name = "lib"
version = "1.4.2"
source = "registry+https://pkgs.example.com/index"
`

const sampleGraph = `{
	"nodes": [
		{"name": "app", "version": "0.1.0", "source": {"type": "local"}, "root": true},
		{"name": "lib", "version": "1.4.2", "source": {"type": "registry", "url": "https://pkgs.example.com/index"}},
		{"name": "linter", "version": "9.0.0", "source": {"type": "registry", "url": "https://pkgs.example.com/index"}}
	],
	"edges": [
		{"from": 0, "to": 1},
		{"from": 0, "to": 2, "kind": "dev"}
	]
}`

// sampleAuditJSON is the serialized form of a small valid document.
func sampleAuditJSON(t *testing.T) string {
	t.Helper()
	data, err := audit.Marshal(sampleAuditInfo(t))
	require.NoError(t, err)
	return string(data)
}

func sampleAuditInfo(t *testing.T) *audit.Info {
	t.Helper()
	version := func(s string) *semver.Version {
		v, err := semver.StrictNewVersion(s)
		require.NoError(t, err)
		return v
	}
	return &audit.Info{Packages: []audit.Package{
		{
			Name:    "lib",
			Version: version("1.4.2"),
			Source:  audit.RegistrySource("https://pkgs.example.com/index"),
			Kind:    audit.KindRuntime,
		},
		{
			Name:         "app",
			Version:      version("0.1.0"),
			Source:       audit.LocalSource(),
			Kind:         audit.KindRuntime,
			Dependencies: []int{0},
			Root:         true,
		},
	}}
}

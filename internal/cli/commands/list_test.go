package commands

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/depstamp/depstamp/internal/cli/config"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func listContext(output string) context.Context {
	return config.NewContext(context.Background(), &config.Config{Output: output})
}

func TestListCommand_Table(t *testing.T) {
	input := writeTempFile(t, "audit.json", sampleAuditJSON(t))

	out, err := runCommand(t, context.Background(), NewListCommand(), input)
	require.NoError(t, err)

	assert.Contains(t, out, "app (root)")
	assert.Contains(t, out, "lib")
	assert.Contains(t, out, "registry (https://pkgs.example.com/index)")
	assert.Contains(t, out, "2 packages")
}

func TestListCommand_JSON(t *testing.T) {
	input := writeTempFile(t, "audit.json", sampleAuditJSON(t))

	out, err := runCommand(t, listContext("json"), NewListCommand(), input)
	require.NoError(t, err)

	var doc struct {
		Packages []struct {
			Name string `json:"name"`
			Root bool   `json:"root"`
		} `json:"packages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Packages, 2)
	assert.Equal(t, "lib", doc.Packages[0].Name)
	assert.True(t, doc.Packages[1].Root)
}

func TestListCommand_YAML(t *testing.T) {
	input := writeTempFile(t, "audit.json", sampleAuditJSON(t))

	out, err := runCommand(t, listContext("yaml"), NewListCommand(), input)
	require.NoError(t, err)

	var doc struct {
		Packages []struct {
			Name    string `yaml:"name"`
			Version string `yaml:"version"`
		} `yaml:"packages"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Packages, 2)
	assert.Equal(t, "1.4.2", doc.Packages[0].Version)
}

func TestListCommand_NeitherDocumentNorBinary(t *testing.T) {
	input := writeTempFile(t, "notes.txt", "neither JSON nor an executable")

	_, err := runCommand(t, context.Background(), NewListCommand(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), input)
}

func TestRenderSource(t *testing.T) {
	tests := []struct {
		source audit.Source
		want   string
	}{
		{audit.LocalSource(), "local"},
		{audit.PathSource(), "path"},
		{audit.RegistrySource("https://r.example.com"), "registry (https://r.example.com)"},
		{audit.GitSource("https://g.example.com/x.git", ""), "git (https://g.example.com/x.git)"},
		{audit.GitSource("u", "0123456789abcdef"), "git (u@0123456789ab)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, renderSource(tt.source))
	}
}

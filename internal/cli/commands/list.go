package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/depstamp/depstamp/internal/cli/config"
	"github.com/depstamp/depstamp/internal/exe"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <file>",
		Short: "List the packages of an audit document or binary",
		Long: `Render the package list of an audit document. The input may be an
audit JSON file or a compiled binary with embedded audit data.

The output format comes from --output (table, json or yaml).`,
		Example: `  # Table of everything a binary was built from
  depstamp list ./myservice

  # Machine-readable
  depstamp list -o json audit.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := loadInfo(args[0])
			if err != nil {
				return err
			}

			switch config.FromContext(cmd.Context()).Output {
			case "json":
				return listJSON(cmd, info)
			case "yaml":
				return listYAML(cmd, info)
			default:
				return listTable(cmd, info)
			}
		},
	}
	return cmd
}

// loadInfo reads an audit document from either a JSON file or a binary with
// an embedded blob.
func loadInfo(path string) (*audit.Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	info, jsonErr := audit.Unmarshal(data)
	if jsonErr == nil {
		return info, nil
	}

	info, exeErr := exe.Extract(data)
	if exeErr == nil {
		return info, nil
	}
	if errors.Is(exeErr, exe.ErrNotAnExecutable) {
		// Not a binary either; the JSON failure is the useful one.
		return nil, fmt.Errorf("%s: %w", path, jsonErr)
	}
	return nil, fmt.Errorf("%s: %w", path, exeErr)
}

func listTable(cmd *cobra.Command, info *audit.Info) error {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Name", "Version", "Kind", "Source", "Deps"})

	for i, p := range info.Packages {
		name := p.Name
		if p.Root {
			name += " (root)"
		}
		t.AppendRow(table.Row{i, name, p.Version.String(), string(p.Kind), renderSource(p.Source), renderDeps(p.Dependencies)})
	}
	t.Render()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d packages\n", len(info.Packages))
	return nil
}

func listJSON(cmd *cobra.Command, info *audit.Info) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// yamlPackage flattens a package for human-oriented YAML output.
type yamlPackage struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Source       string `yaml:"source"`
	Kind         string `yaml:"kind"`
	Dependencies []int  `yaml:"dependencies,omitempty"`
	Root         bool   `yaml:"root,omitempty"`
}

func listYAML(cmd *cobra.Command, info *audit.Info) error {
	out := struct {
		Packages []yamlPackage `yaml:"packages"`
	}{Packages: make([]yamlPackage, 0, len(info.Packages))}

	for _, p := range info.Packages {
		out.Packages = append(out.Packages, yamlPackage{
			Name:         p.Name,
			Version:      p.Version.String(),
			Source:       renderSource(p.Source),
			Kind:         string(p.Kind),
			Dependencies: p.Dependencies,
			Root:         p.Root,
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	_, _ = cmd.OutOrStdout().Write(data)
	return nil
}

// renderSource folds a source into one human-readable cell.
func renderSource(s audit.Source) string {
	switch s.Type {
	case audit.SourceRegistry:
		return fmt.Sprintf("registry (%s)", s.URL)
	case audit.SourceGit:
		if s.Commit != "" {
			return fmt.Sprintf("git (%s@%s)", s.URL, shortCommit(s.Commit))
		}
		return fmt.Sprintf("git (%s)", s.URL)
	default:
		return string(s.Type)
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func renderDeps(deps []int) string {
	if len(deps) == 0 {
		return "-"
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

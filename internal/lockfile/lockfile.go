// Package lockfile ingests a lock-file-style TOML document and presents it
// as a rich graph for the regular conversion pipeline. Lock files record
// name/version/source triples plus a dependency adjacency list; they do not
// distinguish build-only edges, so every edge is classified as a normal
// (runtime) dependency.
package lockfile

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/depstamp/depstamp/internal/graph"
	"github.com/depstamp/depstamp/pkg/audit"
)

// lockPackage is one [[package]] entry.
type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

type document struct {
	Version  int           `toml:"version"`
	Packages []lockPackage `toml:"package"`
}

// Parse decodes a lock document into a rich graph. The root is the single
// package no other entry depends on; the conversion pipeline then
// normalizes its source to local.
func Parse(data []byte) (*graph.Rich, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &audit.MalformedDocumentError{Err: err}
	}
	if len(doc.Packages) == 0 {
		return nil, &audit.MalformedDocumentError{Err: fmt.Errorf("no [[package]] entries")}
	}

	nodes := make([]graph.Node, len(doc.Packages))
	byName := make(map[string][]int)
	byNameVersion := make(map[string]int)
	for i, p := range doc.Packages {
		if p.Name == "" {
			return nil, &audit.MalformedDocumentError{Err: fmt.Errorf("package entry %d has no name", i)}
		}
		version, err := semver.StrictNewVersion(p.Version)
		if err != nil {
			return nil, &audit.InvalidVersionError{Package: p.Name, Version: p.Version}
		}
		source, err := parseSource(p.Source)
		if err != nil {
			return nil, err
		}
		nodes[i] = graph.Node{Name: p.Name, Version: version, Source: source}
		byName[p.Name] = append(byName[p.Name], i)
		byNameVersion[p.Name+" "+version.String()] = i
	}

	var edges []graph.Edge
	referenced := make([]bool, len(nodes))
	for i, p := range doc.Packages {
		for _, ref := range p.Dependencies {
			target, err := resolve(ref, byName, byNameVersion)
			if err != nil {
				return nil, &audit.MalformedDocumentError{
					Err: fmt.Errorf("package %q: %w", p.Name, err),
				}
			}
			edges = append(edges, graph.Edge{From: i, To: target, Kind: graph.EdgeNormal})
			referenced[target] = true
		}
	}

	roots := 0
	for i := range nodes {
		if !referenced[i] {
			nodes[i].Root = true
			roots++
		}
	}
	if roots != 1 {
		return nil, &audit.InvalidRootError{Count: roots}
	}

	return &graph.Rich{Nodes: nodes, Edges: edges}, nil
}

// Convert parses a lock document and runs the full pipeline, yielding the
// validated compact form.
func Convert(data []byte) (*audit.Info, error) {
	rich, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return graph.Convert(rich)
}

// resolve maps a dependency reference to a package entry. A bare name works
// when the name is unique in the document; entries duplicated across
// versions must be referenced as "name version".
func resolve(ref string, byName map[string][]int, byNameVersion map[string]int) (int, error) {
	fields := strings.Fields(ref)
	switch len(fields) {
	case 1:
		candidates := byName[fields[0]]
		if len(candidates) == 0 {
			return 0, fmt.Errorf("unknown dependency %q", ref)
		}
		if len(candidates) > 1 {
			return 0, fmt.Errorf("ambiguous dependency %q: %d entries share the name", ref, len(candidates))
		}
		return candidates[0], nil
	case 2:
		version, err := semver.StrictNewVersion(fields[1])
		if err != nil {
			return 0, fmt.Errorf("dependency %q has an unparsable version", ref)
		}
		if target, ok := byNameVersion[fields[0]+" "+version.String()]; ok {
			return target, nil
		}
		return 0, fmt.Errorf("unknown dependency %q", ref)
	default:
		return 0, fmt.Errorf("malformed dependency reference %q", ref)
	}
}

// parseSource decodes a lock-file source string. An absent source marks a
// workspace-local package.
func parseSource(s string) (audit.Source, error) {
	switch {
	case s == "":
		return audit.LocalSource(), nil
	case strings.HasPrefix(s, "registry+"):
		return audit.RegistrySource(strings.TrimPrefix(s, "registry+")), nil
	case strings.HasPrefix(s, "git+"):
		url := strings.TrimPrefix(s, "git+")
		commit := ""
		if hash := strings.IndexByte(url, '#'); hash >= 0 {
			url, commit = url[:hash], url[hash+1:]
		}
		return audit.GitSource(url, commit), nil
	case strings.HasPrefix(s, "path+"):
		return audit.PathSource(), nil
	default:
		return audit.Source{}, &audit.UnsupportedSourceError{Tag: s}
	}
}

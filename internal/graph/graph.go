// Package graph reduces a build tool's rich dependency graph to the compact
// audit form. The rich graph may contain duplicate package identities (one
// per feature-set or build-profile instantiation) and per-edge dependency
// kind tags; collapsing groups the duplicates, merges edge kinds, prunes
// development-only subtrees and produces a deterministically ordered
// package list with index-based edges.
package graph

import (
	"encoding/json"
	"errors"

	"github.com/Masterminds/semver/v3"
	"github.com/depstamp/depstamp/pkg/audit"
)

// EdgeKind is the raw dependency-kind tag a build tool attaches to an edge.
type EdgeKind string

const (
	// EdgeNormal marks a dependency needed to run the dependent.
	EdgeNormal EdgeKind = "normal"
	// EdgeBuild marks a dependency needed only to build the dependent.
	EdgeBuild EdgeKind = "build"
	// EdgeDev marks a development- or test-only dependency. Dev edges are
	// never traversed: whatever is reachable only through them does not
	// ship with the artifact and stays out of the audit.
	EdgeDev EdgeKind = "dev"
)

func (k EdgeKind) valid() bool {
	return k == EdgeNormal || k == EdgeBuild || k == EdgeDev
}

// Node is one occurrence of a package in the rich graph. The same
// (name, version, source) identity may occur several times.
type Node struct {
	Name    string
	Version *semver.Version
	Source  audit.Source
	Root    bool
}

type nodeJSON struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Source  audit.Source `json:"source"`
	Root    bool         `json:"root,omitempty"`
}

// UnmarshalJSON decodes a rich node, parsing the version strictly.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	version, err := semver.StrictNewVersion(raw.Version)
	if err != nil {
		return &audit.InvalidVersionError{Package: raw.Name, Version: raw.Version}
	}
	*n = Node{Name: raw.Name, Version: version, Source: raw.Source, Root: raw.Root}
	return nil
}

// MarshalJSON serializes a rich node with its canonical version string.
func (n Node) MarshalJSON() ([]byte, error) {
	version := ""
	if n.Version != nil {
		version = n.Version.String()
	}
	return json.Marshal(nodeJSON{Name: n.Name, Version: version, Source: n.Source, Root: n.Root})
}

// Edge connects two rich nodes by their positions in Rich.Nodes.
type Edge struct {
	From int      `json:"from"`
	To   int      `json:"to"`
	Kind EdgeKind `json:"kind,omitempty"`
}

// UnmarshalJSON decodes an edge. An absent kind means a normal dependency;
// an unrecognized kind tag is rejected.
func (e *Edge) UnmarshalJSON(data []byte) error {
	type plain Edge
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Kind == "" {
		p.Kind = EdgeNormal
	}
	if !p.Kind.valid() {
		return &audit.UnsupportedKindError{Tag: string(p.Kind)}
	}
	*e = Edge(p)
	return nil
}

// Rich is the full dependency graph as reported by a build-metadata
// collaborator, before deduplication.
type Rich struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ParseRich decodes a rich graph document of the shape
// { "nodes": [...], "edges": [...] }.
func ParseRich(data []byte) (*Rich, error) {
	var rich Rich
	if err := json.Unmarshal(data, &rich); err != nil {
		var (
			iv *audit.InvalidVersionError
			us *audit.UnsupportedSourceError
			uk *audit.UnsupportedKindError
		)
		if errors.As(err, &iv) || errors.As(err, &us) || errors.As(err, &uk) {
			return nil, err
		}
		return nil, &audit.MalformedDocumentError{Err: err}
	}
	if rich.Nodes == nil {
		return nil, &audit.MalformedDocumentError{Err: errors.New(`missing "nodes" array`)}
	}
	return &rich, nil
}

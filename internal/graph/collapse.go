package graph

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/depstamp/depstamp/pkg/audit"
)

// identity keys a package across duplicate rich occurrences. Two rich nodes
// denote the same compact package iff name, version and source all match;
// edge kind is the only per-occurrence data that may differ and it is
// merged, never duplicated.
type identity struct {
	name    string
	version string
	source  audit.Source
}

// kindMask accumulates the kinds of every edge pointing at or leaving a
// collapsed package.
type kindMask uint8

const (
	maskNormal kindMask = 1 << iota
	maskBuild
	maskDev
)

func (k EdgeKind) mask() kindMask {
	switch k {
	case EdgeBuild:
		return maskBuild
	case EdgeDev:
		return maskDev
	default:
		return maskNormal
	}
}

// included reports whether edges with this mask carry the package into the
// audit. Dev-only edges do not.
func (m kindMask) included() bool { return m&(maskNormal|maskBuild) != 0 }

// entry is one collapsed package with identity-based edges, before ordering.
type entry struct {
	name    string
	version *semver.Version
	source  audit.Source
	kind    audit.Kind
	root    bool
	deps    map[identity]struct{}
}

// Set is the deduplicated, classified and pruned package set produced by
// Collapse. Edges are still identity-based; Order turns them into indices.
type Set struct {
	entries map[identity]*entry
}

// Len returns the number of packages that survived collapsing.
func (s *Set) Len() int { return len(s.entries) }

// Collapse reduces a rich graph to the unique package set:
//
//  1. nodes group by (name, version, source);
//  2. only packages reachable from the root over normal and build edges are
//     kept, everything reachable solely through dev edges is pruned;
//  3. each kept package's kind is resolved from every incoming included
//     edge across all duplicate occurrences — any normal edge makes it
//     runtime, otherwise it is build (the stronger requirement wins);
//  4. the root's source is normalized to local, since the artifact under
//     audit is not fetched from anywhere;
//  5. outgoing edges collapse to deduplicated target identities.
func Collapse(rich *Rich) (*Set, error) {
	ids := make([]identity, len(rich.Nodes))
	first := make(map[identity]Node)
	for i, n := range rich.Nodes {
		if n.Name == "" {
			return nil, &audit.MalformedDocumentError{Err: fmt.Errorf("rich node %d has empty name", i)}
		}
		if n.Version == nil {
			return nil, &audit.InvalidVersionError{Package: n.Name}
		}
		id := identity{name: n.Name, version: n.Version.String(), source: n.Source}
		ids[i] = id
		if _, seen := first[id]; !seen {
			first[id] = n
		}
	}

	// The root may occur duplicated like any other node; it must collapse
	// to a single identity.
	rootSet := make(map[identity]struct{})
	for i, n := range rich.Nodes {
		if n.Root {
			rootSet[ids[i]] = struct{}{}
		}
	}
	if len(rootSet) != 1 {
		return nil, &audit.InvalidRootError{Count: len(rootSet)}
	}
	var root identity
	for id := range rootSet {
		root = id
	}

	// Collapse edges to identity level, merging kind tags per (from, to).
	out := make(map[identity]map[identity]kindMask)
	for _, e := range rich.Edges {
		if e.From < 0 || e.From >= len(rich.Nodes) || e.To < 0 || e.To >= len(rich.Nodes) {
			return nil, &audit.MalformedDocumentError{
				Err: fmt.Errorf("edge (%d -> %d) references a node outside [0, %d)", e.From, e.To, len(rich.Nodes)),
			}
		}
		kind := e.Kind
		if kind == "" {
			kind = EdgeNormal
		}
		if !kind.valid() {
			return nil, &audit.UnsupportedKindError{Tag: string(kind)}
		}
		from, to := ids[e.From], ids[e.To]
		targets := out[from]
		if targets == nil {
			targets = make(map[identity]kindMask)
			out[from] = targets
		}
		targets[to] |= kind.mask()
	}

	// Reachability from the root over included edges only.
	included := map[identity]struct{}{root: {}}
	queue := []identity{root}
	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]
		for to, mask := range out[from] {
			if !mask.included() {
				continue
			}
			if _, ok := included[to]; ok {
				continue
			}
			included[to] = struct{}{}
			queue = append(queue, to)
		}
	}

	// Incoming kind masks, counting only edges from packages that are
	// themselves included. A dev-only parent must not influence
	// classification.
	in := make(map[identity]kindMask)
	for from, targets := range out {
		if _, ok := included[from]; !ok {
			continue
		}
		for to, mask := range targets {
			if _, ok := included[to]; ok {
				in[to] |= mask
			}
		}
	}

	entries := make(map[identity]*entry, len(included))
	for id := range included {
		n := first[id]
		e := &entry{
			name:    n.Name,
			version: n.Version,
			source:  n.Source,
			root:    id == root,
			deps:    make(map[identity]struct{}),
		}
		switch {
		case e.root:
			e.source = audit.LocalSource()
			e.kind = audit.KindRuntime
		case in[id]&maskNormal != 0:
			e.kind = audit.KindRuntime
		default:
			e.kind = audit.KindBuild
		}
		for to, mask := range out[id] {
			if !mask.included() {
				continue
			}
			if _, ok := included[to]; !ok {
				continue
			}
			// Collapsed self-edges are kept so ordering reports them as
			// the cycles they are instead of silently breaking them.
			e.deps[to] = struct{}{}
		}
		entries[id] = e
	}

	return &Set{entries: entries}, nil
}

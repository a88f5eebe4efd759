package graph

import (
	"sort"

	"github.com/depstamp/depstamp/pkg/audit"
)

// Order linearizes the collapsed set into the final package list.
//
// Dependencies are placed strictly before their dependents, so every
// package's index is greater than all of its dependency indices and a
// consumer can validate the list in one forward pass. The algorithm
// repeatedly selects, from the packages whose dependencies are already
// placed, the least by (name, version, source). That tie-break is a
// determinism contract: two rich graphs differing only in discovery order
// must serialize to identical bytes. A DFS postorder would not give that
// guarantee, since it is sensitive to input edge ordering.
//
// Cycles cannot occur in well-formed build graphs; if one is found it is a
// hard error, never silently broken.
func (s *Set) Order() (*audit.Info, error) {
	entries := make([]*entry, 0, len(s.entries))
	keys := make(map[*entry]identity, len(s.entries))
	for id, e := range s.entries {
		entries = append(entries, e)
		keys[e] = id
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].less(entries[j]) })

	placed := make(map[identity]int, len(entries))
	packages := make([]audit.Package, 0, len(entries))

	for len(packages) < len(entries) {
		picked, firstUnplaced := -1, -1
		for i, e := range entries {
			if _, done := placed[keys[e]]; done {
				continue
			}
			if firstUnplaced < 0 {
				firstUnplaced = i
			}
			if e.ready(placed) {
				picked = i
				break
			}
		}
		if picked < 0 {
			// Nothing is ready: every unplaced package waits on another
			// unplaced one. Report the least of them for context.
			return nil, &audit.InvalidGraphError{
				Package: entries[firstUnplaced].name,
				Reason:  "dependency cycle detected",
			}
		}

		e := entries[picked]
		var deps []int
		for dep := range e.deps {
			deps = append(deps, placed[dep])
		}
		sort.Ints(deps)

		placed[keys[e]] = len(packages)
		packages = append(packages, audit.Package{
			Name:         e.name,
			Version:      e.version,
			Source:       e.source,
			Kind:         e.kind,
			Dependencies: deps,
			Root:         e.root,
		})
	}

	info := &audit.Info{Packages: packages}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// ready reports whether every dependency of the entry is already placed.
func (e *entry) ready(placed map[identity]int) bool {
	for dep := range e.deps {
		if _, ok := placed[dep]; !ok {
			return false
		}
	}
	return true
}

// less orders entries by name, then semantic version, then source, giving
// the fixed tie-break for packages with no ordering relationship.
func (e *entry) less(o *entry) bool {
	if e.name != o.name {
		return e.name < o.name
	}
	if c := e.version.Compare(o.version); c != 0 {
		return c < 0
	}
	// Compare raw version strings too: semver ordering ignores build
	// metadata, but distinct spellings are distinct identities here.
	if ev, ov := e.version.String(), o.version.String(); ev != ov {
		return ev < ov
	}
	if e.source.Type != o.source.Type {
		return e.source.Type < o.source.Type
	}
	if e.source.URL != o.source.URL {
		return e.source.URL < o.source.URL
	}
	return e.source.Commit < o.source.Commit
}

// Convert is the full pipeline from rich graph to validated compact
// document: collapse, classify, prune, then order.
func Convert(rich *Rich) (*audit.Info, error) {
	set, err := Collapse(rich)
	if err != nil {
		return nil, err
	}
	return set.Order()
}

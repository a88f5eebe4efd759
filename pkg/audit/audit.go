// Package audit defines the compact dependency graph that gets embedded in
// compiled binaries for supply-chain auditing: the package list, its JSON
// interchange format, and the validation both share.
//
// The document shape is { "packages": [...] } where each package carries
// name, version, source, kind, dependency indices and an optional root flag.
// Field names and tag spellings are stable across versions so previously
// embedded documents keep deserializing.
package audit

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/Masterminds/semver/v3"
)

// SourceType tags the provenance variant of a package.
type SourceType string

const (
	// SourceLocal marks a package with no externally fetchable origin,
	// such as the audited artifact itself or a workspace member.
	SourceLocal SourceType = "local"
	// SourceRegistry marks a package fetched from a package registry.
	SourceRegistry SourceType = "registry"
	// SourceGit marks a package fetched from a git repository at a commit.
	SourceGit SourceType = "git"
	// SourcePath marks a package resolved from a filesystem path.
	SourcePath SourceType = "path"
)

// Source describes where a package was obtained from. It is a closed tagged
// variant: an unrecognized type tag is a hard deserialization error, never a
// silently ignored default.
type Source struct {
	Type   SourceType `json:"type"`
	URL    string     `json:"url,omitempty"`
	Commit string     `json:"commit,omitempty"`
}

// LocalSource returns the source of the audited artifact itself.
func LocalSource() Source { return Source{Type: SourceLocal} }

// RegistrySource returns a registry source with the given index URL.
func RegistrySource(url string) Source { return Source{Type: SourceRegistry, URL: url} }

// GitSource returns a git source pinned to a commit.
func GitSource(url, commit string) Source { return Source{Type: SourceGit, URL: url, Commit: commit} }

// PathSource returns a filesystem path source.
func PathSource() Source { return Source{Type: SourcePath} }

// Reproducible reports whether this exact artifact can be fetched again
// from its origin. Local and path packages never qualify.
func (s Source) Reproducible() bool {
	return s.Type == SourceRegistry || s.Type == SourceGit
}

func (s Source) valid() bool {
	switch s.Type {
	case SourceLocal, SourceRegistry, SourceGit, SourcePath:
		return true
	}
	return false
}

// UnmarshalJSON decodes a source and rejects unknown type tags.
func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return &MalformedDocumentError{Err: err}
	}
	if !Source(p).valid() {
		return &UnsupportedSourceError{Tag: string(p.Type)}
	}
	*s = Source(p)
	return nil
}

// Kind classifies whether a package is needed to run the program or only to
// build it.
type Kind string

const (
	// KindRuntime marks a package the program needs at run time.
	KindRuntime Kind = "runtime"
	// KindBuild marks a package needed only to build the program.
	KindBuild Kind = "build"
)

func (k Kind) valid() bool { return k == KindRuntime || k == KindBuild }

// UnmarshalJSON decodes a kind and rejects unknown tags. An absent kind
// field never reaches this method and defaults to runtime.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &MalformedDocumentError{Err: err}
	}
	if !Kind(s).valid() {
		return &UnsupportedKindError{Tag: s}
	}
	*k = Kind(s)
	return nil
}

// Package is one node in the compact dependency graph. Dependencies refer to
// positions in the surrounding Info.Packages list, never to raw build-graph
// nodes, and always point at smaller indices.
type Package struct {
	Name         string
	Version      *semver.Version
	Source       Source
	Kind         Kind
	Dependencies []int
	Root         bool
}

// packageJSON is the serialized shape of Package. The version travels as a
// string so parse failures can name the offending package.
type packageJSON struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Source       Source `json:"source"`
	Kind         Kind   `json:"kind,omitempty"`
	Dependencies []int  `json:"dependencies,omitempty"`
	Root         bool   `json:"root,omitempty"`
}

// MarshalJSON serializes the package with its canonical version string.
func (p Package) MarshalJSON() ([]byte, error) {
	version := ""
	if p.Version != nil {
		version = p.Version.String()
	}
	return json.Marshal(packageJSON{
		Name:         p.Name,
		Version:      version,
		Source:       p.Source,
		Kind:         p.Kind,
		Dependencies: p.Dependencies,
		Root:         p.Root,
	})
}

// UnmarshalJSON decodes a package, parsing the version strictly as a
// semantic version. An absent kind defaults to runtime.
func (p *Package) UnmarshalJSON(data []byte) error {
	var raw packageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	version, err := semver.StrictNewVersion(raw.Version)
	if err != nil {
		return &InvalidVersionError{Package: raw.Name, Version: raw.Version}
	}
	if raw.Kind == "" {
		raw.Kind = KindRuntime
	}
	*p = Package{
		Name:         raw.Name,
		Version:      version,
		Source:       raw.Source,
		Kind:         raw.Kind,
		Dependencies: raw.Dependencies,
		Root:         raw.Root,
	}
	return nil
}

// Equal reports structural equality with another package.
func (p Package) Equal(o Package) bool {
	if p.Name != o.Name || p.Source != o.Source || p.Kind != o.Kind || p.Root != o.Root {
		return false
	}
	if (p.Version == nil) != (o.Version == nil) {
		return false
	}
	if p.Version != nil && !p.Version.Equal(o.Version) {
		return false
	}
	return slices.Equal(p.Dependencies, o.Dependencies)
}

// Info is the top-level audit document: every package the audited artifact
// was built from, in dependency-before-dependent order.
type Info struct {
	Packages []Package `json:"packages"`
}

// Root returns the package describing the audited artifact. It expects a
// validated document.
func (i *Info) Root() (Package, bool) {
	for _, p := range i.Packages {
		if p.Root {
			return p, true
		}
	}
	return Package{}, false
}

// Equal reports structural equality with another document.
func (i *Info) Equal(other *Info) bool {
	if len(i.Packages) != len(other.Packages) {
		return false
	}
	for idx := range i.Packages {
		if !i.Packages[idx].Equal(other.Packages[idx]) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants of the document:
// non-empty names, parsed versions, recognized source and kind tags,
// dependency indices strictly below their dependent's own index, and
// exactly one root package. It is run on construction and again on every
// deserialization; the input is never trusted.
func (i *Info) Validate() error {
	roots := 0
	for idx, p := range i.Packages {
		if p.Name == "" {
			return &MalformedDocumentError{Err: errors.New("package with empty name")}
		}
		if p.Version == nil {
			return &InvalidVersionError{Package: p.Name}
		}
		if !p.Source.valid() {
			return &UnsupportedSourceError{Tag: string(p.Source.Type)}
		}
		if !p.Kind.valid() {
			return &UnsupportedKindError{Tag: string(p.Kind)}
		}
		for _, dep := range p.Dependencies {
			// Forward and self references are rejected outright, which
			// also makes cycles unrepresentable.
			if dep < 0 || dep >= idx {
				return &InvalidGraphError{Package: p.Name, Index: dep, Position: idx}
			}
		}
		if p.Root {
			roots++
		}
	}
	if roots != 1 {
		return &InvalidRootError{Count: roots}
	}
	return nil
}

// Marshal validates the document and serializes it to its canonical JSON
// form. Marshaling equal documents yields identical bytes.
func Marshal(info *Info) ([]byte, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(info)
}

// Unmarshal parses and fully re-validates an audit document. There is no
// partial success: either the whole document validates or an error from the
// taxonomy in errors.go is returned.
func Unmarshal(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		if taxonomyError(err) {
			return nil, err
		}
		return nil, &MalformedDocumentError{Err: err}
	}
	if info.Packages == nil {
		return nil, &MalformedDocumentError{Err: errors.New(`missing "packages" array`)}
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

// taxonomyError reports whether err already carries one of the audit error
// types, so Unmarshal does not re-wrap it as a malformed document.
func taxonomyError(err error) bool {
	var (
		iv *InvalidVersionError
		us *UnsupportedSourceError
		uk *UnsupportedKindError
		md *MalformedDocumentError
	)
	return errors.As(err, &iv) || errors.As(err, &us) || errors.As(err, &uk) || errors.As(err, &md)
}

package audit

import "fmt"

// The error types below form a closed taxonomy: every way a document or
// graph can be rejected maps to exactly one of them, and each carries the
// offending package identity or enough context to diagnose without
// rerunning the conversion. None are recovered internally.

// InvalidVersionError reports a version string that does not parse as a
// semantic version.
type InvalidVersionError struct {
	Package string
	Version string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("package %q: invalid semantic version %q", e.Package, e.Version)
}

// InvalidGraphError reports a dependency structure that cannot be valid:
// an out-of-bounds, self-referential or forward dependency index, or a
// dependency cycle.
type InvalidGraphError struct {
	Package  string
	Index    int    // offending dependency index, meaningless when Reason is set
	Position int    // position of the package in the list
	Reason   string // non-index failure, e.g. a cycle
}

func (e *InvalidGraphError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("package %q: invalid dependency graph: %s", e.Package, e.Reason)
	}
	return fmt.Sprintf("package %q at position %d: dependency index %d out of range [0, %d)",
		e.Package, e.Position, e.Index, e.Position)
}

// InvalidRootError reports a document or graph with zero or several root
// packages; a well-formed audit describes exactly one artifact.
type InvalidRootError struct {
	Count int
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("expected exactly one root package, found %d", e.Count)
}

// MalformedDocumentError reports input that does not match the expected
// document shape.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed audit document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// UnsupportedSourceError reports a source type tag this version of the
// model does not recognize.
type UnsupportedSourceError struct {
	Tag string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported package source %q", e.Tag)
}

// UnsupportedKindError reports a dependency kind tag this version of the
// model does not recognize.
type UnsupportedKindError struct {
	Tag string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported dependency kind %q", e.Tag)
}

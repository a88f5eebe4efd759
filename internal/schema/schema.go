// Package schema emits a static JSON Schema document describing the audit
// interchange format, for external validators. It is derived from mirror
// types with no instance data and has no effect on (de)serialization.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// The mirror types below restate the serialized shape of the audit
// document. They must track pkg/audit field for field; schema_test.go
// cross-checks the two.

type sourceDoc struct {
	Type   string `json:"type" jsonschema:"enum=local,enum=registry,enum=git,enum=path,description=Provenance variant of the package"`
	URL    string `json:"url,omitempty" jsonschema:"description=Registry index or git repository URL"`
	Commit string `json:"commit,omitempty" jsonschema:"description=Git commit the package was fetched at"`
}

type packageDoc struct {
	Name         string    `json:"name" jsonschema:"minLength=1,description=Package identifier"`
	Version      string    `json:"version" jsonschema:"description=Semantic version"`
	Source       sourceDoc `json:"source"`
	Kind         string    `json:"kind,omitempty" jsonschema:"enum=runtime,enum=build,default=runtime,description=Whether the package is needed at run time or only to build"`
	Dependencies []int     `json:"dependencies,omitempty" jsonschema:"description=Indices of direct dependencies in the packages list"`
	Root         bool      `json:"root,omitempty" jsonschema:"description=True on the single package describing the audited artifact"`
}

type infoDoc struct {
	Packages []packageDoc `json:"packages" jsonschema:"description=Every package the artifact was built from, dependencies before dependents"`
}

// Generate returns the JSON Schema for the audit document format.
func Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&infoDoc{})
	s.Title = "Dependency audit document"
	s.Description = "Compact dependency graph embedded in a binary for supply-chain auditing."
	return json.MarshalIndent(s, "", "  ")
}

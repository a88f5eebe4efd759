package graph

import (
	"bytes"
	"errors"
	"testing"

	"github.com/depstamp/depstamp/pkg/audit"
)

// TestConvert_ThreePackageChain walks the canonical small case end to end:
// app depends on lib at runtime, lib needs gen to build. The compact list
// places dependencies first, so the result is [gen, lib, app].
func TestConvert_ThreePackageChain(t *testing.T) {
	rich := &Rich{
		Nodes: []Node{
			rootNode(t, "app", "0.1.0"),
			node(t, "lib", "1.0.0", testRegistry),
			node(t, "gen", "2.0.0", testRegistry),
		},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 1, To: 2, Kind: EdgeBuild},
		},
	}

	info, err := Convert(rich)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(info.Packages) != 3 {
		t.Fatalf("got %d packages, want 3", len(info.Packages))
	}

	gen, lib, app := info.Packages[0], info.Packages[1], info.Packages[2]

	if gen.Name != "gen" || gen.Kind != audit.KindBuild || len(gen.Dependencies) != 0 {
		t.Errorf("packages[0] = %+v, want gen/build with no deps", gen)
	}
	if gen.Source != testRegistry {
		t.Errorf("gen source = %v, want registry", gen.Source)
	}

	if lib.Name != "lib" || lib.Kind != audit.KindRuntime {
		t.Errorf("packages[1] = %+v, want lib/runtime", lib)
	}
	if len(lib.Dependencies) != 1 || lib.Dependencies[0] != 0 {
		t.Errorf("lib deps = %v, want [0]", lib.Dependencies)
	}

	if app.Name != "app" || !app.Root || app.Source != audit.LocalSource() {
		t.Errorf("packages[2] = %+v, want local root app", app)
	}
	if len(app.Dependencies) != 1 || app.Dependencies[0] != 1 {
		t.Errorf("app deps = %v, want [1]", app.Dependencies)
	}
}

// TestConvert_Deterministic permutes node and edge discovery order and
// requires byte-identical serialized output. This is the contract that lets
// rebuilt binaries embed identical audit blobs.
func TestConvert_Deterministic(t *testing.T) {
	app := rootNode(t, "app", "0.1.0")
	zlib := node(t, "zlib", "1.0.0", testRegistry)
	alpha := node(t, "alpha", "2.0.0", testRegistry)
	mid := node(t, "mid", "1.5.0", testRegistry)

	a := &Rich{
		Nodes: []Node{app, zlib, alpha, mid},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 0, To: 3, Kind: EdgeNormal},
			{From: 3, To: 2, Kind: EdgeBuild},
		},
	}
	b := &Rich{
		Nodes: []Node{mid, alpha, app, zlib},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeBuild},
			{From: 2, To: 0, Kind: EdgeNormal},
			{From: 2, To: 3, Kind: EdgeNormal},
		},
	}

	infoA, err := Convert(a)
	if err != nil {
		t.Fatalf("Convert(a) error = %v", err)
	}
	infoB, err := Convert(b)
	if err != nil {
		t.Fatalf("Convert(b) error = %v", err)
	}

	dataA, err := audit.Marshal(infoA)
	if err != nil {
		t.Fatalf("Marshal(a) error = %v", err)
	}
	dataB, err := audit.Marshal(infoB)
	if err != nil {
		t.Fatalf("Marshal(b) error = %v", err)
	}
	if !bytes.Equal(dataA, dataB) {
		t.Errorf("permuted inputs serialized differently:\n a=%s\n b=%s", dataA, dataB)
	}
}

// TestOrder_TieBreakByName checks independent packages come out in name
// order, not insertion or readiness order.
func TestOrder_TieBreakByName(t *testing.T) {
	rich := &Rich{
		Nodes: []Node{
			rootNode(t, "app", "0.1.0"),
			node(t, "zeta", "1.0.0", testRegistry),
			node(t, "alpha", "1.0.0", testRegistry),
			node(t, "mu", "1.0.0", testRegistry),
		},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 0, To: 2, Kind: EdgeNormal},
			{From: 0, To: 3, Kind: EdgeNormal},
		},
	}

	info, err := Convert(rich)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	var names []string
	for _, p := range info.Packages {
		names = append(names, p.Name)
	}
	want := []string{"alpha", "mu", "zeta", "app"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

// TestOrder_TieBreakByVersion: same name at two versions orders ascending.
func TestOrder_TieBreakByVersion(t *testing.T) {
	rich := &Rich{
		Nodes: []Node{
			rootNode(t, "app", "0.1.0"),
			node(t, "lib", "2.0.0", testRegistry),
			node(t, "lib", "1.0.0", testRegistry),
		},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 0, To: 2, Kind: EdgeNormal},
		},
	}

	info, err := Convert(rich)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if info.Packages[0].Version.String() != "1.0.0" || info.Packages[1].Version.String() != "2.0.0" {
		t.Errorf("versions = [%s, %s], want ascending", info.Packages[0].Version, info.Packages[1].Version)
	}
}

func TestOrder_IndexInvariant(t *testing.T) {
	// A diamond with a build-only leg; whatever the order, every package
	// must list only smaller indices.
	rich := &Rich{
		Nodes: []Node{
			rootNode(t, "app", "0.1.0"),
			node(t, "left", "1.0.0", testRegistry),
			node(t, "right", "1.0.0", testRegistry),
			node(t, "base", "1.0.0", testRegistry),
		},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 0, To: 2, Kind: EdgeBuild},
			{From: 1, To: 3, Kind: EdgeNormal},
			{From: 2, To: 3, Kind: EdgeNormal},
		},
	}

	info, err := Convert(rich)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	for i, p := range info.Packages {
		for _, dep := range p.Dependencies {
			if dep >= i {
				t.Errorf("packages[%d] (%s) lists dependency index %d", i, p.Name, dep)
			}
		}
	}
}

func TestOrder_CycleIsAnError(t *testing.T) {
	rich := &Rich{
		Nodes: []Node{
			rootNode(t, "app", "0.1.0"),
			node(t, "ping", "1.0.0", testRegistry),
			node(t, "pong", "1.0.0", testRegistry),
		},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 1, To: 2, Kind: EdgeNormal},
			{From: 2, To: 1, Kind: EdgeNormal},
		},
	}

	_, err := Convert(rich)
	var gerr *audit.InvalidGraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("Convert() error = %v, want InvalidGraphError", err)
	}
	if gerr.Reason == "" {
		t.Errorf("cycle error carries no reason: %v", gerr)
	}
}

func TestOrder_SelfEdgeIsACycle(t *testing.T) {
	// Duplicate occurrences of one identity depending on each other
	// collapse into a self-edge, which must surface as a cycle.
	rich := &Rich{
		Nodes: []Node{
			rootNode(t, "app", "0.1.0"),
			node(t, "lib", "1.0.0", testRegistry),
			node(t, "lib", "1.0.0", testRegistry),
		},
		Edges: []Edge{
			{From: 0, To: 1, Kind: EdgeNormal},
			{From: 1, To: 2, Kind: EdgeNormal},
		},
	}

	_, err := Convert(rich)
	var gerr *audit.InvalidGraphError
	if !errors.As(err, &gerr) {
		t.Errorf("Convert() error = %v, want InvalidGraphError", err)
	}
}

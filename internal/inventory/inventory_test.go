package inventory

import (
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testInfo(t *testing.T, depName, depVersion string) *audit.Info {
	t.Helper()
	version := func(s string) *semver.Version {
		v, err := semver.StrictNewVersion(s)
		require.NoError(t, err)
		return v
	}
	return &audit.Info{Packages: []audit.Package{
		{
			Name:    depName,
			Version: version(depVersion),
			Source:  audit.RegistrySource("https://pkgs.example.com/index"),
			Kind:    audit.KindRuntime,
		},
		{
			Name:         "app",
			Version:      version("0.1.0"),
			Source:       audit.LocalSource(),
			Kind:         audit.KindRuntime,
			Dependencies: []int{0},
			Root:         true,
		},
	}}
}

func TestOpen_CreatesSchema(t *testing.T) {
	store := openTestStore(t)

	scans, err := store.ListScans()
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".depstamp", "inventory.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.ListScans()
	assert.NoError(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveScan("/usr/bin/app", testInfo(t, "lib", "1.0.0")))
}

func TestSaveScan_AndList(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveScan("/usr/bin/one", testInfo(t, "lib", "1.0.0")))
	require.NoError(t, store.SaveScan("/usr/bin/two", testInfo(t, "lib", "2.0.0")))

	scans, err := store.ListScans()
	require.NoError(t, err)
	require.Len(t, scans, 2)
	for _, sc := range scans {
		assert.Equal(t, 2, sc.PackageCount)
		assert.False(t, sc.ScannedAt.IsZero())
	}
}

func TestSaveScan_ReplacesPreviousScan(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveScan("/usr/bin/app", testInfo(t, "lib", "1.0.0")))
	require.NoError(t, store.SaveScan("/usr/bin/app", testInfo(t, "lib", "1.1.0")))

	scans, err := store.ListScans()
	require.NoError(t, err)
	require.Len(t, scans, 1, "re-scanning a path must not duplicate it")

	occ, err := store.FindPackage("lib")
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, "1.1.0", occ[0].Version, "old scan rows must be gone")
}

func TestFindPackage(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveScan("/usr/bin/b", testInfo(t, "lib", "2.0.0")))
	require.NoError(t, store.SaveScan("/usr/bin/a", testInfo(t, "lib", "1.0.0")))
	require.NoError(t, store.SaveScan("/usr/bin/c", testInfo(t, "other", "3.0.0")))

	occ, err := store.FindPackage("lib")
	require.NoError(t, err)
	require.Len(t, occ, 2)

	// Ordered by binary path for stable output.
	assert.Equal(t, "/usr/bin/a", occ[0].BinaryPath)
	assert.Equal(t, "1.0.0", occ[0].Version)
	assert.Equal(t, "/usr/bin/b", occ[1].BinaryPath)
	assert.Equal(t, "2.0.0", occ[1].Version)
	assert.Equal(t, audit.KindRuntime, occ[0].Kind)

	occ, err = store.FindPackage("ghost")
	require.NoError(t, err)
	assert.Empty(t, occ)
}

package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/depstamp/depstamp/internal/exe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobCommand_FromAuditDocument(t *testing.T) {
	input := writeTempFile(t, "audit.json", sampleAuditJSON(t))
	outPath := filepath.Join(t.TempDir(), "blob.zlib")

	out, err := runCommand(t, context.Background(), NewBlobCommand(), "--out", outPath, input)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 packages")

	blob, err := os.ReadFile(outPath)
	require.NoError(t, err)

	info, err := exe.Decode(blob)
	require.NoError(t, err)
	assert.True(t, sampleAuditInfo(t).Equal(info))
}

func TestBlobCommand_FromLockfile(t *testing.T) {
	input := writeTempFile(t, "app.lock", sampleLock)
	outPath := filepath.Join(t.TempDir(), "blob.zlib")

	_, err := runCommand(t, context.Background(), NewBlobCommand(), "--format", "lock", "--out", outPath, input)
	require.NoError(t, err)

	blob, err := os.ReadFile(outPath)
	require.NoError(t, err)
	info, err := exe.Decode(blob)
	require.NoError(t, err)
	assert.Len(t, info.Packages, 2)
}

func TestBlobCommand_RequiresOut(t *testing.T) {
	input := writeTempFile(t, "audit.json", sampleAuditJSON(t))

	_, err := runCommand(t, context.Background(), NewBlobCommand(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out is required")
}

func TestBlobCommand_RejectsInvalidDocument(t *testing.T) {
	input := writeTempFile(t, "audit.json", `{"packages":[]}`)
	outPath := filepath.Join(t.TempDir(), "blob.zlib")

	_, err := runCommand(t, context.Background(), NewBlobCommand(), "--out", outPath, input)
	require.Error(t, err)
	assert.NoFileExists(t, outPath)
}

package commands

import (
	"context"
	"testing"

	"github.com/depstamp/depstamp/internal/exe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCommand_NotAnExecutable(t *testing.T) {
	input := writeTempFile(t, "notes.txt", "just text, no audit data")

	_, err := runCommand(t, context.Background(), NewExtractCommand(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, exe.ErrNotAnExecutable)
	assert.Contains(t, err.Error(), input, "the error must name the offending file")
}

func TestExtractCommand_MissingFile(t *testing.T) {
	_, err := runCommand(t, context.Background(), NewExtractCommand(), "/nonexistent/binary")
	assert.Error(t, err)
}

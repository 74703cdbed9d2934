package filemode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	assert.True(t, Dir.IsDir())
	assert.True(t, Regular.IsRegular())
	assert.False(t, Regular.IsExecutable())
	assert.True(t, Executable.IsExecutable())
	assert.True(t, Symlink.IsSymlink())
	assert.True(t, Submodule.IsSubmodule())
}

func TestString(t *testing.T) {
	assert.Equal(t, "040000", Dir.String())
	assert.Equal(t, "100644", Regular.String())
	assert.Equal(t, "100755", Executable.String())
	assert.Equal(t, "120000", Symlink.String())
	assert.Equal(t, "160000", Submodule.String())
}

func TestParse(t *testing.T) {
	m, err := Parse("100644")
	require.NoError(t, err)
	assert.Equal(t, Regular, m)

	m, err = Parse("40000")
	require.NoError(t, err)
	assert.True(t, m.IsDir())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-octal")
	assert.Error(t, err)
}

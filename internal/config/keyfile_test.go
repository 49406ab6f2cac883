package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte(contents), perm))
	// WriteFile is subject to the umask
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestVerifyPermissions(t *testing.T) {
	for _, tt := range []struct {
		perm os.FileMode
		ok   bool
	}{
		{0600, true},
		{0400, true},
		{0644, false},
		{0640, false},
		{0660, false},
		{0700, false},
	} {
		err := VerifyPermissions(writeFile(t, "key\n", tt.perm))
		if tt.ok {
			assert.NoError(t, err, "%s", tt.perm)
		} else {
			assert.Error(t, err, "%s", tt.perm)
		}
	}
}

func TestReadKeyFile(t *testing.T) {
	key, err := ReadKeyFile(writeFile(t, "  s3cr3t \nsecond line\n", 0600))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", key)

	_, err = ReadKeyFile(writeFile(t, "\n", 0600))
	assert.ErrorContains(t, err, "is empty")

	_, err = ReadKeyFile(writeFile(t, "", 0600))
	assert.Error(t, err)

	_, err = ReadKeyFile(writeFile(t, "s3cr3t\n", 0644))
	assert.ErrorContains(t, err, "invalid permissions")

	_, err = ReadKeyFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNoKeyFile)
}

func TestWriteKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, WriteKeyFile(path, "s3cr3t"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	key, err := ReadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", key)

	assert.Error(t, WriteKeyFile(path, "other"), "never overwrites")
}

func TestKey(t *testing.T) {
	c := Config{APIKey: "inline", APIKeyFile: filepath.Join(t.TempDir(), "missing")}
	key, err := c.Key()
	require.NoError(t, err)
	assert.Equal(t, "inline", key)

	c.APIKey = ""
	_, err = c.Key()
	assert.ErrorIs(t, err, ErrNoKeyFile)

	c.APIKeyFile = writeFile(t, "from-file\n", 0400)
	key, err = c.Key()
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)
}

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"b.hcl",
		"a.HCL",
		"notes.txt",
		"nested/c.hcl",
		".git/ignored.hcl",
		"nested/.cache/ignored.hcl",
	} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := FindFiles(root, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.HCL"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "nested", "c.hcl"),
	}, files)
}

func TestFindFiles_Errors(t *testing.T) {
	_, err := FindFiles(filepath.Join(t.TempDir(), "missing"), ".hcl")
	assert.Error(t, err)

	assert.Panics(t, func() { _, _ = FindFiles(".", "") })
}

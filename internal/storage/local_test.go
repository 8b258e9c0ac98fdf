package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangyuyi/feather-trace/internal/errors"
)

func TestIsIgnoredDir(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"@Recycle", true},
		{"#recycle", true},
		{"$RECYCLE.BIN", true},
		{"System Volume Information", true},
		{"@eaDir", true},
		{".hidden", true},
		{"Photos2023", false},
		{"20231001_Tokyo", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsIgnoredDir(tt.name), tt.name)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestListRecursiveSkipsIgnoredTrees(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "trip", "a.jpg"), []byte("a"))
	writeFile(t, filepath.Join(root, "@Recycle", "b.jpg"), []byte("b"))
	writeFile(t, filepath.Join(root, ".hidden.jpg"), []byte("c"))

	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	entries, err := provider.List(root, true)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		if !e.IsDir {
			names = append(names, e.Name)
		}
	}
	assert.Equal(t, []string{"a.jpg"}, names,
		"recycle-bin trees and dotfiles are invisible to the scanner")
}

func TestAllowedRootsConfinement(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.jpg"), []byte("x"))

	provider, err := NewLocalProvider([]string{allowed})
	require.NoError(t, err)

	_, err = provider.List(outside, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))

	_, err = provider.ReadBytes(filepath.Join(outside, "secret.jpg"))
	assert.True(t, errors.Is(err, ErrAccessDenied))

	assert.False(t, provider.Exists(filepath.Join(outside, "secret.jpg")))

	_, ok := provider.LocalPath(filepath.Join(outside, "secret.jpg"))
	assert.False(t, ok)
}

func TestAllowedRootsPrefixIsNotEnough(t *testing.T) {
	base := t.TempDir()
	allowed := filepath.Join(base, "photos")
	sibling := filepath.Join(base, "photos-other")
	writeFile(t, filepath.Join(allowed, "a.jpg"), []byte("a"))
	writeFile(t, filepath.Join(sibling, "b.jpg"), []byte("b"))

	provider, err := NewLocalProvider([]string{allowed})
	require.NoError(t, err)

	_, err = provider.ReadBytes(filepath.Join(allowed, "a.jpg"))
	require.NoError(t, err)

	// "photos-other" shares a string prefix with "photos" but is a
	// different tree.
	_, err = provider.ReadBytes(filepath.Join(sibling, "b.jpg"))
	assert.True(t, errors.Is(err, ErrAccessDenied))
}

func TestMoveCreatesParents(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src.jpg")
	dst := filepath.Join(root, "2023", "Tokyo", "dst.jpg")
	writeFile(t, src, []byte("payload"))

	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	require.NoError(t, provider.Move(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.NoFileExists(t, src)
}

func TestWriteBytesAndDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nested", "file.txt")

	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	require.NoError(t, provider.WriteBytes(path, []byte("hello")))
	assert.True(t, provider.Exists(path))

	data, err := provider.ReadBytes(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, provider.Delete(path))
	assert.False(t, provider.Exists(path))
}

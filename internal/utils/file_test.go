package utils

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	d := filepath.Join(dir, "d")
	writeFile(t, a, "hello")
	writeFile(t, b, "hello")
	writeFile(t, c, "hellp")
	writeFile(t, d, "hello!")

	same, err := SameContent(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = SameContent(a, c)
	require.NoError(t, err)
	assert.False(t, same, "same length, different digest")

	same, err = SameContent(a, d)
	require.NoError(t, err)
	assert.False(t, same, "different length")

	_, err = SameContent(a, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCopyFileExclusive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "dst.txt")
	writeFile(t, src, "payload")

	require.NoError(t, CopyFileExclusive(src, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	err = CopyFileExclusive(src, dst)
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.txt")
	dst := filepath.Join(dir, "old.txt")
	writeFile(t, src, "new content")
	writeFile(t, dst, "old")

	require.NoError(t, ReplaceFile(src, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Chmod(src, 0o755))
		require.NoError(t, ReplaceFile(src, dst))
		info, err := os.Stat(dst)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	require.NoError(t, CopyDir(src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
	assert.DirExists(t, filepath.Join(dst, "empty"))
}

func TestReadWriteLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta", "list")

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, WriteLines(path, []string{"a", "b/c"}))
	lines, err = ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b/c"}, lines)

	writeFile(t, path, "x\r\n\n  \ny\n")
	lines, err = ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, lines)

	require.NoError(t, WriteLines(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), "12345")
	writeFile(t, filepath.Join(dir, "nested", "b"), "123")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	size, err := DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	_, err = DirSize(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

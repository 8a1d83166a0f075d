package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/openmined/syftbackup/internal/differ"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/openmined/syftbackup/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMissingSource(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), "", differ.Literal{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceMissing)

	var ioError *IOError
	assert.ErrorAs(t, err, &ioError)
}

func TestComputeDiffFirstPass(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "alpha")
	a.write("docs/b.txt", "bravo")
	require.NoError(t, os.MkdirAll(filepath.Join(a.source, "empty"), 0o755))

	res := a.full()

	assert.Len(t, res.NewFiles, 2)
	assert.Contains(t, res.NewFiles, "a.txt")
	assert.Contains(t, res.NewFiles, "docs/b.txt")
	assert.Empty(t, res.ModifiedFiles)
	assert.Empty(t, res.DeletedFiles)
	assert.Equal(t, []string{"docs", "empty"}, res.NewFolders)
	assert.Empty(t, res.DeletedFolders)

	assert.Equal(t, int64(2), res.Stats.ExaminedFiles)
	assert.Equal(t, int64(10), res.Stats.ExaminedBytes)
	assert.Equal(t, int64(2), res.Stats.NewFiles)
	assert.True(t, res.Stats.HasChanges())
}

func TestComputeDiffClassifiesChanges(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "1")
	a.write("b.txt", "2")
	a.full()

	a.write("a.txt", "1 changed")
	a.remove("b.txt")
	a.write("c.txt", "3")
	res := a.incremental()

	assert.Equal(t, []string{"a.txt"}, sortedKeys(res.ModifiedFiles))
	assert.Equal(t, []string{"b.txt"}, res.DeletedFiles)
	assert.Equal(t, []string{"c.txt"}, sortedKeys(res.NewFiles))
	assert.Empty(t, res.NewFolders)
	assert.Empty(t, res.DeletedFolders)

	assert.Equal(t, int64(1), res.Stats.ModifiedFiles)
	assert.Equal(t, int64(1), res.Stats.DeletedFiles)
	assert.Equal(t, int64(len("1 changed")), res.Stats.DeltaBytes)

	gen := a.gens[1]
	assert.FileExists(t, filepath.Join(DeltaDir(gen.Content), "a.txt"))
	assert.FileExists(t, filepath.Join(BaseDir(gen.Content), "c.txt"))
	assert.NoFileExists(t, filepath.Join(BaseDir(gen.Content), "a.txt"))

	deleted, err := utils.ReadLines(DeletedFilesFile(gen.Signature))
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, deleted)
}

func TestComputeDiffUnchanged(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "same")
	a.write("dir/b.txt", "same too")
	a.full()

	eng, err := New(a.source, a.base, differ.Literal{}, WithStagingDir(a.root))
	require.NoError(t, err)
	defer eng.Close()

	res, fresh, err := eng.ComputeDiff(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.False(t, res.Stats.HasChanges())
	assert.Equal(t, int64(2), res.Stats.ExaminedFiles)

	sigs, err := LoadSignatureIndex(eng.Staging().SignatureRoot())
	require.NoError(t, err)
	assert.Empty(t, sigs, "unchanged files keep no fresh signature")
}

func TestComputeDiffForceFull(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "x")
	a.full()

	res := a.full()
	assert.Equal(t, []string{"a.txt"}, sortedKeys(res.NewFiles))
	assert.Empty(t, res.ModifiedFiles)
	assert.Empty(t, res.DeletedFiles)
}

func TestComputeDiffFolders(t *testing.T) {
	a := newArchive(t)
	a.write("old/nested/f.txt", "f")
	a.full()

	a.remove("old")
	require.NoError(t, os.MkdirAll(filepath.Join(a.source, "new"), 0o755))
	res := a.incremental()

	assert.Equal(t, []string{"new"}, res.NewFolders)
	assert.Equal(t, []string{"old", "old/nested"}, res.DeletedFolders)
	assert.Equal(t, []string{"old/nested/f.txt"}, res.DeletedFiles)
}

func TestComputeDiffIgnoreList(t *testing.T) {
	a := newArchive(t)
	a.write("keep.txt", "k")
	a.write("skip.log", "s")
	a.write("build/out.bin", "b")
	a.write(".DS_Store", "x")
	a.write(IgnoreFileName, "build/\n")

	ignore := NewIgnoreList(a.source, "*.log")
	ignore.Load()
	res := a.pass(generation.KindFull, ignore)

	assert.Equal(t, []string{IgnoreFileName, "keep.txt"}, sortedKeys(res.NewFiles))
	assert.Empty(t, res.NewFolders)
}

func TestComputeDiffProgress(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "aa")
	a.write("b/c.txt", "ccc")

	var seen []string
	eng, err := New(a.source, "", differ.Literal{}, WithStagingDir(a.root), WithProgress(func(rel string, size int64) {
		seen = append(seen, rel)
	}))
	require.NoError(t, err)
	defer eng.Close()

	_, _, err = eng.ComputeDiff(context.Background(), false)
	require.NoError(t, err)
	sort.Strings(seen)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, seen)
}

func TestComputeDiffCancelled(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "a")

	eng, err := New(a.source, "", differ.Literal{}, WithStagingDir(a.root))
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = eng.ComputeDiff(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}

// recordingDiffer remembers the basis signature of every delta.
type recordingDiffer struct {
	differ.Literal
	bases []string
}

func (r *recordingDiffer) Delta(ctx context.Context, signaturePath, file, deltaPath string) error {
	r.bases = append(r.bases, signaturePath)
	return r.Literal.Delta(ctx, signaturePath, file, deltaPath)
}

func TestProduceArtifactsDeltaAgainstPreviousSignature(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "v1")
	a.full()
	a.write("a.txt", "v2")

	rec := &recordingDiffer{}
	eng, err := New(a.source, a.base, rec, WithStagingDir(a.root))
	require.NoError(t, err)
	defer eng.Close()

	res, _, err := eng.ComputeDiff(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, eng.ProduceArtifacts(context.Background(), res))

	require.Len(t, rec.bases, 1)
	assert.Equal(t, filepath.Join(SignaturesDir(a.base), "a.txt"), rec.bases[0])
	assert.Equal(t, "v1", readFile(t, rec.bases[0]))
}

func TestProduceArtifactsWritesEmptyLists(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "a")
	a.full()

	sig := a.gens[0].Signature
	for _, path := range []string{NewFoldersFile(sig), DeletedFoldersFile(sig), DeletedFilesFile(sig)} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Zero(t, info.Size())
	}
}

type failingDiffer struct {
	differ.Literal
}

func (failingDiffer) Delta(context.Context, string, string, string) error {
	return errors.New("delta failed")
}

func TestStagingReleasedOnError(t *testing.T) {
	a := newArchive(t)
	a.write("a.txt", "v1")
	a.full()
	a.write("a.txt", "v2")

	eng, err := New(a.source, a.base, failingDiffer{}, WithStagingDir(a.root))
	require.NoError(t, err)
	root := eng.Staging().Root()
	require.DirExists(t, root)

	res, _, err := eng.ComputeDiff(context.Background(), false)
	require.NoError(t, err)
	err = eng.ProduceArtifacts(context.Background(), res)
	require.ErrorContains(t, err, "delta failed")

	require.NoError(t, eng.Close())
	assert.NoDirExists(t, root)
	assert.NoError(t, eng.Close(), "release is idempotent")
}

func TestPassID(t *testing.T) {
	source := t.TempDir()

	eng, err := New(source, "", differ.Literal{}, WithPassID("nightly"))
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, "nightly", eng.PassID())

	other, err := New(source, "", differ.Literal{})
	require.NoError(t, err)
	defer other.Close()
	assert.NotEmpty(t, other.PassID())
	assert.NotEqual(t, eng.Staging().Root(), other.Staging().Root())
}

package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftbackup/internal/differ"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/openmined/syftbackup/internal/utils"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// tree is a snapshot of a folder: file contents by relative path plus every folder.
type tree struct {
	Files   map[string]string
	Folders map[string]bool
}

func snapshot(t *testing.T, root string) tree {
	t.Helper()
	out := tree{Files: map[string]string{}, Folders: map[string]bool{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := utils.RelPath(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			out.Folders[rel] = true
			return nil
		}
		out.Files[rel] = readFile(t, path)
		return nil
	})
	require.NoError(t, err)
	return out
}

// archive runs passes against a source folder and keeps the produced
// generations plus the merged signature set, like a backup target would.
type archive struct {
	t      *testing.T
	root   string
	source string
	differ differ.Differ
	base   string
	gens   []Generation
	clock  time.Time
}

func newArchive(t *testing.T) *archive {
	t.Helper()
	root := t.TempDir()
	source := filepath.Join(root, "source")
	require.NoError(t, os.MkdirAll(source, 0o755))
	return &archive{t: t, root: root, source: source, differ: differ.Literal{}, clock: epoch}
}

func (a *archive) full() *DiffResult {
	a.t.Helper()
	return a.pass(generation.KindFull, nil)
}

func (a *archive) incremental() *DiffResult {
	a.t.Helper()
	return a.pass(generation.KindIncremental, nil)
}

func (a *archive) pass(kind generation.Kind, ignore *IgnoreList) *DiffResult {
	t := a.t
	t.Helper()

	opts := []Option{WithStagingDir(a.root)}
	if ignore != nil {
		opts = append(opts, WithIgnoreList(ignore))
	}
	eng, err := New(a.source, a.base, a.differ, opts...)
	require.NoError(t, err)
	defer eng.Close()

	res, _, err := eng.ComputeDiff(context.Background(), kind == generation.KindFull)
	require.NoError(t, err)
	require.NoError(t, eng.ProduceArtifacts(context.Background(), res))

	a.clock = a.clock.Add(time.Hour)
	dir := filepath.Join(a.root, fmt.Sprintf("gen-%d", len(a.gens)))
	require.NoError(t, utils.CopyDir(eng.Staging().Root(), dir))
	gen := Generation{
		ID:        generation.NewIdentity("test", generation.RoleSignatures, kind, a.clock),
		Signature: filepath.Join(dir, SignatureRootName),
		Content:   filepath.Join(dir, ContentRootName),
	}
	a.gens = append(a.gens, gen)

	if kind == generation.KindFull {
		a.base = filepath.Join(a.root, fmt.Sprintf("base-%d", len(a.gens)))
	}
	require.NoError(t, Merge(a.base, gen.Signature))
	return res
}

func (a *archive) write(rel, content string) {
	writeFile(a.t, utils.JoinRel(a.source, rel), content)
}

func (a *archive) remove(rel string) {
	require.NoError(a.t, os.RemoveAll(utils.JoinRel(a.source, rel)))
}

func (a *archive) restore(opts RestoreOptions) (string, error) {
	dest := filepath.Join(a.t.TempDir(), "restored")
	err := Restore(context.Background(), a.differ, dest, a.gens[0], a.gens[1:], opts)
	return dest, err
}

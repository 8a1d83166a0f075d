package engine

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftbackup/internal/utils"
)

// Merge folds the signature root updateDir into baseDir so that baseDir describes
// the state after both generations. baseDir is created when absent.
//
// For every path the later generation wins: signatures deleted by the update
// are removed, update signatures replace base ones, and a path recreated by the
// update is no longer reported as deleted.
func Merge(baseDir, updateDir string) error {
	baseSigs := SignaturesDir(baseDir)
	if err := utils.EnsureDir(baseSigs); err != nil {
		return ioErr("create merge base", baseSigs, err)
	}

	baseNew, err := readSet(NewFoldersFile(baseDir))
	if err != nil {
		return err
	}
	baseDeletedFolders, err := readSet(DeletedFoldersFile(baseDir))
	if err != nil {
		return err
	}
	baseDeletedFiles, err := readSet(DeletedFilesFile(baseDir))
	if err != nil {
		return err
	}
	updateNew, err := readSet(NewFoldersFile(updateDir))
	if err != nil {
		return err
	}
	updateDeletedFolders, err := readSet(DeletedFoldersFile(updateDir))
	if err != nil {
		return err
	}
	updateDeletedFiles, err := readSet(DeletedFilesFile(updateDir))
	if err != nil {
		return err
	}

	for rel := range updateDeletedFiles.Iter() {
		target := utils.JoinRel(baseSigs, rel)
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioErr("remove merged signature", target, err)
		}
		pruneEmptyParents(baseSigs, target)
	}

	recreated := mapset.NewThreadUnsafeSet[string]()
	err = walkArtifacts(SignaturesDir(updateDir), func(rel, path string) error {
		target := utils.JoinRel(baseSigs, rel)
		// a path may have switched between file and folder
		if _, err := utils.ClearPath(baseSigs, rel, false); err != nil {
			return ioErr("clear merged signature", target, err)
		}
		if err := utils.CopyFile(path, target); err != nil {
			return ioErr("copy merged signature", target, err)
		}
		recreated.Add(rel)
		return nil
	})
	if err != nil {
		return err
	}

	folders := baseNew.Difference(updateDeletedFolders).Union(updateNew)
	deletedFolders := baseDeletedFolders.Difference(updateNew).Union(updateDeletedFolders)
	deletedFiles := baseDeletedFiles.Union(updateDeletedFiles).Difference(recreated)

	lists := []struct {
		path string
		set  mapset.Set[string]
	}{
		{NewFoldersFile(baseDir), folders},
		{DeletedFoldersFile(baseDir), deletedFolders},
		{DeletedFilesFile(baseDir), deletedFiles},
	}
	for _, l := range lists {
		if err := utils.WriteLines(l.path, sortedSet(l.set)); err != nil {
			return ioErr("write merged list", l.path, err)
		}
	}

	slog.Debug("signatures merged", "base", baseDir, "update", updateDir,
		"signatures", recreated.Cardinality(), "deletedFiles", deletedFiles.Cardinality())
	return nil
}

// pruneEmptyParents removes the now empty folders above path, stopping at root.
func pruneEmptyParents(root, path string) {
	for dir := filepath.Dir(path); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}

func readSet(path string) (mapset.Set[string], error) {
	lines, err := utils.ReadLines(path)
	if err != nil {
		return nil, ioErr("read list", path, err)
	}
	return mapset.NewThreadUnsafeSet(lines...), nil
}

func sortedSet(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}

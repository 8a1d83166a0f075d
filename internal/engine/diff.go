package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftbackup/internal/utils"
)

// DiffResult classifies the source tree against the previous generation.
// A path is in at most one file collection and at most one folder collection.
type DiffResult struct {
	// NewFiles and ModifiedFiles map a relative path to its fresh signature in the staging area.
	NewFiles      map[string]string
	ModifiedFiles map[string]string
	// BaseSignatures maps each modified path to the previous generation's signature,
	// the basis its delta is computed against.
	BaseSignatures map[string]string
	DeletedFiles   []string
	NewFolders     []string
	DeletedFolders []string
	Stats          Stats
}

// ComputeDiff signs every source file into the staging area and compares the
// signatures with the previous generation. Unchanged files keep no fresh
// signature. forceFull ignores the previous generation so every file is new.
// The returned index lists the fresh signatures left in the staging area.
func (e *Engine) ComputeDiff(ctx context.Context, forceFull bool) (*DiffResult, SignatureIndex, error) {
	oldSigs := e.prevSigs.Clone()
	oldFolders := e.prevFolders.Clone()
	if forceFull {
		oldSigs = make(SignatureIndex)
		oldFolders = mapset.NewThreadUnsafeSet[string]()
	}

	res := &DiffResult{
		NewFiles:       make(map[string]string),
		ModifiedFiles:  make(map[string]string),
		BaseSignatures: make(map[string]string),
	}
	fresh := make(SignatureIndex)
	var folders []string
	sigDir := SignaturesDir(e.staging.SignatureRoot())

	err := filepath.WalkDir(e.source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return ioErr("walk", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == e.source {
			return nil
		}

		rel, err := utils.RelPath(e.source, path)
		if err != nil {
			return ioErr("walk", path, err)
		}
		if d.IsDir() {
			if e.opts.ignore.ShouldIgnoreDir(rel) {
				return filepath.SkipDir
			}
			folders = append(folders, rel)
			return nil
		}
		if e.opts.ignore.ShouldIgnore(rel) {
			return nil
		}
		if !d.Type().IsRegular() {
			e.log.Debug("skipping non-regular file", "path", rel)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return ioErr("stat", path, err)
		}
		res.Stats.ExaminedFiles++
		res.Stats.ExaminedBytes += info.Size()
		if e.opts.progress != nil {
			e.opts.progress(rel, info.Size())
		}

		sigPath := utils.JoinRel(sigDir, rel)
		if err := e.differ.Signature(ctx, path, sigPath); err != nil {
			return fmt.Errorf("signature %s: %w", rel, err)
		}

		oldSig, known := oldSigs[rel]
		if !known {
			res.NewFiles[rel] = sigPath
			fresh[rel] = sigPath
			res.Stats.NewFiles++
			res.Stats.NewBytes += info.Size()
			e.log.Debug("new file", "path", rel)
			return nil
		}
		delete(oldSigs, rel)

		same, err := utils.SameContent(oldSig, sigPath)
		if err != nil {
			return ioErr("compare signatures", rel, err)
		}
		if same {
			if err := os.Remove(sigPath); err != nil {
				return ioErr("remove unchanged signature", sigPath, err)
			}
			return nil
		}

		res.ModifiedFiles[rel] = sigPath
		res.BaseSignatures[rel] = oldSig
		fresh[rel] = sigPath
		res.Stats.ModifiedFiles++
		res.Stats.ModifiedBytes += info.Size()
		e.log.Debug("modified file", "path", rel)
		return nil
	})
	if err != nil {
		var ioError *IOError
		if !errors.As(err, &ioError) && errors.Is(err, fs.ErrNotExist) {
			err = ioErr("diff", e.source, err)
		}
		return nil, nil, err
	}

	for rel := range oldSigs {
		res.DeletedFiles = append(res.DeletedFiles, rel)
	}

	for _, rel := range folders {
		if oldFolders.Contains(rel) {
			oldFolders.Remove(rel)
			continue
		}
		res.NewFolders = append(res.NewFolders, rel)
	}
	res.DeletedFolders = oldFolders.ToSlice()

	sort.Strings(res.DeletedFiles)
	sort.Strings(res.NewFolders)
	sort.Strings(res.DeletedFolders)

	res.Stats.DeletedFiles = int64(len(res.DeletedFiles))
	res.Stats.NewFolders = int64(len(res.NewFolders))
	res.Stats.DeletedFolders = int64(len(res.DeletedFolders))

	e.log.Info("diff computed",
		"full", forceFull,
		"examined", res.Stats.ExaminedFiles,
		"new", len(res.NewFiles),
		"modified", len(res.ModifiedFiles),
		"deleted", len(res.DeletedFiles),
		"newFolders", len(res.NewFolders),
		"deletedFolders", len(res.DeletedFolders),
	)
	return res, fresh, nil
}

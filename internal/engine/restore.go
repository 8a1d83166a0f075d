package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openmined/syftbackup/internal/differ"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/openmined/syftbackup/internal/utils"
)

// RestoreOptions tunes how a patch chain is replayed.
type RestoreOptions struct {
	// KeepDeleted leaves files and folders recorded as deleted in place,
	// restoring everything that was ever present in the chain. When a path
	// switches between file and folder, the later generation wins for it.
	KeepDeleted bool
	// Include limits the restore to the relative file paths it accepts.
	// Folders are only created for accepted files when set.
	Include func(rel string) bool
}

func (o RestoreOptions) includes(rel string) bool {
	return o.Include == nil || o.Include(rel)
}

// Restore rebuilds dest from a full generation followed by its incrementals,
// replayed oldest first. The chain order is validated before anything is written.
func Restore(ctx context.Context, d differ.Differ, dest string, full Generation, incs []Generation, opts RestoreOptions) error {
	if err := validateOrder(full, incs); err != nil {
		return err
	}

	dest, err := utils.ResolvePath(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := utils.EnsureDir(dest); err != nil {
		return ioErr("create destination", dest, err)
	}

	r := &restorer{differ: d, dest: dest, opts: opts}

	slog.Info("restoring full generation", "time", full.ID.Time, "dest", dest)
	if err := r.copyBases(ctx, full, utils.CopyFileExclusive, false); err != nil {
		return err
	}
	if err := r.createFolders(full, false); err != nil {
		return err
	}

	for _, inc := range incs {
		slog.Info("applying incremental generation", "time", inc.ID.Time)
		if err := r.applyIncremental(ctx, inc); err != nil {
			return err
		}
	}

	slog.Info("restore complete", "dest", dest, "files", r.files, "patched", r.patched, "removed", r.removed)
	return nil
}

func validateOrder(full Generation, incs []Generation) error {
	chain := generation.Chain{Full: generation.Entry{Kind: full.ID.Kind, Time: full.ID.Time}}
	for _, inc := range incs {
		chain.Incrementals = append(chain.Incrementals, generation.Entry{Kind: inc.ID.Kind, Time: inc.ID.Time})
	}
	if err := chain.Validate(); err != nil {
		return &OrderingError{Reason: "generations out of order", Err: err}
	}
	return nil
}

type restorer struct {
	differ differ.Differ
	dest   string
	opts   RestoreOptions

	files   int
	patched int
	removed int
}

func (r *restorer) applyIncremental(ctx context.Context, gen Generation) error {
	// deletions first: a path may change between file and folder across generations
	if !r.opts.KeepDeleted {
		if err := r.applyDeletions(gen); err != nil {
			return err
		}
	}
	if err := r.copyBases(ctx, gen, utils.ReplaceFile, true); err != nil {
		return err
	}
	if err := r.applyDeltas(ctx, gen); err != nil {
		return err
	}
	return r.createFolders(gen, true)
}

// clearPath removes whatever blocks rel from being restored as the given type.
func (r *restorer) clearPath(rel string, dir bool) error {
	removed, err := utils.ClearPath(r.dest, rel, dir)
	if err != nil {
		return ioErr("clear path", utils.JoinRel(r.dest, rel), err)
	}
	if removed {
		slog.Debug("replaced conflicting path", "path", rel, "dir", dir)
	}
	return nil
}

func (r *restorer) copyBases(ctx context.Context, gen Generation, copyFn func(src, dst string) error, replace bool) error {
	return walkArtifacts(BaseDir(gen.Content), func(rel, path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.opts.includes(rel) {
			return nil
		}

		if replace {
			if err := r.clearPath(rel, false); err != nil {
				return err
			}
		}
		target := utils.JoinRel(r.dest, rel)
		if err := copyFn(path, target); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return ioErr("restore base", target, ErrDestinationExists)
			}
			return ioErr("restore base", target, err)
		}
		r.files++
		slog.Debug("restored file", "path", rel)
		return nil
	})
}

func (r *restorer) applyDeltas(ctx context.Context, gen Generation) error {
	return walkArtifacts(DeltaDir(gen.Content), func(rel, path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.opts.includes(rel) {
			return nil
		}

		target := utils.JoinRel(r.dest, rel)
		info, err := os.Stat(target)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &OrderingError{Path: rel, Reason: "patch target missing"}
			}
			return ioErr("stat patch target", target, err)
		}

		tmp, err := os.CreateTemp(filepath.Dir(target), ".patch-*")
		if err != nil {
			return ioErr("create patch output", target, err)
		}
		tmpPath := tmp.Name()
		tmp.Close()

		if err := r.differ.Patch(ctx, target, path, tmpPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("patch %s: %w", rel, err)
		}
		if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
			os.Remove(tmpPath)
			return ioErr("chmod patch output", tmpPath, err)
		}
		if err := os.Rename(tmpPath, target); err != nil {
			os.Remove(tmpPath)
			return ioErr("replace patched file", target, err)
		}
		r.patched++
		slog.Debug("patched file", "path", rel)
		return nil
	})
}

func (r *restorer) createFolders(gen Generation, replace bool) error {
	if r.opts.Include != nil {
		return nil
	}
	folders, err := utils.ReadLines(NewFoldersFile(gen.Signature))
	if err != nil {
		return ioErr("read folder list", NewFoldersFile(gen.Signature), err)
	}
	for _, rel := range folders {
		if replace {
			if err := r.clearPath(rel, true); err != nil {
				return err
			}
		}
		dir := utils.JoinRel(r.dest, rel)
		if err := utils.EnsureDir(dir); err != nil {
			return ioErr("create folder", dir, err)
		}
	}
	return nil
}

func (r *restorer) applyDeletions(gen Generation) error {
	files, err := utils.ReadLines(DeletedFilesFile(gen.Signature))
	if err != nil {
		return ioErr("read deleted files", DeletedFilesFile(gen.Signature), err)
	}
	for _, rel := range files {
		if !r.opts.includes(rel) {
			continue
		}
		target := utils.JoinRel(r.dest, rel)
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioErr("remove deleted file", target, err)
		}
		r.removed++
		slog.Debug("removed file", "path", rel)
	}

	if r.opts.Include != nil {
		return nil
	}

	folders, err := utils.ReadLines(DeletedFoldersFile(gen.Signature))
	if err != nil {
		return ioErr("read deleted folders", DeletedFoldersFile(gen.Signature), err)
	}
	// deepest first
	sort.Slice(folders, func(i, j int) bool {
		di, dj := strings.Count(folders[i], "/"), strings.Count(folders[j], "/")
		if di != dj {
			return di > dj
		}
		return folders[i] > folders[j]
	})
	for _, rel := range folders {
		dir := utils.JoinRel(r.dest, rel)
		if err := os.RemoveAll(dir); err != nil {
			return ioErr("remove deleted folder", dir, err)
		}
		slog.Debug("removed folder", "path", rel)
	}
	return nil
}

// walkArtifacts visits every regular file under root in lexical order.
// A missing root has no artifacts.
func walkArtifacts(root string, fn func(rel, path string) error) error {
	if !utils.DirExists(root) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return ioErr("walk", path, walkErr)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := utils.RelPath(root, path)
		if err != nil {
			return ioErr("walk", path, err)
		}
		return fn(rel, path)
	})
}

// Package workspace manages a backup target folder: the stored generations,
// the lock that serializes passes, and the local metadata next to them.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/openmined/syftbackup/internal/utils"
	"github.com/shirou/gopsutil/v4/disk"
)

const (
	metadataDir  = ".data"
	stagingDir   = "staging"
	lockFile     = "syftbackup.lock"
	catalogFile  = "catalog.db"
	partialStart = ".partial-"
)

var (
	ErrWorkspaceLocked   = errors.New("workspace locked by another process")
	ErrGenerationExists  = errors.New("generation already stored")
	ErrGenerationMissing = errors.New("generation not found")
	ErrInsufficientSpace = errors.New("not enough free space on target")
)

// Workspace is a local folder acting as the generation store.
// Each generation half is a directory named after its encoded identity.
type Workspace struct {
	Root        string
	MetadataDir string
	StagingDir  string
	CatalogPath string

	flock *flock.Flock
	usage func(path string) (*disk.UsageStat, error)
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	meta := filepath.Join(root, metadataDir)
	return &Workspace{
		Root:        root,
		MetadataDir: meta,
		StagingDir:  filepath.Join(meta, stagingDir),
		CatalogPath: filepath.Join(meta, catalogFile),
		flock:       flock.New(filepath.Join(meta, lockFile)),
		usage:       disk.Usage,
	}, nil
}

// Lock takes the workspace lock without waiting.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	// only the holder removes the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Setup locks the workspace and creates its layout. Leftovers of interrupted
// passes are removed.
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}

	for _, dir := range []string{w.Root, w.MetadataDir, w.StagingDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := w.cleanup(); err != nil {
		slog.Warn("failed to clean workspace", "error", err)
	}

	slog.Info("workspace", "root", w.Root)
	return nil
}

func (w *Workspace) cleanup() error {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), partialStart) {
			slog.Debug("removing partial generation", "name", entry.Name())
			if err := os.RemoveAll(filepath.Join(w.Root, entry.Name())); err != nil {
				return err
			}
		}
	}

	staged, err := os.ReadDir(w.StagingDir)
	if err != nil {
		return err
	}
	for _, entry := range staged {
		if err := os.RemoveAll(filepath.Join(w.StagingDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Names lists the stored entries, sorted. Hidden entries are skipped.
func (w *Workspace) Names() ([]string, error) {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Path returns the directory of a stored entry.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Root, name)
}

func (w *Workspace) Has(name string) bool {
	return utils.DirExists(w.Path(name))
}

// Store publishes srcDir under name. A srcDir inside the workspace, such as a
// staging area, is moved into place; anything else is copied after a free
// space check and becomes visible only once complete.
func (w *Workspace) Store(name, srcDir string) error {
	if err := validName(name); err != nil {
		return err
	}
	if w.Has(name) {
		return fmt.Errorf("%w: %s", ErrGenerationExists, name)
	}

	if w.contains(srcDir) {
		if err := os.Rename(srcDir, w.Path(name)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
		slog.Debug("stored", "name", name, "moved", true)
		return nil
	}

	size, err := utils.DirSize(srcDir)
	if err != nil {
		return fmt.Errorf("failed to measure %s: %w", srcDir, err)
	}
	if err := w.CheckSpace(uint64(size)); err != nil {
		return err
	}

	partial := filepath.Join(w.Root, partialStart+name)
	if err := os.RemoveAll(partial); err != nil {
		return fmt.Errorf("failed to clear %s: %w", partial, err)
	}
	if err := utils.CopyDir(srcDir, partial); err != nil {
		os.RemoveAll(partial)
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	if err := os.Rename(partial, w.Path(name)); err != nil {
		os.RemoveAll(partial)
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}

	slog.Debug("stored", "name", name, "bytes", size)
	return nil
}

func (w *Workspace) contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Remove deletes a stored entry.
func (w *Workspace) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if !w.Has(name) {
		return fmt.Errorf("%w: %s", ErrGenerationMissing, name)
	}
	if err := os.RemoveAll(w.Path(name)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// FreeSpace reports the bytes available to the current user on the target's filesystem.
func (w *Workspace) FreeSpace() (uint64, error) {
	path := w.Root
	if !utils.DirExists(path) {
		path = filepath.Dir(path)
	}
	stat, err := w.usage(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read disk usage: %w", err)
	}
	return stat.Free, nil
}

// CheckSpace fails with ErrInsufficientSpace when fewer than need bytes are free.
func (w *Workspace) CheckSpace(need uint64) error {
	free, err := w.FreeSpace()
	if err != nil {
		return err
	}
	if free < need {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientSpace, humanize.Bytes(need), humanize.Bytes(free))
	}
	return nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

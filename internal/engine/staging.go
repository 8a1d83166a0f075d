package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/syftbackup/internal/generation"
)

// On-disk layout shared by staging areas, stored generations and merged signature sets.
const (
	SignatureRootName = "signature"
	ContentRootName   = "content"

	signaturesName     = "signatures"
	newFoldersName     = "newfolders"
	deletedFoldersName = "deletedfolders"
	deletedFilesName   = "deletedfiles"
	baseName           = "base"
	deltaName          = "delta"
)

// SignaturesDir holds one signature artifact per tracked file.
func SignaturesDir(signatureRoot string) string {
	return filepath.Join(signatureRoot, signaturesName)
}

func NewFoldersFile(signatureRoot string) string {
	return filepath.Join(signatureRoot, newFoldersName)
}

func DeletedFoldersFile(signatureRoot string) string {
	return filepath.Join(signatureRoot, deletedFoldersName)
}

func DeletedFilesFile(signatureRoot string) string {
	return filepath.Join(signatureRoot, deletedFilesName)
}

// BaseDir holds verbatim copies of new files.
func BaseDir(contentRoot string) string {
	return filepath.Join(contentRoot, baseName)
}

// DeltaDir holds deltas of modified files.
func DeltaDir(contentRoot string) string {
	return filepath.Join(contentRoot, deltaName)
}

// Generation locates the two halves of a generation on disk.
type Generation struct {
	ID        generation.Identity
	Signature string
	Content   string
}

// Staging is the scratch area one pass writes its generation into.
// The owner must call Release on every exit path.
type Staging struct {
	root string
}

// NewStaging creates a staging area under parent, or the system temp dir when parent is empty.
func NewStaging(parent string) (*Staging, error) {
	root, err := os.MkdirTemp(parent, "syftbackup-staging-*")
	if err != nil {
		return nil, ioErr("create staging", parent, err)
	}

	s := &Staging{root: root}
	for _, dir := range []string{
		SignaturesDir(s.SignatureRoot()),
		BaseDir(s.ContentRoot()),
		DeltaDir(s.ContentRoot()),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.Release()
			return nil, ioErr("create staging", dir, err)
		}
	}
	return s, nil
}

func (s *Staging) Root() string {
	return s.root
}

func (s *Staging) SignatureRoot() string {
	return filepath.Join(s.root, SignatureRootName)
}

func (s *Staging) ContentRoot() string {
	return filepath.Join(s.root, ContentRootName)
}

// Generation returns the staged artifacts labelled with id.
func (s *Staging) Generation(id generation.Identity) Generation {
	return Generation{ID: id, Signature: s.SignatureRoot(), Content: s.ContentRoot()}
}

// Release deletes the staging area. It is safe to call more than once.
func (s *Staging) Release() error {
	if s == nil || s.root == "" {
		return nil
	}
	root := s.root
	s.root = ""
	if err := os.RemoveAll(root); err != nil {
		slog.Warn("failed to release staging area", "path", root, "error", err)
		return fmt.Errorf("release staging %s: %w", root, err)
	}
	slog.Debug("staging released", "path", root)
	return nil
}

package engine

import (
	"io/fs"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftbackup/internal/utils"
)

// SignatureIndex maps a tracked file's relative path to its signature artifact.
type SignatureIndex map[string]string

// Clone returns a working copy that can be consumed without touching the original.
func (idx SignatureIndex) Clone() SignatureIndex {
	out := make(SignatureIndex, len(idx))
	for k, v := range idx {
		out[k] = v
	}
	return out
}

// LoadSignatureIndex scans the signatures of a signature root.
// A missing root is an empty index, not an error.
func LoadSignatureIndex(signatureRoot string) (SignatureIndex, error) {
	idx := make(SignatureIndex)
	if signatureRoot == "" {
		return idx, nil
	}

	dir := SignaturesDir(signatureRoot)
	if !utils.DirExists(dir) {
		return idx, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := utils.RelPath(dir, path)
		if err != nil {
			return err
		}
		idx[rel] = path
		return nil
	})
	if err != nil {
		return nil, ioErr("load signature index", dir, err)
	}
	return idx, nil
}

// LoadFolderIndex reads the folders known to a signature root.
func LoadFolderIndex(signatureRoot string) (mapset.Set[string], error) {
	set := mapset.NewThreadUnsafeSet[string]()
	if signatureRoot == "" {
		return set, nil
	}

	lines, err := utils.ReadLines(NewFoldersFile(signatureRoot))
	if err != nil {
		return nil, ioErr("load folder index", NewFoldersFile(signatureRoot), err)
	}
	for _, line := range lines {
		set.Add(line)
	}
	return set, nil
}

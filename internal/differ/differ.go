// Package differ wraps the rolling-checksum diff tool used to fingerprint files,
// describe their changes and rebuild them.
package differ

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/openmined/syftbackup/internal/utils"
)

const (
	KindRdiff   = "rdiff"
	KindLiteral = "literal"
)

// Differ produces signature, delta and patch artifacts. Every operation
// replaces whatever already exists at its output path.
type Differ interface {
	// Signature writes a content signature of file to signaturePath.
	Signature(ctx context.Context, file, signaturePath string) error
	// Delta writes to deltaPath how to turn the content behind signaturePath into file.
	Delta(ctx context.Context, signaturePath, file, deltaPath string) error
	// Patch applies deltaPath to basePath and writes the result to outputPath.
	Patch(ctx context.Context, basePath, deltaPath, outputPath string) error
}

var ErrUnknownKind = errors.New("differ: unknown kind")

// New returns the differ configured by kind. toolPath is only used by rdiff.
func New(kind, toolPath string) (Differ, error) {
	switch kind {
	case KindRdiff, "":
		return NewRdiff(toolPath), nil
	case KindLiteral:
		return Literal{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// prepareOutput removes a stale output file and creates its parent directory.
func prepareOutput(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale output %s: %w", path, err)
	}
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("create output dir for %s: %w", path, err)
	}
	return nil
}

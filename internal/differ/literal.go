package differ

import (
	"context"
	"fmt"

	"github.com/openmined/syftbackup/internal/utils"
)

// Literal is a whole-file differ. Its signature is a byte copy of the file,
// so signature equality is content equality, and its delta is the complete
// new content. It needs no external tool.
type Literal struct{}

func (Literal) Signature(ctx context.Context, file, signaturePath string) error {
	return literalCopy(ctx, file, signaturePath)
}

func (Literal) Delta(ctx context.Context, signaturePath, file, deltaPath string) error {
	if !utils.FileExists(signaturePath) {
		return fmt.Errorf("literal delta: signature %s not found", signaturePath)
	}
	return literalCopy(ctx, file, deltaPath)
}

func (Literal) Patch(ctx context.Context, basePath, deltaPath, outputPath string) error {
	if !utils.FileExists(basePath) {
		return fmt.Errorf("literal patch: base %s not found", basePath)
	}
	return literalCopy(ctx, deltaPath, outputPath)
}

func literalCopy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepareOutput(dst); err != nil {
		return err
	}
	if err := utils.CopyFile(src, dst); err != nil {
		return fmt.Errorf("literal copy %s: %w", src, err)
	}
	return nil
}

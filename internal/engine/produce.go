package engine

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/openmined/syftbackup/internal/utils"
)

// ProduceArtifacts writes the generation described by res into the staging area:
// a delta for every modified file, a verbatim copy of every new file, and the
// three folder and deletion lists. Any failure aborts the pass; the caller
// discards the staging area.
func (e *Engine) ProduceArtifacts(ctx context.Context, res *DiffResult) error {
	contentRoot := e.staging.ContentRoot()
	sigRoot := e.staging.SignatureRoot()

	for _, rel := range sortedKeys(res.ModifiedFiles) {
		if err := ctx.Err(); err != nil {
			return err
		}

		basis, ok := res.BaseSignatures[rel]
		if !ok {
			return fmt.Errorf("delta %s: no previous signature", rel)
		}

		deltaPath := utils.JoinRel(DeltaDir(contentRoot), rel)
		if err := e.differ.Delta(ctx, basis, utils.JoinRel(e.source, rel), deltaPath); err != nil {
			return fmt.Errorf("delta %s: %w", rel, err)
		}

		if info, err := os.Stat(deltaPath); err == nil {
			res.Stats.DeltaBytes += info.Size()
		}
		e.log.Debug("delta written", "path", rel)
	}

	for _, rel := range sortedKeys(res.NewFiles) {
		if err := ctx.Err(); err != nil {
			return err
		}

		basePath := utils.JoinRel(BaseDir(contentRoot), rel)
		if err := utils.CopyFile(utils.JoinRel(e.source, rel), basePath); err != nil {
			return ioErr("copy base", rel, err)
		}
		e.log.Debug("base written", "path", rel)
	}

	lists := []struct {
		path  string
		lines []string
	}{
		{NewFoldersFile(sigRoot), res.NewFolders},
		{DeletedFoldersFile(sigRoot), res.DeletedFolders},
		{DeletedFilesFile(sigRoot), res.DeletedFiles},
	}
	for _, l := range lists {
		if err := utils.WriteLines(l.path, l.lines); err != nil {
			return ioErr("write list", l.path, err)
		}
	}

	e.log.Info("artifacts produced",
		"deltas", len(res.ModifiedFiles),
		"bases", len(res.NewFiles),
		"deltaBytes", res.Stats.DeltaBytes,
	)
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openmined/syftbackup/internal/catalog"
	"github.com/openmined/syftbackup/internal/engine"
	"github.com/openmined/syftbackup/internal/generation"
)

type BackupOptions struct {
	// Full forces a full generation.
	Full bool
}

// BackupResult describes the generation a pass stored.
type BackupResult struct {
	Seq           int64
	ID            generation.Identity
	SignatureName string
	ContentName   string
	PassID        string
	Stats         engine.Stats
}

// Backup stores a new generation of the source folder. It is full when forced,
// when the target holds no chain yet, or when the latest full generation is
// older than the configured interval; otherwise it is an incremental of the
// latest chain.
func (s *Service) Backup(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	chains, byKey, err := s.inventory()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	at := now
	var latest *generation.Chain
	if len(chains) > 0 {
		latest = &chains[len(chains)-1]
		// names carry seconds; a pass must sort after everything stored
		if last := latest.Latest().Time; !at.After(last) {
			at = last.Add(time.Second)
		}
	}

	full := opts.Full || latest == nil
	if !full && s.cfg.FullIfOlderThan > 0 && now.Sub(latest.Full.Time) > time.Duration(s.cfg.FullIfOlderThan) {
		slog.Info("latest full generation is too old", "time", latest.Full.Time)
		full = true
	}
	kind := generation.KindIncremental
	if full {
		kind = generation.KindFull
	}

	var previous string
	if !full {
		previous, err = s.mergeChain(*latest, byKey)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(previous)
	}

	s.ignore.Load()
	eng, err := engine.New(s.cfg.Source, previous, s.differ,
		engine.WithStagingDir(s.ws.StagingDir),
		engine.WithIgnoreList(s.ignore),
		engine.WithProgress(s.progress),
	)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	slog.Info("backup started", "pass", eng.PassID(), "kind", kind, "source", s.cfg.Source, "target", s.ws.Root)

	res, _, err := eng.ComputeDiff(ctx, full)
	if err != nil {
		return nil, err
	}
	if err := eng.ProduceArtifacts(ctx, res); err != nil {
		return nil, err
	}

	sigName, err := s.codec.Encode(s.cfg.Prefix, generation.RoleSignatures, kind, at)
	if err != nil {
		return nil, err
	}
	contentName, err := s.codec.Encode(s.cfg.Prefix, generation.RoleContent, kind, at)
	if err != nil {
		return nil, err
	}

	result := &BackupResult{
		ID:            generation.NewIdentity(s.cfg.Prefix, generation.RoleSignatures, kind, at),
		SignatureName: sigName,
		ContentName:   contentName,
		PassID:        eng.PassID(),
		Stats:         res.Stats,
	}
	if err := s.store(eng.Staging(), result); err != nil {
		return nil, err
	}

	rec := &catalog.Record{
		ID:            result.ID,
		SignatureName: result.SignatureName,
		ContentName:   result.ContentName,
		PassID:        result.PassID,
		Stats:         result.Stats,
	}
	if err := s.catalog.Add(rec); err != nil {
		// the generation is stored and usable without its catalog row
		slog.Warn("failed to record generation", "name", result.SignatureName, "error", err)
	}
	result.Seq = rec.Seq

	slog.Info("backup finished", "pass", result.PassID, "name", result.SignatureName, "seq", result.Seq,
		"new", res.Stats.NewFiles, "modified", res.Stats.ModifiedFiles, "deleted", res.Stats.DeletedFiles)
	return result, nil
}

// store moves both staged halves into the workspace. The content half goes
// first so a listing never shows a signature half whose content is missing.
func (s *Service) store(staging *engine.Staging, result *BackupResult) error {
	if err := s.ws.Store(result.ContentName, staging.ContentRoot()); err != nil {
		return err
	}
	if err := s.ws.Store(result.SignatureName, staging.SignatureRoot()); err != nil {
		if rmErr := s.ws.Remove(result.ContentName); rmErr != nil {
			slog.Error("failed to remove orphaned content", "name", result.ContentName, "error", rmErr)
		}
		return err
	}
	return nil
}

// mergeChain folds the signature halves of a chain into a temporary
// signature root describing the state after its latest generation.
func (s *Service) mergeChain(chain generation.Chain, byKey map[string]stored) (string, error) {
	dir, err := os.MkdirTemp(s.ws.StagingDir, "merge-*")
	if err != nil {
		return "", fmt.Errorf("create merge dir: %w", err)
	}

	full, incs := s.resolve(chain, byKey)
	for _, gen := range append([]engine.Generation{full}, incs...) {
		if err := engine.Merge(dir, gen.Signature); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("merge %s: %w", gen.Signature, err)
		}
	}
	slog.Debug("chain merged", "full", chain.Full.Time, "incrementals", len(chain.Incrementals), "dir", dir)
	return dir, nil
}

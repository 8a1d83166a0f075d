package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftbackup/internal/generation"
)

var ErrNoPruneRule = errors.New("prune needs a chain count or a cutoff time")

// PruneOptions selects the chains a prune pass removes. Chains are always
// removed whole; the newest chain is never removed.
type PruneOptions struct {
	// KeepFull keeps the newest KeepFull chains when positive.
	KeepFull int
	// OlderThan removes chains whose latest generation is before it.
	OlderThan time.Time
	// DryRun reports what would be removed without touching the target.
	DryRun bool
}

// PruneResult lists the removed generations in removal order.
type PruneResult struct {
	Removed []GenerationInfo `json:"removed"`
	Kept    int              `json:"kept_chains"`
}

// Prune removes old chains. Within a chain the incrementals go first,
// newest first, and the full generation last, so an interrupted prune never
// leaves incrementals without their full generation.
func (s *Service) Prune(ctx context.Context, opts PruneOptions) (*PruneResult, error) {
	if opts.KeepFull <= 0 && opts.OlderThan.IsZero() {
		return nil, ErrNoPruneRule
	}

	chains, byKey, err := s.inventory()
	if err != nil {
		return nil, err
	}

	drop := 0
	if opts.KeepFull > 0 && len(chains) > opts.KeepFull {
		drop = len(chains) - opts.KeepFull
	}
	if !opts.OlderThan.IsZero() {
		for drop < len(chains) && chains[drop].Latest().Time.Before(opts.OlderThan) {
			drop++
		}
	}
	if drop >= len(chains) && len(chains) > 0 {
		drop = len(chains) - 1
	}

	res := &PruneResult{Removed: []GenerationInfo{}, Kept: len(chains) - drop}
	for _, chain := range chains[:drop] {
		entries := make([]generation.Entry, 0, 1+len(chain.Incrementals))
		for i := len(chain.Incrementals) - 1; i >= 0; i-- {
			entries = append(entries, chain.Incrementals[i])
		}
		entries = append(entries, chain.Full)

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			info, err := s.removeGeneration(byKey[entryKey(entry)], opts.DryRun)
			if err != nil {
				return res, err
			}
			res.Removed = append(res.Removed, info)
		}
	}

	slog.Info("prune finished", "removed", len(res.Removed), "keptChains", res.Kept, "dryRun", opts.DryRun)
	return res, nil
}

// removeGeneration drops the signature half before the content half, the
// reverse of the store order, then forgets the catalog row.
func (s *Service) removeGeneration(g stored, dryRun bool) (GenerationInfo, error) {
	info := GenerationInfo{
		Kind:          g.entry.Kind,
		Time:          g.entry.Time,
		SignatureName: g.signatureName,
		ContentName:   g.contentName,
	}
	rec, err := s.catalog.Get(s.cfg.Prefix, g.entry.Kind, g.entry.Time)
	if err != nil {
		return info, err
	}
	if rec != nil {
		info.Seq = rec.Seq
		stats := rec.Stats
		info.Stats = &stats
	}
	if dryRun {
		return info, nil
	}

	for _, name := range []string{g.signatureName, g.contentName} {
		if err := s.ws.Remove(name); err != nil {
			return info, fmt.Errorf("prune %s: %w", name, err)
		}
	}
	if err := s.catalog.Delete(s.cfg.Prefix, g.entry.Kind, g.entry.Time); err != nil {
		// the generation is gone; a stale row is ignored by List
		slog.Warn("failed to forget generation", "name", g.signatureName, "error", err)
	}
	slog.Info("pruned generation", "kind", g.entry.Kind, "time", g.entry.Time, "seq", info.Seq)
	return info, nil
}

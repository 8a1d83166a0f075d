package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftbackup/internal/catalog"
	"github.com/openmined/syftbackup/internal/engine"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/openmined/syftbackup/internal/utils"
)

// GenerationInfo is one stored generation as shown by List.
type GenerationInfo struct {
	Kind          generation.Kind `json:"kind"`
	Time          time.Time       `json:"time"`
	SignatureName string          `json:"signature_name"`
	ContentName   string          `json:"content_name"`
	Seq           int64           `json:"seq,omitempty"`
	Stats         *engine.Stats   `json:"stats,omitempty"`
}

// ChainInfo is a full generation and the incrementals that depend on it.
type ChainInfo struct {
	Full         GenerationInfo   `json:"full"`
	Incrementals []GenerationInfo `json:"incrementals"`
}

// List returns the restorable chains of the job, oldest first, with the
// catalog details of every generation that was recorded.
func (s *Service) List(ctx context.Context) ([]ChainInfo, error) {
	chains, byKey, err := s.inventory()
	if err != nil {
		return nil, err
	}

	records, err := s.catalog.List(s.cfg.Prefix)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]*catalog.Record, len(records))
	for _, rec := range records {
		recorded[identityKey(generation.RoleSignatures, rec.ID.Kind, rec.ID.Time)] = rec
	}

	info := func(e generation.Entry) GenerationInfo {
		key := entryKey(e)
		g := GenerationInfo{
			Kind:          e.Kind,
			Time:          e.Time,
			SignatureName: byKey[key].signatureName,
			ContentName:   byKey[key].contentName,
		}
		if rec, ok := recorded[key]; ok {
			g.Seq = rec.Seq
			stats := rec.Stats
			g.Stats = &stats
		}
		return g
	}

	out := make([]ChainInfo, 0, len(chains))
	for _, chain := range chains {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ci := ChainInfo{Full: info(chain.Full), Incrementals: []GenerationInfo{}}
		for _, inc := range chain.Incrementals {
			ci.Incrementals = append(ci.Incrementals, info(inc))
		}
		out = append(out, ci)
	}
	return out, nil
}

// Compact folds the signature halves of the chain selected by at into one
// signature root at out, describing the source as of the chain's last generation.
func (s *Service) Compact(ctx context.Context, out string, at time.Time) (generation.Chain, error) {
	if utils.DirExists(out) || utils.FileExists(out) {
		return generation.Chain{}, fmt.Errorf("compact output %s already exists", out)
	}

	chains, byKey, err := s.inventory()
	if err != nil {
		return generation.Chain{}, err
	}
	if at.IsZero() {
		at = s.now()
	}
	chain, ok := generation.SelectChain(chains, at)
	if !ok {
		return generation.Chain{}, fmt.Errorf("%w at or before %s", ErrNoGeneration, at.UTC().Format(time.RFC3339))
	}

	full, incs := s.resolve(chain, byKey)
	for _, gen := range append([]engine.Generation{full}, incs...) {
		if err := ctx.Err(); err != nil {
			return generation.Chain{}, err
		}
		if err := engine.Merge(out, gen.Signature); err != nil {
			return generation.Chain{}, fmt.Errorf("merge %s: %w", gen.Signature, err)
		}
	}

	slog.Info("compacted", "out", out, "generations", 1+len(incs))
	return chain, nil
}

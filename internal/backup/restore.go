package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/syftbackup/internal/engine"
	"github.com/openmined/syftbackup/internal/generation"
)

type RestoreOptions struct {
	// At selects the newest state at or before this time. Zero means now.
	At time.Time
	// Include restricts the restore to files matching any of these doublestar patterns.
	Include []string
	// KeepDeleted also restores files deleted later in the chain.
	KeepDeleted bool
}

// Restore rebuilds the source folder as of opts.At into dest.
func (s *Service) Restore(ctx context.Context, dest string, opts RestoreOptions) (generation.Chain, error) {
	include, err := includeFilter(opts.Include)
	if err != nil {
		return generation.Chain{}, err
	}

	chains, byKey, err := s.inventory()
	if err != nil {
		return generation.Chain{}, err
	}

	at := opts.At
	if at.IsZero() {
		at = s.now()
	}
	chain, ok := generation.SelectChain(chains, at)
	if !ok {
		return generation.Chain{}, fmt.Errorf("%w at or before %s", ErrNoGeneration, at.UTC().Format(time.RFC3339))
	}

	full, incs := s.resolve(chain, byKey)
	slog.Info("restore started", "full", chain.Full.Time, "incrementals", len(incs), "dest", dest)

	err = engine.Restore(ctx, s.differ, dest, full, incs, engine.RestoreOptions{
		KeepDeleted: opts.KeepDeleted,
		Include:     include,
	})
	if err != nil {
		return generation.Chain{}, err
	}
	return chain, nil
}

func includeFilter(patterns []string) (func(string) bool, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	return func(rel string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		return false
	}, nil
}

// Package backup runs backup, restore and maintenance passes of one job
// against its target workspace.
package backup

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftbackup/internal/catalog"
	"github.com/openmined/syftbackup/internal/config"
	"github.com/openmined/syftbackup/internal/differ"
	"github.com/openmined/syftbackup/internal/engine"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/openmined/syftbackup/internal/workspace"
)

var ErrNoGeneration = errors.New("no generation found")

type Option func(*Service)

// WithClock replaces time.Now when naming generations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithProgress reports every file examined by a backup pass.
func WithProgress(fn engine.ProgressFunc) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// WithDiffer overrides the differ selected by the config.
func WithDiffer(d differ.Differ) Option {
	return func(s *Service) {
		s.differ = d
	}
}

// Service owns a job's workspace and catalog between Open and Close.
type Service struct {
	cfg      *config.Config
	codec    *generation.Codec
	differ   differ.Differ
	ws       *workspace.Workspace
	catalog  *catalog.Catalog
	ignore   *engine.IgnoreList
	progress engine.ProgressFunc
	now      func() time.Time
}

// New builds a service for a validated config.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	codec, err := generation.NewCodec(cfg.Naming())
	if err != nil {
		return nil, err
	}

	ws, err := workspace.NewWorkspace(cfg.Target)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		codec:   codec,
		ws:      ws,
		catalog: catalog.New(ws.CatalogPath),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.differ == nil {
		d, err := differ.New(cfg.Differ, cfg.RdiffPath)
		if err != nil {
			return nil, err
		}
		s.differ = d
	}

	s.ignore = engine.NewIgnoreList(cfg.Source, cfg.Excludes...)
	return s, nil
}

// Open locks the workspace and opens the catalog.
func (s *Service) Open() error {
	if err := s.ws.Setup(); err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	if err := s.catalog.Open(); err != nil {
		s.ws.Unlock()
		return err
	}
	return nil
}

func (s *Service) Close() error {
	return errors.Join(s.catalog.Close(), s.ws.Unlock())
}

func (s *Service) Workspace() *workspace.Workspace {
	return s.ws
}

// stored is a complete generation found in the workspace.
type stored struct {
	entry         generation.Entry
	signatureName string
	contentName   string
}

func (g stored) generation(ws *workspace.Workspace) engine.Generation {
	return engine.Generation{
		ID:        *g.entry.Signatures,
		Signature: ws.Path(g.signatureName),
		Content:   ws.Path(g.contentName),
	}
}

// inventory decodes the workspace listing into chains. Entries missing one
// half and incrementals without a full are logged and left out.
func (s *Service) inventory() ([]generation.Chain, map[string]stored, error) {
	names, err := s.ws.Names()
	if err != nil {
		return nil, nil, err
	}

	var ids []generation.Identity
	nameOf := make(map[string]string)
	for _, name := range names {
		id, ok := s.codec.Decode(s.cfg.Prefix, name)
		if !ok {
			continue
		}
		ids = append(ids, id)
		nameOf[identityKey(id.Role, id.Kind, id.Time)] = name
	}

	var complete []generation.Entry
	byKey := make(map[string]stored)
	for _, entry := range generation.Group(ids) {
		if !entry.Complete() {
			slog.Warn("skipping incomplete generation", "kind", entry.Kind, "time", entry.Time)
			continue
		}
		complete = append(complete, entry)
		byKey[entryKey(entry)] = stored{
			entry:         entry,
			signatureName: nameOf[identityKey(generation.RoleSignatures, entry.Kind, entry.Time)],
			contentName:   nameOf[identityKey(generation.RoleContent, entry.Kind, entry.Time)],
		}
	}

	chains, orphans := generation.BuildChains(complete)
	for _, orphan := range orphans {
		slog.Warn("skipping incremental generation without a full generation", "time", orphan.Time)
	}
	return chains, byKey, nil
}

// resolve maps the entries of a chain to their stored directories.
func (s *Service) resolve(chain generation.Chain, byKey map[string]stored) (engine.Generation, []engine.Generation) {
	full := byKey[entryKey(chain.Full)].generation(s.ws)
	incs := make([]engine.Generation, 0, len(chain.Incrementals))
	for _, inc := range chain.Incrementals {
		incs = append(incs, byKey[entryKey(inc)].generation(s.ws))
	}
	return full, incs
}

func identityKey(role generation.Role, kind generation.Kind, t time.Time) string {
	return fmt.Sprintf("%s/%s/%d", role, kind, t.Unix())
}

func entryKey(e generation.Entry) string {
	return identityKey(generation.RoleSignatures, e.Kind, e.Time)
}

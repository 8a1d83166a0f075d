// Package engine computes, produces, restores and merges backup generations.
//
// A pass is single threaded: New builds the previous generation's indexes and a
// staging area, ComputeDiff classifies the source tree against them, and
// ProduceArtifacts writes the generation into the staging area. Close releases
// the staging area and must run on every exit path.
package engine

import (
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/openmined/syftbackup/internal/differ"
	"github.com/openmined/syftbackup/internal/utils"
)

// ProgressFunc is called once per examined source file.
type ProgressFunc func(rel string, size int64)

type options struct {
	stagingParent string
	ignore        *IgnoreList
	progress      ProgressFunc
	passID        string
}

type Option func(*options)

// WithStagingDir creates the staging area under dir instead of the system temp dir.
func WithStagingDir(dir string) Option {
	return func(o *options) {
		o.stagingParent = dir
	}
}

func WithIgnoreList(ignore *IgnoreList) Option {
	return func(o *options) {
		o.ignore = ignore
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithPassID labels log lines of this pass. A random ID is used otherwise.
func WithPassID(id string) Option {
	return func(o *options) {
		o.passID = id
	}
}

// Engine runs one synchronization pass of a source folder against the
// signature set of the previous generation.
type Engine struct {
	source      string
	previous    string
	differ      differ.Differ
	staging     *Staging
	prevSigs    SignatureIndex
	prevFolders mapset.Set[string]
	opts        options
	log         *slog.Logger
}

// New prepares a pass. previous is the signature root of the previous generation;
// an empty or missing previous means there is no prior knowledge.
func New(source, previous string, d differ.Differ, opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.passID == "" {
		o.passID = uuid.NewString()
	}

	src, err := utils.ResolvePath(source)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}
	if !utils.DirExists(src) {
		return nil, ioErr("open source", src, ErrSourceMissing)
	}

	prevSigs, err := LoadSignatureIndex(previous)
	if err != nil {
		return nil, err
	}
	prevFolders, err := LoadFolderIndex(previous)
	if err != nil {
		return nil, err
	}

	staging, err := NewStaging(o.stagingParent)
	if err != nil {
		return nil, err
	}

	log := slog.With("pass", o.passID)
	log.Debug("engine ready", "source", src, "previous", previous, "staging", staging.Root(),
		"signatures", len(prevSigs), "folders", prevFolders.Cardinality())

	return &Engine{
		source:      src,
		previous:    previous,
		differ:      d,
		staging:     staging,
		prevSigs:    prevSigs,
		prevFolders: prevFolders,
		opts:        o,
		log:         log,
	}, nil
}

func (e *Engine) Source() string {
	return e.source
}

func (e *Engine) Staging() *Staging {
	return e.staging
}

func (e *Engine) PassID() string {
	return e.opts.passID
}

// Close releases the staging area.
func (e *Engine) Close() error {
	return e.staging.Release()
}

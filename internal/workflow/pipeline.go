package workflow

import (
	"context"
	"log/slog"
	"path/filepath"

	"ifgstack/internal/bundle"
	"ifgstack/internal/catalog"
	"ifgstack/internal/config"
	"ifgstack/internal/filter"
	"ifgstack/internal/ledger"
	"ifgstack/internal/logging"
	"ifgstack/internal/metrics"
	"ifgstack/internal/publish"
	"ifgstack/internal/render"
	"ifgstack/internal/request"
	"ifgstack/internal/stage"
	"ifgstack/internal/timeaxis"
)

// Publisher uploads a finished bundle directory.
type Publisher interface {
	Publish(ctx context.Context, dir, id string) ([]string, error)
}

// Pipeline coordinates a single stack run.
type Pipeline struct {
	cfg          *config.Config
	logger       *slog.Logger
	collaborator filter.Collaborator
	envelope     filter.EnvelopeFunc
	catalog      catalog.Catalog
	templates    *render.TemplateSet
	stages       []stage.Stage
	timeAxis     timeaxis.Reader
	publisher    Publisher
	ledger       *ledger.Store
	metrics      *metrics.Recorder
	preflight    bool
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithCollaborator replaces the command-backed filter collaborator.
func WithCollaborator(c filter.Collaborator) Option {
	return func(p *Pipeline) { p.collaborator = c }
}

// WithEnvelope replaces the product footprint envelope source.
func WithEnvelope(fn filter.EnvelopeFunc) Option {
	return func(p *Pipeline) { p.envelope = fn }
}

// WithCatalog sets the catalog consulted by the idempotency gate. Without a
// catalog every identity is treated as new.
func WithCatalog(c catalog.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithStages replaces the standard processing sequence.
func WithStages(stages []stage.Stage) Option {
	return func(p *Pipeline) { p.stages = stages }
}

// WithTimeAxis replaces the h5dump time-axis reader.
func WithTimeAxis(r timeaxis.Reader) Option {
	return func(p *Pipeline) { p.timeAxis = r }
}

// WithPublisher sets the bundle publisher. A nil publisher disables upload.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLedger records runs in store.
func WithLedger(store *ledger.Store) Option {
	return func(p *Pipeline) { p.ledger = store }
}

// WithMetrics replaces the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

// WithPreflight enables the directory and executable checks. Directories and
// the filter run before the catalog gate; stage and bundle executables are
// checked only once the product is known to be new.
func WithPreflight(enabled bool) Option {
	return func(p *Pipeline) { p.preflight = enabled }
}

// New constructs a Pipeline from cfg. Templates are loaded once here so a
// broken override directory fails before any run starts.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	templates, err := render.LoadTemplates(cfg.Paths.TemplateDir)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:       cfg,
		logger:    logger,
		templates: templates,
		metrics:   metrics.NewRecorder(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.collaborator == nil {
		p.collaborator = &filter.CommandCollaborator{
			Command: cfg.Filter.Command,
			Timeout: cfg.FilterTimeout(),
			Logger:  logger,
		}
	}
	if p.stages == nil {
		p.stages = StandardStages(cfg)
	}
	if p.timeAxis == nil {
		p.timeAxis = timeaxis.H5DumpReader{Command: cfg.Bundle.TimeAxisCommand}
	}
	if p.publisher == nil && cfg.Publish.Enabled {
		pub, err := publish.NewFromConfig(cfg.Publish, logger)
		if err != nil {
			return nil, err
		}
		p.publisher = pub
	}
	return p, nil
}

// StandardStages builds the four processing stages from the configured
// executables.
func StandardStages(cfg *config.Config) []stage.Stage {
	return stage.Standard(stage.Commands{
		Python:       cfg.Stages.Python,
		PrepStack:    cfg.Stages.PrepStackCommand,
		ProcessStack: cfg.Stages.ProcessStackCommand,
	})
}

// Metrics exposes the run metrics recorder.
func (p *Pipeline) Metrics() *metrics.Recorder { return p.metrics }

func (p *Pipeline) adapter(workdir string) *filter.Adapter {
	envelope := p.envelope
	if envelope == nil {
		envelope = func(products []string) (request.Region, error) {
			return filter.FootprintEnvelope(resolveAll(workdir, products))
		}
	}
	if cc, ok := p.collaborator.(*filter.CommandCollaborator); ok && cc.Dir == "" {
		copied := *cc
		copied.Dir = workdir
		return filter.NewAdapter(&copied, p.logger).WithEnvelope(envelope)
	}
	return filter.NewAdapter(p.collaborator, p.logger).WithEnvelope(envelope)
}

func (p *Pipeline) assembler() *bundle.Assembler {
	return bundle.NewAssembler(bundle.Options{
		TimeAxis:         p.timeAxis,
		ThumbnailSize:    p.cfg.Bundle.ThumbnailSize,
		CompressionLevel: p.cfg.Bundle.CompressionLevel,
		NetworkPlot:      p.cfg.Bundle.NetworkPlot,
		Logger:           p.logger,
	})
}

func resolveAll(workdir string, paths []string) []string {
	out := make([]string, len(paths))
	for i, path := range paths {
		if filepath.IsAbs(path) {
			out[i] = path
			continue
		}
		out[i] = filepath.Join(workdir, path)
	}
	return out
}

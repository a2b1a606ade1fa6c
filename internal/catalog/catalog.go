package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ifgstack/internal/config"
	"ifgstack/internal/logging"
	"ifgstack/internal/services"
)

// Dataset describes a produced bundle for registration.
type Dataset struct {
	ID        string
	Version   string
	Label     string
	Location  [][2]float64
	StartTime string
	EndTime   string
	Path      string
}

// Catalog is the dataset existence and registration contract.
type Catalog interface {
	Exists(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, dataset Dataset) error
	Close() error
}

// Open constructs the backend selected in cfg.
func Open(cfg *config.Config) (Catalog, error) {
	switch cfg.Catalog.Backend {
	case config.CatalogHTTP:
		return NewHTTPCatalog(cfg.Catalog.URL, cfg.Catalog.Index, cfg.CatalogTimeout()), nil
	case config.CatalogSQLite:
		c, err := OpenSQLite(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, services.Wrap(services.ErrConfig, "catalog", "open",
			fmt.Sprintf("Unsupported catalog backend %q", cfg.Catalog.Backend), nil)
	}
}

// Result is the gate decision for one identity.
type Result struct {
	Exists bool
	// Unavailable is set when the catalog could not answer; Exists is then false.
	Unavailable error
}

// Gate applies the idempotency policy on top of a Catalog.
type Gate struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewGate wraps c.
func NewGate(c Catalog, logger *slog.Logger) *Gate {
	return &Gate{catalog: c, logger: logging.NewComponentLogger(logger, "catalog")}
}

// Check reports whether id is already cataloged. Errors never stop the
// pipeline: they are logged and reported as Unavailable.
func (g *Gate) Check(ctx context.Context, id string) Result {
	logger := logging.WithContext(ctx, g.logger)
	if g.catalog == nil {
		return Result{}
	}
	started := time.Now()
	exists, err := g.catalog.Exists(ctx, id)
	if err != nil {
		logging.WarnWithContext(logger, "catalog check failed; proceeding as absent", "catalog_unavailable",
			logging.String("identity", id),
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "verify the catalog endpoint; the product may be generated twice"),
			logging.String(logging.FieldImpact, "duplicate detection skipped for this run"),
		)
		return Result{Unavailable: err}
	}
	logger.Info("catalog check complete",
		logging.String(logging.FieldEventType, "catalog_check"),
		logging.String("identity", id),
		logging.Bool("exists", exists),
		logging.Duration("duration", time.Since(started)),
	)
	return Result{Exists: exists}
}

// Register records dataset in the catalog.
func (g *Gate) Register(ctx context.Context, dataset Dataset) error {
	if g.catalog == nil {
		return nil
	}
	if err := g.catalog.Register(ctx, dataset); err != nil {
		return services.Wrap(services.ErrCatalogUnavailable, "catalog", "register", "Failed to register "+dataset.ID, err)
	}
	return nil
}

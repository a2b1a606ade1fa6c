package workflow

import (
	"context"
	"path/filepath"

	"ifgstack/internal/catalog"
	"ifgstack/internal/filter"
	"ifgstack/internal/identity"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
)

// Identification is the dry-run result of loading, filtering and naming a
// request.
type Identification struct {
	Request  *request.StackRequest
	Result   *filter.Result
	Identity identity.Identity
	// Exists reports whether the catalog already holds the identity.
	Exists bool
}

// Identify derives the product identity for requestPath without executing
// any stage or writing any file. The catalog is consulted read-only.
func (p *Pipeline) Identify(ctx context.Context, requestPath, workdir string) (*Identification, error) {
	workdir, err := filepath.Abs(workdir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfig, "workflow", "resolve workdir", workdir, err)
	}
	if !filepath.IsAbs(requestPath) {
		requestPath = filepath.Join(workdir, requestPath)
	}
	req, err := request.Load(requestPath)
	if err != nil {
		return nil, err
	}
	result, err := p.adapter(workdir).Run(ctx, req)
	if err != nil {
		return nil, err
	}
	id, err := identity.Generator{Prefix: p.cfg.Bundle.IDPrefix}.Generate(identity.ParamsFrom(req, result))
	if err != nil {
		return nil, err
	}
	check := catalog.NewGate(p.catalog, p.logger).Check(ctx, id.String())
	return &Identification{Request: req, Result: result, Identity: id, Exists: check.Exists}, nil
}

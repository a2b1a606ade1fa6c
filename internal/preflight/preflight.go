package preflight

import (
	"context"

	"ifgstack/internal/catalog"
	"ifgstack/internal/config"
	"ifgstack/internal/deps"
	"ifgstack/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Environment checks what a run needs before it can decide whether the
// product is new: the directories and the filter executable.
func Environment(cfg *config.Config, workdir string) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Working directory", workdir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.TemplateDir != "" {
		results = append(results, CheckDirectoryReadable("Template directory", cfg.Paths.TemplateDir))
	}
	return append(results, binaryResults([]deps.Requirement{deps.FilterRequirement(cfg)})...)
}

// Processing checks what only a new product needs: every stage that can
// report readiness and the bundle tooling.
func Processing(ctx context.Context, cfg *config.Config, stages []stage.Stage) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckStages(ctx, stages)
	return append(results, binaryResults(deps.BundleRequirements(cfg))...)
}

// RunAll executes every preflight check for a run in workdir. A nil catalog
// skips the catalog check.
func RunAll(ctx context.Context, cfg *config.Config, workdir string, stages []stage.Stage, cat catalog.Catalog) []Result {
	if cfg == nil {
		return nil
	}
	results := Environment(cfg, workdir)
	results = append(results, Processing(ctx, cfg, stages)...)
	if cat != nil {
		results = append(results, CheckCatalog(ctx, cfg.Catalog.Backend, cat))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

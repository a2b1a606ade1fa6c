package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"ifgstack/internal/catalog"
	"ifgstack/internal/deps"
	"ifgstack/internal/stage"
)

// probeID never names a real product; it only exercises the lookup path.
const probeID = "ifgstack-preflight-probe"

// CheckCatalog verifies that the catalog answers an existence query.
// A failure here is informational: runs proceed when the catalog is down.
func CheckCatalog(ctx context.Context, backend string, cat catalog.Catalog) Result {
	name := fmt.Sprintf("Catalog (%s)", backend)
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := cat.Exists(checkCtx, probeID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "lookup timed out (catalog unresponsive)"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and is readable.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckStages asks each stage that implements stage.HealthChecker whether
// it could start. Stages without a readiness probe are skipped.
func CheckStages(ctx context.Context, stages []stage.Stage) []Result {
	var results []Result
	for _, st := range stages {
		hc, ok := st.(stage.HealthChecker)
		if !ok {
			continue
		}
		h := hc.HealthCheck(ctx)
		results = append(results, Result{Name: "Stage " + h.Name, Passed: h.Ready, Detail: h.Detail})
	}
	return results
}

func binaryResults(reqs []deps.Requirement) []Result {
	statuses := deps.CheckBinaries(reqs)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		r := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Detail}
		if status.Available {
			r.Detail = status.Command
		}
		results = append(results, r)
	}
	return results
}

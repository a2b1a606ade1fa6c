// Package deps reports whether the external executables a run needs are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"ifgstack/internal/config"
)

// Requirement defines an external executable the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// FilterRequirement describes the filter collaborator executable, which runs
// before the catalog gate.
func FilterRequirement(cfg *config.Config) Requirement {
	filterCmd := ""
	if len(cfg.Filter.Command) > 0 {
		filterCmd = cfg.Filter.Command[0]
	}
	return Requirement{Name: "Filter", Command: filterCmd, Description: "Selects interferograms for the stack"}
}

// BundleRequirements lists the executables bundle assembly invokes. Stage
// executables report their own readiness.
func BundleRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "h5dump", Command: cfg.Bundle.TimeAxisCommand, Description: "Reads the stack time axis"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

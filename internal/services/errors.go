package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig             = errors.New("configuration error")
	ErrValidation         = errors.New("validation error")
	ErrAllFilteredOut     = errors.New("all products filtered out")
	ErrStageFailure       = errors.New("stage failure")
	ErrAssembly           = errors.New("bundle assembly error")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrExternalTool       = errors.New("external tool error")
	ErrBusy               = errors.New("working directory busy")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short classification label for err, used in logs, the run
// ledger and the error report.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrAllFilteredOut):
		return "all_filtered_out"
	case errors.Is(err, ErrStageFailure):
		return "stage_failure"
	case errors.Is(err, ErrAssembly):
		return "assembly"
	case errors.Is(err, ErrCatalogUnavailable):
		return "catalog_unavailable"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

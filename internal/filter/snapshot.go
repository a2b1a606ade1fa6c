package filter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ifgstack/internal/request"
)

// SnapshotName is the diagnostic filter snapshot written to the working directory.
const SnapshotName = "filt_info.json"

type snapshot struct {
	Region         [4]request.Scalar    `json:"region_of_interest"`
	Candidates     int                  `json:"candidates"`
	CenterLinesUTC []string             `json:"center_lines_utc"`
	IfgInfo        map[string]IfgRecord `json:"ifg_info"`
	IfgCoverage    map[string]float64   `json:"ifg_coverage"`
}

// WriteSnapshot records the filter decision in dir for later inspection.
func WriteSnapshot(dir string, result *Result) (string, error) {
	r := result.Region
	snap := snapshot{
		Region:      [4]request.Scalar{r.MinLat, r.MaxLat, r.MinLon, r.MaxLon},
		Candidates:  result.Candidates,
		IfgInfo:     result.Records,
		IfgCoverage: result.Coverage,
	}
	for _, c := range result.CenterLines {
		snap.CenterLinesUTC = append(snap.CenterLinesUTC, c.UTC().Format(time.RFC3339))
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode filter snapshot: %w", err)
	}
	path := filepath.Join(dir, SnapshotName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write filter snapshot: %w", err)
	}
	return path, nil
}

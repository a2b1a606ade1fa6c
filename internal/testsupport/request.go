package testsupport

import (
	"path/filepath"
	"testing"
)

// SampleRequestJSON is a complete descriptor with a region of interest.
const SampleRequestJSON = `{
  "project": "hawaii",
  "products": [
    "S1-IFG_RM_M1S1_TN042_20180101T040000-20180113T040000_s1-resorb-a1b2-v2.0.0",
    "S1-IFG_RM_M1S1_TN042_20180113T040000-20180125T040000_s1-resorb-c3d4-v2.0.0",
    "S1-IFG_RM_M1S1_TN042_20180125T040000-20180206T040000_s1-resorb-e5f6-v2.0.0"
  ],
  "region_of_interest": [19.0, 20.5, -156.0, -154.5],
  "ref_point": [19.5, -155.2],
  "ref_box_num_pixels": [5, 7],
  "coverage_threshold": 0.95,
  "coherence_threshold": 0.3,
  "range_pixel_size": 2.329562,
  "azimuth_pixel_size": 13.94,
  "inc": 34,
  "filt": 0.05,
  "netramp": true,
  "gpsramp": false,
  "subswath": 2
}
`

// WriteRequest writes SampleRequestJSON (or content when non-empty) into dir
// and returns its path.
func WriteRequest(t testing.TB, dir, content string) string {
	t.Helper()
	if content == "" {
		content = SampleRequestJSON
	}
	path := filepath.Join(dir, "request.json")
	WriteFile(t, path, content)
	return path
}

package testsupport

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"ifgstack/internal/filter"
	"ifgstack/internal/request"
)

// SampleInputs loads SampleRequestJSON and normalizes SampleOutput(n) against
// its region of interest.
func SampleInputs(t testing.TB, n int) (*request.StackRequest, *filter.Result) {
	t.Helper()
	req, err := request.Load(WriteRequest(t, t.TempDir(), ""))
	if err != nil {
		t.Fatalf("load sample request: %v", err)
	}
	result, err := filter.Normalize(SampleOutput(n))
	if err != nil {
		t.Fatalf("normalize sample output: %v", err)
	}
	if req.Region != nil {
		result.Region = *req.Region
	}
	result.Candidates = len(req.Products)
	return req, result
}

// WritePNG writes a w x h gradient image to path.
func WritePNG(t testing.TB, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// SeedArtifacts populates workdir with every file the auxiliary rendering
// and the four stages leave behind, plus the filter snapshot.
func SeedArtifacts(t testing.TB, workdir string) {
	t.Helper()
	for _, name := range []string{"ifg.list", "example.rsc", "prepdataxml.py", "prepsbasxml.py", "userfn.py", "data.xml", "sbas.xml", "filt_info.json"} {
		WriteFile(t, filepath.Join(workdir, name), name+"\n")
	}
	WriteFile(t, filepath.Join(workdir, "Stack", "RAW-STACK.h5"), "raw stack")
	WriteFile(t, filepath.Join(workdir, "Stack", "PROC-STACK.h5"), "processed stack")
	WritePNG(t, filepath.Join(workdir, "Figs", "Igrams", "ifg_001.png"), 400, 300)
	WritePNG(t, filepath.Join(workdir, "Figs", "Igrams", "ifg_002.png"), 400, 300)
}

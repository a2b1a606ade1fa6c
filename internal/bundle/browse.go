package bundle

import (
	"fmt"
	"image/color"
	"slices"
	"time"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"ifgstack/internal/filter"
)

// Browse image names inside the bundle.
const (
	BrowseImage     = "browse.png"
	BrowseThumbnail = "browse_small.png"
	BaselineNetwork = "baseline_network.png"
)

const pairDateLayout = "20060102"

// writeThumbnail scales src so its longer side is size pixels, keeping the
// aspect ratio, and saves it to dst. Small figures are enlarged.
func writeThumbnail(src, dst string, size int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	width, height := size, 0
	if b := img.Bounds(); b.Dy() > b.Dx() {
		width, height = 0, size
	}
	thumb := imaging.Resize(img, width, height, imaging.Lanczos)
	if err := imaging.Save(thumb, dst); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}

// pairBaseline is one interferogram on the acquisition time axis.
type pairBaseline struct {
	start, stop int64
	bperp       float64
}

// acquisitionBaselines places every acquisition on the perpendicular
// baseline axis. Each interferogram constrains pos[stop]-pos[start] to its
// bperp. The earliest acquisition of each connected group is fixed at zero
// and the rest are solved in the least-squares sense.
func acquisitionBaselines(pairs []pairBaseline) (map[int64]float64, error) {
	var dates []int64
	seen := map[int64]bool{}
	for _, p := range pairs {
		for _, d := range []int64{p.start, p.stop} {
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}
	slices.Sort(dates)

	parent := make(map[int64]int64, len(dates))
	for _, d := range dates {
		parent[d] = d
	}
	var find func(int64) int64
	find = func(d int64) int64 {
		if parent[d] != d {
			parent[d] = find(parent[d])
		}
		return parent[d]
	}
	for _, p := range pairs {
		a, b := find(p.start), find(p.stop)
		if a != b {
			// Keep the earlier date as the group root.
			if b < a {
				a, b = b, a
			}
			parent[b] = a
		}
	}

	column := map[int64]int{}
	for _, d := range dates {
		if find(d) != d {
			column[d] = len(column)
		}
	}
	positions := make(map[int64]float64, len(dates))
	for _, d := range dates {
		positions[d] = 0
	}
	if len(column) == 0 {
		return positions, nil
	}

	a := mat.NewDense(len(pairs), len(column), nil)
	b := mat.NewVecDense(len(pairs), nil)
	for row, p := range pairs {
		if col, ok := column[p.stop]; ok {
			a.Set(row, col, a.At(row, col)+1)
		}
		if col, ok := column[p.start]; ok {
			a.Set(row, col, a.At(row, col)-1)
		}
		b.SetVec(row, p.bperp)
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("solve acquisition baselines: %w", err)
	}
	for d, col := range column {
		positions[d] = x.AtVec(col)
	}
	return positions, nil
}

// writeNetworkPlot draws each interferogram as a segment between its two
// acquisitions, placed at their baselines relative to the first acquisition.
func writeNetworkPlot(records []filter.IfgRecord, title, dst string) error {
	if len(records) == 0 {
		return fmt.Errorf("no interferograms to plot")
	}
	pairs := make([]pairBaseline, 0, len(records))
	for _, rec := range records {
		start, err := time.Parse(pairDateLayout, rec.StartDT)
		if err != nil {
			return fmt.Errorf("%s: start date: %w", rec.Product, err)
		}
		stop, err := time.Parse(pairDateLayout, rec.StopDT)
		if err != nil {
			return fmt.Errorf("%s: stop date: %w", rec.Product, err)
		}
		pairs = append(pairs, pairBaseline{start: start.Unix(), stop: stop.Unix(), bperp: rec.Bperp})
	}
	positions, err := acquisitionBaselines(pairs)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Acquisition date"
	p.Y.Label.Text = "Perpendicular baseline (m)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	for _, pair := range pairs {
		line, err := plotter.NewLine(plotter.XYs{
			{X: float64(pair.start), Y: positions[pair.start]},
			{X: float64(pair.stop), Y: positions[pair.stop]},
		})
		if err != nil {
			return err
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
	}

	dates := make([]int64, 0, len(positions))
	for d := range positions {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	points := make(plotter.XYs, 0, len(dates))
	for _, d := range dates {
		points = append(points, plotter.XY{X: float64(d), Y: positions[d]})
	}
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(scatter)

	return p.Save(8*vg.Inch, 5*vg.Inch, dst)
}

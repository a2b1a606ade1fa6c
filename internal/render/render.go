package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"text/template"
	"time"

	"ifgstack/internal/filter"
	"ifgstack/internal/logging"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
	"ifgstack/internal/stage"
)

// Data is the template context: the earliest interferogram record plus the
// request parameters the descriptor scripts need.
type Data struct {
	filter.IfgRecord
	NValid             int
	Inc                request.Scalar
	CoherenceThreshold request.Scalar
	Filt               request.Scalar
	NetRamp            request.Scalar
	GPSRamp            request.Scalar
}

// CenterLineSeconds is the center-line time as seconds past midnight.
func (d Data) CenterLineSeconds() string {
	t := d.CenterLineUTC.UTC()
	if t.IsZero() {
		return "0"
	}
	midnight := t.Truncate(24 * time.Hour)
	return strconv.FormatFloat(t.Sub(midnight).Seconds(), 'f', -1, 64)
}

// Renderer writes auxiliary files into a working directory.
type Renderer struct {
	templates *TemplateSet
	logger    *slog.Logger
}

// NewRenderer constructs a Renderer over a loaded template set.
func NewRenderer(templates *TemplateSet, logger *slog.Logger) *Renderer {
	return &Renderer{templates: templates, logger: logging.NewComponentLogger(logger, "render")}
}

// Render writes ifg.list, example.rsc, prepdataxml.py, prepsbasxml.py and
// userfn.py into workdir and returns the names written.
func (r *Renderer) Render(workdir string, req *request.StackRequest, result *filter.Result) ([]string, error) {
	if result == nil || result.Len() == 0 {
		return nil, services.Wrap(services.ErrAllFilteredOut, "render", "render", "no records to render", nil)
	}
	data := Data{
		IfgRecord:          result.First(),
		NValid:             result.Len(),
		Inc:                req.Inc,
		CoherenceThreshold: req.CoherenceThreshold,
		Filt:               req.Filt,
		NetRamp:            req.NetRamp,
		GPSRamp:            req.GPSRamp,
	}

	var written []string
	write := func(name string, content []byte, mode os.FileMode) error {
		if err := os.WriteFile(filepath.Join(workdir, name), content, mode); err != nil {
			return services.Wrap(services.ErrStageFailure, "render", "write", name, err)
		}
		written = append(written, name)
		return nil
	}

	if err := write(stage.IfgList, IfgList(result), 0o644); err != nil {
		return written, err
	}
	for _, item := range []struct {
		name string
		tmpl *template.Template
	}{
		{stage.ExampleRSC, r.templates.exampleRSC},
		{stage.PrepDataScript, r.templates.prepData},
		{stage.PrepSBASScript, r.templates.prepSBAS},
	} {
		var buf bytes.Buffer
		if err := item.tmpl.Execute(&buf, data); err != nil {
			return written, services.Wrap(services.ErrStageFailure, "render", "execute template", item.name, err)
		}
		if err := write(item.name, buf.Bytes(), 0o755); err != nil {
			return written, err
		}
	}
	if err := write(stage.UserFn, r.templates.userFn, 0o644); err != nil {
		return written, err
	}

	r.logger.Info("auxiliary files rendered",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.Int("ifg_count", data.NValid),
		logging.Strings("files", written),
	)
	return written, nil
}

// IfgList returns the interferogram listing, one line per record in
// date-pair order: start, stop, perpendicular baseline, sensor.
func IfgList(result *filter.Result) []byte {
	var buf bytes.Buffer
	for _, rec := range result.Sorted() {
		fmt.Fprintf(&buf, "%s %s %7.2f %s\n", rec.StartDT, rec.StopDT, rec.Bperp, rec.Sensor)
	}
	return buf.Bytes()
}

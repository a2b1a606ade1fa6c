package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"ifgstack/internal/fileutil"
	"ifgstack/internal/filter"
	"ifgstack/internal/logging"
	"ifgstack/internal/metadata"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
	"ifgstack/internal/stage"
	"ifgstack/internal/timeaxis"
)

// carriedFiles are moved from the working directory into every bundle.
var carriedFiles = []string{
	stage.DataXML,
	stage.ExampleRSC,
	stage.IfgList,
	stage.PrepDataScript,
	stage.PrepSBASScript,
	stage.SBASXML,
	stage.UserFn,
}

// Options configures an Assembler.
type Options struct {
	TimeAxis         timeaxis.Reader
	ThumbnailSize    int
	CompressionLevel int
	NetworkPlot      bool
	Logger           *slog.Logger
}

// Assembler builds product bundles.
type Assembler struct {
	timeAxis      timeaxis.Reader
	thumbnailSize int
	level         int
	networkPlot   bool
	logger        *slog.Logger
}

// NewAssembler constructs an Assembler. Zero sizes fall back to 250 pixels
// and best compression.
func NewAssembler(opts Options) *Assembler {
	a := &Assembler{
		timeAxis:      opts.TimeAxis,
		thumbnailSize: opts.ThumbnailSize,
		level:         opts.CompressionLevel,
		networkPlot:   opts.NetworkPlot,
		logger:        logging.NewComponentLogger(opts.Logger, "bundle"),
	}
	if a.timeAxis == nil {
		a.timeAxis = timeaxis.H5DumpReader{}
	}
	if a.thumbnailSize <= 0 {
		a.thumbnailSize = 250
	}
	if a.level == 0 {
		a.level = 9
	}
	return a
}

// Input is what a bundle is built from.
type Input struct {
	ID      string
	Version string
	Workdir string
	Request *request.StackRequest
	Result  *filter.Result
}

// Bundle describes a completed product directory.
type Bundle struct {
	ID        string
	Dir       string
	Timesteps []string
	Metadata  metadata.Files
	Dataset   metadata.Dataset
	Warnings  []Outcome
}

// FinalDir returns the directory a finished bundle is published under.
func FinalDir(workdir, id string) string {
	return filepath.Join(workdir, id)
}

// StagingDir returns the hidden directory a bundle is built in.
func StagingDir(workdir, id string) string {
	return filepath.Join(workdir, "."+id+".partial")
}

// Assemble moves stage artifacts into a new bundle directory. On a fatal
// outcome the final directory does not exist and the staging directory is
// left for inspection.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Bundle, error) {
	logger := logging.WithContext(ctx, a.logger)
	finalDir := FinalDir(in.Workdir, in.ID)
	staging := StagingDir(in.Workdir, in.ID)
	b := &Bundle{ID: in.ID, Dir: finalDir}

	var folded outcomes
	steps := []struct {
		name string
		run  func() *Outcome
	}{
		{"read time axis", func() *Outcome {
			timesteps, err := timeaxis.Read(ctx, a.timeAxis, filepath.Join(in.Workdir, filepath.FromSlash(stage.ProcStackFile)))
			b.Timesteps = timesteps
			return fatal("read time axis", err)
		}},
		{"create staging", func() *Outcome { return fatal("create staging", a.createStaging(finalDir, staging)) }},
		{"compress stack", func() *Outcome { return fatal("compress stack", a.compressStack(in.Workdir, staging)) }},
		{"browse image", func() *Outcome { return fatal("browse image", copyBrowse(in.Workdir, staging)) }},
		{"browse thumbnail", func() *Outcome {
			err := writeThumbnail(filepath.Join(staging, BrowseImage), filepath.Join(staging, BrowseThumbnail), a.thumbnailSize)
			return warning("browse thumbnail", err)
		}},
		{"baseline network", func() *Outcome {
			if !a.networkPlot || in.Result == nil {
				return nil
			}
			return warning("baseline network", writeNetworkPlot(in.Result.Sorted(), in.ID, filepath.Join(staging, BaselineNetwork)))
		}},
		{"move figures", func() *Outcome { return fatal("move figures", moveFigures(in.Workdir, staging)) }},
		{"write context", func() *Outcome { return fatal("write context", writeContext(in, staging)) }},
		{"move snapshot", func() *Outcome {
			_, err := fileutil.MoveInto(filepath.Join(in.Workdir, filter.SnapshotName), staging)
			return warning("move snapshot", err)
		}},
		{"move inputs", func() *Outcome { return fatal("move inputs", moveCarried(in.Workdir, staging)) }},
		{"write metadata", func() *Outcome {
			mdIn := metadata.Input{ID: in.ID, Version: in.Version, Request: in.Request, Result: in.Result, Timesteps: b.Timesteps}
			files, err := metadata.Emit(staging, mdIn)
			b.Metadata = files
			b.Dataset = metadata.BuildDataset(mdIn)
			return fatal("write metadata", err)
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			folded.add(fatal(step.name, err))
			break
		}
		o := step.run()
		if o != nil && o.Severity == Warning {
			logging.WarnWithContext(logger, "bundle step degraded", "bundle_warning",
				logging.String("step", o.Step),
				logging.Error(o.Err),
				logging.String(logging.FieldImpact, "bundle is complete without this artifact"),
			)
		}
		if !folded.add(o) {
			break
		}
	}
	b.Warnings = folded.warnings
	if err := folded.err(); err != nil {
		logging.ErrorWithContext(logger, "bundle assembly failed", "bundle_failed",
			logging.String("staging_dir", staging),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the staging directory; no bundle was published"),
		)
		return nil, services.Wrap(services.ErrAssembly, "bundle", "assemble", in.ID, err)
	}

	if err := os.Rename(staging, finalDir); err != nil {
		return nil, services.Wrap(services.ErrAssembly, "bundle", "publish", "rename staging directory", err)
	}
	b.Metadata.Met = filepath.Join(finalDir, filepath.Base(b.Metadata.Met))
	b.Metadata.Dataset = filepath.Join(finalDir, filepath.Base(b.Metadata.Dataset))
	logger.Info("bundle assembled",
		logging.String(logging.FieldEventType, "bundle_complete"),
		logging.String("dir", finalDir),
		logging.Int("timesteps", len(b.Timesteps)),
		logging.Int("warnings", len(b.Warnings)),
	)
	return b, nil
}

func (a *Assembler) createStaging(finalDir, staging string) error {
	if _, err := os.Lstat(finalDir); err == nil {
		return fmt.Errorf("bundle directory %s already exists", finalDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear stale staging: %w", err)
	}
	return os.Mkdir(staging, 0o755)
}

// compressStack moves every Stack entry into staging and gzips regular files.
func (a *Assembler) compressStack(workdir, staging string) error {
	entries, err := os.ReadDir(filepath.Join(workdir, stage.StackDir))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		moved, err := fileutil.MoveInto(filepath.Join(workdir, stage.StackDir, entry.Name()), staging)
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if _, err := gzipFile(moved, a.level); err != nil {
			return fmt.Errorf("compress %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// copyBrowse copies the first figure, in name order, as the browse image.
func copyBrowse(workdir, staging string) error {
	figures, err := figurePaths(workdir)
	if err != nil {
		return err
	}
	if len(figures) == 0 {
		return fmt.Errorf("no figures in %s", stage.IgramFigsDir)
	}
	return fileutil.CopyFileVerified(figures[0], filepath.Join(staging, BrowseImage))
}

func figurePaths(workdir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(workdir, filepath.FromSlash(stage.IgramFigsDir), "*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func moveFigures(workdir, staging string) error {
	figures, err := figurePaths(workdir)
	if err != nil {
		return err
	}
	for _, fig := range figures {
		if _, err := fileutil.MoveInto(fig, staging); err != nil {
			return err
		}
	}
	return nil
}

// ContextFileName returns the name of the request copy kept in the bundle.
func ContextFileName(id string) string { return id + ".context.json" }

func writeContext(in Input, staging string) error {
	data, err := in.Request.ContextJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(staging, ContextFileName(in.ID)), data, 0o644)
}

func moveCarried(workdir, staging string) error {
	for _, name := range carriedFiles {
		if _, err := fileutil.MoveInto(filepath.Join(workdir, name), staging); err != nil {
			return err
		}
	}
	return nil
}

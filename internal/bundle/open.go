package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ifgstack/internal/metadata"
	"ifgstack/internal/services"
)

// Open loads a finished bundle left in workdir by an earlier run that failed
// after assembly. It returns nil when no bundle directory exists for id.
func Open(workdir, id string) (*Bundle, error) {
	dir := FinalDir(workdir, id)
	info, err := os.Lstat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrAssembly, "bundle", "open", dir, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrAssembly, "bundle", "open", fmt.Sprintf("%s is not a directory", dir), nil)
	}
	files := metadata.Files{
		Met:     filepath.Join(dir, metadata.MetFileName(id)),
		Dataset: filepath.Join(dir, metadata.DatasetFileName(id)),
	}
	ds, err := metadata.ReadDataset(files.Dataset)
	if err != nil {
		return nil, services.Wrap(services.ErrAssembly, "bundle", "open",
			fmt.Sprintf("%s has no readable dataset descriptor", dir), err)
	}
	if _, err := os.Stat(files.Met); err != nil {
		return nil, services.Wrap(services.ErrAssembly, "bundle", "open",
			fmt.Sprintf("%s has no product metadata", dir), err)
	}
	return &Bundle{ID: id, Dir: dir, Metadata: files, Dataset: ds}, nil
}

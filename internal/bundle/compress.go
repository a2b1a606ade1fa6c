package bundle

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// GzipSuffix is appended to compressed stack files.
const GzipSuffix = ".gz"

// gzipFile replaces path with path.gz compressed at level and returns the
// new path. The original is removed only after the archive is closed.
func gzipFile(path string, level int) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", err
	}
	dst := path + GzipSuffix
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return "", err
	}
	zw, err := gzip.NewWriterLevel(out, level)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("gzip level %d: %w", level, err)
	}
	zw.Name = info.Name()
	zw.ModTime = info.ModTime()
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return dst, nil
}

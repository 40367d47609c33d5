package bundle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// File writes the bundle to path. Output goes to a temporary file next to path
// that is renamed into place only once every source was written, and removed on
// any failure, so path is either the complete new bundle or left untouched.
func File(ctx context.Context, path string, sources []Source, opts Options) (st Stats, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return st, &SinkError{Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	st, err = Write(ctx, tmp, sources, opts)
	if err != nil {
		var se *SinkError
		if errors.As(err, &se) && se.Path == "" {
			se.Path = path
		}
		return st, err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return st, &SinkError{Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return st, &SinkError{Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return st, &SinkError{Path: path, Err: err}
	}
	return st, nil
}

package pipeline

import (
	"os"
	"path/filepath"

	"github.com/scipunch/rssreader/apperr"
)

// writeFileAtomic replaces path with data so that readers see either the old
// file or the complete new one.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return apperr.InvalidPath(path, err)
	}
	if !info.IsDir() {
		return apperr.InvalidPath(path, &os.PathError{Op: "stat", Path: dir, Err: os.ErrInvalid})
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.InvalidPath(path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return apperr.InvalidPath(path, err)
	}
	if err = tmp.Sync(); err != nil {
		return apperr.InvalidPath(path, err)
	}
	if err = tmp.Close(); err != nil {
		return apperr.InvalidPath(path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return apperr.InvalidPath(path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return apperr.InvalidPath(path, err)
	}
	return nil
}

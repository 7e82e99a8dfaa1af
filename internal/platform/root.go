package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/verbatim/pkg/adapters/fs"
)

// ErrRootNotFound is returned by FindRoot when no vault marker exists above the start directory.
var ErrRootNotFound = errors.New("vault root not found")

// FindRoot walks upwards from startDir looking for a vault marker: the
// .verbatim system directory or a verbatim.yaml file.
// It returns the absolute path of the first directory holding one.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if exists(filepath.Join(dir, fs.DefaultSystemDir)) || exists(filepath.Join(dir, ConfigFileName)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

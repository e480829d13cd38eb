package utils

import (
	"errors"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("file is not found")

// FindUpward looks for a file named name in dir and its ancestors, nearer first.
//
// It returns the path of the file found.
func FindUpward(dir string, name string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

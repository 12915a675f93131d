package utils

import (
	"os"
	"path/filepath"
)

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
func MakeDirectory(dirToMake string) error {
	return os.MkdirAll(dirToMake, 0777)
}

// CreateFile creates a file at the given path with the given file name, creating the directory path to it if needed.
// Returns the open file, or an error if one occurs.
func CreateFile(path string, fileName string) (*os.File, error) {
	// Ensure the directory we want to write to exists.
	if err := MakeDirectory(path); err != nil {
		return nil, err
	}

	// Create the file at the joined path.
	file, err := os.Create(filepath.Join(path, fileName))
	if err != nil {
		return nil, err
	}
	return file, nil
}

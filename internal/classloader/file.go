package classloader

import (
	"fmt"
	"os"
)

// ErrCannotOpenFile wraps any I/O failure reading a class file from disk.
var ErrCannotOpenFile = fmt.Errorf("classloader: cannot open file")

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCannotOpenFile, path, err)
	}
	return data, nil
}

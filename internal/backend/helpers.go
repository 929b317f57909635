package backend

import (
	"os"
	"path/filepath"
	"strings"
)

func openForExtract(path string) (*os.File, error) {
	return os.Open(path)
}

func pathBase(path string) string {
	return filepath.Base(path)
}

func readTrimmedFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

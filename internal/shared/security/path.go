package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape indicates the resolved path would leave the output directory.
	ErrPathEscape = errors.New("path escapes output directory")
	// ErrUnsafePath is returned for empty paths, ".." segments and the filesystem root.
	ErrUnsafePath = errors.New("unsafe output path")
)

// ResolveWithin joins name under dir and returns the absolute result, failing
// when the result lies outside dir.
func ResolveWithin(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("output directory is required")
	}

	base, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}

	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, name)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	return target, nil
}

// CleanOutputPath validates a user supplied file path and returns it cleaned.
func CleanOutputPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsafePath)
	}
	for _, segment := range strings.FieldsFunc(path, isSeparator) {
		if segment == ".." {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, path)
		}
	}

	cleaned := filepath.Clean(path)
	if abs, err := filepath.Abs(cleaned); err != nil || abs == string(os.PathSeparator) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, path)
	}
	return cleaned, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == os.PathSeparator
}

// Package sandbox confines untrusted relative paths to a root directory.
// Every file written from generator output must resolve through it.
package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath marks a relative path that would escape its root.
var ErrUnsafePath = errors.New("unsafe path")

// Resolve joins rel onto root and verifies the result stays at or below
// root. The check is separator-bounded: root "/out" does not admit
// "/out2/x". Returns the cleaned absolute path.
func Resolve(root, rel string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty root", ErrUnsafePath)
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	cleaned := strings.TrimLeft(strings.TrimSpace(rel), "/\\")
	full, err := filepath.Abs(filepath.Join(rootAbs, filepath.FromSlash(cleaned)))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if full != rootAbs && !strings.HasPrefix(full, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return full, nil
}

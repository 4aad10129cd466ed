// Package extract manages extraction directories: mapping archive names to
// safe destination paths and marking a directory as completely extracted.
package extract

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvCacheDir overrides the root of default extraction directories.
const EnvCacheDir = "MPQPACK_CACHE_DIR"

// ErrUnsafePath is returned for archive names that would escape the
// destination directory.
var ErrUnsafePath = errors.New("❌ unsafe archive path")

// DestinationPath maps an archive name such as `data\maps\one.w3m` to a path
// under root. Absolute names, drive letters and ".." components are rejected.
func DestinationPath(root, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if slashed == "" || strings.HasPrefix(slashed, "/") || strings.Contains(slashed, ":") {
		return "", &os.PathError{Op: "extract", Path: name, Err: ErrUnsafePath}
	}
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", &os.PathError{Op: "extract", Path: name, Err: ErrUnsafePath}
		}
	}

	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", &os.PathError{Op: "extract", Path: name, Err: ErrUnsafePath}
	}
	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}

// CacheDir returns the default extraction directory for an archive with the
// given checksum.
func CacheDir(checksum string) string {
	identifier := checksum
	if len(identifier) > 8 {
		identifier = identifier[:8]
	}
	if identifier == "" {
		identifier = "unknown"
	}
	return filepath.Join(CacheRoot(), identifier)
}

// CacheRoot returns the root cache directory
func CacheRoot() string {
	if cacheDir := os.Getenv(EnvCacheDir); cacheDir != "" {
		return cacheDir
	}

	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Caches", "mpqpack")
		}
	case "linux":
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, "mpqpack")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".cache", "mpqpack")
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "mpqpack", "cache")
		}
	}

	return filepath.Join(os.TempDir(), "mpqpack", "cache")
}

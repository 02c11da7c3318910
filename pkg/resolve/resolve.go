// Package resolve implements the Node-style specifier resolution the
// bundler uses to turn an import/require string into an absolute file path.
// Paths are always returned absolute (the graph needs an addressable,
// comparable module id) and failures wrap a sentinel error callers can
// match with errors.Is.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions probed, in order, when a specifier
// resolves to a path with no extension.
var Extensions = []string{"js", "jsx", "tsx", "ts", "mjs", "cjs"}

// ErrNotFound is wrapped into every resolution failure so callers can test
// for "could not resolve" with errors.Is regardless of the offending path.
var ErrNotFound = errors.New("resolve: specifier could not be resolved")

func isRelative(name string) bool {
	return strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") || strings.HasPrefix(name, "/")
}

// Resolve resolves `name` as imported from a module located in `fromDir`,
// returning an absolute path. Bare specifiers (no leading "./", "../", "/")
// are looked up under fromDir/node_modules walking up to the filesystem
// root, mirroring Node's module resolution algorithm.
func Resolve(fromDir, name string) (string, error) {
	if isRelative(name) {
		var abs string
		var err error
		if filepath.IsAbs(name) {
			abs, err = filepath.Abs(name)
		} else {
			abs, err = filepath.Abs(filepath.Join(fromDir, name))
		}
		if err != nil {
			return "", err
		}
		return resolvePath(abs)
	}
	return resolveBare(fromDir, name)
}

func resolveBare(fromDir, name string) (string, error) {
	dir := fromDir
	for {
		candidate := filepath.Join(dir, "node_modules", name)
		if abs, err := resolvePath(candidate); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w: %q (searched node_modules from %q upward)", ErrNotFound, name, fromDir)
}

// resolvePath takes a path with no guarantee of an extension or of being a
// file rather than a package directory, and returns the concrete file it
// refers to.
func resolvePath(path string) (string, error) {
	if st, err := os.Stat(path); err == nil {
		if st.IsDir() {
			return resolveDirectory(path)
		}
		return path, nil
	}

	for _, ext := range Extensions {
		candidate := path + "." + ext
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrNotFound, path)
}

// resolveDirectory applies the package.json "main" field (defaulting to
// index.js) when a specifier resolves to a directory.
func resolveDirectory(dir string) (string, error) {
	pkgPath := filepath.Join(dir, "package.json")
	main := "index.js"

	if f, err := os.Open(pkgPath); err == nil {
		defer f.Close()
		var pkg struct {
			Main string `json:"main"`
		}
		if err := json.NewDecoder(f).Decode(&pkg); err == nil && pkg.Main != "" {
			main = pkg.Main
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return resolvePath(filepath.Join(dir, main))
}

// CommonDir returns the longest common directory prefix of the given
// absolute paths, or "" when paths is empty. This is the base every
// preserve-modules output path is computed relative to.
func CommonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	best := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		best = commonPrefixDir(best, filepath.Dir(p))
		if best == "" {
			break
		}
	}
	return best
}

func commonPrefixDir(a, b string) string {
	aParts := strings.Split(filepath.ToSlash(a), "/")
	bParts := strings.Split(filepath.ToSlash(b), "/")
	n := len(aParts)
	if len(bParts) < n {
		n = len(bParts)
	}
	i := 0
	for i < n && aParts[i] == bParts[i] {
		i++
	}
	if i == 0 {
		return ""
	}
	return strings.Join(aParts[:i], "/")
}

// Package discover walks the project tree and turns Swift sources into
// function records.
package discover

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Swingft/dyncall/internal/logx"
)

// defaultSkipDirs are tool and dependency directories never worth
// scanning.
var defaultSkipDirs = map[string]struct{}{
	".git":         {},
	".build":       {},
	"DerivedData":  {},
	"Pods":         {},
	"Carthage":     {},
	".swiftpm":     {},
	"__MACOSX":     {},
	"node_modules": {},
	"vendor":       {},
}

// WalkOptions controls which Swift files a walk yields.
type WalkOptions struct {
	SkipUI          bool
	IncludePackages bool
	// ExcludeGlobs are lowercase fnmatch-style patterns matched against
	// both the slash-separated relative path and the basename.
	ExcludeGlobs []string
}

// IsUIPath reports whether a relative path looks like view-layer code.
func IsUIPath(rel string) bool {
	p := strings.ToLower(filepath.ToSlash(rel))
	if strings.Contains(p, "/view/") || strings.Contains(p, "/views/") || strings.Contains(p, "viewcontroller") {
		return true
	}
	base := path.Base(p)
	return strings.HasSuffix(base, "view.swift") || strings.HasSuffix(base, "viewcontroller.swift")
}

// MatchesAnyGlob tests rel against the patterns the way exception file
// rules are matched: case-insensitive, against the full relative path
// and against the basename.
func MatchesAnyGlob(rel string, globs []string) bool {
	p := strings.ToLower(filepath.ToSlash(rel))
	base := path.Base(p)
	for _, g := range globs {
		if ok, _ := path.Match(g, p); ok {
			return true
		}
		if ok, _ := path.Match(g, base); ok {
			return true
		}
	}
	return false
}

// ListSwiftFiles returns the absolute paths of Swift sources under
// root, in walk order. Vendor directories and dot-directories are
// skipped, and unless IncludePackages is set, any directory holding a
// Package.swift is skipped as a unit.
func ListSwiftFiles(root string, opts WalkOptions) ([]string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var results []string
	err = filepath.WalkDir(rootAbs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != rootAbs {
				if _, skip := defaultSkipDirs[name]; skip || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
			}
			if !opts.IncludePackages {
				if _, statErr := os.Stat(filepath.Join(p, "Package.swift")); statErr == nil {
					logx.Debugf("skipping Swift package directory: %s", p)
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".swift") {
			return nil
		}
		rel, relErr := filepath.Rel(rootAbs, p)
		if relErr != nil {
			return relErr
		}
		if len(opts.ExcludeGlobs) > 0 && MatchesAnyGlob(rel, opts.ExcludeGlobs) {
			logx.Debugf("skipping by exceptions (file): %s", rel)
			return nil
		}
		if opts.SkipUI && IsUIPath(rel) {
			logx.Debugf("skipping UI file: %s", rel)
			return nil
		}
		results = append(results, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

package pipeline

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Swingft/dyncall/internal/logx"
)

// copySkipDirs are dropped from the clone. .swiftpm is kept so the
// rewritten tree still opens as a package workspace.
var copySkipDirs = map[string]struct{}{
	".git":         {},
	".build":       {},
	"DerivedData":  {},
	"Pods":         {},
	"Carthage":     {},
	"__MACOSX":     {},
	"node_modules": {},
	"vendor":       {},
}

// CopyTree clones the project at src into dst, skipping tool and
// dependency directories. An existing dst is removed only with
// overwrite; otherwise the call fails so a previous run's output is
// never clobbered by accident.
func CopyTree(src, dst string, overwrite bool) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	info, err := os.Stat(absSrc)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("source is not a directory: %s", absSrc)
	}
	if absSrc == absDst {
		return fmt.Errorf("src and dst must be different paths")
	}
	if _, err := os.Stat(absDst); err == nil {
		if !overwrite {
			return fmt.Errorf("dst already exists: %s (pass --overwrite to replace)", absDst)
		}
		logx.Infof("removing existing dst: %s", absDst)
		if err := os.RemoveAll(absDst); err != nil {
			return fmt.Errorf("removing %s: %w", absDst, err)
		}
	}

	err = filepath.WalkDir(absSrc, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(absSrc, p)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(absDst, rel)
		if d.IsDir() {
			if p != absSrc {
				if _, skip := copySkipDirs[d.Name()]; skip {
					return filepath.SkipDir
				}
			}
			return os.MkdirAll(target, 0o755)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		return copyFile(p, target)
	})
	if err != nil {
		return fmt.Errorf("cloning %s: %w", absSrc, err)
	}
	logx.Infof("cloning project -> %s", absDst)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// samePath reports whether two paths name the same location once
// resolved, which switches the run into in-place mode.
func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
	}
	if aa == bb {
		return true
	}
	ia, errA := os.Stat(aa)
	ib, errB := os.Stat(bb)
	return errA == nil && errB == nil && os.SameFile(ia, ib)
}

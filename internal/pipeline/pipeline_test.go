package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swingft/dyncall/internal/audit"
	"github.com/Swingft/dyncall/internal/classify"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return root
}

func defaultOptions(src, dst string) Options {
	return Options{
		Source: src,
		Target: dst,
		Inject: true,
		Policy: classify.DefaultPolicy(),
	}
}

func TestCopyTree(t *testing.T) {
	src := writeProject(t, map[string]string{
		"Sources/A.swift":          "struct A {}\n",
		"Pods/Dep/D.swift":         "struct D {}\n",
		".git/config":              "x",
		".swiftpm/config.resolved": "y",
	})
	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, CopyTree(src, dst, false))

	_, err := os.Stat(filepath.Join(dst, "Sources", "A.swift"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "Pods"))
	assert.True(t, os.IsNotExist(err), "Pods is never cloned")
	_, err = os.Stat(filepath.Join(dst, ".git"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dst, ".swiftpm", "config.resolved"))
	assert.NoError(t, err, ".swiftpm is kept")

	err = CopyTree(src, dst, false)
	require.Error(t, err, "existing dst without overwrite is refused")
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, CopyTree(src, dst, true))
}

func TestRunEndToEnd(t *testing.T) {
	src := writeProject(t, map[string]string{
		"Sources/Calc.swift": `struct Calc {
    func add(a: Int, b: Int) -> Int { return a + b }
    func update(x: inout Int) {}
}
`,
	})
	dst := filepath.Join(t.TempDir(), "out")

	sum, err := Run(context.Background(), defaultOptions(src, dst))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FilesScanned)
	assert.Equal(t, 2, sum.Discovered)
	assert.Equal(t, 1, sum.Safe)
	assert.Equal(t, 1, sum.Risky)
	assert.Equal(t, 1, sum.FilesTouched)
	assert.Equal(t, 1, sum.FunctionsWrapped)

	out, err := os.ReadFile(filepath.Join(dst, "Sources", "Calc.swift"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "obfImpl_add")
	assert.NotContains(t, string(out), "obfImpl_update", "risky functions stay untouched by default")

	orig, err := os.ReadFile(filepath.Join(src, "Sources", "Calc.swift"))
	require.NoError(t, err)
	assert.NotContains(t, string(orig), "obfImpl_", "source tree is never modified")

	for _, name := range []string{"all_funcs.json", "safe_funcs.txt", "risky_funcs.txt"} {
		_, err := os.Stat(filepath.Join(dst, audit.DumpDirName, name))
		assert.NoError(t, err, name)
	}
}

func TestRunSecondPassIsStable(t *testing.T) {
	src := writeProject(t, map[string]string{
		"Sources/Calc.swift": `struct Calc {
    func add(a: Int, b: Int) -> Int { return a + b }
}
`,
	})
	dst := filepath.Join(t.TempDir(), "out")

	first, err := Run(context.Background(), defaultOptions(src, dst))
	require.NoError(t, err)
	require.Equal(t, 1, first.FunctionsWrapped)
	afterFirst, err := os.ReadFile(filepath.Join(dst, "Sources", "Calc.swift"))
	require.NoError(t, err)

	// In-place rerun over the already-rewritten tree.
	opts := defaultOptions(dst, dst)
	second, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Zero(t, second.FunctionsWrapped)
	assert.Zero(t, second.FilesTouched)

	afterSecond, err := os.ReadFile(filepath.Join(dst, "Sources", "Calc.swift"))
	require.NoError(t, err)
	assert.Equal(t, string(afterFirst), string(afterSecond))
}

func TestRunIncludeRisky(t *testing.T) {
	src := writeProject(t, map[string]string{
		"Main.swift": `struct S {
    func withDefault(x: Int = 1) {}
}
`,
	})
	dst := filepath.Join(t.TempDir(), "out")

	opts := defaultOptions(src, dst)
	opts.IncludeRisky = true
	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Risky)
	assert.Equal(t, 1, sum.FunctionsWrapped)
}

func TestRunDryRun(t *testing.T) {
	content := `struct S {
    func f(x: Int) -> Int { return x }
}
`
	src := writeProject(t, map[string]string{"Main.swift": content})
	dst := filepath.Join(t.TempDir(), "out")

	opts := defaultOptions(src, dst)
	opts.DryRun = true
	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FunctionsWrapped)

	out, err := os.ReadFile(filepath.Join(dst, "Main.swift"))
	require.NoError(t, err)
	assert.Equal(t, content, string(out), "dry run leaves sources untouched")

	_, err = os.Stat(filepath.Join(dst, audit.DumpDirName, "all_funcs.json"))
	assert.NoError(t, err, "dumps are still written on dry runs")
}

func TestRunExceptionFiles(t *testing.T) {
	src := writeProject(t, map[string]string{
		"Main.swift": `struct Secrets {
    func hide(x: Int) {}
}
struct Open {
    func show(x: Int) {}
}
`,
	})
	rules := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(rules, []byte(`[{"name": "Secrets", "kind": "struct"}]`), 0o644))
	dst := filepath.Join(t.TempDir(), "out")

	opts := defaultOptions(src, dst)
	opts.ExceptionFiles = []string{rules}
	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Excluded)
	assert.Equal(t, 1, sum.FunctionsWrapped)

	out, _ := os.ReadFile(filepath.Join(dst, "Main.swift"))
	assert.Contains(t, string(out), "obfImpl_show")
	assert.NotContains(t, string(out), "obfImpl_hide")

	opts.ExceptionFiles = []string{filepath.Join(t.TempDir(), "missing.json")}
	opts.Target = filepath.Join(t.TempDir(), "out2")
	_, err = Run(context.Background(), opts)
	assert.Error(t, err, "missing exception files are fatal")
}

func TestRunScanOnly(t *testing.T) {
	src := writeProject(t, map[string]string{
		"Main.swift": "struct S {\n    func f(x: Int) {}\n}\n",
	})
	dst := filepath.Join(t.TempDir(), "out")

	opts := defaultOptions(src, dst)
	opts.Inject = false
	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Safe)
	assert.Zero(t, sum.FunctionsWrapped)

	out, _ := os.ReadFile(filepath.Join(dst, "Main.swift"))
	assert.NotContains(t, string(out), "obfImpl_")
}

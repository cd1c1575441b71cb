package rewrite

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swingft/dyncall/internal/classify"
	"github.com/Swingft/dyncall/internal/discover"
	"github.com/Swingft/dyncall/internal/prepass"
)

// setupFile writes src into a temp project and returns the absolute
// path plus the discovered function records.
func setupFile(t *testing.T, src string) (string, []discover.FunctionRecord) {
	t.Helper()
	dir := t.TempDir()
	abs := filepath.Join(dir, "File.swift")
	require.NoError(t, os.WriteFile(abs, []byte(src), 0o644))
	snap, err := prepass.Collect([]string{abs})
	require.NoError(t, err)
	return abs, discover.ScanFile("File.swift", src, snap)
}

func newRewriter() *Rewriter {
	return &Rewriter{Policy: classify.DefaultPolicy()}
}

func TestFileID(t *testing.T) {
	id := FileID("Sources/A.swift")
	assert.Len(t, id, 10)
	assert.Equal(t, strings.ToUpper(id), id)
	assert.Equal(t, id, FileID("Sources/A.swift"), "ids are deterministic")
	assert.NotEqual(t, id, FileID("Sources/B.swift"))
}

func TestRewriteSimpleStructMethod(t *testing.T) {
	src := `struct A {
    func add(a: Int, b: Int) -> Int { return a + b }
}
`
	abs, recs := setupFile(t, src)
	res, err := newRewriter().RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	assert.True(t, res.Touched)
	assert.Equal(t, 1, res.Wrapped)

	out, err := os.ReadFile(abs)
	require.NoError(t, err)
	text := string(out)
	id := FileID("File.swift")

	assert.Contains(t, text, "func obfImpl_add(a: Int, b: Int) -> Int")
	assert.Contains(t, text, "func add(a: Int, b: Int) -> Int")
	assert.Contains(t, text, `return try! OBFF`+id+`.call("A.add(Int, Int) -> Int", self, a, b)`)
	assert.Contains(t, text, `_ = OBFF`+id+`.register("A.add(Int, Int) -> Int", CFGWrappingUtils.wrapM2(A.obfImpl_add as (A) -> (Int, Int) -> Int))`)
	assert.Contains(t, text, "enum OBFF"+id+" {")
	assert.Contains(t, text, "import StringSecurity")

	// The wrapper must live inside the type body.
	bodyEnd := strings.LastIndex(text, "}")
	wrapperPos := strings.Index(text, "return try!")
	assert.Less(t, wrapperPos, bodyEnd)
}

func TestRewriteVoidAndStatic(t *testing.T) {
	src := `enum Tools {
    static func reset(level: Int) {
    }
}
`
	abs, recs := setupFile(t, src)
	res, err := newRewriter().RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	require.Equal(t, 1, res.Wrapped)

	out, _ := os.ReadFile(abs)
	text := string(out)
	id := FileID("File.swift")

	assert.Contains(t, text, "static func reset(level: Int)")
	assert.Contains(t, text, "func obfImpl_reset(level: Int)")
	assert.Contains(t, text, `try! OBFF`+id+`.callVoid("Tools.reset(Int)", level)`)
	assert.NotContains(t, text, "self, level", "static wrappers do not forward self")
	assert.Contains(t, text, `CFGWrappingUtils.wrap1(Tools.obfImpl_reset as (Int) -> Void)`)
}

func TestRewriteSecondRunIsNoop(t *testing.T) {
	src := `struct A {
    func add(a: Int, b: Int) -> Int { return a + b }
}
`
	abs, recs := setupFile(t, src)
	rw := newRewriter()
	res, err := rw.RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	require.True(t, res.Touched)
	first, _ := os.ReadFile(abs)

	// Re-discover on the rewritten text, the way a second full run
	// would, and rewrite again.
	snap, err := prepass.Collect([]string{abs})
	require.NoError(t, err)
	recs2 := discover.ScanFile("File.swift", string(first), snap)
	res2, err := rw.RewriteFile(abs, "File.swift", recs2)
	require.NoError(t, err)
	assert.False(t, res2.Touched)
	assert.Zero(t, res2.Wrapped)

	second, _ := os.ReadFile(abs)
	assert.Equal(t, string(first), string(second), "second run must not change bytes")
}

func TestRewritePrivateWidensToFileprivate(t *testing.T) {
	src := `struct Vault {
    private func open(code: Int) -> Bool { return code == 7 }
}
`
	abs, recs := setupFile(t, src)
	res, err := newRewriter().RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	require.Equal(t, 1, res.Wrapped)

	out, _ := os.ReadFile(abs)
	text := string(out)
	assert.Contains(t, text, "fileprivate func obfImpl_open")
	assert.NotContains(t, text, "private func obfImpl_open")
	assert.Contains(t, text, "private func open(code: Int) -> Bool", "wrapper keeps the original access")
}

func TestRewritePreservesObjcAttributes(t *testing.T) {
	src := `class Controller {
    @objc
    func tap(id: Int) {
    }
}
`
	abs, recs := setupFile(t, src)
	res, err := newRewriter().RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	require.Equal(t, 1, res.Wrapped)

	out, _ := os.ReadFile(abs)
	text := string(out)

	implLine := findLine(t, text, "func obfImpl_tap")
	assert.NotContains(t, implLine, "@objc", "implementation loses the exposure attribute")

	wrapperIdx := regexp.MustCompile(`@objc\s*\n\s*func tap\(id: Int\)`).FindStringIndex(text)
	assert.NotNil(t, wrapperIdx, "wrapper re-applies @objc above its header")
}

func TestRewriteUntouchedWhenNothingEligible(t *testing.T) {
	src := `class Box<T> {
    func get() -> Int { return 0 }
}
`
	abs, recs := setupFile(t, src)
	res, err := newRewriter().RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	assert.False(t, res.Touched)

	out, _ := os.ReadFile(abs)
	assert.Equal(t, src, string(out))
}

func TestRewriteDryRun(t *testing.T) {
	src := `struct A {
    func f(x: Int) -> Int { return x }
}
`
	abs, recs := setupFile(t, src)
	rw := newRewriter()
	rw.DryRun = true
	res, err := rw.RewriteFile(abs, "File.swift", recs)
	require.NoError(t, err)
	assert.True(t, res.Touched)
	assert.Equal(t, 1, res.Wrapped)

	out, _ := os.ReadFile(abs)
	assert.Equal(t, src, string(out), "dry run leaves the file alone")
}

func TestBuildRuntimeShape(t *testing.T) {
	text := BuildRuntime("ABCDEF0123", []string{`_ = OBFFABCDEF0123.register("k", CFGWrappingUtils.wrap0(f as () -> Void))`})
	assert.True(t, strings.HasPrefix(text, "enum OBFFABCDEF0123 {"))
	assert.True(t, strings.HasSuffix(text, "}"))
	assert.Contains(t, text, "static func call<R>(_ key: String, _ args: Any...) throws -> R {")
	assert.Contains(t, text, "static func callVoid(_ key: String, _ args: Any...) throws {")
	assert.Contains(t, text, `preconditionFailure("[OBF] missing key: \(key)")`)
	assert.Contains(t, text, "if !overwrite, routes[key] != nil { return false }")
	assert.Equal(t, 1, strings.Count(text, ".register("))
}

func TestInjectOrReplaceReplacesExistingBlock(t *testing.T) {
	id := "AAAA000000"
	first := InjectOrReplace("struct S {}\n", BuildRuntime(id, []string{"_ = 1"}), id)
	assert.Equal(t, 1, strings.Count(first, "enum OBFF"+id))
	assert.Equal(t, 1, strings.Count(first, "import StringSecurity"))

	second := InjectOrReplace(first, BuildRuntime(id, []string{"_ = 2"}), id)
	assert.Equal(t, 1, strings.Count(second, "enum OBFF"+id), "block is replaced, not duplicated")
	assert.Contains(t, second, "_ = 2")
	assert.NotContains(t, second, "_ = 1")
	assert.Equal(t, 1, strings.Count(second, "import StringSecurity"))
}

func TestInjectOrReplaceHoistsExistingImport(t *testing.T) {
	orig := "// header\nimport Foundation\nimport StringSecurity\nstruct S {}\n"
	out := InjectOrReplace(orig, BuildRuntime("BBBB000000", nil), "BBBB000000")
	assert.Equal(t, 1, strings.Count(out, "import StringSecurity"))
	impIdx := strings.Index(out, "import StringSecurity")
	blockIdx := strings.Index(out, "enum OBFFBBBB000000")
	assert.Less(t, impIdx, blockIdx, "existing import ends up above the block")
}

func findLine(t *testing.T, text, needle string) string {
	t.Helper()
	for _, l := range strings.Split(text, "\n") {
		if strings.Contains(l, needle) {
			return l
		}
	}
	t.Fatalf("no line containing %q", needle)
	return ""
}

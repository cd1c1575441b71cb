package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlankCommentsPreservesLayout(t *testing.T) {
	cases := []string{
		"let a = 1 // trailing\nlet b = 2\n",
		"/* block\n spanning\n lines */ let x = 0\n",
		"/* outer /* nested */ still comment */ func f() {}\n",
		"let s = \"not a // comment\"\n",
		"let s = \"slash \\\" /* quote */\" // real\n",
		"/* unterminated\nnever closes",
		"// only a comment",
		"",
	}
	for _, src := range cases {
		got := BlankComments(src)
		assert.Equal(t, len(src), len(got), "length must be preserved for %q", src)
		assert.Equal(t, strings.Count(src, "\n"), strings.Count(got, "\n"), "line count must be preserved for %q", src)
	}
}

func TestBlankCommentsContent(t *testing.T) {
	got := BlankComments("let a = 1 // func ghost() {\n")
	assert.NotContains(t, got, "func ghost")
	assert.Contains(t, got, "let a = 1")

	got = BlankComments("let s = \"// kept\"\n")
	assert.Contains(t, got, "// kept", "comment markers inside strings stay")

	got = BlankComments("/* a { b } c */ let x = 1\n")
	assert.NotContains(t, got, "{")
	assert.Contains(t, got, "let x = 1")

	got = BlankComments("let m = \"\"\"\n// not a comment\n\"\"\"\n")
	assert.Contains(t, got, "// not a comment")
}

func TestFindBlockEnd(t *testing.T) {
	src := "struct A { func f() { g() } }"
	open := strings.Index(src, "{")
	end := FindBlockEnd(src, open)
	require.NotEqual(t, -1, end)
	assert.Equal(t, len(src)-1, end)

	assert.Equal(t, -1, FindBlockEnd("struct A {", strings.Index("struct A {", "{")))
}

func TestSplitTopLevel(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a: Int, b: Int", []string{"a: Int", " b: Int"}},
		{"pair: (Int, Int), c: Int", []string{"pair: (Int, Int)", " c: Int"}},
		{"m: [String: Int], d: Dictionary<String, Int>", []string{"m: [String: Int]", " d: Dictionary<String, Int>"}},
		{"", nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SplitTopLevel(tc.in), tc.in)
	}
}

func TestParamTypes(t *testing.T) {
	assert.Equal(t, []string{"Int", "Int"}, ParamTypes("a: Int, b: Int"))
	assert.Equal(t, []string{"Int"}, ParamTypes("a: Int = 5"))
	assert.Equal(t, []string{"(Int, Int)"}, ParamTypes("pair: (Int, Int)"))
	assert.Equal(t, []string{"[String: Int]"}, ParamTypes("m: [String: Int]"))
	assert.Equal(t, []string{"String?"}, ParamTypes("name: String? = nil"))
	assert.Empty(t, ParamTypes(""))
}

func TestExternalLabels(t *testing.T) {
	assert.Equal(t, []string{"x"}, ExternalLabels("x: Int"))
	assert.Equal(t, []string{"_"}, ExternalLabels("_ x: Int"))
	assert.Equal(t, []string{"with"}, ExternalLabels("with value: Int"))
	assert.Equal(t, []string{"a", "_"}, ExternalLabels("a: Int, _ b: Int"))
}

func TestParamVarNames(t *testing.T) {
	assert.Equal(t, []string{"x"}, ParamVarNames("x: Int"))
	assert.Equal(t, []string{"value"}, ParamVarNames("with value: Int"))
	assert.Equal(t, []string{"x"}, ParamVarNames("_ x: Int"))
	assert.Equal(t, []string{"a", "b"}, ParamVarNames("a: Int, b: String = \"\""))
}

func TestHasTopLevelDefault(t *testing.T) {
	assert.True(t, HasTopLevelDefault("a: Int = 5"))
	assert.False(t, HasTopLevelDefault("a: Int, b: String"))
	assert.False(t, HasTopLevelDefault(""))
}

func TestKeyFor(t *testing.T) {
	k1 := KeyFor("f", "a: Int")
	k2 := KeyFor("f", "b: Int")
	assert.NotEqual(t, k1, k2, "labels must distinguish requirements")
	assert.Equal(t, RequirementKey{Name: "f", Arity: 1, Labels: "_"}, KeyFor("f", "_ x: Int"))
}

func TestMatchTypeDecl(t *testing.T) {
	m := MatchTypeDecl("public final class Cache<Key: Hashable, Value> {")
	require.NotNil(t, m)
	assert.Equal(t, "class", m.Kind)
	assert.Equal(t, "Cache", m.Name)
	assert.Equal(t, []string{"public", "final"}, m.Mods)
	assert.Equal(t, []string{"Key", "Value"}, m.Generics)

	assert.Nil(t, MatchTypeDecl("let structure = 1"))
	assert.NotNil(t, MatchTypeDecl("@MainActor class VM {"))
}

func TestMatchFuncDecl(t *testing.T) {
	m := MatchFuncDecl("    public static func add(a: Int, b: Int) -> Int {")
	require.NotNil(t, m)
	assert.Equal(t, "add", m.Name)
	assert.Equal(t, "a: Int, b: Int", m.Params)
	assert.Equal(t, "Int", m.Ret)
	assert.Equal(t, []string{"public", "static"}, m.Mods)

	m = MatchFuncDecl("func ping() async throws -> String {")
	require.NotNil(t, m)
	assert.Equal(t, "String", m.Ret)

	m = MatchFuncDecl("func reset() {")
	require.NotNil(t, m)
	assert.Equal(t, "", m.Ret)

	assert.Nil(t, MatchFuncDecl("// func commented() {"))
}

func TestProtocolBlocks(t *testing.T) {
	src := BlankComments(`
protocol Greeter {
    func greet(name: String) -> String
    func reset()
}
struct Impl {}
protocol Empty {}
`)
	blocks := ProtocolBlocks(src)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Greeter", blocks[0].Name)
	assert.Contains(t, blocks[0].Body, "greet")
	assert.Equal(t, "Empty", blocks[1].Name)
}

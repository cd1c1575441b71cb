package prepass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swingft/dyncall/internal/scanner"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectDeclaredTypes(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.swift", `
struct Point { var x: Int }
class Store {}
enum Mode { case on }
actor Worker {}
extension Point {}
protocol Shape {}
`)
	snap, err := Collect([]string{a})
	require.NoError(t, err)

	for _, name := range []string{"Point", "Store", "Mode", "Worker"} {
		assert.Contains(t, snap.DeclaredTypes, name)
	}
	assert.NotContains(t, snap.DeclaredTypes, "Shape", "protocols are not concrete types")
	assert.Contains(t, snap.ActorTypes, "Worker")
}

func TestCollectProtocolRequirements(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "p.swift", `
protocol Greeter {
    func greet(name: String) -> String
    func greet(id: Int) -> String
    func reset()
}
// protocol Phantom { func nope() }
`)
	snap, err := Collect([]string{a})
	require.NoError(t, err)

	require.True(t, snap.IsLocalProtocol("Greeter"))
	assert.False(t, snap.IsLocalProtocol("Phantom"), "commented-out protocols are ignored")

	assert.True(t, snap.HasRequirement("Greeter", scanner.KeyFor("greet", "name: String")))
	assert.True(t, snap.HasRequirement("Greeter", scanner.KeyFor("greet", "id: Int")))
	assert.True(t, snap.HasRequirement("Greeter", scanner.KeyFor("reset", "")))
	assert.False(t, snap.HasRequirement("Greeter", scanner.KeyFor("greet", "other: String")),
		"labels must distinguish same-arity requirements")
}

func TestCollectActorAndGlobalActorTypes(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "actors.swift", `
actor Fetcher {}

@MainActor
class ViewModel {}

@MainActor final class InlineVM {}

@discardableResult
func notAType() {}

class Plain {}
`)
	snap, err := Collect([]string{a})
	require.NoError(t, err)

	assert.Contains(t, snap.ActorTypes, "Fetcher")
	assert.Contains(t, snap.GlobalActorTypes, "ViewModel")
	assert.Contains(t, snap.GlobalActorTypes, "InlineVM")
	assert.NotContains(t, snap.GlobalActorTypes, "Plain")
}

func TestCollectSkipsUnreadable(t *testing.T) {
	snap, err := Collect([]string{filepath.Join(t.TempDir(), "missing.swift")})
	require.NoError(t, err)
	assert.Empty(t, snap.DeclaredTypes)
}

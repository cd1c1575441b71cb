// Package rewrite performs the per-file source transformation: rename
// the implementation, synthesize the forwarding wrapper, and emit the
// dispatch runtime the wrappers call through.
package rewrite

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Swingft/dyncall/internal/scanner"
)

// ImplPrefix is prepended to a function name when it becomes the
// hidden implementation behind a wrapper.
const ImplPrefix = "obfImpl_"

// FileID derives the stable per-file namespace suffix from the
// project-relative path: first ten hex digits of its SHA-256,
// uppercased.
func FileID(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:10]
}

// swiftType normalizes an optional return annotation; an absent one is
// Void.
func swiftType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return "Void"
	}
	return t
}

// BuildRuntime renders the dispatch namespace for one file: a lazily
// installed route table keyed by signature strings, a generic call
// accessor that traps on a missing key or a failed result cast, and a
// void variant. The text is Swift source and must stay compilable as
// emitted.
func BuildRuntime(fileID string, routes []string) string {
	enumName := "OBFF" + fileID
	lines := []string{
		"enum " + enumName + " {",
		"  static private var routes: [String: ([Any]) throws -> Any] = [:]",
		"  static private var didInstall = false",
		"  static private func install() {",
	}
	for _, r := range routes {
		lines = append(lines, "    "+r)
	}
	lines = append(lines,
		"  }",
		"  static private func ensure() { if !didInstall { didInstall = true; install() } }",
		"",
		"  @discardableResult",
		"  static func register(_ key: String, _ fn: @escaping ([Any]) throws -> Any, overwrite: Bool = false) -> Bool {",
		"    if !overwrite, routes[key] != nil { return false }",
		"    routes[key] = fn",
		"    return true",
		"  }",
		"  static func call<R>(_ key: String, _ args: Any...) throws -> R {",
		"    ensure()",
		`    guard let fn = routes[key] else { preconditionFailure("[OBF] missing key: \(key)") }`,
		"    let res = try fn(args)",
		`    guard let cast = res as? R else { preconditionFailure("[OBF] bad return for \(key)") }`,
		"    return cast",
		"  }",
		"  static func callVoid(_ key: String, _ args: Any...) throws {",
		"    ensure()",
		`    guard let fn = routes[key] else { preconditionFailure("[OBF] missing key: \(key)") }`,
		"    _ = try fn(args)",
		"  }",
		"",
		"}",
	)
	return strings.Join(lines, "\n")
}

// InjectOrReplace places the runtime block into the file. An existing
// block for the same file id is replaced through its closing brace so
// repeated runs never stack namespaces. On first injection the
// StringSecurity import is ensured: an import already in the file is
// hoisted to the top, otherwise one is prepended to the block.
func InjectOrReplace(original, block, fileID string) string {
	marker := "enum OBFF" + fileID + " {"
	if idx := strings.Index(original, marker); idx != -1 {
		open := idx + len(marker) - 1
		if end := scanner.FindBlockEnd(scanner.BlankComments(original), open); end != -1 {
			return original[:idx] + block + original[end+1:]
		}
	}

	if strings.Contains(original, "import StringSecurity") {
		var importLines, otherLines []string
		for _, l := range strings.Split(original, "\n") {
			if strings.Contains(l, "import StringSecurity") {
				importLines = append(importLines, l)
			} else {
				otherLines = append(otherLines, l)
			}
		}
		merged := append(importLines, "")
		merged = append(merged, otherLines...)
		original = strings.Join(merged, "\n")
	} else {
		block = "import StringSecurity\n" + block
	}
	return block + "\n\n" + original
}

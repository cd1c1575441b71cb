package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Swingft/dyncall/internal/discover"
	"github.com/Swingft/dyncall/internal/scanner"
)

var (
	// attrTokenRe captures whole attribute segments, optionally with an
	// argument list: "@objc(rename:)", "@IBAction", "@MainActor".
	attrTokenRe = regexp.MustCompile(`(^|\s)(@[\w:]+(?:\s*\([^)]*\))?)`)

	// attrOnlyLineRe matches a line holding exactly one attribute.
	attrOnlyLineRe = regexp.MustCompile(`^\s*@[\w:]+(?:\s*\([^)]*\))?\s*$`)
)

func attrTokens(s string) []string {
	var out []string
	for _, m := range attrTokenRe.FindAllStringSubmatch(s, -1) {
		out = append(out, m[2])
	}
	return out
}

// isSpacerLine reports lines the attribute lookback may scan past:
// blanks, doc comments and conditional-compilation directives.
func isSpacerLine(s string) bool {
	st := strings.TrimSpace(s)
	return st == "" ||
		strings.HasPrefix(st, "///") ||
		strings.HasPrefix(st, "/**") ||
		strings.HasPrefix(st, "*") ||
		strings.HasPrefix(st, "#if") ||
		strings.HasPrefix(st, "#endif") ||
		strings.HasPrefix(st, "#else")
}

// isPreservedAttr decides which declaration-leading attributes move to
// the wrapper instead of staying on the implementation: Objective-C
// exposure (selectors must keep resolving to the original name),
// Interface Builder entry points, and global-actor annotations.
func isPreservedAttr(tok string) bool {
	base := strings.TrimSpace(tok)
	return strings.HasPrefix(base, "@objc") ||
		base == "@IBAction" ||
		base == "@IBSegueAction" ||
		strings.HasSuffix(base, "Actor")
}

// splitKeepEnds splits src into lines that retain their newline, so
// joining them reproduces src byte for byte.
func splitKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// removeAttrToken erases one attribute token from a declaration line,
// leaving a single space so neighboring tokens cannot concatenate.
func removeAttrToken(line, tok string) string {
	re, err := regexp.Compile(`(^\s*|\s+)` + regexp.QuoteMeta(tok) + `(\s|$)`)
	if err != nil {
		return line
	}
	return re.ReplaceAllString(line, " $2")
}

// RenameAndWrap renames fn's declaration in src to obfImpl_<name> and
// inserts a same-signature wrapper at the end of the parent type body.
// It returns the rewritten text and whether anything changed. A source
// that already contains the impl name is left untouched, which is what
// makes repeated runs converge.
func RenameAndWrap(src string, fn *discover.FunctionRecord, fileID string) (string, bool) {
	if strings.HasPrefix(fn.Name, ImplPrefix) || generatedEnumRe.MatchString(fn.ParentType) {
		return src, false
	}
	lines := splitKeepEnds(src)
	funcPat := regexp.MustCompile(`^\s*(?:@[\w:]+\s*)*\s*func\s+` + regexp.QuoteMeta(fn.Name) + `\s*\(`)

	funcIdx := -1
	for i, line := range lines {
		if funcPat.MatchString(line) {
			funcIdx = i
			break
		}
	}
	if funcIdx == -1 {
		return src, false
	}

	impl := ImplPrefix + fn.Name
	implRe := regexp.MustCompile(`\bfunc\s+` + regexp.QuoteMeta(impl) + `\s*\(`)
	if implRe.MatchString(src) {
		return src, false
	}

	// Attribute tokens on the declaration line itself, and on pure
	// attribute lines up to twelve lines above it.
	inlineTokens := attrTokens(lines[funcIdx])
	var aboveTokens []string
	aboveAttrLines := map[int][]string{}
	for j := funcIdx - 1; j >= 0 && j >= funcIdx-12; j-- {
		raw := lines[j]
		if isSpacerLine(raw) {
			continue
		}
		stripped := strings.TrimSpace(raw)
		if strings.HasPrefix(stripped, "@") && attrOnlyLineRe.MatchString(stripped) {
			toks := attrTokens(raw)
			if len(toks) > 0 {
				aboveTokens = append(aboveTokens, toks...)
				aboveAttrLines[j] = toks
				continue
			}
		}
		break
	}

	var preserved []string
	for _, tok := range append(append([]string{}, aboveTokens...), inlineTokens...) {
		if isPreservedAttr(tok) {
			preserved = append(preserved, tok)
		}
	}

	// The implementation line loses only the preserved tokens.
	newFuncLine := lines[funcIdx]
	for _, tok := range preserved {
		newFuncLine = removeAttrToken(newFuncLine, tok)
	}

	renameRe := regexp.MustCompile(`(\bfunc\s+)` + regexp.QuoteMeta(fn.Name) + `(\s*\()`)
	if !renameRe.MatchString(newFuncLine) {
		return src, false
	}
	renamed := renameRe.ReplaceAllString(newFuncLine, "${1}"+impl+"${2}")

	// Attribute-only lines whose tokens moved to the wrapper are
	// blanked to a bare newline; others (e.g. @available) stay on the
	// implementation.
	toDelete := map[int]bool{}
	for idx, toks := range aboveAttrLines {
		for _, t := range toks {
			if containsString(preserved, t) {
				toDelete[idx] = true
				break
			}
		}
	}

	var b strings.Builder
	for idx, l := range lines {
		switch {
		case idx == funcIdx:
			b.WriteString(renamed)
		case toDelete[idx]:
			if strings.HasSuffix(l, "\n") {
				b.WriteString("\n")
			}
		default:
			b.WriteString(l)
		}
	}
	newSrc := b.String()

	m2 := implRe.FindStringIndex(newSrc)
	if m2 == nil {
		return src, false
	}

	// private implementations widen one step to fileprivate so the
	// file-scoped route table can still reference them.
	if fn.HasModifier("private") {
		searchStart := 0
		if prev := strings.LastIndex(newSrc[:m2[0]], "}"); prev != -1 {
			searchStart = prev + 1
		}
		block := newSrc[searchStart:m2[0]]
		replaced := privateRe.ReplaceAllString(block, "fileprivate")
		if replaced != block {
			newSrc = newSrc[:searchStart] + replaced + newSrc[m2[0]:]
			m2 = implRe.FindStringIndex(newSrc)
			if m2 == nil {
				return src, false
			}
		}
	}

	insertAt := findInsertionPoint(newSrc, fn.ParentType, m2[0])
	if insertAt == -1 {
		return src, false
	}

	wrapper := buildWrapper(fn, fileID, lines, toDelete, inlineTokens)
	return newSrc[:insertAt] + wrapper + newSrc[insertAt:], true
}

var privateRe = regexp.MustCompile(`\bprivate\b`)

// generatedEnumRe recognizes a previously injected route-table
// namespace, whose members must never become wrap targets themselves.
var generatedEnumRe = regexp.MustCompile(`^OBFF[0-9A-F]{10}$`)

// findInsertionPoint locates the closing brace of the parent type body
// that contains implPos. Brace matching runs on a comment-blanked view
// so commented braces cannot skew it.
func findInsertionPoint(src, parentType string, implPos int) int {
	if parentType == "" {
		return -1
	}
	typePat, err := regexp.Compile(
		`(?ms)^\s*(?:@[\w:]+\s*)*(?:public|internal|fileprivate|private|open)?\s*(?:final\s+)?` +
			`(?:class|struct|enum|actor|extension)\s+` + regexp.QuoteMeta(parentType) + `\b.*?\{`)
	if err != nil {
		return -1
	}
	blanked := scanner.BlankComments(src)
	for _, loc := range typePat.FindAllStringIndex(blanked, -1) {
		open := loc[1] - 1
		end := scanner.FindBlockEnd(blanked, open)
		if end == -1 {
			continue
		}
		if open < implPos && implPos < end {
			return end
		}
	}
	return -1
}

// buildWrapper renders the forwarding wrapper, re-applying preserved
// attribute lines above its header.
func buildWrapper(fn *discover.FunctionRecord, fileID string, lines []string, deleted map[int]bool, inlineTokens []string) string {
	ret := swiftType(fn.ReturnType)

	access := ""
	for _, m := range fn.Modifiers {
		switch m {
		case "public", "internal", "fileprivate", "private", "open":
			access = m
		}
		if access != "" {
			break
		}
	}

	hdr := ""
	if access != "" {
		hdr = access + " "
	}
	if fn.IsStatic && fn.ParentType != "" {
		hdr += "static "
	}
	hdr += fmt.Sprintf("func %s(%s)", fn.Name, fn.ParamsSrc)
	if ret != "Void" {
		hdr += " -> " + ret
	}

	argNames := scanner.ParamVarNames(fn.ParamsSrc)
	var callArgs []string
	if fn.ParentType != "" && !fn.IsStatic {
		callArgs = append(callArgs, "self")
	}
	callArgs = append(callArgs, argNames...)

	callSuffix := `("` + fn.RouteKey + `"`
	if len(callArgs) > 0 {
		callSuffix += ", " + strings.Join(callArgs, ", ")
	}
	callSuffix += ")"

	var body string
	if ret != "Void" {
		body = fmt.Sprintf("{\n  return try! OBFF%s.call%s\n}", fileID, callSuffix)
	} else {
		body = fmt.Sprintf("{\n  try! OBFF%s.callVoid%s\n}", fileID, callSuffix)
	}

	// Exact text of deleted attribute lines, preceded by synthesized
	// lines for inline preserved tokens.
	var attrParts []string
	var inlinePreserved []string
	for _, t := range inlineTokens {
		if isPreservedAttr(t) {
			inlinePreserved = append(inlinePreserved, t)
		}
	}
	if len(inlinePreserved) > 0 {
		attrParts = append(attrParts, strings.Join(inlinePreserved, "\n")+"\n")
	}
	var deletedIdx []int
	for idx := range deleted {
		deletedIdx = append(deletedIdx, idx)
	}
	sort.Ints(deletedIdx)
	for _, idx := range deletedIdx {
		attrParts = append(attrParts, lines[idx])
	}

	return fmt.Sprintf("\n\n%s%s\n%s\n", strings.Join(attrParts, ""), hdr, body)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

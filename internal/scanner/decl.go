package scanner

import (
	"regexp"
	"strings"
)

// TypeDeclRe matches a type declaration header at the start of a line:
// optional attributes, modifier words, one of the six kinds, the name
// and an optional generic parameter clause.
var TypeDeclRe = regexp.MustCompile(`(?m)^\s*(?:@[\w:]+\s*)*\s*((?:\w+\s+)*)(class|struct|enum|actor|extension|protocol)\s+(\w+)(\s*<[^>]+>)?`)

// FuncDeclRe matches a single-line function declaration header:
// modifiers, name, optional generics, the parameter list, optional
// effect keywords and an optional return clause.
var FuncDeclRe = regexp.MustCompile(`(?m)^\s*(?:@[\w:]+\s*)*\s*((?:\w+\s+)*)func\s+(\w+)\s*(?:<[^>]+>)?\s*\(([^)]*)\)\s*(?:(?:async|rethrows|throws)\s*)*(?:->\s*([^{]+))?`)

// attrNameRe captures attribute names (without '@') anywhere on a line.
var attrNameRe = regexp.MustCompile(`@([\w:]+)`)

// protocolHeadRe locates protocol declarations for body extraction.
var protocolHeadRe = regexp.MustCompile(`\bprotocol\s+([A-Za-z_]\w*)\b[^{]*\{`)

// TypeDeclMatch is a decomposed TypeDeclRe match.
type TypeDeclMatch struct {
	Mods     []string
	Kind     string
	Name     string
	Generics []string
	// End is the byte offset just past the match, so callers can
	// inspect the trailing inheritance clause.
	End int
}

// MatchTypeDecl matches a type declaration at the start of line.
func MatchTypeDecl(line string) *TypeDeclMatch {
	idx := TypeDeclRe.FindStringSubmatchIndex(line)
	if idx == nil || idx[0] != 0 {
		return nil
	}
	group := func(i int) string {
		if idx[2*i] == -1 {
			return ""
		}
		return line[idx[2*i]:idx[2*i+1]]
	}
	m := &TypeDeclMatch{
		Mods: strings.Fields(group(1)),
		Kind: group(2),
		Name: group(3),
		End:  idx[1],
	}
	if gens := strings.TrimSpace(group(4)); gens != "" {
		m.Generics = parseGenericNames(gens)
	}
	return m
}

// parseGenericNames pulls the bare parameter names out of a generic
// clause, dropping constraints: "<T, U: Equatable>" -> ["T", "U"].
func parseGenericNames(gens string) []string {
	open := strings.Index(gens, "<")
	end := strings.LastIndex(gens, ">")
	if open == -1 || end == -1 || end <= open {
		return nil
	}
	var names []string
	for _, tok := range strings.Split(gens[open+1:end], ",") {
		name := strings.TrimSpace(tok)
		if idx := strings.Index(name, ":"); idx != -1 {
			name = strings.TrimSpace(name[:idx])
		}
		if identRe.MatchString(name) {
			names = append(names, name)
		}
	}
	return names
}

var identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// FuncDeclMatch is a decomposed FuncDeclRe match.
type FuncDeclMatch struct {
	Mods   []string
	Name   string
	Params string
	Ret    string
}

// MatchFuncDecl matches a function declaration at the start of line.
func MatchFuncDecl(line string) *FuncDeclMatch {
	idx := FuncDeclRe.FindStringSubmatchIndex(line)
	if idx == nil || idx[0] != 0 {
		return nil
	}
	group := func(i int) string {
		if idx[2*i] == -1 {
			return ""
		}
		return line[idx[2*i]:idx[2*i+1]]
	}
	return &FuncDeclMatch{
		Mods:   strings.Fields(group(1)),
		Name:   group(2),
		Params: group(3),
		Ret:    strings.TrimSpace(group(4)),
	}
}

// AttrNames returns the attribute names present on a line, '@' removed.
func AttrNames(line string) []string {
	var out []string
	for _, m := range attrNameRe.FindAllStringSubmatch(line, -1) {
		out = append(out, m[1])
	}
	return out
}

// ProtocolBlock is a protocol name together with its raw body text.
type ProtocolBlock struct {
	Name string
	Body string
}

// ProtocolBlocks extracts every protocol body from text via brace
// matching. Pass a comment-blanked view.
func ProtocolBlocks(text string) []ProtocolBlock {
	var out []ProtocolBlock
	for _, loc := range protocolHeadRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		open := loc[1] - 1
		end := FindBlockEnd(text, open)
		if end == -1 {
			continue
		}
		out = append(out, ProtocolBlock{Name: name, Body: text[open+1 : end]})
	}
	return out
}

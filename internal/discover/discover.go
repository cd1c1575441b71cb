package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Swingft/dyncall/internal/prepass"
	"github.com/Swingft/dyncall/internal/scanner"
)

// FunctionRecord captures one directly declared member or top-level
// function, together with enough context for classification and
// rewriting. JSON tags define the audit dump schema.
type FunctionRecord struct {
	File       string   `json:"file"`
	ParentType string   `json:"parent_type,omitempty"`
	Name       string   `json:"name"`
	ParamsSrc  string   `json:"params_src"`
	ParamTypes []string `json:"param_types"`
	ReturnType string   `json:"return_type,omitempty"`
	IsStatic   bool     `json:"is_static"`
	Modifiers  []string `json:"modifiers"`
	RouteKey   string   `json:"route_key"`

	ParentDepth     int      `json:"parent_depth"`
	ParentQualified string   `json:"parent_qual,omitempty"`
	ParentGenerics  []string `json:"parent_generics,omitempty"`

	ParentIsGeneric              bool `json:"is_parent_generic"`
	ParentIsActor                bool `json:"is_parent_actor"`
	ParentIsExtension            bool `json:"is_parent_extension"`
	ParentIsConstrainedExtension bool `json:"is_parent_extension_constrained"`
	ParentGlobalActor            bool `json:"is_parent_global_actor"`
	FuncGlobalActor              bool `json:"is_func_global_actor"`
	ParentDeclaredInProject      bool `json:"is_parent_declared_in_project"`

	ParentConforms                []string `json:"parent_conforms,omitempty"`
	ImplementsProtocolRequirement bool     `json:"is_protocol_req_impl"`
	MatchedInternalProtocols      []string `json:"matched_internal_protocols,omitempty"`
	HasExternalProtocolsInScope   bool     `json:"has_external_protocols_in_scope"`

	// RiskReasons is populated by the risk partitioner.
	RiskReasons []string `json:"risk_reasons,omitempty"`
}

// HasModifier reports whether the declaration carried the given
// modifier word.
func (f FunctionRecord) HasModifier(mod string) bool {
	for _, m := range f.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// typeFrame is one entry of the enclosing-type stack during a scan.
type typeFrame struct {
	name        string
	depth       int // brace depth at the header line
	generics    []string
	kind        string
	globalActor bool
	constrained bool
	conforms    []string
}

var identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)
var whereRe = regexp.MustCompile(`\bwhere\b`)

// parseConformances extracts simple protocol/type names from the
// inheritance clause trailing a type header.
func parseConformances(trailing string) []string {
	colon := strings.Index(trailing, ":")
	if colon == -1 {
		return nil
	}
	inherits := trailing[colon+1:]
	if lb := strings.Index(inherits, "{"); lb != -1 {
		inherits = inherits[:lb]
	}
	var conforms []string
	for _, raw := range strings.Split(inherits, ",") {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		if lt := strings.Index(item, "<"); lt != -1 {
			item = strings.TrimSpace(item[:lt])
		}
		if w := whereRe.FindStringIndex(item); w != nil {
			item = strings.TrimSpace(item[:w[0]])
		}
		if identRe.MatchString(item) {
			conforms = append(conforms, item)
		}
	}
	return conforms
}

// ScanFile discovers the functions of a single source text. relPath is
// recorded on the emitted records; snap supplies project-wide symbol
// context. The scan runs line by line on a comment-blanked view,
// tracking brace depth and a stack of enclosing type frames.
func ScanFile(relPath, content string, snap *prepass.Snapshot) []FunctionRecord {
	scanText := scanner.BlankComments(content)

	var results []FunctionRecord
	var stack []typeFrame
	var pendingAttrs []string
	brace := 0

	for _, line := range strings.Split(scanText, "\n") {
		stripped := strings.TrimSpace(line)
		attrsOnLine := scanner.AttrNames(line)
		attrs := append(append([]string{}, pendingAttrs...), attrsOnLine...)

		mtype := scanner.MatchTypeDecl(line)
		if mtype != nil {
			hasGlobalActor := anyActorAttr(attrs)
			trailing := line[mtype.End:]
			constrained := mtype.Kind == "extension" && whereRe.MatchString(trailing)
			stack = append(stack, typeFrame{
				name:        mtype.Name,
				depth:       brace,
				generics:    mtype.Generics,
				kind:        mtype.Kind,
				globalActor: hasGlobalActor,
				constrained: constrained,
				conforms:    parseConformances(trailing),
			})
			pendingAttrs = nil
		}

		mfunc := scanner.MatchFuncDecl(line)
		if mfunc != nil {
			opens := strings.Count(line, "{")
			closes := strings.Count(line, "}")
			braceAfter := brace + opens - closes

			if len(stack) > 0 && stack[len(stack)-1].kind == "protocol" {
				// requirement signatures, not implementations
				brace = braceAfter
				stack = popFrames(stack, brace)
				continue
			}

			if !depthAccepted(stack, brace, braceAfter, opens > 0) {
				brace = braceAfter
				stack = popFrames(stack, brace)
				continue
			}

			results = append(results, buildRecord(relPath, mfunc, stack, attrs, snap))
		}

		pendingAttrs = nil
		if strings.HasPrefix(stripped, "@") && mtype == nil && mfunc == nil && len(attrsOnLine) > 0 {
			pendingAttrs = attrsOnLine
		}
		brace += strings.Count(line, "{") - strings.Count(line, "}")
		stack = popFrames(stack, brace)
	}
	return results
}

// depthAccepted decides whether a matched func header sits directly in
// the innermost type body (or at file top level): already inside,
// inside once this line's braces apply, or at header depth on the line
// that opens the body.
func depthAccepted(stack []typeFrame, brace, braceAfter int, opensBody bool) bool {
	if len(stack) > 0 {
		d := stack[len(stack)-1].depth
		return brace == d+1 || braceAfter == d+1 || (brace == d && opensBody)
	}
	return brace == 0 || braceAfter == 0
}

func popFrames(stack []typeFrame, brace int) []typeFrame {
	for len(stack) > 0 && brace <= stack[len(stack)-1].depth {
		stack = stack[:len(stack)-1]
	}
	return stack
}

func anyActorAttr(attrs []string) bool {
	for _, a := range attrs {
		if strings.HasSuffix(a, "Actor") {
			return true
		}
	}
	return false
}

func buildRecord(relPath string, mfunc *scanner.FuncDeclMatch, stack []typeFrame, attrs []string, snap *prepass.Snapshot) FunctionRecord {
	paramTypes := scanner.ParamTypes(mfunc.Params)

	rec := FunctionRecord{
		File:       relPath,
		Name:       mfunc.Name,
		ParamsSrc:  mfunc.Params,
		ParamTypes: paramTypes,
		ReturnType: mfunc.Ret,
		Modifiers:  mfunc.Mods,
		IsStatic:   hasAny(mfunc.Mods, "static", "class"),
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		rec.ParentType = top.name
		rec.ParentDepth = len(stack)
		rec.ParentGenerics = top.generics
		rec.ParentIsGeneric = len(top.generics) > 0
		rec.ParentIsExtension = top.kind == "extension"
		rec.ParentIsConstrainedExtension = rec.ParentIsExtension && top.constrained
		rec.ParentConforms = top.conforms
		rec.FuncGlobalActor = anyActorAttr(attrs)

		var quals []string
		for _, f := range stack {
			quals = append(quals, f.name)
		}
		rec.ParentQualified = strings.Join(quals, ".")

		_, isKnownActor := snap.ActorTypes[top.name]
		rec.ParentIsActor = top.kind == "actor" || (rec.ParentIsExtension && isKnownActor)
		_, isKnownGlobal := snap.GlobalActorTypes[top.name]
		rec.ParentGlobalActor = top.globalActor || (rec.ParentIsExtension && isKnownGlobal)
		_, rec.ParentDeclaredInProject = snap.DeclaredTypes[top.name]

		funcKey := scanner.KeyFor(mfunc.Name, mfunc.Params)
		for _, p := range top.conforms {
			if snap.IsLocalProtocol(p) {
				if snap.HasRequirement(p, funcKey) {
					rec.MatchedInternalProtocols = append(rec.MatchedInternalProtocols, p)
				}
			} else {
				rec.HasExternalProtocolsInScope = true
			}
		}
		rec.ImplementsProtocolRequirement = len(rec.MatchedInternalProtocols) > 0
	} else {
		rec.FuncGlobalActor = anyActorAttr(attrs)
	}

	rec.RouteKey = buildRouteKey(rec.ParentType, rec.Name, paramTypes, rec.ReturnType)
	return rec
}

func buildRouteKey(parent, name string, paramTypes []string, ret string) string {
	key := fmt.Sprintf("%s(%s)", name, strings.Join(paramTypes, ", "))
	if parent != "" {
		key = parent + "." + key
	}
	if ret != "" {
		key += " -> " + ret
	}
	return key
}

func hasAny(mods []string, wanted ...string) bool {
	for _, m := range mods {
		for _, w := range wanted {
			if m == w {
				return true
			}
		}
	}
	return false
}

// ScanProject runs ScanFile over every path, resolving each to a path
// relative to root. Unreadable files are skipped.
func ScanProject(root string, paths []string, snap *prepass.Snapshot) ([]FunctionRecord, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var all []FunctionRecord
	for _, p := range paths {
		rel, relErr := filepath.Rel(rootAbs, p)
		if relErr != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, relErr)
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			continue
		}
		all = append(all, ScanFile(filepath.ToSlash(rel), string(data), snap)...)
	}
	return all, nil
}

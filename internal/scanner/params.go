package scanner

import "strings"

// SplitTopLevel splits a Swift parameter list on commas that are not
// nested inside (), [] or <>. Depth counters are clamped at zero so a
// stray closing bracket cannot poison the rest of the list.
func SplitTopLevel(paramsSrc string) []string {
	if paramsSrc == "" {
		return nil
	}
	var parts []string
	var buf strings.Builder
	dPar, dBrk, dAng := 0, 0, 0
	for i := 0; i < len(paramsSrc); i++ {
		ch := paramsSrc[i]
		switch ch {
		case '(':
			dPar++
		case ')':
			if dPar > 0 {
				dPar--
			}
		case '[':
			dBrk++
		case ']':
			if dBrk > 0 {
				dBrk--
			}
		case '<':
			dAng++
		case '>':
			if dAng > 0 {
				dAng--
			}
		}
		if ch == ',' && dPar == 0 && dBrk == 0 && dAng == 0 {
			parts = append(parts, buf.String())
			buf.Reset()
			continue
		}
		buf.WriteByte(ch)
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	return parts
}

// stripSegmentDefault cuts a single parameter segment at its top-level
// '=' so default-value expressions never leak into derived types.
func stripSegmentDefault(seg string) string {
	dPar, dBrk, dAng := 0, 0, 0
	for i := 0; i < len(seg); i++ {
		switch seg[i] {
		case '(':
			dPar++
		case ')':
			if dPar > 0 {
				dPar--
			}
		case '[':
			dBrk++
		case ']':
			if dBrk > 0 {
				dBrk--
			}
		case '<':
			dAng++
		case '>':
			if dAng > 0 {
				dAng--
			}
		case '=':
			if dPar == 0 && dBrk == 0 && dAng == 0 {
				return seg[:i]
			}
		}
	}
	return seg
}

// ParamTypes derives the ordered parameter type annotations from a raw
// parameter list. Defaults are stripped first; a segment without an
// explicit annotation contributes its own trimmed text.
func ParamTypes(paramsSrc string) []string {
	var types []string
	for _, seg := range SplitTopLevel(paramsSrc) {
		seg = strings.TrimSpace(stripSegmentDefault(seg))
		if seg == "" {
			continue
		}
		if idx := strings.Index(seg, ":"); idx != -1 {
			types = append(types, strings.TrimSpace(seg[idx+1:]))
		} else {
			types = append(types, seg)
		}
	}
	return types
}

// HasTopLevelDefault reports whether any parameter carries a default
// value expression.
func HasTopLevelDefault(paramsSrc string) bool {
	for _, seg := range SplitTopLevel(paramsSrc) {
		if strings.Contains(seg, "=") {
			return true
		}
	}
	return false
}

func fieldsNotUnderscore(s string) []string {
	var out []string
	for _, t := range strings.Fields(s) {
		if t != "_" {
			out = append(out, t)
		}
	}
	return out
}

// ExternalLabels lists the caller-facing argument labels in order,
// using "_" for unlabeled parameters. `f(a x: Int)` yields "a",
// `f(_ x: Int)` yields "_", `f(x: Int)` yields "x".
func ExternalLabels(paramsSrc string) []string {
	var labels []string
	for _, seg := range SplitTopLevel(paramsSrc) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		left := seg
		if idx := strings.Index(seg, ":"); idx != -1 {
			left = seg[:idx]
		}
		left = strings.TrimSpace(left)
		if left == "" {
			labels = append(labels, "_")
			continue
		}
		toks := fieldsNotUnderscore(left)
		switch {
		case strings.HasPrefix(left, "_"):
			labels = append(labels, "_")
		case len(toks) >= 1:
			labels = append(labels, toks[0])
		default:
			labels = append(labels, "_")
		}
	}
	return labels
}

// ParamVarNames lists the internal parameter names a wrapper must use
// to forward its arguments. For `a x: Int` that is "x"; for `x: Int`
// it is "x"; a fully anonymous segment falls back to "arg".
func ParamVarNames(paramsSrc string) []string {
	var out []string
	for _, seg := range SplitTopLevel(paramsSrc) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		idx := strings.Index(seg, ":")
		if idx == -1 {
			toks := fieldsNotUnderscore(seg)
			if len(toks) > 0 {
				out = append(out, toks[len(toks)-1])
			} else {
				out = append(out, "arg")
			}
			continue
		}
		toks := fieldsNotUnderscore(strings.TrimSpace(seg[:idx]))
		switch {
		case len(toks) >= 2:
			out = append(out, toks[len(toks)-1])
		case len(toks) == 1:
			out = append(out, toks[0])
		default:
			out = append(out, "arg")
		}
	}
	return out
}

// RequirementKey identifies a protocol requirement by name, arity and
// the ordered external labels, which is enough to match a candidate
// implementation without resolving types.
type RequirementKey struct {
	Name   string
	Arity  int
	Labels string
}

// KeyFor builds the RequirementKey for a function signature.
func KeyFor(name, paramsSrc string) RequirementKey {
	labels := ExternalLabels(paramsSrc)
	return RequirementKey{Name: name, Arity: len(labels), Labels: strings.Join(labels, ":")}
}

package classify

import (
	"regexp"
	"strings"

	"github.com/Swingft/dyncall/internal/discover"
	"github.com/Swingft/dyncall/internal/scanner"
)

// Policy holds the eligibility toggles. Zero value is not useful; use
// DefaultPolicy.
type Policy struct {
	MaxParams                            int
	SkipExternalExtensions               bool
	SkipExternalProtocolReqs             bool
	AllowInternalProtocolReqs            bool
	SkipExternalProtocolExtensionMembers bool
	KeepOverrides                        bool
	// TypeAllowlist extends the built-in primitive whitelist used by
	// the bare-type guard, so project-wide types declared in sibling
	// files can stay eligible.
	TypeAllowlist []string
}

// DefaultPolicy mirrors the conservative defaults of the pipeline.
func DefaultPolicy() Policy {
	return Policy{
		MaxParams:                            10,
		SkipExternalExtensions:               true,
		SkipExternalProtocolReqs:             true,
		AllowInternalProtocolReqs:            true,
		SkipExternalProtocolExtensionMembers: true,
	}
}

// Risk reasons. A risky function is structurally wrappable but the
// generated cast or forwarding is likely to misbehave.
const (
	RiskClosureParam   = "closure_param_or_escaping"
	RiskInoutParam     = "inout_param"
	RiskParamDefault   = "param_default"
	RiskOpaqueReturn   = "opaque_return_some"
	RiskReturnSelf     = "return_Self"
	RiskContextAssoc   = "context_assoc_type_in_params"
	RiskOverrideMethod = "override_method"
)

var (
	someRe   = regexp.MustCompile(`^some\b|\bsome\b`)
	selfRe   = regexp.MustCompile(`\bSelf\b`)
	configRe = regexp.MustCompile(`\bConfiguration\b`)
)

// RiskReasons lists why fn is risky to wrap, in a stable order. An
// empty result means the function is safe.
func RiskReasons(fn *discover.FunctionRecord, keepOverrides bool) []string {
	var reasons []string
	src := fn.ParamsSrc
	ret := strings.TrimSpace(fn.ReturnType)

	if strings.Contains(src, "->") || strings.Contains(src, "@escaping") {
		reasons = append(reasons, RiskClosureParam)
	}
	if strings.Contains(src, "inout") {
		reasons = append(reasons, RiskInoutParam)
	}
	if scanner.HasTopLevelDefault(src) {
		reasons = append(reasons, RiskParamDefault)
	}
	if someRe.MatchString(ret) {
		reasons = append(reasons, RiskOpaqueReturn)
	}
	if selfRe.MatchString(ret) {
		reasons = append(reasons, RiskReturnSelf)
	}
	for _, t := range fn.ParamTypes {
		if configRe.MatchString(t) {
			reasons = append(reasons, RiskContextAssoc)
			break
		}
	}
	if !keepOverrides && fn.HasModifier("override") {
		reasons = append(reasons, RiskOverrideMethod)
	}
	return reasons
}

// PartitionRisky splits funcs into safe and risky sets, recording the
// reasons on the risky records.
func PartitionRisky(funcs []discover.FunctionRecord, keepOverrides bool) (safe, risky []discover.FunctionRecord) {
	for i := range funcs {
		reasons := RiskReasons(&funcs[i], keepOverrides)
		if len(reasons) > 0 {
			funcs[i].RiskReasons = reasons
			risky = append(risky, funcs[i])
		} else {
			safe = append(safe, funcs[i])
		}
	}
	return safe, risky
}

// stdTypeWhitelist are types always resolvable without an import of
// project code, so a bare reference to one never blocks wrapping.
var stdTypeWhitelist = map[string]struct{}{
	"String": {}, "Int": {}, "Double": {}, "Float": {}, "Bool": {}, "Character": {},
	"UInt": {}, "UInt8": {}, "UInt16": {}, "UInt32": {}, "UInt64": {},
	"Int8": {}, "Int16": {}, "Int32": {}, "Int64": {},
	"Date": {}, "Data": {}, "URL": {}, "UUID": {},
	"Any": {}, "AnyObject": {}, "Never": {}, "Void": {},
}

// Skip reasons produced by Evaluate, in chain order.
const (
	SkipMaxParams              = "max_params_exceeded"
	SkipGenericParent          = "generic_parent_instance_method"
	SkipAngleBracketParent     = "angle_bracket_parent"
	SkipNestedParent           = "nested_parent"
	SkipParentNotInFile        = "parent_not_declared_in_file"
	SkipExternalProtoExtension = "external_protocol_extension_member"
	SkipInternalProtoReq       = "internal_protocol_requirement"
	SkipExternalProtoInScope   = "external_protocols_in_scope"
	SkipExternalExtension      = "external_type_extension"
	SkipConstrainedExtension   = "constrained_extension"
	SkipActorIsolation         = "actor_isolated"
	SkipBareNestedType         = "bare_nested_type_reference"
	SkipBareUnknownType        = "bare_unknown_capitalized_type"
)

// Decision is the outcome of the eligibility chain for one function.
type Decision struct {
	Eligible   bool
	SkipReason string
}

func skip(reason string) Decision { return Decision{SkipReason: reason} }

// Evaluate runs the ordered safety chain against fn within its file
// context. The order is part of the tool's contract: earlier, cheaper
// guards mask later ones, and the reason string reports exactly the
// first guard that fired.
func Evaluate(fn *discover.FunctionRecord, fc *FileContext, pol Policy) Decision {
	if len(fn.ParamTypes) > pol.MaxParams {
		return skip(SkipMaxParams)
	}
	if fn.ParentType != "" {
		if fn.ParentIsGeneric && !fn.IsStatic {
			return skip(SkipGenericParent)
		}
		if strings.ContainsAny(fn.ParentType, "<>") {
			return skip(SkipAngleBracketParent)
		}
		if fn.ParentDepth > 1 {
			return skip(SkipNestedParent)
		}
		if !fc.DeclaresParent(fn.ParentType) {
			return skip(SkipParentNotInFile)
		}
	}
	if pol.SkipExternalProtocolExtensionMembers && fn.ParentIsExtension && fn.HasExternalProtocolsInScope {
		return skip(SkipExternalProtoExtension)
	}
	if fn.ImplementsProtocolRequirement {
		if !pol.AllowInternalProtocolReqs {
			return skip(SkipInternalProtoReq)
		}
	} else if pol.SkipExternalProtocolReqs && fn.HasExternalProtocolsInScope && fn.ParentIsExtension {
		return skip(SkipExternalProtoInScope)
	}
	if pol.SkipExternalExtensions && fn.ParentIsExtension && !fn.ParentDeclaredInProject {
		return skip(SkipExternalExtension)
	}
	if fn.ParentIsConstrainedExtension {
		return skip(SkipConstrainedExtension)
	}
	if fn.ParentType != "" && !fn.IsStatic {
		if (fn.ParentIsActor || fn.ParentGlobalActor || fn.FuncGlobalActor) && !fn.HasModifier("nonisolated") {
			return skip(SkipActorIsolation)
		}
	}
	if usesBareNestedType(fn, fc) {
		return skip(SkipBareNestedType)
	}
	if usesBareUnknownCapitalizedType(fn, fc, pol) {
		return skip(SkipBareUnknownType)
	}
	return Decision{Eligible: true}
}

// stripTypeTokens reduces a type annotation to its base identifier:
// optionality marks, one layer of collection sugar and generic
// arguments are dropped.
func stripTypeTokens(tp string) string {
	tp = strings.TrimSpace(tp)
	tp = strings.TrimRight(tp, "?!")
	if strings.HasPrefix(tp, "[") && strings.HasSuffix(tp, "]") {
		tp = strings.TrimSpace(tp[1 : len(tp)-1])
	}
	if idx := strings.Index(tp, "<"); idx != -1 {
		tp = strings.TrimSpace(tp[:idx])
	}
	return tp
}

func usesBareNestedType(fn *discover.FunctionRecord, fc *FileContext) bool {
	if fn.ParentType == "" {
		return false
	}
	nested := fc.NestedTypesOf(fn.ParentType)
	if len(nested) == 0 {
		return false
	}
	check := func(t string) bool {
		base := stripTypeTokens(t)
		if base == "" || strings.Contains(base, ".") {
			return false
		}
		_, ok := nested[base]
		return ok
	}
	for _, p := range fn.ParamTypes {
		if check(p) {
			return true
		}
	}
	return check(fn.ReturnType)
}

func isBareCapitalized(tok string) bool {
	if tok == "" || strings.ContainsAny(tok, ".[]") {
		return false
	}
	return tok[0] >= 'A' && tok[0] <= 'Z'
}

func usesBareUnknownCapitalizedType(fn *discover.FunctionRecord, fc *FileContext, pol Policy) bool {
	if fn.ParentType == "" {
		return false
	}
	topLevel := fc.TopLevelTypes()
	known := func(base string) bool {
		if _, ok := topLevel[base]; ok {
			return true
		}
		if _, ok := stdTypeWhitelist[base]; ok {
			return true
		}
		for _, a := range pol.TypeAllowlist {
			if a == base {
				return true
			}
		}
		return false
	}
	check := func(t string) bool {
		base := stripTypeTokens(t)
		return isBareCapitalized(base) && !known(base)
	}
	for _, p := range fn.ParamTypes {
		if check(p) {
			return true
		}
	}
	return check(fn.ReturnType)
}

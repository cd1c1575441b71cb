// Package classify decides which discovered functions are excluded by
// user rules, which are risky, and which are safe to rewrite.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/Swingft/dyncall/internal/discover"
)

// Rule is one exception entry. Exception files are JSON, either a bare
// array of rules or an object with a "rules" array. Name and Kind
// accept the legacy "A_name"/"B_kind" spellings; File/Path/Glob mark
// whole-file exclusions.
type Rule struct {
	Name string
	Kind string
	File string
	Path string
	Glob string
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string `json:"name"`
		AName string `json:"A_name"`
		Kind  string `json:"kind"`
		BKind string `json:"B_kind"`
		File  string `json:"file"`
		Path  string `json:"path"`
		Glob  string `json:"glob"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Name = raw.Name
	if raw.AName != "" {
		r.Name = raw.AName
	}
	r.Kind = raw.Kind
	if raw.BKind != "" {
		r.Kind = raw.BKind
	}
	r.File, r.Path, r.Glob = raw.File, raw.Path, raw.Glob
	return nil
}

// LoadRules reads and concatenates the rules of every listed file. A
// missing or malformed file is a hard error; silently dropping an
// exception list could wrap functions the user explicitly protected.
func LoadRules(paths []string) ([]Rule, error) {
	var all []Rule
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading exceptions file %s: %w", p, err)
		}
		var list []Rule
		if err := json.Unmarshal(data, &list); err == nil {
			all = append(all, list...)
			continue
		}
		var wrapped struct {
			Rules []Rule `json:"rules"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil || wrapped.Rules == nil {
			return nil, fmt.Errorf("exceptions file must be a JSON list or {\"rules\": [...]}: %s", p)
		}
		all = append(all, wrapped.Rules...)
	}
	return all, nil
}

// FileExcludeGlobs derives whole-file exclusion patterns from the rule
// set: explicit file/path/glob keys, plus kind=="file" rules whose name
// is the pattern. Patterns are normalized to lowercase slash paths.
func FileExcludeGlobs(rules []Rule) []string {
	var patterns []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			patterns = append(patterns, strings.ToLower(strings.ReplaceAll(s, "\\", "/")))
		}
	}
	for _, r := range rules {
		add(r.File)
		add(r.Path)
		add(r.Glob)
		if strings.EqualFold(r.Kind, "file") {
			add(r.Name)
		}
	}
	return patterns
}

var typeKinds = map[string]struct{}{
	"class": {}, "struct": {}, "enum": {}, "protocol": {}, "extension": {}, "actor": {},
}

func globOrEqual(pattern, value string) bool {
	if pattern == "" {
		return false
	}
	if pattern == value {
		return true
	}
	ok, _ := path.Match(pattern, value)
	return ok
}

// RuleMatches reports whether the rule excludes fn. A "function" rule
// matches the function name, type-kind rules match the enclosing type,
// and rules without a recognized kind match either.
func RuleMatches(r Rule, fn *discover.FunctionRecord) bool {
	kind := strings.ToLower(r.Kind)
	if kind == "function" {
		return globOrEqual(r.Name, fn.Name)
	}
	if _, ok := typeKinds[kind]; ok {
		return globOrEqual(r.Name, fn.ParentType)
	}
	return globOrEqual(r.Name, fn.Name) || globOrEqual(r.Name, fn.ParentType)
}

// PartitionByExceptions splits funcs into the kept and excluded sets.
func PartitionByExceptions(funcs []discover.FunctionRecord, rules []Rule) (included, excluded []discover.FunctionRecord) {
	if len(rules) == 0 {
		return funcs, nil
	}
	for i := range funcs {
		matched := false
		for _, r := range rules {
			if RuleMatches(r, &funcs[i]) {
				matched = true
				break
			}
		}
		if matched {
			excluded = append(excluded, funcs[i])
		} else {
			included = append(included, funcs[i])
		}
	}
	return included, excluded
}

package rewrite

import (
	"fmt"
	"os"
	"strings"

	"github.com/Swingft/dyncall/internal/classify"
	"github.com/Swingft/dyncall/internal/discover"
	"github.com/Swingft/dyncall/internal/logx"
)

// Rewriter applies the call-indirection transform file by file. It is
// safe for concurrent use: every invocation owns its file exclusively
// and the policy is read-only.
type Rewriter struct {
	Policy classify.Policy
	DryRun bool
}

// FileResult reports what one RewriteFile call did.
type FileResult struct {
	Touched bool
	Wrapped int
}

// routeRegistration renders the install-time registration line for a
// wrapped function: the route key bound to a typed closure over the
// renamed implementation. Instance methods go through the curried
// member reference, with an isolated owner type when the parent
// demands actor isolation.
func routeRegistration(fn *discover.FunctionRecord, fileID string) string {
	impl := ImplPrefix + fn.Name
	n := len(fn.ParamTypes)
	paramTypesStr := strings.Join(fn.ParamTypes, ", ")
	ret := swiftType(fn.ReturnType)

	var wrapperName, fnref string
	if fn.ParentType != "" && !fn.IsStatic {
		ownerTy := "(" + fn.ParentType + ")"
		if needsIsolation(fn) {
			ownerTy = "(isolated " + fn.ParentType + ")"
		}
		sig := fmt.Sprintf("%s -> (%s) -> %s", ownerTy, paramTypesStr, ret)
		wrapperName = fmt.Sprintf("wrapM%d", n)
		fnref = fmt.Sprintf("%s.%s as %s", fn.ParentType, impl, sig)
	} else {
		sig := fmt.Sprintf("(%s) -> %s", paramTypesStr, ret)
		wrapperName = fmt.Sprintf("wrap%d", n)
		ref := impl
		if fn.ParentType != "" && fn.IsStatic {
			ref = fn.ParentType + "." + impl
		}
		fnref = ref + " as " + sig
	}
	return fmt.Sprintf(`_ = OBFF%s.register("%s", CFGWrappingUtils.%s(%s))`, fileID, fn.RouteKey, wrapperName, fnref)
}

func needsIsolation(fn *discover.FunctionRecord) bool {
	return (fn.ParentIsActor || fn.ParentGlobalActor || fn.FuncGlobalActor) && !fn.HasModifier("nonisolated")
}

// RewriteFile runs the eligibility chain over the file's targets,
// wraps the survivors and injects the dispatch runtime. The file is
// written back unless DryRun is set; a file where nothing wrapped is
// never written at all.
func (rw *Rewriter) RewriteFile(absPath, relPath string, targets []discover.FunctionRecord) (FileResult, error) {
	if len(targets) == 0 {
		return FileResult{}, nil
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return FileResult{}, fmt.Errorf("reading %s: %w", absPath, err)
	}
	original := string(data)
	fc := classify.NewFileContext(original)
	fileID := FileID(relPath)

	text := original
	var routes []string
	wrapped := 0
	for i := range targets {
		fn := &targets[i]
		dec := classify.Evaluate(fn, fc, rw.Policy)
		if !dec.Eligible {
			logx.Debugf("skip %s: %s", fn.RouteKey, dec.SkipReason)
			continue
		}
		newText, did := RenameAndWrap(text, fn, fileID)
		if !did {
			continue
		}
		text = newText
		wrapped++
		routes = append(routes, routeRegistration(fn, fileID))
	}
	if wrapped == 0 {
		return FileResult{}, nil
	}

	final := InjectOrReplace(text, BuildRuntime(fileID, routes), fileID)
	if !rw.DryRun {
		if err := os.WriteFile(absPath, []byte(final), 0o644); err != nil {
			return FileResult{}, fmt.Errorf("writing %s: %w", absPath, err)
		}
	}
	return FileResult{Touched: true, Wrapped: wrapped}, nil
}

package classify

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Swingft/dyncall/internal/scanner"
)

// FileContext answers type-visibility questions about a single source
// file for the eligibility chain. Lookups are cached; a context is
// built once per rewritten file and queried per candidate function.
type FileContext struct {
	src  string // comment-blanked view
	once sync.Once

	topLevel map[string]struct{}

	mu     sync.Mutex
	nested map[string]map[string]struct{}
}

// NewFileContext builds a context over the raw file text.
func NewFileContext(src string) *FileContext {
	return &FileContext{
		src:    scanner.BlankComments(src),
		nested: make(map[string]map[string]struct{}),
	}
}

var (
	nestedTypeRe    = regexp.MustCompile(`\b(class|struct|enum|actor)\s+([A-Za-z_]\w*)\b`)
	topLevelDeclRe  = regexp.MustCompile(`^\s*(?:@[\w:]+\s*)*(?:public|internal|fileprivate|private|open)?\s*(?:final\s+)?(class|struct|enum|actor|protocol|typealias)\s+([A-Za-z_]\w*)\b`)
	parentDeclRePat = `^\s*(?:@[\w:]+\s*)*(?:public|internal|fileprivate|private|open)?\s*(?:final\s+)?(?:class|struct|enum|actor|extension)\s+%s\b`
)

// DeclaresParent reports whether the file declares or extends the named
// type at the start of some line.
func (fc *FileContext) DeclaresParent(name string) bool {
	re, err := regexp.Compile(fmt.Sprintf("(?m)"+parentDeclRePat, regexp.QuoteMeta(name)))
	if err != nil {
		return false
	}
	return re.MatchString(fc.src)
}

// TopLevelTypes returns the names declared at brace depth zero.
func (fc *FileContext) TopLevelTypes() map[string]struct{} {
	fc.once.Do(func() {
		names := make(map[string]struct{})
		depth := 0
		for _, line := range strings.Split(fc.src, "\n") {
			if depth == 0 {
				if m := topLevelDeclRe.FindStringSubmatch(line); m != nil {
					names[m[2]] = struct{}{}
				}
			}
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth < 0 {
				depth = 0
			}
		}
		fc.topLevel = names
	})
	return fc.topLevel
}

// NestedTypesOf returns the type names declared inside the body of the
// named parent, or nil when the parent body cannot be located.
func (fc *FileContext) NestedTypesOf(parent string) map[string]struct{} {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if cached, ok := fc.nested[parent]; ok {
		return cached
	}
	names := make(map[string]struct{})
	if body, ok := fc.parentBody(parent); ok {
		for _, m := range nestedTypeRe.FindAllStringSubmatch(body, -1) {
			names[m[2]] = struct{}{}
		}
	}
	fc.nested[parent] = names
	return names
}

func (fc *FileContext) parentBody(parent string) (string, bool) {
	re, err := regexp.Compile(fmt.Sprintf("(?ms)"+parentDeclRePat+`.*?\{`, regexp.QuoteMeta(parent)))
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(fc.src)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	end := scanner.FindBlockEnd(fc.src, open)
	if end == -1 {
		return "", false
	}
	return fc.src[open+1 : end], true
}

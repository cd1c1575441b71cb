// Package prepass builds the project-wide symbol snapshot consumed by
// function discovery and classification. The snapshot is collected
// once, before any file is rewritten, and is read-only afterwards.
package prepass

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Swingft/dyncall/internal/logx"
	"github.com/Swingft/dyncall/internal/scanner"
)

// Snapshot carries everything later stages need to know about the
// project as a whole.
type Snapshot struct {
	// DeclaredTypes holds names of class/struct/enum/actor types
	// declared anywhere in the project. Extensions and protocols are
	// deliberately excluded; the set exists to tell local types from
	// external ones when an extension is encountered.
	DeclaredTypes map[string]struct{}

	// ActorTypes holds names declared with the actor keyword.
	ActorTypes map[string]struct{}

	// GlobalActorTypes holds class/struct/enum names annotated with a
	// global-actor attribute such as @MainActor.
	GlobalActorTypes map[string]struct{}

	// ProtocolRequirements maps each locally declared protocol to its
	// function requirement keys.
	ProtocolRequirements map[string]map[scanner.RequirementKey]struct{}
}

// IsLocalProtocol reports whether name is a protocol declared in the
// project.
func (s *Snapshot) IsLocalProtocol(name string) bool {
	_, ok := s.ProtocolRequirements[name]
	return ok
}

// HasRequirement reports whether the named local protocol declares a
// requirement with the given key.
func (s *Snapshot) HasRequirement(proto string, key scanner.RequirementKey) bool {
	reqs, ok := s.ProtocolRequirements[proto]
	if !ok {
		return false
	}
	_, ok = reqs[key]
	return ok
}

var (
	globalActorAttrRe = regexp.MustCompile(`@\w+Actor\b`)
	inlineTypeRe      = regexp.MustCompile(`\b(class|struct|enum)\s+([A-Za-z_]\w*)\b`)
	actorDeclRe       = regexp.MustCompile(`^\s*(?:public|internal|fileprivate|private|open)?\s*(?:final\s+)?actor\s+([A-Za-z_]\w*)\b`)
	plainTypeDeclRe   = regexp.MustCompile(`^\s*(?:public|internal|fileprivate|private|open)?\s*(?:final\s+)?(class|struct|enum)\s+([A-Za-z_]\w*)\b`)
)

// Collect reads every listed file once and assembles the Snapshot.
// Unreadable files are skipped; a file that fails to read during the
// prepass will fail identically during rewriting, where it is reported.
func Collect(paths []string) (*Snapshot, error) {
	snap := &Snapshot{
		DeclaredTypes:        make(map[string]struct{}),
		ActorTypes:           make(map[string]struct{}),
		GlobalActorTypes:     make(map[string]struct{}),
		ProtocolRequirements: make(map[string]map[scanner.RequirementKey]struct{}),
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logx.Debugf("prepass: skipping unreadable file %s: %v", path, err)
			continue
		}
		text := string(data)
		snap.collectDeclaredTypes(text)
		snap.collectProtocolRequirements(text)
		snap.collectActorTypes(text)
	}
	logx.Debugf("prepass: declared types=%d actors=%d global-actors=%d protocols=%d",
		len(snap.DeclaredTypes), len(snap.ActorTypes), len(snap.GlobalActorTypes), len(snap.ProtocolRequirements))
	return snap, nil
}

func (s *Snapshot) collectDeclaredTypes(text string) {
	for _, m := range scanner.TypeDeclRe.FindAllStringSubmatch(text, -1) {
		kind, name := m[2], m[3]
		switch kind {
		case "class", "struct", "enum", "actor":
			s.DeclaredTypes[name] = struct{}{}
		}
	}
}

func (s *Snapshot) collectProtocolRequirements(text string) {
	scrub := scanner.BlankComments(text)
	for _, pb := range scanner.ProtocolBlocks(scrub) {
		reqs, ok := s.ProtocolRequirements[pb.Name]
		if !ok {
			reqs = make(map[scanner.RequirementKey]struct{})
			s.ProtocolRequirements[pb.Name] = reqs
		}
		for _, fm := range scanner.FuncDeclRe.FindAllStringSubmatch(pb.Body, -1) {
			name, params := fm[2], fm[3]
			reqs[scanner.KeyFor(name, params)] = struct{}{}
		}
	}
}

// collectActorTypes finds actor declarations and global-actor
// annotated types. A global-actor attribute on its own line marks the
// next type declaration; any other intervening line clears it, except
// further attribute lines.
func (s *Snapshot) collectActorTypes(text string) {
	pendingActorAttr := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if globalActorAttrRe.MatchString(line) {
			if m := inlineTypeRe.FindStringSubmatch(line); m != nil {
				s.GlobalActorTypes[m[2]] = struct{}{}
				pendingActorAttr = false
			} else {
				pendingActorAttr = true
			}
			continue
		}
		if m := actorDeclRe.FindStringSubmatch(raw); m != nil {
			s.ActorTypes[m[1]] = struct{}{}
			pendingActorAttr = false
			continue
		}
		if pendingActorAttr {
			if m := plainTypeDeclRe.FindStringSubmatch(raw); m != nil {
				s.GlobalActorTypes[m[2]] = struct{}{}
				pendingActorAttr = false
			} else if !strings.HasPrefix(line, "@") {
				pendingActorAttr = false
			}
		}
	}
}

// Describe is a compact debug summary of the snapshot.
func (s *Snapshot) Describe() string {
	return fmt.Sprintf("types=%d actors=%d global-actors=%d protocols=%d",
		len(s.DeclaredTypes), len(s.ActorTypes), len(s.GlobalActorTypes), len(s.ProtocolRequirements))
}

package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Target is a fully qualified request/result identifier: a kind plus the
// path components naming one instance, or the all-instances form for a
// whole kind. Targets are value types and safe to use as map keys through
// their serialized form.
type Target struct {
	kind *Kind
	path []string
	all  bool
}

// NewTarget builds a concrete target. Arity must match what the kind
// declares; a mismatch or a nil kind is a programming error, construction
// against unvalidated input belongs in the loader.
func NewTarget(kind *Kind, path ...string) Target {
	if kind == nil {
		panic("pipeline: target with nil kind")
	}
	if len(path) != kind.Depth() {
		panic(fmt.Sprintf("pipeline: target %s expects %d path components, got %d", kind.Name(), kind.Depth(), len(path)))
	}
	components := make([]string, len(path))
	copy(components, path)
	return Target{kind: kind, path: components}
}

// AllTargets builds the all-instances target of a kind.
func AllTargets(kind *Kind) Target {
	if kind == nil {
		panic("pipeline: target with nil kind")
	}
	return Target{kind: kind, all: true}
}

func (t Target) Kind() *Kind {
	return t.kind
}

func (t Target) Path() []string {
	components := make([]string, len(t.path))
	copy(components, t.path)
	return components
}

func (t Target) IsAll() bool {
	return t.all
}

func (t Target) Equal(other Target) bool {
	if t.kind.Name() != other.kind.Name() || t.all != other.all || len(t.path) != len(other.path) {
		return false
	}
	for i := range t.path {
		if t.path[i] != other.path[i] {
			return false
		}
	}
	return true
}

// Less imposes the total ordering used by every sorted target list:
// lexicographic over (kind name, path components), all-instances last
// within a kind.
func (t Target) Less(other Target) bool {
	if t.kind.Name() != other.kind.Name() {
		return t.kind.Name() < other.kind.Name()
	}
	if t.all != other.all {
		return !t.all
	}
	for i := 0; i < len(t.path) && i < len(other.path); i++ {
		if t.path[i] != other.path[i] {
			return t.path[i] < other.path[i]
		}
	}
	return len(t.path) < len(other.path)
}

// Matches reports whether t satisfies the given pattern. The pattern kind
// may be an ancestor of t's kind, and an all-instances pattern matches any
// instance of compatible kind.
func (t Target) Matches(pattern Target) bool {
	if !pattern.kind.IsAncestorOf(t.kind) {
		return false
	}
	if pattern.all {
		return true
	}
	if t.all || len(t.path) != len(pattern.path) {
		return false
	}
	for i := range t.path {
		if t.path[i] != pattern.path[i] {
			return false
		}
	}
	return true
}

// WithKind rebinds the target to another kind, keeping the path. Used by
// contract rewriting where both kinds share the instance depth.
func (t Target) WithKind(kind *Kind) Target {
	if t.all {
		return AllTargets(kind)
	}
	return NewTarget(kind, t.path...)
}

// Serialize renders "kind:component/component" or "kind:*". The format is
// stable and used for state files and logging.
func (t Target) Serialize() string {
	if t.all {
		return t.kind.Name() + ":*"
	}
	return t.kind.Name() + ":" + strings.Join(t.path, "/")
}

// ParseTarget is the inverse of Serialize. Unknown kinds and arity
// mismatches surface as errors because parsed input is configuration, not
// code.
func ParseTarget(registry *Registry, serialized string) (Target, error) {
	kindName, rest, found := strings.Cut(serialized, ":")
	if !found {
		return Target{}, fmt.Errorf("parsing target %q: missing kind separator", serialized)
	}
	kind, err := registry.Get(kindName)
	if err != nil {
		return Target{}, fmt.Errorf("parsing target %q: %w", serialized, err)
	}
	if rest == "*" {
		return AllTargets(kind), nil
	}
	var components []string
	if rest != "" {
		components = strings.Split(rest, "/")
	}
	if len(components) != kind.Depth() {
		return Target{}, fmt.Errorf("parsing target %q: kind %s expects %d path components, got %d",
			serialized, kind.Name(), kind.Depth(), len(components))
	}
	return NewTarget(kind, components...), nil
}

// TargetsList is an always-sorted, duplicate-free list of targets.
type TargetsList struct {
	targets []Target
}

func (l *TargetsList) Add(targets ...Target) {
	for _, t := range targets {
		if l.Contains(t) {
			continue
		}
		l.targets = append(l.targets, t)
	}
	sort.Slice(l.targets, func(i, j int) bool {
		return l.targets[i].Less(l.targets[j])
	})
}

func (l *TargetsList) Remove(target Target) {
	for i, t := range l.targets {
		if t.Equal(target) {
			l.targets = append(l.targets[:i], l.targets[i+1:]...)
			return
		}
	}
}

func (l TargetsList) Contains(target Target) bool {
	for _, t := range l.targets {
		if t.Equal(target) {
			return true
		}
	}
	return false
}

// ContainsMatching reports whether some entry of the list satisfies the
// pattern (kind ancestry and wildcard aware, unlike Contains).
func (l TargetsList) ContainsMatching(pattern Target) bool {
	for _, t := range l.targets {
		if t.Matches(pattern) {
			return true
		}
	}
	return false
}

func (l TargetsList) Empty() bool {
	return len(l.targets) == 0
}

func (l TargetsList) Len() int {
	return len(l.targets)
}

// Slice returns a copy of the backing list, sorted.
func (l TargetsList) Slice() []Target {
	targets := make([]Target, len(l.targets))
	copy(targets, l.targets)
	return targets
}

func (l TargetsList) Copy() TargetsList {
	var out TargetsList
	out.targets = make([]Target, len(l.targets))
	copy(out.targets, l.targets)
	return out
}

func (l TargetsList) String() string {
	parts := make([]string, 0, len(l.targets))
	for _, t := range l.targets {
		parts = append(parts, t.Serialize())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

package pipeline

import (
	"fmt"
	"sort"
)

// Kind is a named category of artifact. Kinds form a forest: a kind may
// refine a parent kind, and a target of a child kind satisfies a request
// for the parent. Depth is the number of path components a target of this
// kind carries (0 for singleton artifacts, 1 for per-function artifacts,
// and so on).
type Kind struct {
	name   string
	parent *Kind
	depth  int
}

func (k *Kind) Name() string {
	return k.name
}

func (k *Kind) Parent() *Kind {
	return k.parent
}

func (k *Kind) Depth() int {
	return k.depth
}

// IsAncestorOf reports whether other equals k or refines it through any
// number of parent links.
func (k *Kind) IsAncestorOf(other *Kind) bool {
	for cursor := other; cursor != nil; cursor = cursor.parent {
		if cursor == k {
			return true
		}
	}
	return false
}

// Registry owns every kind of one pipeline. It is populated once at
// startup; registering against an unknown parent or reusing a name is a
// configuration error.
type Registry struct {
	kinds map[string]*Kind
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]*Kind),
	}
}

func (r *Registry) Register(name string, parent *Kind, depth int) (*Kind, error) {
	if name == "" {
		return nil, fmt.Errorf("registering kind: empty name")
	}
	if _, ok := r.kinds[name]; ok {
		return nil, fmt.Errorf("registering kind %q: %w", name, ErrDuplicateKind)
	}
	if depth < 0 {
		return nil, fmt.Errorf("registering kind %q: negative depth %d", name, depth)
	}
	kind := &Kind{name: name, parent: parent, depth: depth}
	r.kinds[name] = kind
	r.order = append(r.order, name)
	return kind, nil
}

// MustRegister is the in-code variant used by tests and examples where a
// clash is a programming error.
func (r *Registry) MustRegister(name string, parent *Kind, depth int) *Kind {
	kind, err := r.Register(name, parent, depth)
	if err != nil {
		panic(err)
	}
	return kind
}

func (r *Registry) Get(name string) (*Kind, error) {
	kind, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("kind %q: %w", name, ErrUnknownKind)
	}
	return kind, nil
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.kinds[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

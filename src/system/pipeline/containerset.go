package pipeline

import "fmt"

// ContainerSet is the ordered, uniquely named collection of containers
// forming the live pipeline state. Planning never touches it directly:
// backward and forward deduction work on clones, and the set is only
// mutated through explicit merge/remove calls after a pipe completed.
type ContainerSet struct {
	names      []string
	containers map[string]Container
}

func NewContainerSet() *ContainerSet {
	return &ContainerSet{
		containers: make(map[string]Container),
	}
}

func (s *ContainerSet) Add(name string, container Container) error {
	if _, ok := s.containers[name]; ok {
		return fmt.Errorf("adding container %q: %w", name, ErrDuplicateContainer)
	}
	s.names = append(s.names, name)
	s.containers[name] = container
	return nil
}

func (s *ContainerSet) Get(name string) (Container, error) {
	container, ok := s.containers[name]
	if !ok {
		return nil, fmt.Errorf("container %q: %w", name, ErrUnknownContainer)
	}
	return container, nil
}

func (s *ContainerSet) Contains(name string) bool {
	_, ok := s.containers[name]
	return ok
}

// Replace swaps the container stored under name with an independent
// instance of the same declared type. This is how a successful pipe run
// lands: the pipe ran on a clone, the clone replaces the original.
func (s *ContainerSet) Replace(name string, container Container) error {
	current, ok := s.containers[name]
	if !ok {
		return fmt.Errorf("replacing container %q: %w", name, ErrUnknownContainer)
	}
	if current.TypeName() != container.TypeName() {
		return fmt.Errorf("replacing container %q: stored type %q, got %q: %w",
			name, current.TypeName(), container.TypeName(), ErrContainerType)
	}
	s.containers[name] = container
	return nil
}

// Names returns the container names in registration order.
func (s *ContainerSet) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// CloneFiltered produces an independent copy of the named subset (all
// containers when no names are given). Clones never alias the live set, so
// speculative planning is race free against execution.
func (s *ContainerSet) CloneFiltered(names ...string) *ContainerSet {
	clone := NewContainerSet()
	if len(names) == 0 {
		names = s.names
	}
	for _, name := range names {
		container, ok := s.containers[name]
		if !ok {
			continue
		}
		// Add cannot fail here, names are unique by construction
		_ = clone.Add(name, container.Clone())
	}
	return clone
}

// Enumerate reports everything currently present as a target map.
func (s *ContainerSet) Enumerate() ContainerToTargetsMap {
	out := make(ContainerToTargetsMap)
	for _, name := range s.names {
		list := s.containers[name].Enumerate()
		if !list.Empty() {
			out[name] = list
		}
	}
	return out
}

// RemoveTargets drops the given targets from their containers. Unknown
// container names in the map are skipped: an invalidation set may mention
// containers this set does not hold.
func (s *ContainerSet) RemoveTargets(m ContainerToTargetsMap) error {
	for name, list := range m {
		container, ok := s.containers[name]
		if !ok {
			continue
		}
		if err := container.Remove(list); err != nil {
			return fmt.Errorf("removing targets from %q: %w", name, err)
		}
	}
	return nil
}

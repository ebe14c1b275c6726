package pipeline

import (
	"sort"
	"strings"
)

// ContainerToTargetsMap maps container names to sets of targets. It is the
// currency of contract deduction: requests, availability reports and
// invalidation sets are all expressed as this value, never as containers
// themselves.
type ContainerToTargetsMap map[string]TargetsList

func (m ContainerToTargetsMap) Add(containerName string, targets ...Target) {
	list := m[containerName]
	list.Add(targets...)
	m[containerName] = list
}

func (m ContainerToTargetsMap) Targets(containerName string) TargetsList {
	return m[containerName]
}

// Names returns the container names in deterministic order.
func (m ContainerToTargetsMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether every target of other is present in m, exact
// matches only.
func (m ContainerToTargetsMap) Contains(other ContainerToTargetsMap) bool {
	for name, list := range other {
		mine := m[name]
		for _, t := range list.Slice() {
			if !mine.Contains(t) {
				return false
			}
		}
	}
	return true
}

// Merge folds other into m (set union per container).
func (m ContainerToTargetsMap) Merge(other ContainerToTargetsMap) {
	for name, list := range other {
		m.Add(name, list.Slice()...)
	}
}

// Erase removes every target of other from m (set difference per
// container).
func (m ContainerToTargetsMap) Erase(other ContainerToTargetsMap) {
	for name, list := range other {
		mine, ok := m[name]
		if !ok {
			continue
		}
		for _, t := range list.Slice() {
			mine.Remove(t)
		}
		if mine.Empty() {
			delete(m, name)
		} else {
			m[name] = mine
		}
	}
}

func (m ContainerToTargetsMap) Empty() bool {
	for _, list := range m {
		if !list.Empty() {
			return false
		}
	}
	return true
}

func (m ContainerToTargetsMap) Copy() ContainerToTargetsMap {
	out := make(ContainerToTargetsMap, len(m))
	for name, list := range m {
		out[name] = list.Copy()
	}
	return out
}

func (m ContainerToTargetsMap) String() string {
	parts := make([]string, 0, len(m))
	for _, name := range m.Names() {
		parts = append(parts, name+"="+m[name].String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

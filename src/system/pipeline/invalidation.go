package pipeline

import (
	"sort"
	"strings"
	"sync"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
)

// Path is a structured field-access path into a named global object, e.g.
// /functions/0x400000. The engine never interprets segments, it only uses
// paths as invalidation keys.
type Path []string

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

func ParsePath(serialized string) Path {
	trimmed := strings.TrimPrefix(serialized, "/")
	if trimmed == "" {
		return Path{}
	}
	return Path(strings.Split(trimmed, "/"))
}

// Diff is the ordered sequence of changed paths a global reports after a
// mutation.
type Diff []Path

// TargetInContainer qualifies a target with the container it lives in.
type TargetInContainer struct {
	Target        Target
	ContainerName string
}

func (t TargetInContainer) key() string {
	return t.ContainerName + "|" + t.Target.Serialize()
}

// PathTargetBimap is a many-to-many reverse index between global-object
// paths and the targets that were derived by reading them. One path can
// affect many targets, one target can depend on many paths.
type PathTargetBimap struct {
	pathToTargets map[string][]TargetInContainer
	targetToPaths map[string][]string
}

func NewPathTargetBimap() *PathTargetBimap {
	return &PathTargetBimap{
		pathToTargets: make(map[string][]TargetInContainer),
		targetToPaths: make(map[string][]string),
	}
}

func (b *PathTargetBimap) Insert(path Path, entry TargetInContainer) {
	pathKey := path.String()
	for _, existing := range b.pathToTargets[pathKey] {
		if existing.key() == entry.key() {
			return
		}
	}
	b.pathToTargets[pathKey] = append(b.pathToTargets[pathKey], entry)
	b.targetToPaths[entry.key()] = append(b.targetToPaths[entry.key()], pathKey)
}

// TargetsDependingOn returns the targets recorded against exactly that
// path. A miss returns nil: absence of history is valid.
func (b *PathTargetBimap) TargetsDependingOn(path Path) []TargetInContainer {
	entries := b.pathToTargets[path.String()]
	out := make([]TargetInContainer, len(entries))
	copy(out, entries)
	return out
}

func (b *PathTargetBimap) Contains(entry TargetInContainer) bool {
	_, ok := b.targetToPaths[entry.key()]
	return ok
}

// Remove evicts the given targets of one container from both directions of
// the index so stale entries cannot be matched again.
func (b *PathTargetBimap) Remove(targets TargetsList, containerName string) {
	for _, target := range targets.Slice() {
		entry := TargetInContainer{Target: target, ContainerName: containerName}
		entryKey := entry.key()
		for _, pathKey := range b.targetToPaths[entryKey] {
			remaining := b.pathToTargets[pathKey][:0]
			for _, existing := range b.pathToTargets[pathKey] {
				if existing.key() != entryKey {
					remaining = append(remaining, existing)
				}
			}
			if len(remaining) == 0 {
				delete(b.pathToTargets, pathKey)
			} else {
				b.pathToTargets[pathKey] = remaining
			}
		}
		delete(b.targetToPaths, entryKey)
	}
}

func (b *PathTargetBimap) Len() int {
	return len(b.targetToPaths)
}

// BimapEntry is the flat, serializable form of one (global, path, target)
// association, used by the state store.
type BimapEntry struct {
	Global    string `json:"global"`
	Path      string `json:"path"`
	Container string `json:"container"`
	Target    string `json:"target"`
}

// InvalidationMetadata owns one PathTargetBimap per named global object.
// One instance lives inside each pipe wrapper and is persisted across
// pipeline runs as part of pipeline state. Each bimap is treated as a
// single mutually exclusive resource: every operation below serializes on
// the metadata lock.
type InvalidationMetadata struct {
	mu        sync.Mutex
	pathCache map[string]*PathTargetBimap
}

func NewInvalidationMetadata() *InvalidationMetadata {
	return &InvalidationMetadata{
		pathCache: make(map[string]*PathTargetBimap),
	}
}

// Insert records that target was derived by reading path under the named
// global. Called by the execution context at commit time, never
// retroactively.
func (m *InvalidationMetadata) Insert(globalName string, path Path, entry TargetInContainer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bimap, ok := m.pathCache[globalName]
	if !ok {
		bimap = NewPathTargetBimap()
		m.pathCache[globalName] = bimap
	}
	bimap.Insert(path, entry)
}

// RegisterTargetsDependingOn adds every target recorded against exactly
// that path under that global to out. Unknown global or unknown path is a
// no-op, not an error.
func (m *InvalidationMetadata) RegisterTargetsDependingOn(globalName string, path Path, out ContainerToTargetsMap, log *archivist.Archivist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bimap, ok := m.pathCache[globalName]
	if !ok {
		return
	}
	for _, entry := range bimap.TargetsDependingOn(path) {
		if log != nil {
			log.Debug(archivist.DEBUG_LEVEL_DETAIL, "invalidation REGISTER global=", globalName, " path=", path.String(), " target=", entry.Target.Serialize(), " container=", entry.ContainerName)
		}
		out.Add(entry.ContainerName, entry.Target)
	}
}

// Remove evicts every (container, targets) pair of the map from all
// per-global bimaps. Called after the artifacts were actually dropped from
// their containers.
func (m *InvalidationMetadata) Remove(targets ContainerToTargetsMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for containerName, list := range targets {
		for _, bimap := range m.pathCache {
			bimap.Remove(list, containerName)
		}
	}
}

func (m *InvalidationMetadata) Contains(globalName string, entry TargetInContainer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	bimap, ok := m.pathCache[globalName]
	if !ok {
		return false
	}
	return bimap.Contains(entry)
}

func (m *InvalidationMetadata) Globals() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.pathCache))
	for name := range m.pathCache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot flattens the metadata into serializable entries in
// deterministic order.
func (m *InvalidationMetadata) Snapshot() []BimapEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []BimapEntry
	for globalName, bimap := range m.pathCache {
		for pathKey, targets := range bimap.pathToTargets {
			for _, entry := range targets {
				entries = append(entries, BimapEntry{
					Global:    globalName,
					Path:      pathKey,
					Container: entry.ContainerName,
					Target:    entry.Target.Serialize(),
				})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Global != b.Global {
			return a.Global < b.Global
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Container != b.Container {
			return a.Container < b.Container
		}
		return a.Target < b.Target
	})
	return entries
}

// Restore rebuilds the metadata from snapshot entries, resolving target
// kinds against the registry.
func (m *InvalidationMetadata) Restore(registry *Registry, entries []BimapEntry) error {
	for _, entry := range entries {
		target, err := ParseTarget(registry, entry.Target)
		if err != nil {
			return err
		}
		m.Insert(entry.Global, ParsePath(entry.Path), TargetInContainer{
			Target:        target,
			ContainerName: entry.Container,
		})
	}
	return nil
}

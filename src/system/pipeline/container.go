package pipeline

import (
	"encoding/json"
	"fmt"
)

// Container is a typed, named store of artifacts keyed by target. The
// engine never interprets payloads; everything it needs is expressed via
// target identities. Containers of the same declared type are
// interchangeable.
type Container interface {
	TypeName() string
	Enumerate() TargetsList
	Contains(target Target) bool
	// Merge folds other (same declared type) into the receiver, later
	// entries winning on collision.
	Merge(other Container) error
	Remove(targets TargetsList) error
	Clone() Container
	Serialize() ([]byte, error)
	Deserialize(registry *Registry, data []byte) error
}

// PayloadContainer is the engine's generic container: opaque byte payloads
// keyed by target. Concrete analysis stacks bring their own container
// types; this one backs tests, examples and simple import/export steps.
type PayloadContainer struct {
	typeName string
	entries  map[string][]byte
	targets  map[string]Target
}

func NewPayloadContainer(typeName string) *PayloadContainer {
	return &PayloadContainer{
		typeName: typeName,
		entries:  make(map[string][]byte),
		targets:  make(map[string]Target),
	}
}

func (c *PayloadContainer) TypeName() string {
	return c.typeName
}

func (c *PayloadContainer) Store(target Target, payload []byte) {
	key := target.Serialize()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.entries[key] = buf
	c.targets[key] = target
}

func (c *PayloadContainer) Load(target Target) ([]byte, bool) {
	payload, ok := c.entries[target.Serialize()]
	if !ok {
		return nil, false
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return buf, true
}

func (c *PayloadContainer) Enumerate() TargetsList {
	var list TargetsList
	for _, target := range c.targets {
		list.Add(target)
	}
	return list
}

func (c *PayloadContainer) Contains(target Target) bool {
	_, ok := c.entries[target.Serialize()]
	return ok
}

func (c *PayloadContainer) Merge(other Container) error {
	otherPayload, ok := other.(*PayloadContainer)
	if !ok || otherPayload.typeName != c.typeName {
		return fmt.Errorf("merging container of type %q into %q: %w", other.TypeName(), c.typeName, ErrContainerType)
	}
	for key, payload := range otherPayload.entries {
		c.Store(otherPayload.targets[key], payload)
	}
	return nil
}

func (c *PayloadContainer) Remove(targets TargetsList) error {
	for _, target := range targets.Slice() {
		key := target.Serialize()
		delete(c.entries, key)
		delete(c.targets, key)
	}
	return nil
}

func (c *PayloadContainer) Clone() Container {
	clone := NewPayloadContainer(c.typeName)
	for key, payload := range c.entries {
		clone.Store(c.targets[key], payload)
	}
	return clone
}

type payloadContainerState struct {
	Type    string            `json:"type"`
	Entries map[string][]byte `json:"entries"`
}

func (c *PayloadContainer) Serialize() ([]byte, error) {
	return json.Marshal(payloadContainerState{
		Type:    c.typeName,
		Entries: c.entries,
	})
}

func (c *PayloadContainer) Deserialize(registry *Registry, data []byte) error {
	var state payloadContainerState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("deserializing payload container: %w", err)
	}
	if state.Type != c.typeName {
		return fmt.Errorf("deserializing payload container: stored type %q, want %q: %w", state.Type, c.typeName, ErrContainerType)
	}
	c.entries = make(map[string][]byte, len(state.Entries))
	c.targets = make(map[string]Target, len(state.Entries))
	for key, payload := range state.Entries {
		target, err := ParseTarget(registry, key)
		if err != nil {
			return fmt.Errorf("deserializing payload container: %w", err)
		}
		c.Store(target, payload)
	}
	return nil
}

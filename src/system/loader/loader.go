// Package loader turns declarative pipeline definitions (TOML files or
// in-code built values) into a validated runner. Every configuration
// error class (unknown kinds, duplicate container names, binding arity
// mismatches, unknown pipe factories) is detected here, before any pipe
// can execute.
package loader

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/pipeline"
)

// Definition is the serializable description of one pipeline.
type Definition struct {
	Name       string                `toml:"name"`
	Kinds      []KindDefinition      `toml:"kind"`
	Containers []ContainerDefinition `toml:"container"`
	Pipes      []PipeDefinition      `toml:"pipe"`
}

type KindDefinition struct {
	Name   string `toml:"name"`
	Parent string `toml:"parent"`
	Depth  int    `toml:"depth"`
}

type ContainerDefinition struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type PipeDefinition struct {
	Name string `toml:"name"`
	// Bind lists the container names for the pipe's arguments, in
	// declared argument order.
	Bind    []string          `toml:"bind"`
	Options map[string]string `toml:"options"`
}

// PipeFactory produces a fresh instance of a registered pipe type. The
// factory resolves the kinds its contracts speak about against the
// registry; an unresolvable kind is a configuration error.
type PipeFactory func(registry *pipeline.Registry) (pipeline.Pipe, error)

// ContainerFactory produces a fresh, empty container of a registered
// container type.
type ContainerFactory func() pipeline.Container

// LoadFile reads and parses a TOML pipeline definition.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition: %w", err)
	}
	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition %s: %w", path, err)
	}
	return &def, nil
}

// Build validates the definition and assembles the runner: kind registry,
// container set, bound pipe wrappers. The returned options map carries the
// per-pipe option bags keyed by pipe name, merged for the whole run.
func Build(def *Definition, pipeFactories map[string]PipeFactory, containerFactories map[string]ContainerFactory, log *archivist.Archivist) (*pipeline.Runner, map[string]string, error) {
	registry := pipeline.NewRegistry()
	for _, kindDef := range def.Kinds {
		var parent *pipeline.Kind
		if kindDef.Parent != "" {
			resolved, err := registry.Get(kindDef.Parent)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline %q: kind %q parent: %w", def.Name, kindDef.Name, err)
			}
			parent = resolved
		}
		if _, err := registry.Register(kindDef.Name, parent, kindDef.Depth); err != nil {
			return nil, nil, fmt.Errorf("pipeline %q: %w", def.Name, err)
		}
	}

	state := pipeline.NewContainerSet()
	for _, containerDef := range def.Containers {
		factory, ok := containerFactories[containerDef.Type]
		if !ok {
			return nil, nil, fmt.Errorf("pipeline %q: container %q: unknown container type %q",
				def.Name, containerDef.Name, containerDef.Type)
		}
		if err := state.Add(containerDef.Name, factory()); err != nil {
			return nil, nil, fmt.Errorf("pipeline %q: %w", def.Name, err)
		}
	}

	runner := pipeline.NewRunner(registry, state, log)
	options := make(map[string]string)
	for _, pipeDef := range def.Pipes {
		factory, ok := pipeFactories[pipeDef.Name]
		if !ok {
			return nil, nil, fmt.Errorf("pipeline %q: unknown pipe %q", def.Name, pipeDef.Name)
		}
		pipe, err := factory(registry)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline %q: pipe %q: %w", def.Name, pipeDef.Name, err)
		}
		wrapper, err := pipeline.NewPipeWrapper(pipe, log, pipeDef.Bind...)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline %q: %w", def.Name, err)
		}
		for index, containerName := range pipeDef.Bind {
			container, err := state.Get(containerName)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline %q: pipe %q argument %d: %w", def.Name, pipeDef.Name, index, err)
			}
			declarations := pipe.GetContainerDeclarations()
			if declared := declarations[index].TypeName; declared != "" && declared != container.TypeName() {
				return nil, nil, fmt.Errorf("pipeline %q: pipe %q argument %q wants container type %q, %q has %q: %w",
					def.Name, pipeDef.Name, declarations[index].Name, declared, containerName, container.TypeName(), pipeline.ErrContainerType)
			}
		}
		for name, value := range pipeDef.Options {
			options[name] = value
		}
		runner.AddPipe(wrapper)
	}

	log.Debug(archivist.DEBUG_LEVEL_TRACE, "loader BUILD pipeline=", def.Name, " kinds=", len(def.Kinds), " containers=", len(def.Containers), " pipes=", len(def.Pipes))
	return runner, options, nil
}

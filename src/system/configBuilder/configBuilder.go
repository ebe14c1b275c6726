// Package configBuilder offers a fluent, in-code way to assemble the same
// pipeline definitions the loader reads from TOML files.
package configBuilder

import "github.com/laughingman-dev/binpipe/src/system/loader"

type ConfigBuilder struct {
	name       string
	kinds      []loader.KindDefinition
	containers []loader.ContainerDefinition
	pipes      []*PipeEntry
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (builder *ConfigBuilder) SetName(name string) *ConfigBuilder {
	builder.name = name
	return builder
}

// AddKind declares a kind. Parent may be empty for a root kind; depth is
// the path component arity of its targets.
func (builder *ConfigBuilder) AddKind(name string, parent string, depth int) *ConfigBuilder {
	builder.kinds = append(builder.kinds, loader.KindDefinition{
		Name:   name,
		Parent: parent,
		Depth:  depth,
	})
	return builder
}

func (builder *ConfigBuilder) AddContainer(name string, containerType string) *ConfigBuilder {
	builder.containers = append(builder.containers, loader.ContainerDefinition{
		Name: name,
		Type: containerType,
	})
	return builder
}

func (builder *ConfigBuilder) AddPipe(pipe *PipeEntry) *ConfigBuilder {
	builder.pipes = append(builder.pipes, pipe)
	return builder
}

func (builder *ConfigBuilder) Build() *loader.Definition {
	def := &loader.Definition{
		Name:       builder.name,
		Kinds:      builder.kinds,
		Containers: builder.containers,
	}
	for _, pipe := range builder.pipes {
		def.Pipes = append(def.Pipes, loader.PipeDefinition{
			Name:    pipe.name,
			Bind:    pipe.bindings,
			Options: pipe.options,
		})
	}
	return def
}

// PipeEntry collects one pipe's binding and options before it is folded
// into the definition.
type PipeEntry struct {
	name     string
	bindings []string
	options  map[string]string
}

func NewPipe(name string) *PipeEntry {
	return &PipeEntry{
		name:    name,
		options: make(map[string]string),
	}
}

// Bind appends container names in the pipe's declared argument order.
func (p *PipeEntry) Bind(containerNames ...string) *PipeEntry {
	p.bindings = append(p.bindings, containerNames...)
	return p
}

func (p *PipeEntry) SetOption(name string, value string) *PipeEntry {
	p.options[name] = value
	return p
}

// Package example ships a small but complete analysis stack: a diffable
// model global, an import step and two transformation pipes. It backs
// cmd/example and the built-in pipe set of the CLI.
package example

import (
	"fmt"
	"sort"
	"strings"

	"github.com/laughingman-dev/binpipe/src/system/loader"
	"github.com/laughingman-dev/binpipe/src/system/pipeline"
)

// Kind and container type names shared between the example pipes and the
// pipeline definitions binding them.
const (
	KindBinary         = "binary"
	KindRawFunction    = "raw-function"
	KindLiftedFunction = "lifted-function"
	KindBinarySummary  = "binary-summary"

	ContainerTypeFunctions = "functions"

	ModelName = "model"
)

// RegisterKinds populates a registry with the example kind forest.
func RegisterKinds(registry *pipeline.Registry) error {
	if _, err := registry.Register(KindBinary, nil, 0); err != nil {
		return err
	}
	raw, err := registry.Register(KindRawFunction, nil, 1)
	if err != nil {
		return err
	}
	if _, err := registry.Register(KindLiftedFunction, raw, 1); err != nil {
		return err
	}
	if _, err := registry.Register(KindBinarySummary, nil, 0); err != nil {
		return err
	}
	return nil
}

// Model is the example global object: named function entry points. Diff
// reports /functions/<name> paths for entries that were added, removed or
// changed.
type Model struct {
	Functions map[string]string
}

func NewModel() *Model {
	return &Model{Functions: make(map[string]string)}
}

func (m *Model) Name() string {
	return ModelName
}

func (m *Model) Diff(previous pipeline.Global) pipeline.Diff {
	before, ok := previous.(*Model)
	if !ok {
		return nil
	}
	changed := make(map[string]bool)
	for name, entry := range m.Functions {
		if before.Functions[name] != entry {
			changed[name] = true
		}
	}
	for name := range before.Functions {
		if _, still := m.Functions[name]; !still {
			changed[name] = true
		}
	}
	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)
	var diff pipeline.Diff
	for _, name := range names {
		diff = append(diff, pipeline.Path{"functions", name})
	}
	return diff
}

// ImportPipe turns the seeded binary artifact into one raw function per
// model entry. The binary payload stays untouched; the function list comes
// from the model global, so every produced target records its model path.
type ImportPipe struct {
	binary *pipeline.Kind
	raw    *pipeline.Kind
}

func NewImportPipe(registry *pipeline.Registry) (pipeline.Pipe, error) {
	binary, err := registry.Get(KindBinary)
	if err != nil {
		return nil, err
	}
	raw, err := registry.Get(KindRawFunction)
	if err != nil {
		return nil, err
	}
	return &ImportPipe{binary: binary, raw: raw}, nil
}

func (p *ImportPipe) GetName() string {
	return "importFunctions"
}

func (p *ImportPipe) GetContract() pipeline.ContractGroup {
	return pipeline.ContractGroup{
		pipeline.NewContract(p.binary, 0, p.raw, 1, pipeline.Preserved),
	}
}

func (p *ImportPipe) GetContainerDeclarations() []pipeline.ContainerDeclaration {
	return []pipeline.ContainerDeclaration{
		{Name: "input", TypeName: ContainerTypeFunctions, Const: true},
		{Name: "output", TypeName: ContainerTypeFunctions},
	}
}

func (p *ImportPipe) Run(ctx *pipeline.ExecutionContext, containers []pipeline.Container, options map[string]string) error {
	input, ok := containers[0].(*pipeline.PayloadContainer)
	if !ok {
		return fmt.Errorf("importFunctions: input is not a payload container")
	}
	output, ok := containers[1].(*pipeline.PayloadContainer)
	if !ok {
		return fmt.Errorf("importFunctions: output is not a payload container")
	}
	if !input.Contains(pipeline.NewTarget(p.binary)) {
		return fmt.Errorf("importFunctions: no binary artifact seeded")
	}
	global, err := ctx.GetGlobal(ModelName)
	if err != nil {
		return err
	}
	model := global.(*Model)

	names := make([]string, 0, len(model.Functions))
	for name := range model.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	outputName := ctx.ContainerName(1)
	for _, name := range names {
		target := pipeline.NewTarget(p.raw, name)
		ctx.MarkRead(ModelName, pipeline.Path{"functions", name})
		output.Store(target, []byte(model.Functions[name]))
		ctx.Commit(target, outputName)
	}
	return nil
}

// LiftPipe turns raw functions into lifted ones, keeping the raw inputs
// available.
type LiftPipe struct {
	raw    *pipeline.Kind
	lifted *pipeline.Kind
}

func NewLiftPipe(registry *pipeline.Registry) (pipeline.Pipe, error) {
	raw, err := registry.Get(KindRawFunction)
	if err != nil {
		return nil, err
	}
	lifted, err := registry.Get(KindLiftedFunction)
	if err != nil {
		return nil, err
	}
	return &LiftPipe{raw: raw, lifted: lifted}, nil
}

func (p *LiftPipe) GetName() string {
	return "liftFunctions"
}

func (p *LiftPipe) GetContract() pipeline.ContractGroup {
	return pipeline.ContractGroup{
		pipeline.NewContract(p.raw, 0, p.lifted, 1, pipeline.Preserved),
	}
}

func (p *LiftPipe) GetContainerDeclarations() []pipeline.ContainerDeclaration {
	return []pipeline.ContainerDeclaration{
		{Name: "input", TypeName: ContainerTypeFunctions, Const: true},
		{Name: "output", TypeName: ContainerTypeFunctions},
	}
}

func (p *LiftPipe) GetOptions() []pipeline.OptionDeclaration {
	return []pipeline.OptionDeclaration{
		{Name: "lift-prefix", Type: "string"},
	}
}

func (p *LiftPipe) Run(ctx *pipeline.ExecutionContext, containers []pipeline.Container, options map[string]string) error {
	input, ok := containers[0].(*pipeline.PayloadContainer)
	if !ok {
		return fmt.Errorf("liftFunctions: input is not a payload container")
	}
	output, ok := containers[1].(*pipeline.PayloadContainer)
	if !ok {
		return fmt.Errorf("liftFunctions: output is not a payload container")
	}
	prefix := options["lift-prefix"]
	if prefix == "" {
		prefix = "lifted"
	}

	outputName := ctx.ContainerName(1)
	for _, requested := range ctx.RequestedTargets().Targets(outputName).Slice() {
		if requested.Kind() != p.lifted {
			continue
		}
		// an all-instances request lifts every raw function present
		if requested.IsAll() {
			for _, present := range input.Enumerate().Slice() {
				if present.Kind() != p.raw {
					continue
				}
				if err := p.lift(ctx, input, output, present.Path()[0], prefix, outputName); err != nil {
					return err
				}
			}
			continue
		}
		if err := p.lift(ctx, input, output, requested.Path()[0], prefix, outputName); err != nil {
			return err
		}
	}
	return nil
}

func (p *LiftPipe) lift(ctx *pipeline.ExecutionContext, input *pipeline.PayloadContainer, output *pipeline.PayloadContainer, name string, prefix string, outputName string) error {
	payload, found := input.Load(pipeline.NewTarget(p.raw, name))
	if !found {
		return fmt.Errorf("liftFunctions: raw function %q not available", name)
	}
	target := pipeline.NewTarget(p.lifted, name)
	ctx.MarkRead(ModelName, pipeline.Path{"functions", name})
	output.Store(target, []byte(prefix+"("+string(payload)+")"))
	ctx.Commit(target, outputName)
	return nil
}

// SummaryPipe reduces every lifted function into one binary summary
// artifact.
type SummaryPipe struct {
	lifted  *pipeline.Kind
	summary *pipeline.Kind
}

func NewSummaryPipe(registry *pipeline.Registry) (pipeline.Pipe, error) {
	lifted, err := registry.Get(KindLiftedFunction)
	if err != nil {
		return nil, err
	}
	summary, err := registry.Get(KindBinarySummary)
	if err != nil {
		return nil, err
	}
	return &SummaryPipe{lifted: lifted, summary: summary}, nil
}

func (p *SummaryPipe) GetName() string {
	return "summarizeBinary"
}

func (p *SummaryPipe) GetContract() pipeline.ContractGroup {
	return pipeline.ContractGroup{
		pipeline.NewContract(p.lifted, 0, p.summary, 1, pipeline.DerivedFrom),
	}
}

func (p *SummaryPipe) GetContainerDeclarations() []pipeline.ContainerDeclaration {
	return []pipeline.ContainerDeclaration{
		{Name: "input", TypeName: ContainerTypeFunctions, Const: true},
		{Name: "output", TypeName: ContainerTypeFunctions},
	}
}

func (p *SummaryPipe) Run(ctx *pipeline.ExecutionContext, containers []pipeline.Container, options map[string]string) error {
	input, ok := containers[0].(*pipeline.PayloadContainer)
	if !ok {
		return fmt.Errorf("summarizeBinary: input is not a payload container")
	}
	output, ok := containers[1].(*pipeline.PayloadContainer)
	if !ok {
		return fmt.Errorf("summarizeBinary: output is not a payload container")
	}

	var parts []string
	for _, present := range input.Enumerate().Slice() {
		if present.Kind() != p.lifted {
			continue
		}
		payload, _ := input.Load(present)
		parts = append(parts, present.Path()[0]+"="+string(payload))
	}
	target := pipeline.NewTarget(p.summary)
	output.Store(target, []byte(strings.Join(parts, ";")))
	ctx.Commit(target, ctx.ContainerName(1))
	return nil
}

// Factories returns the built-in pipe factory set keyed the way pipeline
// definitions reference them.
func Factories() map[string]loader.PipeFactory {
	return map[string]loader.PipeFactory{
		"importFunctions": NewImportPipe,
		"liftFunctions":   NewLiftPipe,
		"summarizeBinary": NewSummaryPipe,
	}
}

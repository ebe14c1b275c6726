package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/util"
)

// ContainerDeclaration describes one container argument of a pipe: the
// role name used in diagnostics, the container type it expects, and
// whether the pipe only reads it.
type ContainerDeclaration struct {
	Name     string
	TypeName string
	Const    bool
}

// Pipe is the engine-facing interface of a concrete transformation. The
// engine holds pipes behind this one flat interface; the compile-time
// signature checks of a templated design become the construction-time
// validation in NewPipeWrapper.
type Pipe interface {
	GetName() string
	GetContract() ContractGroup
	GetContainerDeclarations() []ContainerDeclaration
	// Run receives its bound containers in declared argument order.
	// Options are an open string-to-string bag interpreted by the pipe,
	// never by the engine.
	Run(ctx *ExecutionContext, containers []Container, options map[string]string) error
}

// PreconditionChecker lets a pipe refuse to run at all (missing external
// tool and the like), independent of target satisfiability.
type PreconditionChecker interface {
	CheckPrecondition(ctx *ExecutionContext) error
}

// OptionDeclaration surfaces one configurable option of a pipe for outer
// layers (CLI, pipeline files).
type OptionDeclaration struct {
	Name string
	Type string
}

type OptionsDeclarer interface {
	GetOptions() []OptionDeclaration
}

// PipeExecutionEntry pairs what one invocation is responsible for
// producing (Output) with what must already exist for it (Input). Derived
// by GetRequirements, never mutated independently.
type PipeExecutionEntry struct {
	Output ContainerToTargetsMap
	Input  ContainerToTargetsMap
}

// PipeWrapper binds a pipe to a fixed set of container names and carries
// its invalidation metadata. It is the unit the runner schedules.
type PipeWrapper struct {
	pipe         Pipe
	declarations []ContainerDeclaration
	boundNames   []string
	invalidation *InvalidationMetadata
	log          *archivist.Archivist
}

// NewPipeWrapper validates the binding and wraps the pipe. The number of
// bound names must equal the pipe's declared arity, names must be unique,
// and every contract role must point at a declared argument. All of these
// are configuration errors surfaced before any execution begins.
func NewPipeWrapper(pipe Pipe, log *archivist.Archivist, boundNames ...string) (*PipeWrapper, error) {
	declarations := pipe.GetContainerDeclarations()
	if len(boundNames) != len(declarations) {
		return nil, fmt.Errorf("binding pipe %q: declared %d container arguments, bound %d: %w",
			pipe.GetName(), len(declarations), len(boundNames), ErrArityMismatch)
	}
	seen := make(map[string]bool, len(boundNames))
	for _, name := range boundNames {
		if seen[name] {
			return nil, fmt.Errorf("binding pipe %q: container %q bound twice: %w", pipe.GetName(), name, ErrDuplicateContainer)
		}
		seen[name] = true
	}
	if maxRole := pipe.GetContract().maxRole(); maxRole >= len(declarations) {
		return nil, fmt.Errorf("binding pipe %q: contract references role %d, only %d arguments declared: %w",
			pipe.GetName(), maxRole, len(declarations), ErrArityMismatch)
	}
	return &PipeWrapper{
		pipe:         pipe,
		declarations: declarations,
		boundNames:   util.CopyStringSlice(boundNames),
		invalidation: NewInvalidationMetadata(),
		log:          log,
	}, nil
}

func (w *PipeWrapper) GetName() string {
	return w.pipe.GetName()
}

func (w *PipeWrapper) GetContract() ContractGroup {
	return w.pipe.GetContract()
}

// GetRequirements deduces, for the requested targets, what this pipe needs
// supplied versus what it is solely responsible for producing.
func (w *PipeWrapper) GetRequirements(requested ContainerToTargetsMap) PipeExecutionEntry {
	requirements := w.pipe.GetContract().DeduceRequirements(requested, w.boundNames)
	producedByMe := requested.Copy()
	producedByMe.Erase(requirements)
	return PipeExecutionEntry{
		Output: producedByMe,
		Input:  requirements,
	}
}

// DeduceResults computes what will exist after this pipe ran on the given
// availability.
func (w *PipeWrapper) DeduceResults(available ContainerToTargetsMap) ContainerToTargetsMap {
	return w.pipe.GetContract().DeduceResults(available, w.boundNames)
}

func (w *PipeWrapper) AreRequirementsMet(available ContainerToTargetsMap) bool {
	return w.pipe.GetContract().AreRequirementsMet(available, w.boundNames)
}

func (w *PipeWrapper) CheckPrecondition(ctx *ExecutionContext) error {
	if checker, ok := w.pipe.(PreconditionChecker); ok {
		return checker.CheckPrecondition(ctx)
	}
	return nil
}

// Run invokes the pipe on clones of exactly the containers it was bound
// to, in declared argument order. The clones land in the live set only
// after the pipe returned nil, so a failing run leaves the set exactly as
// it was; the context's buffered path associations are flushed into the
// invalidation metadata at the same point.
func (w *PipeWrapper) Run(ctx *ExecutionContext, set *ContainerSet, options map[string]string) error {
	working := make([]Container, len(w.boundNames))
	for i, name := range w.boundNames {
		live, err := set.Get(name)
		if err != nil {
			return fmt.Errorf("running pipe %q: %w", w.GetName(), err)
		}
		if declared := w.declarations[i].TypeName; declared != "" && declared != live.TypeName() {
			return fmt.Errorf("running pipe %q: argument %q declared type %q, container has %q: %w",
				w.GetName(), w.declarations[i].Name, declared, live.TypeName(), ErrContainerType)
		}
		working[i] = live.Clone()
	}

	if err := w.pipe.Run(ctx, working, options); err != nil {
		return fmt.Errorf("pipe %q: %w", w.GetName(), err)
	}

	for i, name := range w.boundNames {
		if w.declarations[i].Const {
			continue
		}
		if err := set.Replace(name, working[i]); err != nil {
			return fmt.Errorf("committing pipe %q results: %w", w.GetName(), err)
		}
	}
	ctx.flush()
	return nil
}

// Invalidate adds to out every target this pipe derived from paths touched
// by the diff, restricted to targets still present in their containers.
func (w *PipeWrapper) Invalidate(globalName string, diff Diff, out ContainerToTargetsMap, set *ContainerSet) {
	collected := make(ContainerToTargetsMap)
	for _, path := range diff {
		w.invalidation.RegisterTargetsDependingOn(globalName, path, collected, w.log)
	}
	for containerName, list := range collected {
		container, err := set.Get(containerName)
		if err != nil {
			continue
		}
		for _, target := range list.Slice() {
			if container.Contains(target) {
				out.Add(containerName, target)
			}
		}
	}
}

// Clone produces an independent wrapper around the same underlying pipe,
// optionally rebound to new container names. The clone starts with empty
// invalidation metadata: it has not derived anything yet.
func (w *PipeWrapper) Clone(newNames ...string) (*PipeWrapper, error) {
	names := w.boundNames
	if len(newNames) > 0 {
		names = newNames
	}
	return NewPipeWrapper(w.pipe, w.log, names...)
}

func (w *PipeWrapper) InvalidationMetadata() *InvalidationMetadata {
	return w.invalidation
}

func (w *PipeWrapper) GetContainerArgumentsCount() int {
	return len(w.declarations)
}

// GetContainerName returns the bound container name of the given argument
// index.
func (w *PipeWrapper) GetContainerName(index int) string {
	return w.boundNames[index]
}

func (w *PipeWrapper) GetRunningContainersNames() []string {
	return util.CopyStringSlice(w.boundNames)
}

func (w *PipeWrapper) IsContainerArgumentConst(index int) bool {
	return w.declarations[index].Const
}

func (w *PipeWrapper) GetOptionsNames() []string {
	declarer, ok := w.pipe.(OptionsDeclarer)
	if !ok {
		return nil
	}
	options := declarer.GetOptions()
	names := make([]string, 0, len(options))
	for _, option := range options {
		names = append(names, option.Name)
	}
	return names
}

func (w *PipeWrapper) GetOptionsTypes() []string {
	declarer, ok := w.pipe.(OptionsDeclarer)
	if !ok {
		return nil
	}
	options := declarer.GetOptions()
	types := make([]string, 0, len(options))
	for _, option := range options {
		types = append(types, option.Type)
	}
	return types
}

// Dump writes a diagnostic description of the binding.
func (w *PipeWrapper) Dump(out io.Writer, indentation int) {
	indent := strings.Repeat("  ", indentation)
	fmt.Fprintf(out, "%spipe %s\n", indent, w.GetName())
	for i, declaration := range w.declarations {
		mutability := "rw"
		if declaration.Const {
			mutability = "ro"
		}
		fmt.Fprintf(out, "%s  arg %d %s (%s, %s) -> %s\n", indent, i, declaration.Name, declaration.TypeName, mutability, w.boundNames[i])
	}
	for _, contract := range w.pipe.GetContract() {
		fmt.Fprintf(out, "%s  contract %s@%s -> %s@%s (%s)\n", indent,
			contract.Source().Name(), w.boundNames[contract.SourceRole()],
			contract.Target().Name(), w.boundNames[contract.TargetRole()],
			contract.Exactness())
	}
}

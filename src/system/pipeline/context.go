package pipeline

import "fmt"

// Global is the engine-facing view of a named global object (the shared
// data model of a run). The engine never inspects its contents; it only
// needs a stable name and the ordered changed paths a mutation produced.
type Global interface {
	Name() string
	// Diff reports the paths that differ between the receiver and
	// previous, in a stable order.
	Diff(previous Global) Diff
}

// ExecutionContext is created per pipe invocation. It threads the named
// globals and the requested targets into the pipe and captures which
// global paths were read to produce each committed target.
//
// Protocol for pipes: call MarkRead for every global path consulted, then
// Commit the produced target. Commit buffers the associations and resets
// the read set, so a pipe produces and commits one target at a time. The
// buffer lands in the pipe's invalidation metadata only once the run
// succeeded, together with the cloned containers.
type ExecutionContext struct {
	pipe      *PipeWrapper
	requested ContainerToTargetsMap
	globals   map[string]Global
	readPaths map[string][]Path
	pending   []pendingAssociation
}

// pendingAssociation is one buffered (global path -> produced target)
// record awaiting the run outcome.
type pendingAssociation struct {
	globalName string
	path       Path
	entry      TargetInContainer
}

func NewExecutionContext(pipe *PipeWrapper, requested ContainerToTargetsMap, globals ...Global) *ExecutionContext {
	byName := make(map[string]Global, len(globals))
	for _, global := range globals {
		byName[global.Name()] = global
	}
	return &ExecutionContext{
		pipe:      pipe,
		requested: requested,
		globals:   byName,
		readPaths: make(map[string][]Path),
	}
}

func (c *ExecutionContext) GetGlobal(name string) (Global, error) {
	global, ok := c.globals[name]
	if !ok {
		return nil, fmt.Errorf("global %q: unknown global object", name)
	}
	return global, nil
}

// RequestedTargets returns what this invocation is asked to produce, per
// container. Requested, not expected: side-effect targets are absent.
func (c *ExecutionContext) RequestedTargets() ContainerToTargetsMap {
	return c.requested
}

// ContainerName resolves a declared argument index to the container name
// this invocation is bound to. Pipes use it to address RequestedTargets
// and Commit without knowing their binding.
func (c *ExecutionContext) ContainerName(index int) string {
	if c.pipe == nil {
		return ""
	}
	return c.pipe.GetContainerName(index)
}

// MarkRead records that the pipe read the given path of the named global
// while producing the target it will commit next.
func (c *ExecutionContext) MarkRead(globalName string, path Path) {
	c.readPaths[globalName] = append(c.readPaths[globalName], path)
}

// Commit declares that target was just produced into the named container.
// Every path marked read since the last commit is associated with it, then
// the read set is reset. The associations stay buffered until the run
// succeeded; a failing pipe leaves no trace in the metadata.
func (c *ExecutionContext) Commit(target Target, containerName string) {
	entry := TargetInContainer{Target: target, ContainerName: containerName}
	for globalName, paths := range c.readPaths {
		for _, path := range paths {
			c.pending = append(c.pending, pendingAssociation{globalName: globalName, path: path, entry: entry})
		}
	}
	c.readPaths = make(map[string][]Path)
}

// flush moves the buffered associations into the pipe's invalidation
// metadata. PipeWrapper.Run calls it after the pipe returned nil, at the
// same point the cloned containers replace the live ones.
func (c *ExecutionContext) flush() {
	if c.pipe != nil {
		for _, p := range c.pending {
			c.pipe.invalidation.Insert(p.globalName, p.path, p.entry)
		}
	}
	c.pending = nil
}

// CommitUniqueTarget commits the single requested target of the named
// container. Panics when the request holds anything but exactly one
// target there; that is a programming error in the calling pipe.
func (c *ExecutionContext) CommitUniqueTarget(containerName string) {
	list := c.requested.Targets(containerName)
	if list.Len() != 1 {
		panic(fmt.Sprintf("pipeline: CommitUniqueTarget(%q) with %d requested targets", containerName, list.Len()))
	}
	c.Commit(list.Slice()[0], containerName)
}

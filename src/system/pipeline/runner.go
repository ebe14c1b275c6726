package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/ledger"
	"github.com/laughingman-dev/binpipe/src/system/util"
)

// Runner owns one ordered schedule of pipe wrappers over a live container
// set and the named globals. Pipes execute strictly in declaration order
// because each consumes containers mutated by its predecessor; anything
// fanning out across unrelated subgraphs belongs to an orchestrator built
// on top of Plan.
type Runner struct {
	registry *Registry
	state    *ContainerSet
	pipes    []*PipeWrapper
	globals  map[string]Global
	demux    *Demultiplexer
	history  *ledger.Ledger
	log      *archivist.Archivist
	strict   bool
}

func NewRunner(registry *Registry, state *ContainerSet, log *archivist.Archivist) *Runner {
	return &Runner{
		registry: registry,
		state:    state,
		globals:  make(map[string]Global),
		demux:    NewDemultiplexer(),
		log:      log,
	}
}

func (r *Runner) AddPipe(wrapper *PipeWrapper) {
	r.pipes = append(r.pipes, wrapper)
}

func (r *Runner) AddGlobal(global Global) {
	r.globals[global.Name()] = global
}

// SetLedger attaches a run history ledger. Optional; without one the
// runner keeps no records.
func (r *Runner) SetLedger(history *ledger.Ledger) {
	r.history = history
}

// SetStrictSatisfiability decides the caller policy for unsatisfiable
// pipes: skip them (default) or fail the run.
func (r *Runner) SetStrictSatisfiability(strict bool) {
	r.strict = strict
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

func (r *Runner) State() *ContainerSet {
	return r.state
}

func (r *Runner) Pipes() []*PipeWrapper {
	pipes := make([]*PipeWrapper, len(r.pipes))
	copy(pipes, r.pipes)
	return pipes
}

func (r *Runner) globalsSlice() []Global {
	out := make([]Global, 0, len(r.globals))
	for _, global := range r.globals {
		out = append(out, global)
	}
	return out
}

// Plan runs backward deduction over the whole schedule: starting from the
// requested outputs, each pipe (visited in reverse order) turns the
// remaining request into the requirements of its predecessors. The
// returned entries align with Pipes(); entry zero's Input is what must
// already exist before the first pipe runs. Planning works on values only
// and never touches the live container set.
func (r *Runner) Plan(request ContainerToTargetsMap) []PipeExecutionEntry {
	expanded := r.demux.Expand(request, r.state)
	entries := make([]PipeExecutionEntry, len(r.pipes))
	remaining := expanded
	for i := len(r.pipes) - 1; i >= 0; i-- {
		entries[i] = r.pipes[i].GetRequirements(remaining)
		remaining = entries[i].Input
		r.log.Debug(archivist.DEBUG_LEVEL_TRACE, "pipeline PLAN pipe=", r.pipes[i].GetName(), " output=", entries[i].Output.String(), " input=", entries[i].Input.String())
	}
	return entries
}

// Run executes the schedule for the requested targets under a fresh run
// id. See RunWithID.
func (r *Runner) Run(request ContainerToTargetsMap, options map[string]string) error {
	return r.RunWithID(uuid.New().String(), request, options)
}

// RunWithID plans the request, then executes the pipes in forward order.
// Pipes the plan asks nothing of are skipped. Pipes whose requirements the
// current state cannot meet are skipped or, under strict satisfiability,
// fail the run. A precondition failure or run failure aborts the rest of
// the sequence; the failing pipe leaves the container set untouched. The
// outcome is recorded in the ledger when one is attached.
func (r *Runner) RunWithID(runID string, request ContainerToTargetsMap, options map[string]string) error {
	r.log.Debug(archivist.DEBUG_LEVEL_TRACE, "pipeline RUN begin id=", runID, " request=", request.String())
	entries := r.Plan(request)

	var invocations []ledger.Invocation
	var runErr error
	for i, pipe := range r.pipes {
		requested := entries[i].Output
		if requested.Empty() {
			r.log.Debug(archivist.DEBUG_LEVEL_TRACE, "pipeline RUN pipe=", pipe.GetName(), " nothing requested, skipping")
			continue
		}

		available := r.state.Enumerate()
		if !pipe.AreRequirementsMet(available) {
			if r.strict {
				runErr = fmt.Errorf("pipe %q: requirements not met for %s", pipe.GetName(), requested.String())
				invocations = append(invocations, ledger.Invocation{Pipe: pipe.GetName(), Status: ledger.InvocationFailed, Error: runErr.Error()})
				break
			}
			r.log.Debug(archivist.DEBUG_LEVEL_TRACE, "pipeline RUN pipe=", pipe.GetName(), " requirements not met, skipping")
			invocations = append(invocations, ledger.Invocation{Pipe: pipe.GetName(), Status: ledger.InvocationSkipped})
			continue
		}

		ctx := NewExecutionContext(pipe, requested, r.globalsSlice()...)
		if err := pipe.CheckPrecondition(ctx); err != nil {
			runErr = fmt.Errorf("pipe %q precondition: %w", pipe.GetName(), err)
			invocations = append(invocations, ledger.Invocation{Pipe: pipe.GetName(), Status: ledger.InvocationFailed, Error: runErr.Error()})
			break
		}

		start := time.Now()
		// each pipe gets its own copy, mutations stay local to the invocation
		if err := pipe.Run(ctx, r.state, util.CopyStringStringMap(options)); err != nil {
			runErr = err
			invocations = append(invocations, ledger.Invocation{
				Pipe:     pipe.GetName(),
				Status:   ledger.InvocationFailed,
				Error:    err.Error(),
				Duration: time.Since(start),
			})
			break
		}

		produced := 0
		for _, containerName := range requested.Names() {
			produced += requested.Targets(containerName).Len()
		}
		invocations = append(invocations, ledger.Invocation{
			Pipe:     pipe.GetName(),
			Status:   ledger.InvocationDone,
			Produced: produced,
			Duration: time.Since(start),
		})
		r.log.Debug(archivist.DEBUG_LEVEL_TRACE, "pipeline RUN pipe=", pipe.GetName(), " done produced=", produced)
	}

	if r.history != nil {
		status := ledger.RunSucceeded
		errMessage := ""
		if runErr != nil {
			status = ledger.RunFailed
			errMessage = runErr.Error()
		}
		r.history.RecordRun(runID, status, errMessage, invocations)
	}
	return runErr
}

// InvalidateGlobal drives a diff of the named global through every pipe's
// invalidation metadata: stale targets are collected, dropped from their
// containers, and evicted from the metadata so they cannot match again.
// Returns the invalidated map. Running it twice for the same diff is a
// no-op the second time.
func (r *Runner) InvalidateGlobal(globalName string, diff Diff) (ContainerToTargetsMap, error) {
	out := make(ContainerToTargetsMap)
	for _, pipe := range r.pipes {
		pipe.Invalidate(globalName, diff, out, r.state)
	}
	if out.Empty() {
		return out, nil
	}
	if err := r.state.RemoveTargets(out); err != nil {
		return nil, fmt.Errorf("invalidating global %q: %w", globalName, err)
	}
	for _, pipe := range r.pipes {
		pipe.InvalidationMetadata().Remove(out)
	}
	r.log.Debug(archivist.DEBUG_LEVEL_TRACE, "pipeline INVALIDATE global=", globalName, " stale=", out.String())
	return out, nil
}

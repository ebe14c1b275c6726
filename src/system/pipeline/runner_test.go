package pipeline

import (
	"fmt"
	"sort"
	"testing"

	"github.com/laughingman-dev/binpipe/src/system/ledger"
)

// importingPipe produces one raw function per model entry once the binary
// artifact exists.
type importingPipe struct {
	kinds testKinds
}

func (p *importingPipe) GetName() string {
	return "mockImport"
}

func (p *importingPipe) GetContract() ContractGroup {
	return ContractGroup{
		NewContract(p.kinds.binary, 0, p.kinds.raw, 1, Preserved),
	}
}

func (p *importingPipe) GetContainerDeclarations() []ContainerDeclaration {
	return []ContainerDeclaration{
		{Name: "input", TypeName: "payload", Const: true},
		{Name: "output", TypeName: "payload"},
	}
}

func (p *importingPipe) Run(ctx *ExecutionContext, containers []Container, options map[string]string) error {
	output := containers[1].(*PayloadContainer)
	global, err := ctx.GetGlobal("model")
	if err != nil {
		return err
	}
	model := global.(*mapGlobal)

	names := make([]string, 0, len(model.entries))
	for name := range model.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		target := NewTarget(p.kinds.raw, name)
		ctx.MarkRead("model", Path{"functions", name})
		output.Store(target, []byte(model.entries[name]))
		ctx.Commit(target, ctx.ContainerName(1))
	}
	return nil
}

// guardedPipe refuses to run via its precondition.
type guardedPipe struct {
	liftingPipe
	preconditionErr error
}

// optionPoisoningPipe mutates its options bag while running.
type optionPoisoningPipe struct {
	importingPipe
}

func (p *optionPoisoningPipe) Run(ctx *ExecutionContext, containers []Container, options map[string]string) error {
	options["mode"] = "poisoned"
	return p.importingPipe.Run(ctx, containers, options)
}

func (p *guardedPipe) CheckPrecondition(ctx *ExecutionContext) error {
	return p.preconditionErr
}

func newRunnerSetup(t *testing.T, model *mapGlobal) (*Runner, testKinds, *liftingPipe) {
	t.Helper()
	kinds := newTestKinds()
	set := newTestContainerSet("binary", "functions", "lifted")
	runner := NewRunner(kinds.registry, set, newTestLogger())
	runner.AddGlobal(model)

	importWrapper, err := NewPipeWrapper(&importingPipe{kinds: kinds}, newTestLogger(), "binary", "functions")
	if err != nil {
		t.Fatal(err)
	}
	lift := &liftingPipe{kinds: kinds}
	liftWrapper, err := NewPipeWrapper(lift, newTestLogger(), "functions", "lifted")
	if err != nil {
		t.Fatal(err)
	}
	runner.AddPipe(importWrapper)
	runner.AddPipe(liftWrapper)
	return runner, kinds, lift
}

func seedBinary(t *testing.T, runner *Runner, kinds testKinds) {
	t.Helper()
	container, err := runner.State().Get("binary")
	if err != nil {
		t.Fatal(err)
	}
	container.(*PayloadContainer).Store(NewTarget(kinds.binary), []byte("ELF"))
}

func liftedRequest(kinds testKinds) ContainerToTargetsMap {
	request := make(ContainerToTargetsMap)
	request.Add("lifted", AllTargets(kinds.lifted))
	return request
}

func Test_Runner_PlanBottomsOutAtTheBinary(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, _ := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	entries := runner.Plan(liftedRequest(kinds))
	if len(entries) != 2 {
		t.Fatalf("expected one entry per pipe, got %d", len(entries))
	}
	if !entries[0].Input.Targets("binary").Contains(AllTargets(kinds.binary)) {
		t.Errorf("residual input should name the binary, got %s", entries[0].Input.String())
	}
	if !entries[0].Output.Targets("functions").Contains(AllTargets(kinds.raw)) {
		t.Errorf("import pipe should claim the raw functions, got %s", entries[0].Output.String())
	}
	if !entries[1].Output.Targets("lifted").Contains(AllTargets(kinds.lifted)) {
		t.Errorf("lift pipe should claim the lifted functions, got %s", entries[1].Output.String())
	}
}

func Test_Runner_EndToEndProducesRequestedTargets(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000", "helper": "0x2000"}}
	runner, kinds, _ := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	lifted, _ := runner.State().Get("lifted")
	for _, name := range []string{"main", "helper"} {
		if !lifted.Contains(NewTarget(kinds.lifted, name)) {
			t.Errorf("lifted function %q missing", name)
		}
	}
}

func Test_Runner_RerunIsIdempotent(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, lift := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	lifted, _ := runner.State().Get("lifted")
	if lifted.Enumerate().Len() != 1 {
		t.Errorf("rerun duplicated results: %s", lifted.Enumerate().String())
	}
	if lift.runCount != 2 {
		t.Errorf("expected the lift pipe to run twice, ran %d times", lift.runCount)
	}
}

func Test_Runner_PipesWithNothingRequestedAreSkipped(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, lift := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	request := make(ContainerToTargetsMap)
	request.Add("functions", AllTargets(kinds.raw))

	if err := runner.Run(request, nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if lift.runCount != 0 {
		t.Error("the lift pipe had nothing to produce and must not run")
	}
	lifted, _ := runner.State().Get("lifted")
	if !lifted.Enumerate().Empty() {
		t.Error("skipped pipe still produced artifacts")
	}
}

func Test_Runner_UnsatisfiablePipeIsSkippedByDefault(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, lift := newRunnerSetup(t, model)
	// no binary seeded

	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("non-strict run should not fail: %v", err)
	}
	if lift.runCount != 0 {
		t.Error("nothing was importable, the lift pipe must not run")
	}
}

func Test_Runner_StrictSatisfiabilityFailsTheRun(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, _ := newRunnerSetup(t, model)
	runner.SetStrictSatisfiability(true)

	if err := runner.Run(liftedRequest(kinds), nil); err == nil {
		t.Error("strict run over an unsatisfiable pipe should fail")
	}
}

func Test_Runner_FailingPipeAbortsAndRollsBack(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, lift := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)
	lift.failWith = fmt.Errorf("lifting exploded")

	if err := runner.Run(liftedRequest(kinds), nil); err == nil {
		t.Fatal("expected the run to fail")
	}

	// the import pipe's results stay, the failing pipe's do not
	functions, _ := runner.State().Get("functions")
	if !functions.Contains(NewTarget(kinds.raw, "main")) {
		t.Error("results of completed pipes should persist")
	}
	lifted, _ := runner.State().Get("lifted")
	if !lifted.Enumerate().Empty() {
		t.Error("the failing pipe leaked partial results")
	}
}

func Test_Runner_PreconditionFailureAbortsBeforeRunning(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	kinds := newTestKinds()
	set := newTestContainerSet("functions", "lifted")
	seedRawFunction(t, set, kinds, "main")

	runner := NewRunner(kinds.registry, set, newTestLogger())
	runner.AddGlobal(model)
	guarded := &guardedPipe{
		liftingPipe:     liftingPipe{kinds: kinds},
		preconditionErr: fmt.Errorf("external tool missing"),
	}
	wrapper, err := NewPipeWrapper(guarded, newTestLogger(), "functions", "lifted")
	if err != nil {
		t.Fatal(err)
	}
	runner.AddPipe(wrapper)

	if err := runner.Run(liftedRequest(kinds), nil); err == nil {
		t.Fatal("expected the precondition to fail the run")
	}
	if guarded.runCount != 0 {
		t.Error("a failing precondition must keep the pipe from running")
	}
}

func Test_Runner_OptionMutationsStayLocalToTheInvocation(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	kinds := newTestKinds()
	set := newTestContainerSet("binary", "functions", "lifted")
	runner := NewRunner(kinds.registry, set, newTestLogger())
	runner.AddGlobal(model)

	importWrapper, err := NewPipeWrapper(&optionPoisoningPipe{importingPipe{kinds: kinds}}, newTestLogger(), "binary", "functions")
	if err != nil {
		t.Fatal(err)
	}
	lift := &liftingPipe{kinds: kinds}
	liftWrapper, err := NewPipeWrapper(lift, newTestLogger(), "functions", "lifted")
	if err != nil {
		t.Fatal(err)
	}
	runner.AddPipe(importWrapper)
	runner.AddPipe(liftWrapper)
	seedBinary(t, runner, kinds)

	caller := map[string]string{"mode": "fast"}
	if err := runner.Run(liftedRequest(kinds), caller); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := lift.lastOptions["mode"]; got != "fast" {
		t.Errorf("an earlier pipe's mutation leaked into a later one: mode=%q", got)
	}
	if caller["mode"] != "fast" {
		t.Error("the caller's option map was mutated")
	}
}

func Test_Runner_RecordsHistoryWhenLedgerAttached(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, _ := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	history := ledger.New("runner-test", newTestLogger())
	runner.SetLedger(history)

	runID := "test-run-1"
	if err := runner.RunWithID(runID, liftedRequest(kinds), nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !history.RunClosed(runID) {
		t.Fatal("run should be closed in the history")
	}
	if status := history.RunStatus(runID); status != ledger.RunSucceeded {
		t.Errorf("expected %q, got %q", ledger.RunSucceeded, status)
	}
	invocations := history.Invocations(runID)
	if len(invocations) != 2 {
		t.Fatalf("expected 2 invocation records, got %d", len(invocations))
	}
	for _, invocation := range invocations {
		if invocation.Status != ledger.InvocationDone {
			t.Errorf("pipe %s recorded as %s", invocation.Pipe, invocation.Status)
		}
	}
}

func Test_Runner_InvalidateGlobalDropsDerivedTargets(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000", "helper": "0x2000"}}
	runner, kinds, _ := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// the model entry for main changed, everything derived from it is
	// stale
	invalidated, err := runner.InvalidateGlobal("model", Diff{Path{"functions", "main"}})
	if err != nil {
		t.Fatalf("invalidation failed: %v", err)
	}
	if !invalidated.Targets("functions").Contains(NewTarget(kinds.raw, "main")) {
		t.Errorf("raw function should be invalidated, got %s", invalidated.String())
	}
	if !invalidated.Targets("lifted").Contains(NewTarget(kinds.lifted, "main")) {
		t.Errorf("lifted function should be invalidated, got %s", invalidated.String())
	}

	functions, _ := runner.State().Get("functions")
	if functions.Contains(NewTarget(kinds.raw, "main")) {
		t.Error("stale raw function still present")
	}
	if !functions.Contains(NewTarget(kinds.raw, "helper")) {
		t.Error("untouched raw function was dropped")
	}
	lifted, _ := runner.State().Get("lifted")
	if lifted.Contains(NewTarget(kinds.lifted, "main")) {
		t.Error("stale lifted function still present")
	}

	// applying the same diff again finds nothing
	again, err := runner.InvalidateGlobal("model", Diff{Path{"functions", "main"}})
	if err != nil {
		t.Fatalf("second invalidation failed: %v", err)
	}
	if !again.Empty() {
		t.Errorf("second invalidation should be a no-op, got %s", again.String())
	}
}

func Test_Runner_InvalidatedTargetsAreReproducible(t *testing.T) {
	model := &mapGlobal{name: "model", entries: map[string]string{"main": "0x1000"}}
	runner, kinds, _ := newRunnerSetup(t, model)
	seedBinary(t, runner, kinds)

	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := runner.InvalidateGlobal("model", Diff{Path{"functions", "main"}}); err != nil {
		t.Fatalf("invalidation failed: %v", err)
	}
	if err := runner.Run(liftedRequest(kinds), nil); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}

	lifted, _ := runner.State().Get("lifted")
	if !lifted.Contains(NewTarget(kinds.lifted, "main")) {
		t.Error("invalidated target was not reproduced by the rerun")
	}
}

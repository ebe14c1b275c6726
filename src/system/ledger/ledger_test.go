package ledger

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
)

func newTestLogger() *archivist.Archivist {
	return archivist.New(&archivist.Config{Logger: log.New(io.Discard, "", 0)})
}

func Test_Ledger_UnknownRunIsOpen(t *testing.T) {
	history := New("ledger-test-open", newTestLogger())
	if history.RunClosed("never-recorded") {
		t.Error("an unrecorded run must not read as closed")
	}
	if status := history.RunStatus("never-recorded"); status != "" {
		t.Errorf("expected empty status, got %q", status)
	}
	if got := history.Invocations("never-recorded"); got != nil {
		t.Errorf("expected no invocations, got %v", got)
	}
}

func Test_Ledger_RecordedRunReadsBack(t *testing.T) {
	history := New("ledger-test-record", newTestLogger())
	history.RecordRun("run-1", RunSucceeded, "", []Invocation{
		{Pipe: "importFunctions", Status: InvocationDone, Produced: 2, Duration: 5 * time.Millisecond},
		{Pipe: "liftFunctions", Status: InvocationSkipped},
	})

	if !history.RunClosed("run-1") {
		t.Fatal("recorded run should be closed")
	}
	if status := history.RunStatus("run-1"); status != RunSucceeded {
		t.Errorf("expected %q, got %q", RunSucceeded, status)
	}

	invocations := history.Invocations("run-1")
	if len(invocations) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(invocations))
	}
	byPipe := make(map[string]Invocation, len(invocations))
	for _, invocation := range invocations {
		byPipe[invocation.Pipe] = invocation
	}
	done := byPipe["importFunctions"]
	if done.Status != InvocationDone || done.Produced != 2 || done.Duration != 5*time.Millisecond {
		t.Errorf("invocation record mangled: %+v", done)
	}
	if byPipe["liftFunctions"].Status != InvocationSkipped {
		t.Errorf("skip record mangled: %+v", byPipe["liftFunctions"])
	}
}

func Test_Ledger_FailedRunCarriesTheError(t *testing.T) {
	history := New("ledger-test-failure", newTestLogger())
	history.RecordRun("run-2", RunFailed, "pipe exploded", []Invocation{
		{Pipe: "liftFunctions", Status: InvocationFailed, Error: "pipe exploded"},
	})

	if status := history.RunStatus("run-2"); status != RunFailed {
		t.Errorf("expected %q, got %q", RunFailed, status)
	}
	invocations := history.Invocations("run-2")
	if len(invocations) != 1 || invocations[0].Error != "pipe exploded" {
		t.Errorf("error lost: %+v", invocations)
	}
}

func Test_Ledger_RunsListsEveryRecord(t *testing.T) {
	history := New("ledger-test-list", newTestLogger())
	history.RecordRun("run-a", RunSucceeded, "", nil)
	history.RecordRun("run-b", RunFailed, "boom", nil)

	runs := history.Runs()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	seen := make(map[string]bool, len(runs))
	for _, run := range runs {
		seen[run.Value] = true
		if run.Properties["Signature"] == "" {
			t.Errorf("run %s is missing its schedule signature", run.Value)
		}
	}
	if !seen["run-a"] || !seen["run-b"] {
		t.Errorf("run ids lost: %v", seen)
	}
}

// Package ledger persists run and invocation history into a gits graph
// instance. Records are append-only: a run is written once, after it
// closed, together with its invocations. The observer and the CLI read
// this store; the engine itself never depends on it being present.
package ledger

import (
	"strconv"
	"time"

	"github.com/voodooEntity/gits"
	"github.com/voodooEntity/gits/src/query"
	"github.com/voodooEntity/gits/src/transport"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/util"
)

const (
	RunSucceeded = "Succeeded"
	RunFailed    = "Failed"

	InvocationDone    = "Done"
	InvocationFailed  = "Failed"
	InvocationSkipped = "Skipped"
)

// Invocation is the record of one pipe execution inside a run.
type Invocation struct {
	Pipe     string
	Status   string
	Error    string
	Produced int
	Duration time.Duration
}

type Ledger struct {
	store *gits.Gits
	log   *archivist.Archivist
}

// New creates a ledger backed by a fresh gits instance named after the
// pipeline ident.
func New(ident string, log *archivist.Archivist) *Ledger {
	return &Ledger{
		store: gits.NewInstance(ident + "-ledger"),
		log:   log,
	}
}

// RecordRun writes one closed run with its invocations as a Run entity
// with Invocation children. The schedule signature hashes the invoked pipe
// names so runs of the same pipeline shape can be grouped.
func (l *Ledger) RecordRun(runID string, status string, errMessage string, invocations []Invocation) {
	pipeNames := make([]string, 0, len(invocations))
	for _, invocation := range invocations {
		pipeNames = append(pipeNames, invocation.Pipe)
	}
	runEntity := transport.TransportEntity{
		Type:    "Run",
		Value:   runID,
		Context: "System",
		Properties: map[string]string{
			"Status":    status,
			"Error":     errMessage,
			"Signature": util.HashStrings(pipeNames),
			"ClosedAt":  time.Now().Format(time.RFC3339),
		},
	}
	for _, invocation := range invocations {
		runEntity.ChildRelations = append(runEntity.ChildRelations, transport.TransportRelation{
			Target: transport.TransportEntity{
				Type:    "Invocation",
				Value:   invocation.Pipe,
				Context: "System",
				Properties: map[string]string{
					"Status":   invocation.Status,
					"Error":    invocation.Error,
					"Produced": strconv.Itoa(invocation.Produced),
					"Duration": invocation.Duration.String(),
				},
			},
		})
	}
	l.store.MapData(runEntity)
	l.log.Debug(archivist.DEBUG_LEVEL_TRACE, "ledger RUN recorded id=", runID, " status=", status, " invocations=", len(invocations))
}

// RunClosed reports whether a run record exists for the given id.
func (l *Ledger) RunClosed(runID string) bool {
	qry := query.New().Read("Run").Match("Value", "==", runID)
	result := l.store.Query().Execute(qry)
	return result.Amount > 0
}

// RunStatus returns the recorded status of a closed run, or "" when the
// run is unknown.
func (l *Ledger) RunStatus(runID string) string {
	qry := query.New().Read("Run").Match("Value", "==", runID)
	result := l.store.Query().Execute(qry)
	if result.Amount == 0 {
		return ""
	}
	return result.Entities[0].Properties["Status"]
}

// Runs returns every recorded run entity.
func (l *Ledger) Runs() []transport.TransportEntity {
	qry := query.New().Read("Run")
	result := l.store.Query().Execute(qry)
	return result.Entities
}

// Invocations returns the invocation records of one run.
func (l *Ledger) Invocations(runID string) []Invocation {
	qry := query.New().Read("Run").Match("Value", "==", runID).To(
		query.New().Read("Invocation"),
	)
	result := l.store.Query().Execute(qry)
	if result.Amount == 0 {
		return nil
	}
	var out []Invocation
	for _, child := range result.Entities[0].Children() {
		produced, _ := strconv.Atoi(child.Properties["Produced"])
		duration, _ := time.ParseDuration(child.Properties["Duration"])
		out = append(out, Invocation{
			Pipe:     child.Value,
			Status:   child.Properties["Status"],
			Error:    child.Properties["Error"],
			Produced: produced,
			Duration: duration,
		})
	}
	return out
}

// Store exposes the backing gits instance for callers that want to issue
// their own queries (observer tick functions, CLI dump).
func (l *Ledger) Store() *gits.Gits {
	return l.store
}

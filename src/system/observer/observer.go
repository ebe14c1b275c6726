package observer

import (
	"time"

	"github.com/voodooEntity/gits"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/ledger"
)

// Observer blocks until an asynchronously started run has been closed in
// the ledger, then fires a callback with the ledger so the caller can
// inspect the outcome. An optional tick function runs every tickRate
// polling iterations.
type Observer struct {
	history      *ledger.Ledger
	runID        string
	callback     func(history *ledger.Ledger)
	log          *archivist.Archivist
	tickFunction *func(store *gits.Gits, logger *archivist.Archivist)
	tickRate     int
	pollInterval time.Duration
}

func New(history *ledger.Ledger, runID string, callback func(history *ledger.Ledger), logger *archivist.Archivist) *Observer {
	logger.Info("Creating observer for run " + runID)
	return &Observer{
		history:      history,
		runID:        runID,
		callback:     callback,
		log:          logger,
		tickRate:     25,
		pollInterval: 100 * time.Millisecond,
	}
}

func (o *Observer) RegisterTickFunction(tickFn *func(store *gits.Gits, logger *archivist.Archivist)) {
	o.tickFunction = tickFn
}

func (o *Observer) SetTickRate(tickRate int) {
	o.tickRate = tickRate
}

func (o *Observer) SetPollInterval(interval time.Duration) {
	o.pollInterval = interval
}

func (o *Observer) tick() {
	(*o.tickFunction)(o.history.Store(), o.log)
}

// Loop polls the ledger until the observed run closed, then executes the
// callback with the ledger.
func (o *Observer) Loop() {
	i := 0
	for !o.RunClosed() {
		i++
		o.log.Debug(archivist.DEBUG_LEVEL_DUMP, "Observer looping:")
		if o.tickFunction != nil && i == o.tickRate {
			o.tick()
			i = 0
		}
		time.Sleep(o.pollInterval)
	}
	o.log.Info("Observed run closed with status " + o.history.RunStatus(o.runID))
	o.callback(o.history)
}

func (o *Observer) RunClosed() bool {
	return o.history.RunClosed(o.runID)
}

// Package binpipe is the batteries-included entry point: it bundles a
// kind registry, a container set, the runner and the optional run history
// behind one instance so embedders and the CLI do not have to wire the
// layers by hand.
package binpipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/interfaces"
	"github.com/laughingman-dev/binpipe/src/system/ledger"
	"github.com/laughingman-dev/binpipe/src/system/loader"
	"github.com/laughingman-dev/binpipe/src/system/observer"
	"github.com/laughingman-dev/binpipe/src/system/pipeline"
	"github.com/laughingman-dev/binpipe/src/system/state"
)

// Settings configures a new instance. Ident is required; everything else
// has a usable default.
type Settings struct {
	Ident      string
	Logger     interfaces.LoggerInterface
	LogLevel   int
	DebugLevel int
	// History enables the gits-backed run ledger.
	History bool
	// Strict makes unsatisfiable pipes fail the run instead of being
	// skipped.
	Strict bool
	// StateDir enables on-disk persistence of containers and
	// invalidation metadata.
	StateDir string
}

type Binpipe struct {
	ident              string
	log                *archivist.Archivist
	settings           Settings
	pipeFactories      map[string]loader.PipeFactory
	containerFactories map[string]loader.ContainerFactory
	globals            []pipeline.Global
	runner             *pipeline.Runner
	defaultOptions     map[string]string
	history            *ledger.Ledger
	store              *state.Store
}

func New(settings Settings) *Binpipe {
	if settings.Ident == "" {
		panic("binpipe: Settings.Ident is required")
	}
	log := archivist.New(&archivist.Config{
		Logger:     settings.Logger,
		LogLevel:   settings.LogLevel,
		DebugLevel: settings.DebugLevel,
	})

	b := &Binpipe{
		ident:              settings.Ident,
		log:                log,
		settings:           settings,
		pipeFactories:      make(map[string]loader.PipeFactory),
		containerFactories: make(map[string]loader.ContainerFactory),
	}
	if settings.History {
		b.history = ledger.New(settings.Ident, log)
	}
	if settings.StateDir != "" {
		b.store = state.New(settings.StateDir, log)
	}
	return b
}

// RegisterPipe makes a pipe factory available under the name pipeline
// definitions reference it by. Must happen before LoadFile or
// LoadDefinition.
func (b *Binpipe) RegisterPipe(name string, factory loader.PipeFactory) {
	b.pipeFactories[name] = factory
}

// RegisterPipes registers a whole factory set at once.
func (b *Binpipe) RegisterPipes(factories map[string]loader.PipeFactory) {
	for name, factory := range factories {
		b.pipeFactories[name] = factory
	}
}

// RegisterContainerType makes a container constructor available under its
// declared type name. The generic payload type is always present.
func (b *Binpipe) RegisterContainerType(name string, factory loader.ContainerFactory) {
	b.containerFactories[name] = factory
}

// AddGlobal attaches a named global object. Effective for definitions
// loaded afterwards as well as the already built runner.
func (b *Binpipe) AddGlobal(global pipeline.Global) {
	b.globals = append(b.globals, global)
	if b.runner != nil {
		b.runner.AddGlobal(global)
	}
}

// LoadFile parses a TOML pipeline definition and builds the runner from
// it.
func (b *Binpipe) LoadFile(path string) error {
	def, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	return b.LoadDefinition(def)
}

// LoadDefinition builds the runner from an in-memory definition, for
// example one produced by configBuilder.
func (b *Binpipe) LoadDefinition(def *loader.Definition) error {
	factories := b.containerFactories
	if _, ok := factories["payload"]; !ok {
		factories = make(map[string]loader.ContainerFactory, len(b.containerFactories)+1)
		for name, factory := range b.containerFactories {
			factories[name] = factory
		}
		factories["payload"] = func() pipeline.Container {
			return pipeline.NewPayloadContainer("payload")
		}
	}

	runner, options, err := loader.Build(def, b.pipeFactories, factories, b.log)
	if err != nil {
		return err
	}
	for _, global := range b.globals {
		runner.AddGlobal(global)
	}
	if b.history != nil {
		runner.SetLedger(b.history)
	}
	runner.SetStrictSatisfiability(b.settings.Strict)
	b.runner = runner
	b.defaultOptions = options
	b.log.Info("Loaded pipeline definition " + def.Name)
	return nil
}

func (b *Binpipe) Runner() *pipeline.Runner {
	return b.runner
}

func (b *Binpipe) Registry() *pipeline.Registry {
	if b.runner == nil {
		return nil
	}
	return b.runner.Registry()
}

func (b *Binpipe) History() *ledger.Ledger {
	return b.history
}

func (b *Binpipe) Log() *archivist.Archivist {
	return b.log
}

// ParseRequest turns "container=kind:path/..." specs into a request map.
// A spec without a path selects every target of the kind.
func (b *Binpipe) ParseRequest(specs ...string) (pipeline.ContainerToTargetsMap, error) {
	if b.runner == nil {
		return nil, fmt.Errorf("binpipe: no pipeline definition loaded")
	}
	request := make(pipeline.ContainerToTargetsMap)
	for _, spec := range specs {
		containerName, serialized, found := strings.Cut(spec, "=")
		if !found {
			return nil, fmt.Errorf("binpipe: target spec %q: want container=kind:path", spec)
		}
		target, err := pipeline.ParseTarget(b.runner.Registry(), serialized)
		if err != nil {
			return nil, fmt.Errorf("binpipe: target spec %q: %w", spec, err)
		}
		request.Add(containerName, target)
	}
	return request, nil
}

func (b *Binpipe) mergeOptions(options map[string]string) map[string]string {
	merged := make(map[string]string, len(b.defaultOptions)+len(options))
	for name, value := range b.defaultOptions {
		merged[name] = value
	}
	for name, value := range options {
		merged[name] = value
	}
	return merged
}

// Run executes the loaded pipeline for the requested targets, blocking
// until done. Options given here override the definition's option
// defaults.
func (b *Binpipe) Run(request pipeline.ContainerToTargetsMap, options map[string]string) error {
	if b.runner == nil {
		return fmt.Errorf("binpipe: no pipeline definition loaded")
	}
	return b.runner.Run(request, b.mergeOptions(options))
}

// Start executes the pipeline asynchronously and returns the run id. Pair
// it with GetObserverInstance to wait for the outcome; without an enabled
// history the run cannot be observed.
func (b *Binpipe) Start(request pipeline.ContainerToTargetsMap, options map[string]string) (string, error) {
	if b.runner == nil {
		return "", fmt.Errorf("binpipe: no pipeline definition loaded")
	}
	runID := uuid.New().String()
	merged := b.mergeOptions(options)
	go func() {
		if err := b.runner.RunWithID(runID, request, merged); err != nil {
			b.log.Error("Run " + runID + " failed: " + err.Error())
		}
	}()
	return runID, nil
}

// GetObserverInstance returns an observer blocking on the given run. The
// callback fires with the history once the run closed.
func (b *Binpipe) GetObserverInstance(runID string, callback func(history *ledger.Ledger)) (*observer.Observer, error) {
	if b.history == nil {
		return nil, fmt.Errorf("binpipe: history is disabled, runs cannot be observed")
	}
	return observer.New(b.history, runID, callback, b.log), nil
}

// InvalidateGlobal applies a diff of the named global: everything derived
// from the touched paths is dropped from the containers. Returns the
// invalidated targets per container.
func (b *Binpipe) InvalidateGlobal(globalName string, diff pipeline.Diff) (pipeline.ContainerToTargetsMap, error) {
	if b.runner == nil {
		return nil, fmt.Errorf("binpipe: no pipeline definition loaded")
	}
	return b.runner.InvalidateGlobal(globalName, diff)
}

// SaveState persists containers and invalidation metadata to the state
// directory, under its lock.
func (b *Binpipe) SaveState(ctx context.Context) error {
	if b.store == nil {
		return fmt.Errorf("binpipe: no state directory configured")
	}
	if b.runner == nil {
		return fmt.Errorf("binpipe: no pipeline definition loaded")
	}
	if err := b.store.Lock(ctx); err != nil {
		return err
	}
	defer b.store.Unlock()
	return b.store.SaveRunner(b.runner)
}

// LoadState restores containers and invalidation metadata from the state
// directory. Missing state is not an error; the pipeline starts fresh.
func (b *Binpipe) LoadState(ctx context.Context) error {
	if b.store == nil {
		return fmt.Errorf("binpipe: no state directory configured")
	}
	if b.runner == nil {
		return fmt.Errorf("binpipe: no pipeline definition loaded")
	}
	if err := b.store.Lock(ctx); err != nil {
		return err
	}
	defer b.store.Unlock()
	return b.store.LoadRunner(b.runner)
}

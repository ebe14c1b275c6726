// Package state persists pipeline state between runs: container payloads
// and per-pipe invalidation metadata land as files under one directory,
// guarded by a file lock so concurrent processes cannot interleave saves.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/pipeline"
)

const lockRetryInterval = 100 * time.Millisecond

type Store struct {
	dir  string
	lock *flock.Flock
	log  *archivist.Archivist
}

func New(dir string, log *archivist.Archivist) *Store {
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, "state.lock")),
		log:  log,
	}
}

// Lock acquires the exclusive state-directory lock, retrying until the
// context expires.
func (s *Store) Lock(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timeout waiting for state lock %s", s.lock.Path())
	}
	return nil
}

func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

func (s *Store) containerPath(name string) string {
	return filepath.Join(s.dir, "containers", name+".json")
}

func (s *Store) invalidationPath(pipeName string) string {
	return filepath.Join(s.dir, "invalidation", pipeName+".json")
}

// SaveContainers serializes every container of the set into
// <dir>/containers/<name>.json.
func (s *Store) SaveContainers(set *pipeline.ContainerSet) error {
	if err := os.MkdirAll(filepath.Join(s.dir, "containers"), 0755); err != nil {
		return fmt.Errorf("creating containers directory: %w", err)
	}
	for _, name := range set.Names() {
		container, err := set.Get(name)
		if err != nil {
			return err
		}
		data, err := container.Serialize()
		if err != nil {
			return fmt.Errorf("serializing container %q: %w", name, err)
		}
		if err := os.WriteFile(s.containerPath(name), data, 0644); err != nil {
			return fmt.Errorf("writing container %q: %w", name, err)
		}
	}
	s.log.Debug(archivist.DEBUG_LEVEL_TRACE, "state SAVE containers=", len(set.Names()), " dir=", s.dir)
	return nil
}

// LoadContainers restores previously saved payloads into the matching
// containers of the set. Containers without a state file keep their
// current contents; that is a fresh pipeline, not an error.
func (s *Store) LoadContainers(set *pipeline.ContainerSet, registry *pipeline.Registry) error {
	for _, name := range set.Names() {
		data, err := os.ReadFile(s.containerPath(name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading container %q state: %w", name, err)
		}
		container, err := set.Get(name)
		if err != nil {
			return err
		}
		if err := container.Deserialize(registry, data); err != nil {
			return fmt.Errorf("restoring container %q: %w", name, err)
		}
	}
	return nil
}

// SaveInvalidation writes one pipe's invalidation metadata snapshot.
func (s *Store) SaveInvalidation(pipeName string, metadata *pipeline.InvalidationMetadata) error {
	if err := os.MkdirAll(filepath.Join(s.dir, "invalidation"), 0755); err != nil {
		return fmt.Errorf("creating invalidation directory: %w", err)
	}
	data, err := json.MarshalIndent(metadata.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("serializing invalidation metadata of %q: %w", pipeName, err)
	}
	if err := os.WriteFile(s.invalidationPath(pipeName), data, 0644); err != nil {
		return fmt.Errorf("writing invalidation metadata of %q: %w", pipeName, err)
	}
	return nil
}

// LoadInvalidation restores one pipe's invalidation metadata. A missing
// file means no history, which is valid.
func (s *Store) LoadInvalidation(pipeName string, metadata *pipeline.InvalidationMetadata, registry *pipeline.Registry) error {
	data, err := os.ReadFile(s.invalidationPath(pipeName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading invalidation metadata of %q: %w", pipeName, err)
	}
	var entries []pipeline.BimapEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing invalidation metadata of %q: %w", pipeName, err)
	}
	if err := metadata.Restore(registry, entries); err != nil {
		return fmt.Errorf("restoring invalidation metadata of %q: %w", pipeName, err)
	}
	return nil
}

// SaveRunner persists the full runner state: all containers plus every
// pipe's invalidation metadata.
func (s *Store) SaveRunner(runner *pipeline.Runner) error {
	if err := s.SaveContainers(runner.State()); err != nil {
		return err
	}
	for _, pipe := range runner.Pipes() {
		if err := s.SaveInvalidation(pipe.GetName(), pipe.InvalidationMetadata()); err != nil {
			return err
		}
	}
	return nil
}

// LoadRunner restores the full runner state saved by SaveRunner.
func (s *Store) LoadRunner(runner *pipeline.Runner) error {
	if err := s.LoadContainers(runner.State(), runner.Registry()); err != nil {
		return err
	}
	for _, pipe := range runner.Pipes() {
		if err := s.LoadInvalidation(pipe.GetName(), pipe.InvalidationMetadata(), runner.Registry()); err != nil {
			return err
		}
	}
	return nil
}

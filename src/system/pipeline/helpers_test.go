package pipeline

import (
	"io"
	"log"

	"github.com/laughingman-dev/binpipe/src/system/archivist"
)

// test helpers shared by the package tests: a silent logger, a small kind
// forest and a payload container set mirroring a minimal analysis stack.

func newTestLogger() *archivist.Archivist {
	return archivist.New(&archivist.Config{
		Logger: log.New(io.Discard, "", 0),
	})
}

type testKinds struct {
	registry *Registry
	binary   *Kind
	raw      *Kind
	lifted   *Kind
	summary  *Kind
}

func newTestKinds() testKinds {
	registry := NewRegistry()
	binary := registry.MustRegister("binary", nil, 0)
	raw := registry.MustRegister("raw-function", nil, 1)
	lifted := registry.MustRegister("lifted-function", raw, 1)
	summary := registry.MustRegister("binary-summary", nil, 0)
	return testKinds{
		registry: registry,
		binary:   binary,
		raw:      raw,
		lifted:   lifted,
		summary:  summary,
	}
}

func newTestContainerSet(names ...string) *ContainerSet {
	set := NewContainerSet()
	for _, name := range names {
		if err := set.Add(name, NewPayloadContainer("payload")); err != nil {
			panic(err)
		}
	}
	return set
}

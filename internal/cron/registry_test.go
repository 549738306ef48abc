package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndDropsDuplicates(t *testing.T) {
	a := &stubJob{name: "a"}
	b := &stubJob{name: "b"}
	registry := NewRegistry(a, nil)
	registry.Register(b)
	registry.Register(&stubJob{name: "a"})

	jobs := registry.Jobs()
	assert.Equal(t, []Job{a, b}, jobs)

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

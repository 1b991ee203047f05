package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	first, second := &stubJob{name: "order-ttl"}, &stubJob{name: "refund-retry"}
	registry := &Registry{}
	require.NoError(t, registry.Register(first))
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(second))

	jobs := registry.Jobs()
	require.Equal(t, []Job{first, second}, jobs)

	jobs[0] = nil
	assert.Same(t, first, registry.Jobs()[0])
	assert.Equal(t, []string{"order-ttl", "refund-retry"}, registry.Names())
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "refund-retry"}, nil, &stubJob{name: "refund-retry"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"refund-retry"`)
}

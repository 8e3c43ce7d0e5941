package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
)

type fakeSweeper struct {
	calls atomic.Int64
}

func (f *fakeSweeper) SweepStale(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 0, nil
}

func TestRegisterJob_Validation(t *testing.T) {
	s := NewService(arbor.NewLogger())

	assert.Error(t, s.RegisterJob("nil", "", "", nil))
	assert.Error(t, s.RegisterJob("bad", "not a schedule", "", func(ctx context.Context) error { return nil }))

	require.NoError(t, s.RegisterJob("ok", "*/1 * * * * *", "", func(ctx context.Context) error { return nil }))
	assert.Error(t, s.RegisterJob("ok", "", "", func(ctx context.Context) error { return nil }))
}

func TestRunJob_RecordsOutcome(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("fails", "", "always fails", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, s.RegisterJob("panics", "", "", func(ctx context.Context) error {
		panic("bad")
	}))

	assert.Error(t, s.RunJob("fails"))
	assert.Error(t, s.RunJob("panics"))
	assert.Error(t, s.RunJob("missing"))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "fails", jobs[0].Name)
	assert.Equal(t, "boom", jobs[0].LastError)
	assert.NotNil(t, jobs[0].LastRun)
	assert.Contains(t, jobs[1].LastError, "panicked")
}

func TestStaleSweep_RunsOnSchedule(t *testing.T) {
	s := NewService(arbor.NewLogger())
	sweeper := &fakeSweeper{}

	require.NoError(t, s.RegisterStaleSweep(&common.IngestionConfig{SweepSchedule: "* * * * * *"}, sweeper))
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "stale_ingestion_sweep", jobs[0].Name)
}

func TestStaleSweep_DisabledWithoutSchedule(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterStaleSweep(&common.IngestionConfig{}, &fakeSweeper{}))
	assert.Empty(t, s.Jobs())
}

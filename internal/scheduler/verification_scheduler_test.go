package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecheck struct {
	mu      sync.Mutex
	recheck int
	sweep   int
	stale   int
}

func (c *countingRecheck) RecheckApproved(context.Context) (service.RecheckSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recheck++
	return service.RecheckSummary{}, nil
}

func (c *countingRecheck) SweepPending(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep++
	return 0, nil
}

func (c *countingRecheck) FlagStaleReviews(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale++
	return 0, nil
}

func TestVerificationScheduler_InvalidSpec(t *testing.T) {
	s := NewVerificationScheduler(&countingRecheck{}, "not a cron expression", "*/15 * * * *")
	assert.Error(t, s.Start())
}

func TestVerificationScheduler_Jobs(t *testing.T) {
	jobs := &countingRecheck{}
	s := NewVerificationScheduler(jobs, "0 3 * * *", "*/15 * * * *")
	require.NoError(t, s.Start())

	s.wrap("vat_recheck", s.runRecheck)()
	s.wrap("pending_sweep", s.runSweep)()
	s.Stop()

	assert.Equal(t, 1, jobs.recheck)
	assert.Equal(t, 1, jobs.sweep)
	assert.Equal(t, 1, jobs.stale)
}

package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvicter struct {
	ttls []time.Duration
}

func (f *fakeEvicter) Evict(ttl time.Duration) int {
	f.ttls = append(f.ttls, ttl)
	return 2
}

type fakePurger struct {
	cutoffs []time.Time
	err     error
}

func (f *fakePurger) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobs_Schedules(t *testing.T) {
	j, err := NewJobs(&fakeEvicter{}, time.Hour, &fakePurger{}, 30*24*time.Hour, discard())
	require.NoError(t, err)
	assert.Len(t, j.cron.Entries(), 2)

	j, err = NewJobs(&fakeEvicter{}, time.Hour, nil, 30*24*time.Hour, discard())
	require.NoError(t, err)
	assert.Len(t, j.cron.Entries(), 1, "no purge without an archive")

	j, err = NewJobs(&fakeEvicter{}, time.Hour, &fakePurger{}, 0, discard())
	require.NoError(t, err)
	assert.Len(t, j.cron.Entries(), 1, "zero retention keeps reports")
}

func TestJobs_EvictSessions(t *testing.T) {
	ev := &fakeEvicter{}
	j, err := NewJobs(ev, 45*time.Minute, nil, 0, discard())
	require.NoError(t, err)

	j.evictSessions()
	assert.Equal(t, []time.Duration{45 * time.Minute}, ev.ttls)
}

func TestJobs_PurgeReports(t *testing.T) {
	p := &fakePurger{}
	j, err := NewJobs(&fakeEvicter{}, time.Hour, p, 48*time.Hour, discard())
	require.NoError(t, err)
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	j.purgeReports()
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoffs[0])

	p.err = errors.New("connection reset")
	j.purgeReports()
	assert.Len(t, p.cutoffs, 2)
}

func TestJobs_StartStop(t *testing.T) {
	j, err := NewJobs(&fakeEvicter{}, time.Hour, nil, 0, discard())
	require.NoError(t, err)
	j.Start()
	j.Stop()
}

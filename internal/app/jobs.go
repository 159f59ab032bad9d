package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	evictSchedule = "@every 10m"
	purgeSchedule = "@daily"
	purgeTimeout  = time.Minute
)

type Evicter interface {
	Evict(ttl time.Duration) int
}

type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Jobs runs housekeeping on a cron schedule: finished live sessions are
// forgotten after sessionTTL and archived reports are purged after
// retention. A zero retention or nil purger keeps reports forever.
type Jobs struct {
	cron   *cron.Cron
	logger *slog.Logger

	sessions   Evicter
	sessionTTL time.Duration
	reports    Purger
	retention  time.Duration
	now        func() time.Time
}

func NewJobs(sessions Evicter, sessionTTL time.Duration, reports Purger, retention time.Duration, logger *slog.Logger) (*Jobs, error) {
	j := &Jobs{
		cron:       cron.New(),
		logger:     logger,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		reports:    reports,
		retention:  retention,
		now:        time.Now,
	}
	if _, err := j.cron.AddFunc(evictSchedule, j.evictSessions); err != nil {
		return nil, err
	}
	if reports != nil && retention > 0 {
		if _, err := j.cron.AddFunc(purgeSchedule, j.purgeReports); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *Jobs) Start() {
	j.cron.Start()
	j.logger.Info("housekeeping started", "jobs", len(j.cron.Entries()))
}

// Stop waits for running jobs to finish.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Jobs) evictSessions() {
	if n := j.sessions.Evict(j.sessionTTL); n > 0 {
		j.logger.Info("evicted finished sessions", "count", n)
	}
}

func (j *Jobs) purgeReports() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	n, err := j.reports.Purge(ctx, cutoff)
	if err != nil {
		j.logger.Error("report purge failed", "error", err)
		return
	}
	j.logger.Info("purged archived reports", "count", n, "before", cutoff)
}

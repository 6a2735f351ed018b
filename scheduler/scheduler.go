package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/syncsvc"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/bsm/redislock"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	sweepLockKey = "insights:scheduled-sweep"
	sweepLockTTL = 30 * time.Minute
)

// Scheduler fires the daily multi-domain sweep. Start/Stop own the cron
// lifecycle; the redis lock keeps the sweep to one instance per trigger.
type Scheduler struct {
	cron   *cron.Cron
	svc    *syncsvc.Service
	logger *logrus.Logger
}

func New(svc *syncsvc.Service) (*Scheduler, error) {
	tz := strings.TrimSpace(os.Getenv("SYNC_SCHEDULE_TZ"))
	if tz == "" {
		tz = utils.DefaultTimezone
	}
	loc, err := utils.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SCHEDULE_TZ %q: %w", tz, err)
	}

	spec, err := cronSpecFromEnv()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		svc:    svc,
		logger: config.GetLogger(),
	}
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return nil, err
	}
	return s, nil
}

// cronSpecFromEnv builds the daily spec from SYNC_SCHEDULE_AT (HH:MM,
// default 02:30).
func cronSpecFromEnv() (string, error) {
	at := strings.TrimSpace(os.Getenv("SYNC_SCHEDULE_AT"))
	if at == "" {
		at = "02:30"
	}
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		return "", fmt.Errorf("invalid SYNC_SCHEDULE_AT %q: %w", at, err)
	}
	return fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour()), nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the trigger and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSweep() {
	ctx := utils.SetTriggeredByInContext(context.Background(), models.SyncTriggeredScheduled)

	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, sweepLockKey, sweepLockTTL, nil)
		if err == redislock.ErrNotObtained {
			s.logger.Info("scheduled sweep already running on another instance")
			return
		}
		if err != nil {
			config.LogError(s.logger, "scheduler", "runSweep", "obtain sweep lock", nil, err)
			return
		}
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	window, err := syncsvc.DefaultWindow(time.Now(), utils.DefaultTimezone)
	if err != nil {
		config.LogError(s.logger, "scheduler", "runSweep", "build window", nil, err)
		return
	}

	s.logger.WithFields(logrus.Fields{"window": window.String()}).Info("scheduled sweep started")
	results := s.svc.RunAll(ctx, window)

	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"domains": len(results),
		"failed":  failed,
	}).Info("scheduled sweep finished")
}

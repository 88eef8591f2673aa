package social

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// PresenceSweeper periodically marks stale presence rows offline.
type PresenceSweeper struct {
	sched gocron.Scheduler
}

// StartPresenceSweeper schedules svc.ExpirePresence(ttl) every interval.
func StartPresenceSweeper(svc *Service, ttl, interval time.Duration, logger logrus.FieldLogger) (*PresenceSweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := svc.ExpirePresence(ctx, ttl)
			if err != nil {
				logger.WithError(err).Warn("presence sweep failed")
				return
			}
			if n > 0 {
				logger.WithField("count", n).Debug("marked stale users offline")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return &PresenceSweeper{sched: sched}, nil
}

func (p *PresenceSweeper) Stop() error {
	return p.sched.Shutdown()
}

package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpirationService expires pending purchases whose hold has run out.
type ExpirationService interface {
	ExpirePendingPurchases(ctx context.Context) (int64, error)
}

type Scheduler struct {
	purchases ExpirationService
	interval  time.Duration
}

func NewScheduler(purchases ExpirationService, interval time.Duration) *Scheduler {
	return &Scheduler{
		purchases: purchases,
		interval:  interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired, err := s.purchases.ExpirePendingPurchases(ctx)
			if err != nil {
				logrus.Errorf("Error expiring pending purchases: %v", err)
				continue
			}
			if expired > 0 {
				logrus.Infof("Expired %d pending purchases", expired)
			}
		case <-ctx.Done():
			return
		}
	}
}

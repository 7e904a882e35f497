package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	repository "github.com/avdeev-m/ticketflow/internal/database/postgres"
	"github.com/avdeev-m/ticketflow/internal/service"
)

// PurchaseCleanupWorker периодически отменяет просроченные покупки
type PurchaseCleanupWorker struct {
	purchaseService service.PurchaseService
	seatRepo        repository.SeatRepository
	interval        time.Duration
	releaseSeats    bool
}

func NewPurchaseCleanupWorker(
	purchaseService service.PurchaseService,
	seatRepo repository.SeatRepository,
	interval time.Duration,
	releaseSeats bool,
) *PurchaseCleanupWorker {
	return &PurchaseCleanupWorker{
		purchaseService: purchaseService,
		seatRepo:        seatRepo,
		interval:        interval,
		releaseSeats:    releaseSeats,
	}
}

func (w *PurchaseCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Purchase cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Purchase cleanup worker stopped")
			return
		case <-ticker.C:
			w.cleanupExpiredPurchases(ctx)
		}
	}
}

// cleanupExpiredPurchases отменяет все просроченные покупки. Основной путь
// истечения идёт через отложенные задачи в очереди; этот воркер подстраховывает
// на случай потерянных задач.
func (w *PurchaseCleanupWorker) cleanupExpiredPurchases(ctx context.Context) {
	logrus.Info("Starting expired purchases cleanup")

	expired, err := w.purchaseService.ExpirePendingPurchases(ctx)
	if err != nil {
		logrus.Errorf("Failed to expire pending purchases: %v", err)
		return
	}

	if expired == 0 {
		logrus.Debug("No expired purchases found for cleanup")
	} else {
		logrus.Infof("Expired purchases cleanup completed: %d cancelled", expired)
	}

	if w.releaseSeats {
		w.releaseOrphanedSeats(ctx)
	}
}

// releaseOrphanedSeats возвращает в продажу места, чьи билеты уже отменены
func (w *PurchaseCleanupWorker) releaseOrphanedSeats(ctx context.Context) {
	released, err := w.seatRepo.ReleaseOrphanedSeats(ctx)
	if err != nil {
		logrus.Errorf("Failed to release orphaned seats: %v", err)
		return
	}

	if released > 0 {
		logrus.Infof("Released %d orphaned seats", released)
	}
}

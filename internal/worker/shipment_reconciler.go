package worker

import (
	"context"
	"sync"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"
	"github.com/Kccollections/kc-collections-sub000/internal/usecase"

	"github.com/sirupsen/logrus"
)

// ShipmentReconciler はリクエスト経路の外で動く整合ジョブ。
//   - PROCESSINGで止まった注文（shipmentはあるがcourier未割当）の再試行
//   - 期限切れTempOrderの掃除
type ShipmentReconciler struct {
	orders     repo.OrderRepository
	tempOrders repo.TempOrderRepository
	shipments  *usecase.ShipmentCoordinator
	clock      usecase.Clock

	interval  time.Duration
	batchSize int
	log       *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewShipmentReconciler(
	orders repo.OrderRepository,
	tempOrders repo.TempOrderRepository,
	shipments *usecase.ShipmentCoordinator,
	clock usecase.Clock,
	interval time.Duration,
	log *logrus.Logger,
) *ShipmentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ShipmentReconciler{
		orders:     orders,
		tempOrders: tempOrders,
		shipments:  shipments,
		clock:      clock,
		interval:   interval,
		batchSize:  50,
		log:        log,
	}
}

// Start はバックグラウンドループを起動する
func (r *ShipmentReconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(runCtx)
}

// Stop はループを止めて完了を待つ
func (r *ShipmentReconciler) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *ShipmentReconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce は1回分の整合処理。テストからも直接呼べる
func (r *ShipmentReconciler) RunOnce(ctx context.Context) {
	stuck, err := r.orders.ListByShippingStatus(ctx, model.ShippingStatusProcessing, r.batchSize)
	if err != nil {
		r.log.WithError(err).Error("reconcile: list processing orders failed")
	} else {
		for _, o := range stuck {
			if err := r.shipments.RetryCourier(ctx, o); err != nil {
				r.log.WithError(err).WithField("order_id", o.ID).Warn("reconcile: courier retry failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}

	removed, err := r.tempOrders.DeleteExpired(ctx, r.clock.Now())
	if err != nil {
		r.log.WithError(err).Error("reconcile: temp order sweep failed")
		return
	}
	if removed > 0 {
		r.log.WithField("count", removed).Info("reconcile: expired temp orders removed")
	}
}

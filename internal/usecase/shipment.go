package usecase

import (
	"context"
	"strconv"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/shipping"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/sirupsen/logrus"
)

// ShipmentCoordinator は配送プロバイダとのbest-effort連携。
// ここでの失敗は確定済みの注文を絶対に巻き戻さない。
// 結果はOrderの配送トラックにだけ反映する：
//   - 作成成功＋courier割当成功 → SHIPPED（追跡情報つき）
//   - 作成成功＋courier割当失敗 → PROCESSING（shipmentIDのみ。workerが再試行）
//   - 作成失敗 → PENDINGのまま
type ShipmentCoordinator struct {
	client         shipping.Client
	orders         repo.OrderRepository
	addresses      repo.AddressRepository
	pickupLocation string
	clock          Clock
	log            *logrus.Logger

	//外部呼び出しの再試行回数と間隔
	attempts int
	backoff  time.Duration
}

func NewShipmentCoordinator(
	client shipping.Client,
	orders repo.OrderRepository,
	addresses repo.AddressRepository,
	pickupLocation string,
	clock Clock,
	log *logrus.Logger,
) *ShipmentCoordinator {
	return &ShipmentCoordinator{
		client:         client,
		orders:         orders,
		addresses:      addresses,
		pickupLocation: pickupLocation,
		clock:          clock,
		log:            log,
		attempts:       3,
		backoff:        500 * time.Millisecond,
	}
}

// Dispatch は注文確定後に呼ばれる。戻り値なし＝呼び出し側の成否に関与しない
func (s *ShipmentCoordinator) Dispatch(ctx context.Context, order model.Order) {
	addr, err := s.addresses.FindByID(ctx, order.AddressID)
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).
			Warn("shipment skipped: address lookup failed, order left PENDING")
		return
	}

	req := s.buildRequest(order, addr)

	var shipmentID string
	err = s.retry(ctx, func() error {
		id, err := s.client.CreateShipment(ctx, req)
		if err != nil {
			return err
		}
		shipmentID = id
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).
			Warn("shipment create failed, order left PENDING")
		return
	}

	//割当失敗はassignAndRecordの中でログと記録が済んでいる
	_ = s.assignAndRecord(ctx, order.ID, shipmentID)
}

// RetryCourier はPROCESSINGで止まった注文のcourier割当を再試行する（worker用）
func (s *ShipmentCoordinator) RetryCourier(ctx context.Context, order model.Order) error {
	if order.ShipmentID == "" {
		return nil
	}
	return s.assignAndRecord(ctx, order.ID, order.ShipmentID)
}

// Cancel はbest-effortの出荷キャンセル。失敗してもエラーを返すだけで、
// 呼び出し側の注文キャンセルはすでに確定している
func (s *ShipmentCoordinator) Cancel(ctx context.Context, shipmentID string) error {
	return s.retry(ctx, func() error {
		return s.client.CancelShipment(ctx, shipmentID)
	})
}

func (s *ShipmentCoordinator) assignAndRecord(ctx context.Context, orderID int64, shipmentID string) error {
	var courier shipping.Courier
	err := s.retry(ctx, func() error {
		c, err := s.client.AssignCourier(ctx, shipmentID)
		if err != nil {
			return err
		}
		courier = c
		return nil
	})
	if err != nil {
		//shipmentIDだけ記録してPROCESSINGで止める。workerが拾う
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id":    orderID,
			"shipment_id": shipmentID,
		}).Warn("courier assign failed, order marked PROCESSING")

		if uerr := s.orders.UpdateShipment(ctx, orderID, repo.ShipmentUpdate{
			ShipmentID: shipmentID,
			Status:     model.ShippingStatusProcessing,
		}); uerr != nil {
			s.log.WithError(uerr).WithField("order_id", orderID).
				Error("record shipment id failed")
		}
		return err
	}

	now := s.clock.Now()
	if uerr := s.orders.UpdateShipment(ctx, orderID, repo.ShipmentUpdate{
		ShipmentID:   shipmentID,
		TrackingID:   courier.TrackingID,
		TrackingURL:  courier.TrackingURL,
		Status:       model.ShippingStatusShipped,
		ShippingDate: &now,
	}); uerr != nil {
		s.log.WithError(uerr).WithField("order_id", orderID).
			Error("record tracking failed")
		return uerr
	}
	return nil
}

func (s *ShipmentCoordinator) buildRequest(order model.Order, addr model.Address) shipping.ShipmentRequest {
	items := make([]shipping.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, shipping.LineItem{
			Name:  it.ProductNameSnapshot,
			SKU:   strconv.FormatInt(it.ProductID, 10),
			Units: it.Quantity,
			Price: it.UnitPriceSnapshot,
		})
	}

	mode := "Prepaid"
	if order.PaymentMethod == model.PaymentMethodCOD {
		mode = "COD"
	}

	return shipping.ShipmentRequest{
		OrderRef:       strconv.FormatInt(order.ID, 10),
		PickupLocation: s.pickupLocation,
		Destination: shipping.Destination{
			Name:       addr.Name,
			Phone:      addr.Phone,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
		},
		Items:       items,
		SubTotal:    order.TotalAmount,
		PaymentMode: mode,
	}
}

// 小さな回数だけbackoffつきで再試行する。contextのキャンセルで打ち切る
func (s *ShipmentCoordinator) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < s.attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == s.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(i+1)):
		}
	}
	return err
}

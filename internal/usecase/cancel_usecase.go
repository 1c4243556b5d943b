package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/mail"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/sirupsen/logrus"
)

// 注文作成からキャンセルを受け付ける時間
const cancelWindow = 24 * time.Hour

// CancelUsecase はキャンセルポリシーを適用し、返金開始と
// 出荷キャンセルを進める。対象はすでに永続化された注文だけ
type CancelUsecase struct {
	orders    repo.OrderRepository
	users     repo.UserRepository
	shipments *ShipmentCoordinator
	mailer    mail.Dispatcher
	clock     Clock
	log       *logrus.Logger
}

func NewCancelUsecase(
	orders repo.OrderRepository,
	users repo.UserRepository,
	shipments *ShipmentCoordinator,
	mailer mail.Dispatcher,
	clock Clock,
	log *logrus.Logger,
) *CancelUsecase {
	return &CancelUsecase{
		orders:    orders,
		users:     users,
		shipments: shipments,
		mailer:    mailer,
		clock:     clock,
		log:       log,
	}
}

type CancelOutput struct {
	OrderID         int64  `json:"order_id"`
	PaymentStatus   string `json:"payment_status"`
	ShippingStatus  string `json:"shipping_status"`
	RefundInitiated bool   `json:"refund_initiated"`
}

// Cancel は本人または管理者からのキャンセル要求を処理する。
// 拒否理由は「24時間経過」と「出荷済み」で別のメッセージを返す。
// 時間の判定を先に行う（両方該当する場合は時間側の理由を返す）
func (u *CancelUsecase) Cancel(ctx context.Context, orderID int64, requesterID int64, requesterRole model.Role) (CancelOutput, error) {
	if requesterID <= 0 {
		return CancelOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return CancelOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return CancelOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//本人か管理者だけ
	if o.UserID != requesterID && requesterRole != model.RoleAdmin {
		return CancelOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if u.clock.Now().Sub(o.CreatedAt) > cancelWindow {
		return CancelOutput{}, NewHTTPError(http.StatusUnprocessableEntity, "cancellation window of 24 hours has passed")
	}
	if o.ShippingStatus == model.ShippingStatusShipped || o.ShippingStatus == model.ShippingStatusDelivered {
		return CancelOutput{}, NewHTTPError(http.StatusUnprocessableEntity, "order already shipped")
	}
	if o.ShippingStatus == model.ShippingStatusCancelled {
		return CancelOutput{}, NewHTTPError(http.StatusConflict, "order already cancelled")
	}

	refund := o.PaymentMethod == model.PaymentMethodOnline && o.PaymentStatus == model.PaymentStatusPaid

	if err := u.orders.MarkCancelled(ctx, orderID, refund); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			//チェックと更新の間に出荷まで進んだ
			return CancelOutput{}, NewHTTPError(http.StatusConflict, "order can no longer be cancelled")
		}
		return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//出荷キャンセルはbest-effort。失敗しても上の確定は変わらない
	if o.ShipmentID != "" {
		if cerr := u.shipments.Cancel(ctx, o.ShipmentID); cerr != nil {
			u.log.WithError(cerr).WithFields(logrus.Fields{
				"order_id":    orderID,
				"shipment_id": o.ShipmentID,
			}).Warn("shipment cancel failed")
		}
	}

	o.ShippingStatus = model.ShippingStatusCancelled
	if refund {
		o.PaymentStatus = model.PaymentStatusRefundInitiated
	}

	//メールは待たない
	go u.notifyCancelled(o)

	return CancelOutput{
		OrderID:         orderID,
		PaymentStatus:   string(o.PaymentStatus),
		ShippingStatus:  string(o.ShippingStatus),
		RefundInitiated: refund,
	}, nil
}

func (u *CancelUsecase) notifyCancelled(order model.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := u.users.FindByID(ctx, order.UserID)
	if err != nil || user == nil {
		u.log.WithField("order_id", order.ID).Warn("cancellation mail skipped: user lookup failed")
		return
	}

	if err := u.mailer.OrderCancelled(order, *user); err != nil {
		u.log.WithError(err).WithField("order_id", order.ID).Warn("cancellation mail failed")
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/mail"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/payment"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OrderUsecase は検証済みの決済（またはCOD依頼）を、ちょうど1件の
// 永続化されたOrderに変える。配送・通知はコミット後のbest-effort
type OrderUsecase struct {
	orders     repo.OrderRepository
	tempOrders repo.TempOrderRepository
	addresses  repo.AddressRepository
	products   repo.ProductRepository
	users      repo.UserRepository

	gateway   payment.Gateway
	verifier  *PaymentVerifier
	shipments *ShipmentCoordinator
	mailer    mail.Dispatcher

	tempTTL time.Duration
	clock   Clock
	log     *logrus.Logger
}

func NewOrderUsecase(
	orders repo.OrderRepository,
	tempOrders repo.TempOrderRepository,
	addresses repo.AddressRepository,
	products repo.ProductRepository,
	users repo.UserRepository,
	gateway payment.Gateway,
	verifier *PaymentVerifier,
	shipments *ShipmentCoordinator,
	mailer mail.Dispatcher,
	tempTTL time.Duration,
	clock Clock,
	log *logrus.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		orders:     orders,
		tempOrders: tempOrders,
		addresses:  addresses,
		products:   products,
		users:      users,
		gateway:    gateway,
		verifier:   verifier,
		shipments:  shipments,
		mailer:     mailer,
		tempTTL:    tempTTL,
		clock:      clock,
		log:        log,
	}
}

type CheckoutItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CheckoutInput struct {
	Items       []CheckoutItemInput `json:"items"`
	TotalAmount float64             `json:"total_amount"`
	AddressID   int64               `json:"address_id"`
}

type InitiateOnlineOutput struct {
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         float64 `json:"amount"`
}

type FinalizeOnlineInput struct {
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

type OrderItemOutput struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
}

type OrderOutput struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	AddressID      int64             `json:"address_id"`
	TotalAmount    float64           `json:"total_amount"`
	PaymentMethod  string            `json:"payment_method"`
	PaymentStatus  string            `json:"payment_status"`
	ShippingStatus string            `json:"shipping_status"`
	TrackingID     string            `json:"tracking_id,omitempty"`
	TrackingURL    string            `json:"tracking_url,omitempty"`
	DeliveryDate   *time.Time        `json:"delivery_date,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Items          []OrderItemOutput `json:"items"`
}

// InitiateOnline はゲートウェイ側に注文を作り、TempOrderを保存して
// そのIDを返す。client側の決済フローはこのIDで進む
func (u *OrderUsecase) InitiateOnline(ctx context.Context, userID int64, in CheckoutInput) (InitiateOnlineOutput, error) {
	snapshots, err := u.validateCheckout(ctx, userID, in)
	if err != nil {
		return InitiateOnlineOutput{}, err
	}

	//内部参照としてreceiptを添える
	receipt := uuid.NewString()
	gatewayOrderID, err := u.gateway.CreateOrder(ctx, in.TotalAmount, receipt)
	if err != nil {
		u.log.WithError(err).Warn("gateway order create failed")
		return InitiateOnlineOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}

	itemsJSON, err := json.Marshal(snapshots)
	if err != nil {
		return InitiateOnlineOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	now := u.clock.Now()
	if err := u.tempOrders.Create(ctx, model.TempOrder{
		GatewayOrderID: gatewayOrderID,
		UserID:         userID,
		AddressID:      in.AddressID,
		TotalAmount:    in.TotalAmount,
		ItemsJSON:      itemsJSON,
		CreatedAt:      now,
		ExpiresAt:      now.Add(u.tempTTL),
	}); err != nil {
		return InitiateOnlineOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return InitiateOnlineOutput{GatewayOrderID: gatewayOrderID, Amount: in.TotalAmount}, nil
}

// FinalizeOnline は決済callbackを検証して注文を確定する。
// TempOrderの消費は原子的な取得＋削除なので、同じcallbackが
// 同時に2回届いても作られるOrderは1件だけ
func (u *OrderUsecase) FinalizeOnline(ctx context.Context, in FinalizeOnlineInput) (OrderOutput, error) {
	if in.GatewayOrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "missing payment fields")
	}

	//署名が違えば一切の変更なしで弾く
	if !u.verifier.Verify(in.GatewayOrderID, in.PaymentID, in.Signature) {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "signature mismatch")
	}

	now := u.clock.Now()
	temp, found, err := u.tempOrders.Consume(ctx, in.GatewayOrderID, now)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !found {
		//すでに処理済みか期限切れ。リトライしても意味がない
		return OrderOutput{}, NewHTTPError(http.StatusConflict, "payment already processed or session expired")
	}

	var snapshots []model.TempOrderItem
	if err := json.Unmarshal(temp.ItemsJSON, &snapshots); err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	order := u.buildOrder(temp.UserID, temp.AddressID, temp.TotalAmount, snapshots, now)
	order.PaymentMethod = model.PaymentMethodOnline
	order.PaymentStatus = model.PaymentStatusPaid
	order.PaymentIntentID = in.PaymentID

	//ここの失敗だけは致命的（購入が完了していない）
	if err := u.orders.Create(ctx, &order); err != nil {
		u.log.WithError(err).WithField("gateway_order_id", in.GatewayOrderID).
			Error("order create failed after payment")
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "order could not be saved")
	}

	u.afterCommit(ctx, order)
	return toOrderOutput(order), nil
}

// CreateCOD は代金引換の注文を直接確定する
func (u *OrderUsecase) CreateCOD(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	snapshots, err := u.validateCheckout(ctx, userID, in)
	if err != nil {
		return OrderOutput{}, err
	}

	now := u.clock.Now()
	order := u.buildOrder(userID, in.AddressID, in.TotalAmount, snapshots, now)
	order.PaymentMethod = model.PaymentMethodCOD
	order.PaymentStatus = model.PaymentStatusPending

	if err := u.orders.Create(ctx, &order); err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.afterCommit(ctx, order)
	return toOrderOutput(order), nil
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return OrderListOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	//他人の注文は「存在しない扱い」にする
	if o.UserID != userID {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	return toOrderOutput(o), nil
}

// 入力チェック＋住所の所有チェック＋商品スナップショット
func (u *OrderUsecase) validateCheckout(ctx context.Context, userID int64, in CheckoutInput) ([]model.TempOrderItem, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "items required")
	}
	if in.TotalAmount <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid total_amount")
	}
	if in.AddressID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}

	//住所の存在＋所有チェック
	addr, err := u.addresses.FindByID(ctx, in.AddressID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, NewHTTPError(http.StatusNotFound, "address not found")
	}
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if addr.UserID != userID {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	snapshots := make([]model.TempOrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		p, err := u.products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid item")
		}
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsActive {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid item")
		}

		snapshots = append(snapshots, model.TempOrderItem{
			ProductID:         p.ID,
			ProductName:       p.Name,
			UnitPriceSnapshot: p.Price,
			Quantity:          it.Quantity,
		})
	}

	return snapshots, nil
}

func (u *OrderUsecase) buildOrder(userID, addressID int64, total float64, snapshots []model.TempOrderItem, now time.Time) model.Order {
	items := make([]model.OrderItem, 0, len(snapshots))
	for _, s := range snapshots {
		items = append(items, model.OrderItem{
			ProductID:           s.ProductID,
			ProductNameSnapshot: s.ProductName,
			UnitPriceSnapshot:   s.UnitPriceSnapshot,
			Quantity:            s.Quantity,
			CreatedAt:           now,
		})
	}

	delivery := now.Add(model.DeliveryEstimateDays * 24 * time.Hour)
	return model.Order{
		UserID:         userID,
		AddressID:      addressID,
		Items:          items,
		TotalAmount:    total,
		ShippingStatus: model.ShippingStatusPending,
		DeliveryDate:   &delivery,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// コミット後の副作用。どれが失敗しても注文は確定したまま
func (u *OrderUsecase) afterCommit(ctx context.Context, order model.Order) {
	u.shipments.Dispatch(ctx, order)

	//メールは待たない
	go u.notifyPlaced(order)
}

func (u *OrderUsecase) notifyPlaced(order model.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := u.users.FindByID(ctx, order.UserID)
	if err != nil || user == nil {
		u.log.WithField("order_id", order.ID).Warn("confirmation mail skipped: user lookup failed")
		return
	}
	addr, err := u.addresses.FindByID(ctx, order.AddressID)
	if err != nil {
		u.log.WithField("order_id", order.ID).Warn("confirmation mail skipped: address lookup failed")
		return
	}

	if err := u.mailer.OrderConfirmation(order, *user, addr); err != nil {
		u.log.WithError(err).WithField("order_id", order.ID).Warn("confirmation mail failed")
	}
}

func toOrderOutput(o model.Order) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:             o.ID,
		UserID:         o.UserID,
		AddressID:      o.AddressID,
		TotalAmount:    o.TotalAmount,
		PaymentMethod:  string(o.PaymentMethod),
		PaymentStatus:  string(o.PaymentStatus),
		ShippingStatus: string(o.ShippingStatus),
		TrackingID:     o.TrackingID,
		TrackingURL:    o.TrackingURL,
		DeliveryDate:   o.DeliveryDate,
		CreatedAt:      o.CreatedAt,
		Items:          outItems,
	}
}

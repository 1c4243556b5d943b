package usecase

import (
	"context"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/shipping"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	list, _ := args.Get(0).([]model.Order)
	total, _ := args.Get(1).(int64)
	return list, total, args.Error(2)
}

func (m *OrderRepoMock) UpdateShipment(ctx context.Context, orderID int64, upd repo.ShipmentUpdate) error {
	args := m.Called(ctx, orderID, upd)
	return args.Error(0)
}

func (m *OrderRepoMock) MarkCancelled(ctx context.Context, orderID int64, refund bool) error {
	args := m.Called(ctx, orderID, refund)
	return args.Error(0)
}

func (m *OrderRepoMock) ListByShippingStatus(ctx context.Context, status model.ShippingStatus, limit int) ([]model.Order, error) {
	args := m.Called(ctx, status, limit)
	list, _ := args.Get(0).([]model.Order)
	return list, args.Error(1)
}

type TempOrderRepoMock struct{ mock.Mock }

func (m *TempOrderRepoMock) Create(ctx context.Context, t model.TempOrder) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TempOrderRepoMock) Consume(ctx context.Context, gatewayOrderID string, now time.Time) (model.TempOrder, bool, error) {
	args := m.Called(ctx, gatewayOrderID, now)
	t, _ := args.Get(0).(model.TempOrder)
	found, _ := args.Get(1).(bool)
	return t, found, args.Error(2)
}

func (m *TempOrderRepoMock) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	args := m.Called(ctx, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Address)
	return list, args.Error(1)
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

// =====================
// 外部サービスのmock
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	args := m.Called(ctx, amount, receipt)
	return args.String(0), args.Error(1)
}

type ShippingClientMock struct{ mock.Mock }

func (m *ShippingClientMock) CreateShipment(ctx context.Context, req shipping.ShipmentRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *ShippingClientMock) AssignCourier(ctx context.Context, shipmentID string) (shipping.Courier, error) {
	args := m.Called(ctx, shipmentID)
	c, _ := args.Get(0).(shipping.Courier)
	return c, args.Error(1)
}

func (m *ShippingClientMock) CancelShipment(ctx context.Context, shipmentID string) error {
	args := m.Called(ctx, shipmentID)
	return args.Error(0)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) OrderConfirmation(order model.Order, user model.User, address model.Address) error {
	args := m.Called(order, user, address)
	return args.Error(0)
}

func (m *MailerMock) OrderCancelled(order model.Order, user model.User) error {
	args := m.Called(order, user)
	return args.Error(0)
}

// =====================
// テスト用の固定時計
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

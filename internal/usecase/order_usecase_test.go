package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/shipping"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const testSecret = "test_secret"

// テスト一式で使う部品をまとめて作る
type orderTestDeps struct {
	orders     *OrderRepoMock
	tempOrders *TempOrderRepoMock
	addresses  *AddressRepoMock
	users      *UserRepoMock
	products   *ProductRepoMock
	gateway    *GatewayMock
	shipClient *ShippingClientMock
	mailer     *MailerMock
	clock      fixedClock
}

func newOrderUsecaseForTest(t *testing.T) (*OrderUsecase, *orderTestDeps) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d := &orderTestDeps{
		orders:     &OrderRepoMock{},
		tempOrders: &TempOrderRepoMock{},
		addresses:  &AddressRepoMock{},
		users:      &UserRepoMock{},
		products:   &ProductRepoMock{},
		gateway:    &GatewayMock{},
		shipClient: &ShippingClientMock{},
		mailer:     &MailerMock{},
		clock:      fixedClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}

	co := NewShipmentCoordinator(d.shipClient, d.orders, d.addresses, "Primary", d.clock, logger)
	co.attempts = 2
	co.backoff = time.Millisecond

	uc := NewOrderUsecase(
		d.orders, d.tempOrders, d.addresses, d.products, d.users,
		d.gateway, NewPaymentVerifier(testSecret), co, d.mailer,
		24*time.Hour, d.clock, logger,
	)

	//通知はfire-and-forgetなので常に許容しておく
	d.users.On("FindByID", mock.Anything, mock.Anything).Return(&model.User{ID: 7, Name: "Asha", Email: "asha@example.com"}, nil).Maybe()
	d.mailer.On("OrderConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	d.mailer.On("OrderCancelled", mock.Anything, mock.Anything).Return(nil).Maybe()

	return uc, d
}

func validSignature(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func testAddress() model.Address {
	return model.Address{
		ID: 3, UserID: 7, Name: "Asha", Phone: "9999999999",
		Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", PostalCode: "560001",
	}
}

func codInput() CheckoutInput {
	return CheckoutInput{
		Items: []CheckoutItemInput{
			{ProductID: 11, Quantity: 1},
			{ProductID: 12, Quantity: 1},
		},
		TotalAmount: 199.98,
		AddressID:   3,
	}
}

func setupProducts(d *orderTestDeps) {
	d.products.On("FindByID", mock.Anything, int64(11)).Return(model.Product{ID: 11, Name: "Silver Anklet", Price: 99.99, IsActive: true}, nil)
	d.products.On("FindByID", mock.Anything, int64(12)).Return(model.Product{ID: 12, Name: "Gold Pendant", Price: 99.99, IsActive: true}, nil)
}

func TestCreateCOD_Success(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)
	setupProducts(d)
	d.orders.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		o := args.Get(1).(*model.Order)
		o.ID = 100
	}).Return(nil)
	d.shipClient.On("CreateShipment", mock.Anything, mock.Anything).Return("555", nil)
	d.shipClient.On("AssignCourier", mock.Anything, "555").Return(shipping.Courier{TrackingID: "AWB1", TrackingURL: "https://x/t/AWB1"}, nil)
	d.orders.On("UpdateShipment", mock.Anything, int64(100), mock.Anything).Return(nil)

	out, err := uc.CreateCOD(context.Background(), 7, codInput())

	assert.NoError(t, err)
	assert.Equal(t, string(model.PaymentMethodCOD), out.PaymentMethod)
	assert.Equal(t, string(model.PaymentStatusPending), out.PaymentStatus)
	assert.InDelta(t, 199.98, out.TotalAmount, 0.001)
	assert.Len(t, out.Items, 2)
	//到着見込みは+5日
	assert.Equal(t, d.clock.t.Add(5*24*time.Hour), *out.DeliveryDate)

	//courier割当まで成功したのでSHIPPEDで記録される
	d.orders.AssertCalled(t, "UpdateShipment", mock.Anything, int64(100), mock.MatchedBy(func(u repo.ShipmentUpdate) bool {
		return u.Status == model.ShippingStatusShipped && u.TrackingID == "AWB1" && u.ShipmentID == "555"
	}))
}

func TestCreateCOD_ValidationErrors(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)

	cases := []struct {
		name   string
		in     CheckoutInput
		status int
	}{
		{"empty items", CheckoutInput{TotalAmount: 10, AddressID: 3}, http.StatusBadRequest},
		{"zero amount", CheckoutInput{Items: []CheckoutItemInput{{ProductID: 11, Quantity: 1}}, AddressID: 3}, http.StatusBadRequest},
		{"missing address", CheckoutInput{Items: []CheckoutItemInput{{ProductID: 11, Quantity: 1}}, TotalAmount: 10}, http.StatusBadRequest},
		{"zero quantity", CheckoutInput{Items: []CheckoutItemInput{{ProductID: 11, Quantity: 0}}, TotalAmount: 10, AddressID: 3}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.CreateCOD(context.Background(), 7, tc.in)
			he, ok := AsHTTPError(err)
			assert.True(t, ok)
			assert.Equal(t, tc.status, he.Status)
		})
	}

	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateCOD_AddressNotFound(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(model.Address{}, repo.ErrNotFound)

	_, err := uc.CreateCOD(context.Background(), 7, codInput())

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

func TestCreateCOD_ForeignAddress(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	addr := testAddress()
	addr.UserID = 99
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(addr, nil)

	_, err := uc.CreateCOD(context.Background(), 7, codInput())

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusForbidden, he.Status)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiateOnline_Success(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)
	setupProducts(d)
	d.gateway.On("CreateOrder", mock.Anything, 199.98, mock.Anything).Return("order_abc", nil)

	var saved model.TempOrder
	d.tempOrders.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(model.TempOrder)
	}).Return(nil)

	out, err := uc.InitiateOnline(context.Background(), 7, codInput())

	assert.NoError(t, err)
	assert.Equal(t, "order_abc", out.GatewayOrderID)
	assert.Equal(t, "order_abc", saved.GatewayOrderID)
	assert.Equal(t, int64(7), saved.UserID)
	//TTLはnow+24h
	assert.Equal(t, d.clock.t.Add(24*time.Hour), saved.ExpiresAt)

	var items []model.TempOrderItem
	assert.NoError(t, json.Unmarshal(saved.ItemsJSON, &items))
	assert.Len(t, items, 2)
	assert.Equal(t, "Silver Anklet", items[0].ProductName)
}

func TestInitiateOnline_GatewayDown(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)
	setupProducts(d)
	d.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	_, err := uc.InitiateOnline(context.Background(), 7, codInput())

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusBadGateway, he.Status)
	d.tempOrders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func tempOrderFixture(t *testing.T) model.TempOrder {
	t.Helper()
	itemsJSON, err := json.Marshal([]model.TempOrderItem{
		{ProductID: 11, ProductName: "Silver Anklet", UnitPriceSnapshot: 99.99, Quantity: 2},
	})
	assert.NoError(t, err)
	return model.TempOrder{
		GatewayOrderID: "order_abc",
		UserID:         7,
		AddressID:      3,
		TotalAmount:    199.98,
		ItemsJSON:      itemsJSON,
	}
}

func TestFinalizeOnline_Success(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	d.tempOrders.On("Consume", mock.Anything, "order_abc", d.clock.t).Return(tempOrderFixture(t), true, nil)

	var created model.Order
	d.orders.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		o := args.Get(1).(*model.Order)
		o.ID = 200
		created = *o
	}).Return(nil)

	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)
	d.shipClient.On("CreateShipment", mock.Anything, mock.Anything).Return("556", nil)
	d.shipClient.On("AssignCourier", mock.Anything, "556").Return(shipping.Courier{TrackingID: "AWB2", TrackingURL: "https://x/t/AWB2"}, nil)
	d.orders.On("UpdateShipment", mock.Anything, int64(200), mock.Anything).Return(nil)

	out, err := uc.FinalizeOnline(context.Background(), FinalizeOnlineInput{
		GatewayOrderID: "order_abc",
		PaymentID:      "pay_123",
		Signature:      validSignature("order_abc", "pay_123"),
	})

	assert.NoError(t, err)
	assert.Equal(t, string(model.PaymentMethodOnline), out.PaymentMethod)
	assert.Equal(t, string(model.PaymentStatusPaid), out.PaymentStatus)
	assert.Equal(t, model.PaymentStatusPaid, created.PaymentStatus)
	//PAIDになる時点でpaymentIntentIdが入っている
	assert.Equal(t, "pay_123", created.PaymentIntentID)
	assert.Len(t, created.Items, 1)
	assert.Equal(t, int64(2), created.Items[0].Quantity)
}

func TestFinalizeOnline_SignatureMismatch(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	_, err := uc.FinalizeOnline(context.Background(), FinalizeOnlineInput{
		GatewayOrderID: "order_abc",
		PaymentID:      "pay_123",
		Signature:      "tampered",
	})

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, "signature mismatch", he.Message)

	//拒否時は一切の変更がない（TempOrderは消費されずに残る）
	d.tempOrders.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFinalizeOnline_AlreadyFinalized(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	d.tempOrders.On("Consume", mock.Anything, "order_abc", mock.Anything).Return(model.TempOrder{}, false, nil)

	_, err := uc.FinalizeOnline(context.Background(), FinalizeOnlineInput{
		GatewayOrderID: "order_abc",
		PaymentID:      "pay_123",
		Signature:      validSignature("order_abc", "pay_123"),
	})

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusConflict, he.Status)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 同じ確定リクエストがN本同時に届いても作られるOrderは1件だけ
func TestFinalizeOnline_ConcurrentDuplicates(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	//勝者は1人だけ。残りは found=false を見る
	d.tempOrders.On("Consume", mock.Anything, "order_abc", mock.Anything).Return(tempOrderFixture(t), true, nil).Once()
	d.tempOrders.On("Consume", mock.Anything, "order_abc", mock.Anything).Return(model.TempOrder{}, false, nil)

	d.orders.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Order).ID = 201
	}).Return(nil)
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)
	d.shipClient.On("CreateShipment", mock.Anything, mock.Anything).Return("557", nil)
	d.shipClient.On("AssignCourier", mock.Anything, "557").Return(shipping.Courier{TrackingID: "AWB3"}, nil)
	d.orders.On("UpdateShipment", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	in := FinalizeOnlineInput{
		GatewayOrderID: "order_abc",
		PaymentID:      "pay_123",
		Signature:      validSignature("order_abc", "pay_123"),
	}

	const n = 5
	var wg sync.WaitGroup
	successes := make(chan struct{}, n)
	conflicts := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.FinalizeOnline(context.Background(), in)
			if err == nil {
				successes <- struct{}{}
				return
			}
			if he, ok := AsHTTPError(err); ok && he.Status == http.StatusConflict {
				conflicts <- struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, len(successes))
	assert.Equal(t, n-1, len(conflicts))
	d.orders.AssertNumberOfCalls(t, "Create", 1)
}

// 配送作成が落ちても確定済みの注文はPENDINGのまま生きている
func TestFinalizeOnline_ShipmentFailureIsolation(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	d.tempOrders.On("Consume", mock.Anything, "order_abc", mock.Anything).Return(tempOrderFixture(t), true, nil)
	d.orders.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Order).ID = 202
	}).Return(nil)
	d.addresses.On("FindByID", mock.Anything, int64(3)).Return(testAddress(), nil)
	d.shipClient.On("CreateShipment", mock.Anything, mock.Anything).Return("", errors.New("provider down"))

	out, err := uc.FinalizeOnline(context.Background(), FinalizeOnlineInput{
		GatewayOrderID: "order_abc",
		PaymentID:      "pay_123",
		Signature:      validSignature("order_abc", "pay_123"),
	})

	//注文自体は成功で返る
	assert.NoError(t, err)
	assert.Equal(t, string(model.ShippingStatusPending), out.ShippingStatus)
	assert.Equal(t, string(model.PaymentStatusPaid), out.PaymentStatus)

	d.orders.AssertNumberOfCalls(t, "Create", 1)
	d.orders.AssertNotCalled(t, "UpdateShipment", mock.Anything, mock.Anything, mock.Anything)
}

// 注文の書き込み失敗だけは致命的（リクエスト自体が失敗する）
func TestFinalizeOnline_PersistFailureIsFatal(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	d.tempOrders.On("Consume", mock.Anything, "order_abc", mock.Anything).Return(tempOrderFixture(t), true, nil)
	d.orders.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := uc.FinalizeOnline(context.Background(), FinalizeOnlineInput{
		GatewayOrderID: "order_abc",
		PaymentID:      "pay_123",
		Signature:      validSignature("order_abc", "pay_123"),
	})

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	d.shipClient.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything)
}

func TestListMyOrders_Pagination(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	d.orders.On("ListByUserID", mock.Anything, int64(7), 2, 10).
		Return([]model.Order{{ID: 30, UserID: 7}, {ID: 29, UserID: 7}}, int64(25), nil)

	out, err := uc.ListMyOrders(context.Background(), 7, 2, 10)

	assert.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, int64(25), out.Total)
	assert.Equal(t, 2, out.Page)
	assert.Equal(t, 10, out.Limit)
}

// 省略・不正なpage/limitはデフォルトと上限に丸められる
func TestListMyOrders_PaginationDefaults(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)

	d.orders.On("ListByUserID", mock.Anything, int64(7), 1, 20).
		Return([]model.Order{}, int64(0), nil).Once()
	d.orders.On("ListByUserID", mock.Anything, int64(7), 1, 100).
		Return([]model.Order{}, int64(0), nil).Once()

	_, err := uc.ListMyOrders(context.Background(), 7, 0, 0)
	assert.NoError(t, err)
	_, err = uc.ListMyOrders(context.Background(), 7, -3, 500)
	assert.NoError(t, err)

	d.orders.AssertExpectations(t)
}

func TestGetMyOrderDetail_ForeignOrderHidden(t *testing.T) {
	uc, d := newOrderUsecaseForTest(t)
	d.orders.On("FindByID", mock.Anything, int64(55)).Return(model.Order{ID: 55, UserID: 99}, nil)

	_, err := uc.GetMyOrderDetail(context.Background(), 7, 55)

	he, _ := AsHTTPError(err)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

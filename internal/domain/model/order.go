package model

import "time"

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "ONLINE"
)

type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"
	PaymentStatusPaid            PaymentStatus = "PAID"
	PaymentStatusRefundInitiated PaymentStatus = "REFUND_INITIATED"
	PaymentStatusCancelled       PaymentStatus = "CANCELLED"
)

type ShippingStatus string

const (
	ShippingStatusPending    ShippingStatus = "PENDING"
	ShippingStatusProcessing ShippingStatus = "PROCESSING"
	ShippingStatusShipped    ShippingStatus = "SHIPPED"
	ShippingStatusDelivered  ShippingStatus = "DELIVERED"
	ShippingStatusCancelled  ShippingStatus = "CANCELLED"
)

// 確定済みの注文。支払いと配送のステータスは独立したトラックで持つ
type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64       `gorm:"not null;index" json:"user_id"`
	AddressID   int64       `gorm:"not null" json:"address_id"`
	Items       []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	TotalAmount float64     `gorm:"not null" json:"total_amount"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	//ONLINE決済でPAIDになった時点で必須（外部ゲートウェイの取引ID）
	PaymentIntentID string `gorm:"type:varchar(255)" json:"payment_intent_id,omitempty"`

	ShippingStatus ShippingStatus `gorm:"type:varchar(20);not null;index" json:"shipping_status"`
	ShipmentID     string         `gorm:"type:varchar(255)" json:"shipment_id,omitempty"`
	TrackingID     string         `gorm:"type:varchar(255)" json:"tracking_id,omitempty"`
	TrackingURL    string         `gorm:"type:varchar(512)" json:"tracking_url,omitempty"`

	ShippingDate *time.Time `json:"shipping_date,omitempty"`
	//作成時点の到着見込み（+5日）
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`

	//キャンセル可能ウィンドウの基準になるので変更不可
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID      int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64 `gorm:"not null;index" json:"order_id"`

	ProductID int64 `gorm:"not null;index" json:"product_id"`
	//商品名と単価は注文時点のスナップショット
	ProductNameSnapshot string  `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   float64 `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64   `gorm:"not null" json:"quantity"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 注文作成から到着見込みまでの日数
const DeliveryEstimateDays = 5

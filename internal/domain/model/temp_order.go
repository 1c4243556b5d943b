package model

import "time"

// 決済開始から決済確定までの間だけ生きる仮注文。
// 外部ゲートウェイの注文IDが主キー＝冪等キー。
// 確定時に1回だけ消費（取得と同時に削除）される。
type TempOrder struct {
	GatewayOrderID string `gorm:"primaryKey;type:varchar(255)" json:"gateway_order_id"`
	UserID         int64  `gorm:"not null;index" json:"user_id"`
	AddressID      int64  `gorm:"not null" json:"address_id"`

	TotalAmount float64 `gorm:"not null" json:"total_amount"`
	//注文明細のスナップショット（JSON）。確定時にOrderItemへ展開する
	ItemsJSON []byte `gorm:"type:jsonb;not null" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	//放置された決済フローを掃除するための期限
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TempOrder.ItemsJSON の中身
type TempOrderItem struct {
	ProductID         int64   `json:"product_id"`
	ProductName       string  `json:"product_name"`
	UnitPriceSnapshot float64 `json:"unit_price"`
	Quantity          int64   `json:"quantity"`
}

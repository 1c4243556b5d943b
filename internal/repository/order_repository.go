package repository

import (
	"context"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
)

// 確定注文の永続化。Itemsは注文と同時に保存する
type OrderRepository interface {
	//Itemsも含めて1トランザクションで作成する。IDは埋めて返す
	Create(ctx context.Context, order *model.Order) error

	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	//配送側の結果を注文に反映する。
	//SHIPPED/DELIVEREDまで進んだ注文には適用されない（遷移表を守る）
	UpdateShipment(ctx context.Context, orderID int64, upd ShipmentUpdate) error

	//キャンセル確定。配送をCANCELLEDにし、refundならREFUND_INITIATEDを立てる
	MarkCancelled(ctx context.Context, orderID int64, refund bool) error

	//配送が途中で止まっている注文（リトライ対象）を古い順に返す
	ListByShippingStatus(ctx context.Context, status model.ShippingStatus, limit int) ([]model.Order, error)
}

// UpdateShipmentで書き換えるフィールドのまとまり
type ShipmentUpdate struct {
	ShipmentID   string
	TrackingID   string
	TrackingURL  string
	Status       model.ShippingStatus
	ShippingDate *time.Time
}

package repository

import (
	"context"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
)

// 仮注文（決済開始〜確定の橋渡し）の永続化
type TempOrderRepository interface {
	Create(ctx context.Context, t model.TempOrder) error

	//取得と削除を単一の原子的操作で行う。
	//同じキーで同時に呼ばれても勝者は1つだけで、敗者は found=false を見る。
	//期限切れの行は消費できない（掃除はDeleteExpiredに任せる）
	Consume(ctx context.Context, gatewayOrderID string, now time.Time) (model.TempOrder, bool, error)

	//期限切れの仮注文を削除し、消した件数を返す
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

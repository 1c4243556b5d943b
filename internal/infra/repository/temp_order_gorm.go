package repository

import (
	"context"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TempOrderGormRepository struct {
	db *gorm.DB
}

func NewTempOrderGormRepository(db *gorm.DB) *TempOrderGormRepository {
	return &TempOrderGormRepository{db: db}
}

func (r *TempOrderGormRepository) Create(ctx context.Context, t model.TempOrder) error {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return errors.Wrap(err, "create temp order")
	}
	return nil
}

// DELETE ... RETURNING で取得と削除を1文にする。
// 同じキーの同時確定は片方だけが行を受け取り、もう片方は found=false になる
func (r *TempOrderGormRepository) Consume(ctx context.Context, gatewayOrderID string, now time.Time) (model.TempOrder, bool, error) {
	var t model.TempOrder
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("gateway_order_id = ? AND expires_at > ?", gatewayOrderID, now).
		Delete(&t)
	if res.Error != nil {
		return model.TempOrder{}, false, errors.Wrap(res.Error, "consume temp order")
	}
	if res.RowsAffected == 0 {
		return model.TempOrder{}, false, nil
	}
	return t, true, nil
}

func (r *TempOrderGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.TempOrder{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "delete expired temp orders")
	}
	return res.RowsAffected, nil
}

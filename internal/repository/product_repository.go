package repository

import (
	"context"
	"errors"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品の取得だけを約束。checkoutは名前と単価のスナップショットに使う
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}

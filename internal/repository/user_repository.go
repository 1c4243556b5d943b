package repository

import (
	"context"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
)

// ユーザーの保存・取得
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	//見つからなければ (nil, nil)
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

package repository

import (
	"context"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
func NewUserGormRepository(db *gorm.DB) repo.UserRepository {
	return &userGormRepository{db: db}
}

func (r *userGormRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(err, "create user")
	}
	return nil
}

// 見つからなければ (nil, nil)
func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user by email")
	}
	return &u, nil
}

func (r *userGormRepository) Update(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"name":          user.Name,
			"is_active":     user.IsActive,
			"role":          user.Role,
			"last_login_at": user.LastLoginAt,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update user")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

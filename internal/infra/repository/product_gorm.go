package repository

import (
	"context"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type productGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) repo.ProductRepository {
	return &productGormRepository{db: db}
}

func (r *productGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, errors.Wrap(err, "find product")
	}
	return p, nil
}

package repository

import (
	"context"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// Itemsはgormのassociation createで同一トランザクションに入る
func (r *OrderGormRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "find order")
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, errors.Wrap(err, "count orders")
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, errors.Wrap(err, "list orders")
	}

	return items, total, nil
}

// SHIPPED/DELIVERED/CANCELLEDまで進んだ注文は書き換えない（WHEREで遷移表を守る）
func (r *OrderGormRepository) UpdateShipment(ctx context.Context, orderID int64, upd repo.ShipmentUpdate) error {
	updates := map[string]interface{}{
		"shipment_id":     upd.ShipmentID,
		"shipping_status": upd.Status,
	}
	if upd.TrackingID != "" {
		updates["tracking_id"] = upd.TrackingID
	}
	if upd.TrackingURL != "" {
		updates["tracking_url"] = upd.TrackingURL
	}
	if upd.ShippingDate != nil {
		updates["shipping_date"] = upd.ShippingDate
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND shipping_status IN ?", orderID,
			[]model.ShippingStatus{model.ShippingStatusPending, model.ShippingStatusProcessing}).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update shipment")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) MarkCancelled(ctx context.Context, orderID int64, refund bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND shipping_status IN ?", orderID,
				[]model.ShippingStatus{model.ShippingStatusPending, model.ShippingStatusProcessing}).
			Update("shipping_status", model.ShippingStatusCancelled)
		if res.Error != nil {
			return errors.Wrap(res.Error, "cancel shipping status")
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}

		if refund {
			if err := tx.Model(&model.Order{}).
				Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPaid).
				Update("payment_status", model.PaymentStatusRefundInitiated).Error; err != nil {
				return errors.Wrap(err, "initiate refund")
			}
		}
		return nil
	})
}

func (r *OrderGormRepository) ListByShippingStatus(ctx context.Context, status model.ShippingStatus, limit int) ([]model.Order, error) {
	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("shipping_status = ?", status).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, errors.Wrap(err, "list by shipping status")
	}
	return items, nil
}

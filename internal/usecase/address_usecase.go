package usecase

import (
	"context"
	"net/http"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"
)

// 配送先住所の登録と一覧。checkoutが参照するIDはここで作られる
type AddressUsecase struct {
	addresses repo.AddressRepository
	clock     Clock
}

func NewAddressUsecase(addresses repo.AddressRepository, clock Clock) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, clock: clock}
}

type CreateAddressInput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in CreateAddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Name == "" || in.Phone == "" || in.Line1 == "" || in.City == "" || in.State == "" || in.PostalCode == "" {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, "missing address fields")
	}

	now := u.clock.Now()
	addr, err := u.addresses.Create(ctx, model.Address{
		UserID:     userID,
		Name:       in.Name,
		Phone:      in.Phone,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		IsDefault:  in.IsDefault,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return addr, nil
}

func (u *AddressUsecase) ListMine(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return list, nil
}

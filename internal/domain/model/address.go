package model

import "time"

// 配送先住所。注文確定時に配送リクエストへスナップショットされる
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//宛名
	Name string `gorm:"type:varchar(255);not null" json:"name"`
	//電話番号（配送業者の必須項目）
	Phone string `gorm:"type:varchar(30);not null" json:"phone"`

	Line1      string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	City       string `gorm:"type:varchar(255);not null" json:"city"`
	State      string `gorm:"type:varchar(100);not null" json:"state"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

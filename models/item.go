package models

import "time"

type Item struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string     `gorm:"size:200;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Location    string     `gorm:"size:200" json:"location"`
	Category    string     `gorm:"size:120;index" json:"category"`
	Quantity    int        `gorm:"not null;check:quantity >= 0" json:"quantity"`
	Barcode     *string    `gorm:"size:120;uniqueIndex" json:"barcode"`
	Status      ItemStatus `gorm:"size:20;not null;default:available" json:"status"`
	Notes       string     `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string {
	return "lager_items"
}

// Lendable reports whether a new loan may be opened against the item right now.
func (i *Item) Lendable() bool {
	return i.Status.Lendable() && i.Quantity > 0
}

package models

import "time"

// Flag is an inbox entry for administrators.
type Flag struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	FlagType        FlagType   `gorm:"size:40;not null;index" json:"flag_type"`
	ItemID          *string    `gorm:"type:uuid;index" json:"item_id"`
	UserID          *string    `gorm:"type:uuid;index" json:"user_id"`
	LoanID          *string    `gorm:"type:uuid;index" json:"loan_id"`
	CreatedBy       *string    `gorm:"type:uuid" json:"created_by"`
	Message         string     `gorm:"type:text" json:"message"`
	Status          FlagStatus `gorm:"size:20;not null;default:under_review;index" json:"status"`
	ResolutionNotes string     `gorm:"type:text" json:"resolution_notes"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}

func (Flag) TableName() string {
	return "lager_flags"
}

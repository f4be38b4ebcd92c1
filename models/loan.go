package models

import "time"

type Loan struct {
	ID             string          `gorm:"primaryKey;type:uuid" json:"id"`
	ItemID         string          `gorm:"type:uuid;not null;index" json:"item_id"`
	UserID         *string         `gorm:"type:uuid;index" json:"user_id"`
	LoanDate       time.Time       `gorm:"not null;index" json:"loan_date"`
	DueDate        Date            `gorm:"type:date;not null;index" json:"due_date"`
	ReturnDate     *time.Time      `gorm:"index" json:"return_date"`
	ReturnedBy     *string         `gorm:"type:uuid" json:"returned_by,omitempty"`
	DeliveryStatus *DeliveryStatus `gorm:"size:20" json:"delivery_status"`
	DeliveryNotes  string          `gorm:"type:text" json:"delivery_notes"`
	Report         string          `gorm:"type:text" json:"report"`
	ReturnMessage  string          `gorm:"type:text" json:"return_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status  LoanStatus `gorm:"-" json:"status"`
	Overdue bool       `gorm:"-" json:"overdue"`
}

func (Loan) TableName() string {
	return "lager_loans"
}

func (l *Loan) Active() bool {
	return l.ReturnDate == nil
}

// Derive fills the read-time fields. A loan is overdue while active and due before today.
func (l *Loan) Derive(today Date) {
	if l.Active() {
		l.Status = LoanActive
		l.Overdue = l.DueDate.IsBefore(today)
		return
	}
	l.Status = LoanReturned
	l.Overdue = false
}

// OwnedBy reports whether the loan belongs to the given user.
func (l *Loan) OwnedBy(userID string) bool {
	return l.UserID != nil && *l.UserID == userID
}

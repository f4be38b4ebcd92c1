package models

import "fmt"

// Role is the account role. Admin sessions are only granted to roles that can administer.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

var validRoles = []Role{RoleUser, RoleStaff, RoleAdmin}

func (r Role) IsValid() bool {
	for _, c := range validRoles {
		if c == r {
			return true
		}
	}
	return false
}

// CanAdminister reports whether the role may open an admin session.
func (r Role) CanAdminister() bool {
	switch r {
	case RoleAdmin, RoleStaff:
		return true
	case RoleUser:
		return false
	}
	return false
}

func ParseRole(value string) (Role, error) {
	for _, c := range validRoles {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

type ItemStatus string

const (
	ItemAvailable   ItemStatus = "available"
	ItemMaintenance ItemStatus = "maintenance"
	ItemRetired     ItemStatus = "retired"
)

var validItemStatuses = []ItemStatus{ItemAvailable, ItemMaintenance, ItemRetired}

func (s ItemStatus) IsValid() bool {
	for _, c := range validItemStatuses {
		if c == s {
			return true
		}
	}
	return false
}

// Lendable reports whether new loans may be opened against an item in this status.
func (s ItemStatus) Lendable() bool { return s == ItemAvailable }

func ParseItemStatus(value string) (ItemStatus, error) {
	for _, c := range validItemStatuses {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}

// LoanStatus is derived from return_date, never stored.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

type DeliveryStatus string

const (
	DeliveryNotDelivered DeliveryStatus = "not_delivered"
	DeliveryInDelivery   DeliveryStatus = "in_delivery"
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryCancelled    DeliveryStatus = "cancelled"
)

var validDeliveryStatuses = []DeliveryStatus{DeliveryNotDelivered, DeliveryInDelivery, DeliveryDelivered, DeliveryCancelled}

func (s DeliveryStatus) IsValid() bool {
	_, err := ParseDeliveryStatus(string(s))
	return err == nil
}

func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, c := range validDeliveryStatuses {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

type FlagType string

const (
	FlagGeneral        FlagType = "general"
	FlagDefect         FlagType = "defect"
	FlagMissingBarcode FlagType = "missing_barcode"
	FlagOverdue        FlagType = "overdue"
	FlagManualLoan     FlagType = "manual_loan"
	FlagReturnMessage  FlagType = "return_message"
)

var validFlagTypes = []FlagType{FlagGeneral, FlagDefect, FlagMissingBarcode, FlagOverdue, FlagManualLoan, FlagReturnMessage}

func (t FlagType) IsValid() bool {
	for _, c := range validFlagTypes {
		if c == t {
			return true
		}
	}
	return false
}

func ParseFlagType(value string) (FlagType, error) {
	if value == "" {
		return FlagGeneral, nil
	}
	for _, c := range validFlagTypes {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid flag type %q", value)
}

type FlagStatus string

const (
	FlagUnderReview FlagStatus = "under_review"
	FlagDone        FlagStatus = "done"
	FlagRejected    FlagStatus = "rejected"
)

func ParseFlagStatus(value string) (FlagStatus, error) {
	switch FlagStatus(value) {
	case FlagUnderReview, FlagDone, FlagRejected:
		return FlagStatus(value), nil
	}
	return "", fmt.Errorf("invalid flag status %q", value)
}

// Terminal reports whether the status ends the flag's lifecycle.
func (s FlagStatus) Terminal() bool {
	switch s {
	case FlagDone, FlagRejected:
		return true
	case FlagUnderReview:
		return false
	}
	return false
}

// CanTransition reports whether a flag may move from s to next.
// Only flags under review can be closed, and only into a terminal status.
func (s FlagStatus) CanTransition(next FlagStatus) bool {
	switch s {
	case FlagUnderReview:
		return next.Terminal()
	case FlagDone, FlagRejected:
		return false
	}
	return false
}

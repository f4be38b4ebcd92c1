package models

import "time"

// Credential is one registered admin passkey. CredentialID, PublicKey and AAGUID are raw bytes.
type Credential struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UserID          string `gorm:"type:uuid;index;not null" json:"user_id"`
	CredentialID    []byte `gorm:"uniqueIndex;not null" json:"-"`
	PublicKey       []byte `json:"-"`
	AttestationType string `gorm:"size:64" json:"attestation_type"`
	AAGUID          []byte `json:"-"`
	SignCount       uint32 `json:"sign_count"`
	CloneWarning    bool   `json:"clone_warning"`
	BackupEligible  bool   `json:"backup_eligible"`
	BackupState     bool   `json:"backup_state"`
	Transports      string `gorm:"type:text" json:"transports"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `gorm:"index" json:"last_used_at,omitempty"`
}

func (Credential) TableName() string {
	return "lager_credentials"
}

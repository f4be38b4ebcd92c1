package db

import (
	"context"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"
)

// Admin passkeys

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return apperr.FromDB(r.DB.WithContext(ctx).Create(c).Error, "")
}

func (r *Repo) LoadUserCredentials(ctx context.Context, userID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&cs).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return cs, nil
}

func (r *Repo) CountCredentials(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, apperr.FromDB(err, "")
}

func (r *Repo) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, apperr.FromDB(err, "passkey not registered")
	}
	u, err := r.FindUserByID(ctx, c.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, &c, nil
}

// RecordCredentialUse stores the authenticator's new sign counter after a login.
func (r *Repo) RecordCredentialUse(ctx context.Context, credID []byte, signCount uint32, cloneWarning, backupState bool) error {
	return apperr.FromDB(r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    signCount,
			"clone_warning": cloneWarning,
			"backup_state":  backupState,
			"last_used_at":  r.now(),
		}).Error, "")
}

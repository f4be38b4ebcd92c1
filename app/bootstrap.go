package app

import (
	"context"
	"fmt"

	"lager_lending_tool/apperr"
	"lager_lending_tool/config"
	"lager_lending_tool/db"
	"lager_lending_tool/logger"
	"lager_lending_tool/models"
	"lager_lending_tool/security"
)

const defaultAdminPassword = "1234"

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
// An existing account is left untouched.
func EnsureAdmin(ctx context.Context, cfg config.AdminConfig, repo *db.Repo, log *logger.Logger) error {
	if cfg.BootstrapUsername == "" {
		return nil
	}
	_, err := repo.FindUserByUsername(ctx, cfg.BootstrapUsername)
	if err == nil {
		return nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	password := cfg.BootstrapPassword
	if password == "" {
		password = defaultAdminPassword
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}

	username := cfg.BootstrapUsername
	u := &models.User{
		Name:         "System Admin",
		Role:         models.RoleAdmin,
		Username:     &username,
		PasswordHash: hash,
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	logCtx := log.WithFields(ctx, map[string]any{"username": username, "user_id": u.ID})
	if cfg.BootstrapPassword == "" {
		log.Warn(logCtx, "default admin created with the built-in password; change it")
	} else {
		log.Info(logCtx, "default admin created")
	}
	return nil
}

package controllers

import (
	"errors"
	"net/http"
	"strings"

	"lager_lending_tool/app"
	"lager_lending_tool/apperr"
	"lager_lending_tool/models"
	"lager_lending_tool/security"
	"lager_lending_tool/session"

	"github.com/gin-gonic/gin"
)

type adminLoginReq struct {
	Username string `json:"username" binding:"required,max=255"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin opens an admin session for admin or staff accounts.
func (s *Srv) AdminLogin(c *gin.Context) {
	var in adminLoginReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := s.Repo.FindUserByUsername(ctx, in.Username)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			err = apperr.Unauthenticated("invalid credentials")
		}
		app.Fail(c, err)
		return
	}
	if !security.VerifyPassword(in.Password, u.PasswordHash) {
		if u.HasPassword() && security.IsMalformedHash(u.PasswordHash) {
			s.Log.Warn(s.Log.WithUserID(ctx, u.ID), "stored password hash is malformed")
		}
		app.Fail(c, apperr.Unauthenticated("invalid credentials"))
		return
	}
	if !u.Role.CanAdminister() {
		app.Fail(c, apperr.Forbidden("user does not have admin privileges"))
		return
	}

	if err := s.startSession(c, session.KindAdmin, u); err != nil {
		app.Fail(c, apperr.Internal(err, "create session failed"))
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "ok", "user": u})
}

type userLoginReq struct {
	Name      string `json:"name" binding:"max=255"`
	UserID    string `json:"user_id"`
	Password  string `json:"password"`
	ClassYear string `json:"class_year" binding:"max=40"`
}

// UserLogin opens a borrower session. Picking an existing user checks its password;
// an unknown name registers a new user, which needs a password and a class.
func (s *Srv) UserLogin(c *gin.Context) {
	var in userLoginReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.UserID = strings.TrimSpace(in.UserID)
	in.ClassYear = strings.TrimSpace(in.ClassYear)
	if in.Name == "" && in.UserID == "" {
		app.Fail(c, apperr.Validation("name or user_id required"))
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		u   *models.User
		err error
	)
	if in.UserID != "" {
		u, err = s.Repo.FindUserByID(ctx, in.UserID)
		if err == nil && u.HasPassword() && !security.VerifyPassword(in.Password, u.PasswordHash) {
			err = apperr.Unauthenticated("wrong password")
		}
	} else {
		u, err = s.Repo.FindUserByName(ctx, in.Name)
		switch {
		case apperr.IsKind(err, apperr.KindNotFound):
			u, err = s.registerUser(c, in)
		case err != nil:
		case u.HasPassword():
			if !security.VerifyPassword(in.Password, u.PasswordHash) {
				err = apperr.Unauthenticated("wrong password")
			}
		default:
			err = s.claimUser(c, u, in)
		}
	}
	if err != nil {
		app.Fail(c, err)
		return
	}

	if err := s.startSession(c, session.KindUser, u); err != nil {
		app.Fail(c, apperr.Internal(err, "create session failed"))
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "ok", "user": u.Public()})
}

func credentialsFor(in userLoginReq) (string, error) {
	if in.Password == "" {
		return "", apperr.Validation("password required")
	}
	if in.ClassYear == "" {
		return "", apperr.Validation("class_year required")
	}
	hash, err := security.HashPassword(in.Password)
	if errors.Is(err, security.ErrPasswordTooShort) || errors.Is(err, security.ErrPasswordTooLong) {
		return "", apperr.Validation(err.Error())
	}
	return hash, err
}

func (s *Srv) registerUser(c *gin.Context, in userLoginReq) (*models.User, error) {
	hash, err := credentialsFor(in)
	if err != nil {
		return nil, err
	}
	classYear := in.ClassYear
	u := &models.User{
		Name:         in.Name,
		Role:         models.RoleUser,
		ClassYear:    &classYear,
		PasswordHash: hash,
	}
	if err := s.Repo.CreateUser(c.Request.Context(), u); err != nil {
		return nil, err
	}
	s.Log.Info(s.Log.WithUserID(c.Request.Context(), u.ID), "user registered at login")
	return u, nil
}

// claimUser sets the first password on an account an admin created without one.
func (s *Srv) claimUser(c *gin.Context, u *models.User, in userLoginReq) error {
	hash, err := credentialsFor(in)
	if err != nil {
		return err
	}
	classYear := in.ClassYear
	if err := s.Repo.SetUserCredentials(c.Request.Context(), u.ID, hash, &classYear); err != nil {
		return err
	}
	u.PasswordHash = hash
	u.ClassYear = &classYear
	return nil
}

func (s *Srv) Logout(c *gin.Context) {
	s.endSession(c)
	c.JSON(http.StatusOK, app.H{"message": "Logged out"})
}

func (s *Srv) Me(c *gin.Context) {
	p := app.PrincipalOf(c)
	if !p.Authenticated() {
		c.JSON(http.StatusOK, app.H{"is_admin": false, "is_user": false, "user": nil})
		return
	}
	c.JSON(http.StatusOK, app.H{
		"is_admin": p.IsAdmin(),
		"is_user":  p.IsUser(),
		"user":     p.User.Public(),
	})
}

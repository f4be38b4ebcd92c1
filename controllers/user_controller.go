package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"lager_lending_tool/app"
	"lager_lending_tool/apperr"
	"lager_lending_tool/db"
	"lager_lending_tool/models"
	"lager_lending_tool/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
)

func publicUsers(users []models.User) []models.PublicUser {
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// ListUsers is the public directory.
func (s *Srv) ListUsers(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := s.Repo.ListUsers(ctx, db.UserQuery{})
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, publicUsers(res.Users))
}

type searchUsersReq struct {
	Name string `json:"name"`
}

// SearchUsers backs the login picker.
func (s *Srv) SearchUsers(c *gin.Context) {
	var in searchUsersReq
	if err := app.BindOptional(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := s.Repo.SearchUsersByName(ctx, in.Name)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, publicUsers(users))
}

// GetUser returns the public view of a user and their loan history.
func (s *Srv) GetUser(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := s.Repo.FindUserByID(ctx, c.Param("id"))
	if err != nil {
		app.Fail(c, err)
		return
	}
	loans, err := s.Repo.ListUserLoans(ctx, u.ID, false)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u.Public(), "loans": loans})
}

// GET /admin/users?q=&class_year=&role=&page=&size=
func (s *Srv) AdminListUsers(c *gin.Context) {
	q := db.UserQuery{Q: c.Query("q"), ClassYear: c.Query("class_year")}
	if raw := c.Query("role"); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			app.Fail(c, apperr.Validation(err.Error()))
			return
		}
		q.Role = role
	}
	var err error
	if q.Page, err = queryInt(c, "page", 1); err != nil {
		app.Fail(c, err)
		return
	}
	if q.Size, err = queryInt(c, "size", 0); err != nil {
		app.Fail(c, err)
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := s.Repo.ListUsers(ctx, q)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation(key + " must be a non-negative number")
	}
	return v, nil
}

func (s *Srv) AdminGetUser(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := s.Repo.FindUserByID(ctx, c.Param("id"))
	if err != nil {
		app.Fail(c, err)
		return
	}
	loans, err := s.Repo.ListUserLoans(ctx, u.ID, false)
	if err != nil {
		app.Fail(c, err)
		return
	}
	passkeys, err := s.Repo.CountCredentials(ctx, u.ID)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u, "loans": loans, "passkeys": passkeys})
}

type userReq struct {
	Name      *string `json:"name" binding:"omitempty,max=255"`
	Role      *string `json:"role"`
	ClassYear *string `json:"class_year" binding:"omitempty,max=40"`
	Username  *string `json:"username" binding:"omitempty,max=255"`
	Password  *string `json:"password"`
	Barcode   *string `json:"barcode" binding:"omitempty,barcode"`
	Email     *string `json:"email" binding:"omitempty,max=255"`
	Phone     *string `json:"phone" binding:"omitempty,max=40"`
	Notes     *string `json:"notes"`
}

func (in userReq) role() (*models.Role, error) {
	if in.Role == nil {
		return nil, nil
	}
	r, err := models.ParseRole(*in.Role)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return &r, nil
}

func (s *Srv) AdminCreateUser(c *gin.Context) {
	var in userReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	if trimmed(in.Name) == "" {
		app.Fail(c, apperr.Validation("name required"))
		return
	}
	role, err := in.role()
	if err != nil {
		app.Fail(c, err)
		return
	}

	u := &models.User{
		Name:      *in.Name,
		Role:      models.RoleUser,
		ClassYear: in.ClassYear,
		Username:  in.Username,
		Barcode:   in.Barcode,
	}
	if role != nil {
		u.Role = *role
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Notes != nil {
		u.Notes = *in.Notes
	}
	if pw := trimmed(in.Password); pw != "" {
		hash, herr := security.HashPassword(*in.Password)
		if herr != nil {
			app.Fail(c, apperr.Wrap(apperr.KindValidation, herr, herr.Error()))
			return
		}
		u.PasswordHash = hash
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Srv) AdminUpdateUser(c *gin.Context) {
	var in userReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	role, err := in.role()
	if err != nil {
		app.Fail(c, err)
		return
	}
	id := c.Param("id")
	ctx, cancel := reqCtx(c)
	defer cancel()

	patch := db.UserPatch{
		Name:      in.Name,
		Role:      role,
		ClassYear: in.ClassYear,
		Username:  in.Username,
		Barcode:   in.Barcode,
		Email:     in.Email,
		Phone:     in.Phone,
		Notes:     in.Notes,
	}
	if pw := trimmed(in.Password); pw != "" {
		hash, herr := security.HashPassword(*in.Password)
		if herr != nil {
			app.Fail(c, apperr.Wrap(apperr.KindValidation, herr, herr.Error()))
			return
		}
		patch.PasswordHash = &hash
	}
	// a blank password alone changes nothing
	if patch == (db.UserPatch{}) && in.Password != nil {
		u, err := s.Repo.FindUserByID(ctx, id)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
		return
	}
	u, err := s.Repo.UpdateUser(ctx, id, patch)
	if err != nil {
		app.Fail(c, err)
		return
	}
	if role != nil && !role.CanAdminister() {
		// a demoted admin keeps no admin sessions
		_ = s.Sessions.RevokeAllForSubject(ctx, id)
	}
	c.JSON(http.StatusOK, u)
}

func (s *Srv) AdminDeleteUser(c *gin.Context) {
	id := c.Param("id")
	p := app.PrincipalOf(c)
	if id == p.UserID() {
		app.Fail(c, apperr.Validation("cannot delete yourself"))
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := s.Repo.DeleteUser(ctx, id); err != nil {
		app.Fail(c, err)
		return
	}
	if err := s.Sessions.RevokeAllForSubject(ctx, id); err != nil {
		s.Log.Error(s.Log.WithField(ctx, "deleted_user_id", id), "revoke sessions of deleted user", err)
	}
	c.JSON(http.StatusOK, app.H{"message": "User deleted (loans anonymized)"})
}

type batchDeleteReq struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1"`
}

// AdminBatchDeleteUsers answers 207 when some users could not be deleted.
func (s *Srv) AdminBatchDeleteUsers(c *gin.Context) {
	var in batchDeleteReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res := s.Repo.DeleteUsers(ctx, in.UserIDs, app.PrincipalOf(c).UserID())
	for _, id := range res.Deleted {
		if err := s.Sessions.RevokeAllForSubject(ctx, id); err != nil {
			s.Log.Error(s.Log.WithField(ctx, "deleted_user_id", id), "revoke sessions of deleted user", err)
		}
	}

	if res.Err != nil {
		errs := multierr.Errors(res.Err)
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		c.JSON(http.StatusMultiStatus, app.H{
			"message": fmt.Sprintf("%d users deleted, but some errors occurred.", len(res.Deleted)),
			"deleted": res.Deleted,
			"errors":  msgs,
		})
		return
	}
	c.JSON(http.StatusOK, app.H{
		"message": fmt.Sprintf("%d users deleted successfully.", len(res.Deleted)),
		"deleted": res.Deleted,
	})
}

// Classes

func (s *Srv) ListClasses(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	classes, err := s.Repo.ListClasses(ctx)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (s *Srv) ListClassUsers(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := s.Repo.ListClassUsers(ctx, c.Param("class"))
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Srv) ClearClass(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := s.Repo.ClearClass(ctx, c.Param("class"))
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": fmt.Sprintf("Class cleared for %d users", n), "updated": n})
}

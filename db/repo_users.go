package db

import (
	"context"
	"fmt"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"go.uber.org/multierr"
	"gorm.io/gorm"
)

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return apperr.Validation("name required")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if !u.Role.IsValid() {
		return apperr.Validation(fmt.Sprintf("invalid role %q", u.Role))
	}
	if u.ID == "" {
		u.ID = newID()
	}
	u.Barcode = normCode(u.Barcode)
	u.Username = normCode(u.Username)
	u.ClassYear = normCode(u.ClassYear)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := barcodeTaken(tx, u.Barcode, "", "")
		if err != nil {
			return apperr.FromDB(err, "")
		}
		if taken {
			return apperr.Validation("duplicate barcode")
		}
		return apperr.FromDB(tx.Create(u).Error, "")
	})
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := checkID(id, "user not found"); err != nil {
		return nil, err
	}
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "user not found")
	}
	return &u, nil
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
		return nil, apperr.FromDB(err, "user not found")
	}
	return &u, nil
}

// FindUserByName matches the full name exactly, oldest account first.
func (r *Repo) FindUserByName(ctx context.Context, name string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).
		Where("name = ?", strings.TrimSpace(name)).
		Order("created_at ASC").
		First(&u).Error; err != nil {
		return nil, apperr.FromDB(err, "user not found")
	}
	return &u, nil
}

func (r *Repo) FindUserByBarcode(ctx context.Context, barcode string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("barcode = ?", strings.TrimSpace(barcode)).First(&u).Error; err != nil {
		return nil, apperr.FromDB(err, "user not found")
	}
	return &u, nil
}

// SearchUsersByName is the login picker lookup; a blank query matches nobody.
func (r *Repo) SearchUsersByName(ctx context.Context, name string) ([]models.User, error) {
	if strings.TrimSpace(name) == "" {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.DB.WithContext(ctx).
		Where("LOWER(name) LIKE ?", likePattern(name)).
		Order("name ASC").
		Limit(50).
		Find(&users).Error
	return users, apperr.FromDB(err, "")
}

type UserQuery struct {
	Q         string
	ClassYear string
	Role      models.Role
	Page      int
	// Size 0 lists everything.
	Size int
}

type ListUsersResult struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func (r *Repo) ListUsers(ctx context.Context, q UserQuery) (ListUsersResult, error) {
	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if s := strings.TrimSpace(q.Q); s != "" {
		like := likePattern(s)
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(barcode) LIKE ?", like, like, like)
	}
	if q.ClassYear != "" {
		tx = tx.Where("class_year = ?", q.ClassYear)
	}
	if q.Role != "" {
		tx = tx.Where("role = ?", q.Role)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListUsersResult{}, apperr.FromDB(err, "")
	}

	tx = tx.Order("name ASC")
	if q.Size > 0 {
		if q.Size > 200 {
			q.Size = 200
		}
		if q.Page <= 0 {
			q.Page = 1
		}
		tx = tx.Offset((q.Page - 1) * q.Size).Limit(q.Size)
	}

	users := []models.User{}
	if err := tx.Find(&users).Error; err != nil {
		return ListUsersResult{}, apperr.FromDB(err, "")
	}
	return ListUsersResult{Users: users, Total: total}, nil
}

// UserPatch carries the admin-editable fields; nil means unchanged.
type UserPatch struct {
	Name      *string
	Role      *models.Role
	ClassYear *string
	Username  *string
	Barcode   *string
	Email     *string
	Phone     *string
	Notes     *string
	// PasswordHash is written in the same transaction as the other fields.
	PasswordHash *string
}

func (p UserPatch) updates() (map[string]any, error) {
	out := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		out["name"] = name
	}
	if p.Role != nil {
		if !p.Role.IsValid() {
			return nil, apperr.Validation(fmt.Sprintf("invalid role %q", *p.Role))
		}
		out["role"] = *p.Role
	}
	if p.ClassYear != nil {
		out["class_year"] = normCode(p.ClassYear)
	}
	if p.Username != nil {
		out["username"] = normCode(p.Username)
	}
	if p.Barcode != nil {
		out["barcode"] = normCode(p.Barcode)
	}
	if p.Email != nil {
		out["email"] = strings.TrimSpace(*p.Email)
	}
	if p.Phone != nil {
		out["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	if p.PasswordHash != nil {
		out["password_hash"] = *p.PasswordHash
	}
	if len(out) == 0 {
		return nil, apperr.Validation("no fields to update")
	}
	return out, nil
}

func (r *Repo) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	if err := checkID(id, "user not found"); err != nil {
		return nil, err
	}
	var u models.User
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&u, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "user not found")
		}
		if patch.Barcode != nil {
			taken, err := barcodeTaken(tx, normCode(patch.Barcode), "", id)
			if err != nil {
				return apperr.FromDB(err, "")
			}
			if taken {
				return apperr.Validation("duplicate barcode")
			}
		}
		if err := tx.Model(&u).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		return apperr.FromDB(tx.First(&u, "id = ?", id).Error, "user not found")
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserCredentials stores a password hash, optionally together with the class year.
func (r *Repo) SetUserCredentials(ctx context.Context, id, passwordHash string, classYear *string) error {
	if err := checkID(id, "user not found"); err != nil {
		return err
	}
	updates := map[string]any{"password_hash": passwordHash}
	if cy := normCode(classYear); cy != nil {
		updates["class_year"] = *cy
	}
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID, ip, ua string) error {
	now := r.now()
	if len(ua) > 255 {
		ua = ua[:255]
	}
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_seen_at", r.now()).Error
}

func countActiveLoans(tx *gorm.DB, column, id string) (int64, error) {
	var n int64
	err := tx.Model(&models.Loan{}).
		Where(column+" = ? AND return_date IS NULL", id).
		Count(&n).Error
	return n, err
}

// deleteUserTx anonymises the user's loan history and flags, then removes the account.
// The user row stays locked so a concurrent CreateLoan cannot slip a loan in.
func deleteUserTx(tx *gorm.DB, id string) (int64, error) {
	if err := checkID(id, "user not found"); err != nil {
		return 0, err
	}
	var u models.User
	if err := lockForUpdate(tx).Select("id").First(&u, "id = ?", id).Error; err != nil {
		return 0, apperr.FromDB(err, "user not found")
	}
	active, err := countActiveLoans(tx, "user_id", id)
	if err != nil {
		return 0, apperr.FromDB(err, "")
	}
	if active > 0 {
		return 0, apperr.Conflict("cannot delete user with active loans, return them first")
	}
	res := tx.Model(&models.Loan{}).Where("user_id = ?", id).Update("user_id", nil)
	if res.Error != nil {
		return 0, apperr.FromDB(res.Error, "")
	}
	anonymised := res.RowsAffected
	if err := tx.Model(&models.Flag{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
		return 0, apperr.FromDB(err, "")
	}
	if err := tx.Where("user_id = ?", id).Delete(&models.Credential{}).Error; err != nil {
		return 0, apperr.FromDB(err, "")
	}
	del := tx.Where("id = ?", id).Delete(&models.User{})
	if del.Error != nil {
		return 0, apperr.FromDB(del.Error, "")
	}
	if del.RowsAffected == 0 {
		return 0, apperr.NotFound("user not found")
	}
	return anonymised, nil
}

func (r *Repo) DeleteUser(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := deleteUserTx(tx, id)
		return err
	})
}

type BatchDeleteResult struct {
	Deleted []string
	// Err combines one error per user that could not be deleted.
	Err error
}

// DeleteUsers removes each user in its own transaction so one failure does not block the rest.
func (r *Repo) DeleteUsers(ctx context.Context, ids []string, actorID string) BatchDeleteResult {
	var res BatchDeleteResult
	for _, id := range ids {
		if id == actorID {
			res.Err = multierr.Append(res.Err, fmt.Errorf("user %s: cannot delete yourself", id))
			continue
		}
		if err := r.DeleteUser(ctx, id); err != nil {
			msg := err.Error()
			if ae := apperr.As(err); ae != nil {
				msg = ae.Message()
			}
			res.Err = multierr.Append(res.Err, fmt.Errorf("user %s: %s", id, msg))
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}
	return res
}

// Classes

func (r *Repo) ListClasses(ctx context.Context) ([]string, error) {
	classes := []string{}
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Distinct("class_year").
		Where("class_year IS NOT NULL AND class_year <> ''").
		Order("class_year ASC").
		Pluck("class_year", &classes).Error
	return classes, apperr.FromDB(err, "")
}

func (r *Repo) ListClassUsers(ctx context.Context, classYear string) ([]models.User, error) {
	users := []models.User{}
	err := r.DB.WithContext(ctx).
		Where("class_year = ?", classYear).
		Order("name ASC").
		Find(&users).Error
	return users, apperr.FromDB(err, "")
}

// ClearClass dissolves a class by clearing class_year on its members.
func (r *Repo) ClearClass(ctx context.Context, classYear string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("class_year = ?", classYear).
		Update("class_year", nil)
	return res.RowsAffected, apperr.FromDB(res.Error, "")
}

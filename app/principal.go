package app

import (
	"lager_lending_tool/models"

	"github.com/gin-gonic/gin"
)

// PrincipalKind is who is behind a request: nobody, a borrower or an administrator.
type PrincipalKind int

const (
	Anonymous PrincipalKind = iota
	UserPrincipal
	AdminPrincipal
)

func (k PrincipalKind) String() string {
	switch k {
	case UserPrincipal:
		return "user"
	case AdminPrincipal:
		return "admin"
	}
	return "anonymous"
}

type Principal struct {
	Kind      PrincipalKind
	SessionID string
	User      *models.User
}

func (p Principal) IsAdmin() bool       { return p.Kind == AdminPrincipal }
func (p Principal) IsUser() bool        { return p.Kind == UserPrincipal }
func (p Principal) Authenticated() bool { return p.Kind != Anonymous && p.User != nil }

func (p Principal) UserID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}

// OwnerFilter is the user id a ledger operation must be restricted to.
// Admins act on any loan, so it is empty for them.
func (p Principal) OwnerFilter() string {
	if p.IsAdmin() {
		return ""
	}
	return p.UserID()
}

const principalKey = "principal"

func setPrincipal(c *gin.Context, p Principal) { c.Set(principalKey, p) }

// PrincipalOf returns the principal loaded for this request, Anonymous if none.
func PrincipalOf(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Principal{Kind: Anonymous}
}

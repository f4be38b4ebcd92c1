package app

import (
	"errors"
	"net/http"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/config"
	"lager_lending_tool/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// LoadPrincipal resolves the session cookie once per request. Stale sessions
// (expired, deleted subject, admin demoted) are dropped and the request continues anonymously.
func LoadPrincipal(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		setPrincipal(c, Principal{Kind: Anonymous})

		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		as, err := a.Sessions.Get(ctx, ck.Value)
		if errors.Is(err, session.ErrNotFound) {
			ClearSessionCookie(c, a.Config)
			c.Next()
			return
		}
		if err != nil {
			Fail(c, apperr.Internal(err, "session lookup failed"))
			return
		}

		u, err := a.Repo.FindUserByID(ctx, as.SubjectID)
		if err != nil {
			if !apperr.IsKind(err, apperr.KindNotFound) {
				Fail(c, err)
				return
			}
			_ = a.Sessions.Delete(ctx, ck.Value)
			ClearSessionCookie(c, a.Config)
			c.Next()
			return
		}

		kind := UserPrincipal
		if as.Kind == session.KindAdmin {
			if !u.Role.CanAdminister() {
				a.Log.Warn(a.Log.WithUserID(ctx, u.ID), "admin session dropped after role change")
				_ = a.Sessions.Delete(ctx, ck.Value)
				ClearSessionCookie(c, a.Config)
				c.Next()
				return
			}
			kind = AdminPrincipal
		}

		setPrincipal(c, Principal{Kind: kind, SessionID: ck.Value, User: u})
		ctx = a.Log.WithUserID(ctx, u.ID)
		ctx = a.Log.WithActorRole(ctx, kind.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession admits any logged-in principal.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalOf(c).Authenticated() {
			Fail(c, apperr.Unauthenticated("login required"))
			return
		}
		c.Next()
	}
}

// RequireUser admits borrower sessions only.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalOf(c)
		switch {
		case !p.Authenticated():
			Fail(c, apperr.Unauthenticated("user session required"))
		case !p.IsUser():
			Fail(c, apperr.Forbidden("user session required"))
		default:
			c.Next()
		}
	}
}

// RequireAdmin admits admin sessions only.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalOf(c)
		switch {
		case !p.Authenticated():
			Fail(c, apperr.Unauthenticated("admin authentication required"))
		case !p.IsAdmin():
			Fail(c, apperr.Forbidden("admin session required"))
		default:
			c.Next()
		}
	}
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func SetSessionCookie(c *gin.Context, cfg *config.Config, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: sameSite(cfg.Session.SameSite),
		Secure:   cfg.App.SecureCookies(),
		MaxAge:   int(cfg.Session.TTL.Seconds()),
	})
}

func ClearSessionCookie(c *gin.Context, cfg *config.Config) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: sameSite(cfg.Session.SameSite),
		Secure:   cfg.App.SecureCookies(),
	})
}

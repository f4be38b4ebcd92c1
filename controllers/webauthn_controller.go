package controllers

import (
	"errors"
	"net/http"
	"strings"

	"lager_lending_tool/app"
	"lager_lending_tool/apperr"
	"lager_lending_tool/models"
	"lager_lending_tool/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Admin passkeys: a logged-in admin registers keys, later logins use them instead of a password.

func (s *Srv) BeginPasskeyRegistration(c *gin.Context) {
	p := app.PrincipalOf(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	wUser, err := s.loadWAUser(ctx, p.User)
	if err != nil {
		app.Fail(c, err)
		return
	}
	exclude := make([]protocol.CredentialDescriptor, 0, len(wUser.creds))
	for _, cred := range wUser.creds {
		exclude = append(exclude, cred.Descriptor())
	}

	opts, sd, err := s.WA.BeginRegistration(
		wUser,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(exclude),
	)
	if err != nil {
		app.Fail(c, apperr.Internal(err, "begin passkey registration"))
		return
	}
	if err := s.Ceremonies.SaveRegistration(ctx, p.UserID(), sd); err != nil {
		app.Fail(c, apperr.Internal(err, "store passkey challenge"))
		return
	}
	c.JSON(http.StatusOK, app.H{"options": opts})
}

func (s *Srv) FinishPasskeyRegistration(c *gin.Context) {
	p := app.PrincipalOf(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	sd, err := s.Ceremonies.TakeRegistration(ctx, p.UserID())
	if err != nil {
		app.Fail(c, ceremonyError(err))
		return
	}
	wUser, err := s.loadWAUser(ctx, p.User)
	if err != nil {
		app.Fail(c, err)
		return
	}
	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		app.Fail(c, apperr.Wrap(apperr.KindValidation, err, "passkey registration rejected"))
		return
	}
	if err := s.Repo.AddCredential(ctx, fromWaCred(p.UserID(), cred)); err != nil {
		app.Fail(c, err)
		return
	}
	n, _ := s.Repo.CountCredentials(ctx, p.UserID())
	c.JSON(http.StatusCreated, app.H{"ok": true, "passkeys": n})
}

type passkeyLoginReq struct {
	Username string `json:"username"`
}

// BeginPasskeyLogin starts a named login when a username is given, a discoverable one otherwise.
func (s *Srv) BeginPasskeyLogin(c *gin.Context) {
	var in passkeyLoginReq
	if err := app.BindOptional(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if username := strings.TrimSpace(in.Username); username != "" {
		u, ferr := s.Repo.FindUserByUsername(ctx, username)
		if ferr != nil {
			app.Fail(c, ferr)
			return
		}
		wUser, lerr := s.loadWAUser(ctx, u)
		if lerr != nil {
			app.Fail(c, lerr)
			return
		}
		if len(wUser.creds) == 0 {
			app.Fail(c, apperr.NotFound("no passkey registered"))
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		app.Fail(c, apperr.Internal(err, "begin passkey login"))
		return
	}

	ceremonyID := uuid.NewString()
	if err := s.Ceremonies.SaveLogin(ctx, ceremonyID, sd); err != nil {
		app.Fail(c, apperr.Internal(err, "store passkey challenge"))
		return
	}
	c.JSON(http.StatusOK, app.H{"options": opts, "ceremony_id": ceremonyID})
}

// FinishPasskeyLogin verifies the assertion in the body; ceremony_id comes in the query.
func (s *Srv) FinishPasskeyLogin(c *gin.Context) {
	ceremonyID := c.Query("ceremony_id")
	if ceremonyID == "" {
		app.Fail(c, apperr.Validation("ceremony_id required"))
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sd, err := s.Ceremonies.TakeLogin(ctx, ceremonyID)
	if err != nil {
		app.Fail(c, ceremonyError(err))
		return
	}

	var (
		user *models.User
		cred *webauthn.Credential
	)
	if len(sd.UserID) > 0 {
		u, ferr := s.Repo.FindUserByID(ctx, userIDFromHandle(sd.UserID))
		if ferr != nil {
			app.Fail(c, ferr)
			return
		}
		wUser, lerr := s.loadWAUser(ctx, u)
		if lerr != nil {
			app.Fail(c, lerr)
			return
		}
		cred, err = s.WA.FinishLogin(wUser, *sd, c.Request)
		user = u
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, _, ferr := s.Repo.FindUserByCredentialID(ctx, rawID)
			if ferr != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			w, lerr := s.loadWAUser(ctx, u)
			if lerr != nil {
				return nil, lerr
			}
			return w, nil
		}
		var found webauthn.User
		found, cred, err = s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if w, ok := found.(*waUser); ok {
			user = &w.user
		}
	}
	if err != nil || user == nil {
		app.Fail(c, apperr.Wrap(apperr.KindUnauthenticated, err, "passkey login failed"))
		return
	}
	if !user.Role.CanAdminister() {
		app.Fail(c, apperr.Forbidden("user does not have admin privileges"))
		return
	}

	if err := s.Repo.RecordCredentialUse(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning, cred.Flags.BackupState); err != nil {
		s.Log.Error(ctx, "record passkey use", err)
	}
	if cred.Authenticator.CloneWarning {
		s.Log.Warn(s.Log.WithUserID(ctx, user.ID), "passkey sign counter went backwards")
	}
	if err := s.startSession(c, session.KindAdmin, user); err != nil {
		app.Fail(c, apperr.Internal(err, "create session failed"))
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "ok", "user": user})
}

func ceremonyError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return apperr.Validation("passkey challenge expired or already used")
	}
	return apperr.Internal(err, "load passkey challenge")
}

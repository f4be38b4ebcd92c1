package controllers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"lager_lending_tool/app"
	"lager_lending_tool/config"
	"lager_lending_tool/db"
	"lager_lending_tool/jobs"
	"lager_lending_tool/logger"
	"lager_lending_tool/metrics"
	"lager_lending_tool/models"
	"lager_lending_tool/notify"
	"lager_lending_tool/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

const requestTimeout = 5 * time.Second

// Srv bundles what the handlers need.
type Srv struct {
	Repo       *db.Repo
	Sessions   *session.AppSessionStore
	Ceremonies *session.CeremonyStore
	WA         *webauthn.WebAuthn
	Cfg        *config.Config
	Log        *logger.Logger
	Metrics    *metrics.Lending
	Notifier   notify.Notifier

	Overdue *jobs.OverdueSweep
	Cleanup *jobs.RetentionCleanup
}

func NewSrv(a *app.App) *Srv {
	return &Srv{
		Repo:       a.Repo,
		Sessions:   a.Sessions,
		Ceremonies: a.Ceremonies,
		WA:         a.WA,
		Cfg:        a.Config,
		Log:        a.Log,
		Metrics:    a.Metrics,
		Notifier:   a.Notifier,
		Overdue:    &jobs.OverdueSweep{Repo: a.Repo, Notifier: a.Notifier, Log: a.Log},
		Cleanup: &jobs.RetentionCleanup{
			Repo:      a.Repo,
			Sessions:  a.Sessions,
			Retention: a.Config.Jobs.Retention,
			Log:       a.Log,
		},
	}
}

func reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// startSession replaces whatever session the browser holds with a fresh one,
// so a client is never logged in as user and admin at the same time.
func (s *Srv) startSession(c *gin.Context, kind session.Kind, u *models.User) error {
	ctx := c.Request.Context()
	current := ""
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil {
		current = ck.Value
	}
	id, err := s.Sessions.Replace(ctx, current, kind, u.ID)
	if err != nil {
		return err
	}
	app.SetSessionCookie(c, s.Cfg, id)

	if err := s.Repo.TouchUserLogin(ctx, u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		s.Log.Warn(s.Log.WithUserID(ctx, u.ID), "login stamp failed")
	}
	logCtx := s.Log.WithFields(ctx, map[string]any{"user_id": u.ID, "session_kind": string(kind)})
	s.Log.Info(logCtx, "session started")
	return nil
}

func (s *Srv) endSession(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		if err := s.Sessions.Delete(c.Request.Context(), ck.Value); err != nil {
			s.Log.Error(c.Request.Context(), "session delete failed", err)
		}
	}
	app.ClearSessionCookie(c, s.Cfg)
}

// notifyFlag mails the admins about a new flag without holding up the request.
func (s *Srv) notifyFlag(ctx context.Context, f *models.Flag) {
	if f == nil || s.Notifier == nil {
		return
	}
	s.Metrics.FlagOpened(string(f.FlagType))
	subject, body := notify.FlagCreated(f)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.Notifier.Notify(ctx, subject, body); err != nil {
			s.Log.Error(s.Log.WithField(ctx, "flag_id", f.ID), "flag notification failed", err)
		}
	}()
}

// WebAuthn: DB user -> webauthn.User
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte {
	id, err := uuid.Parse(u.user.ID)
	if err != nil {
		return []byte(u.user.ID)
	}
	return id[:]
}
func (u *waUser) WebAuthnName() string                       { return u.user.DisplayName() }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Name }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

// userIDFromHandle reverses WebAuthnID.
func userIDFromHandle(handle []byte) string {
	if id, err := uuid.FromBytes(handle); err == nil {
		return id.String()
	}
	return string(handle)
}

func toWaCred(c models.Credential) webauthn.Credential {
	var transports []protocol.AuthenticatorTransport
	if c.Transports != "" {
		var raw []string
		if err := json.Unmarshal([]byte(c.Transports), &raw); err == nil {
			for _, t := range raw {
				transports = append(transports, protocol.AuthenticatorTransport(t))
			}
		}
	}
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(userID string, cred *webauthn.Credential) *models.Credential {
	names := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		names = append(names, string(t))
	}
	transports, _ := json.Marshal(names)
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
		Transports:      string(transports),
	}
}

func (s *Srv) loadWAUser(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Repo.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

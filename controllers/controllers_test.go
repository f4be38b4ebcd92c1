package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lager_lending_tool/app"
	"lager_lending_tool/config"
	"lager_lending_tool/controllers"
	"lager_lending_tool/logger"
	"lager_lending_tool/models"
	"lager_lending_tool/routes"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	adminUser = "admin"
	adminPass = "secret-pw"
)

var fixedNow = time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	t   *testing.T
	app *app.App
	srv *controllers.Srv
	mr  *miniredis.Miniredis
}

type sentMail struct{ subject, body string }

// recordingNotifier hands every notification to the test over a channel.
type recordingNotifier struct{ sent chan sentMail }

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan sentMail, 8)}
}

func (n *recordingNotifier) Notify(_ context.Context, subject, body string) error {
	n.sent <- sentMail{subject: subject, body: body}
	return nil
}

func (n *recordingNotifier) next(t *testing.T) sentMail {
	t.Helper()
	select {
	case m := <-n.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
		return sentMail{}
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", WebOrigin: "http://localhost:5173"},
		DB: config.DBConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:lager_" + uuid.NewString() + "?mode=memory&cache=shared",
		},
		Redis:   config.RedisConfig{Addr: mr.Addr()},
		Session: config.SessionConfig{TTL: time.Hour, SameSite: "lax", LastSeenThrottle: time.Minute},
		Admin:   config.AdminConfig{BootstrapUsername: adminUser, BootstrapPassword: adminPass},
		WebAuthn: config.WebAuthnConfig{
			RelyingPartyID:      "localhost",
			RelyingPartyName:    "Lager",
			RelyingPartyOrigins: []string{"http://localhost:5173"},
			CeremonyTTL:         time.Minute,
		},
		Jobs: config.JobsConfig{Retention: 24 * time.Hour},
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	a.Repo.Now = func() time.Time { return fixedNow }

	require.NoError(t, app.EnsureAdmin(ctx, cfg.Admin, a.Repo, logger.Nop()))
	srv := controllers.NewSrv(a)
	routes.RegisterRoutes(a.Router, a, srv)
	return &testEnv{t: t, app: a, srv: srv, mr: mr}
}

func (e *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.app.Router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == app.AppSessionCookie && ck.Value != "" {
			return ck
		}
	}
	t.Fatalf("no session cookie in response (status %d): %s", rec.Code, rec.Body.String())
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func (e *testEnv) loginAdmin() *http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/login", map[string]string{"username": adminUser, "password": adminPass}, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(e.t, rec)
}

// loginUser registers the user on first use.
func (e *testEnv) loginUser(name string) (*http.Cookie, string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/user/login", map[string]string{
		"name":       name,
		"password":   name + "-pw",
		"class_year": "2025A",
	}, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		User models.PublicUser `json:"user"`
	}](e.t, rec)
	return sessionCookie(e.t, rec), body.User.ID
}

func (e *testEnv) createItem(admin *http.Cookie, name, barcode string, qty int) models.Item {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/admin/items", map[string]any{"name": name, "barcode": barcode, "quantity": qty}, admin)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Item](e.t, rec)
}

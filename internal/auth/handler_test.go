package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"salesforecast-backend/internal/config"
	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/testsupport"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func authApp(db *gorm.DB) *fiber.App {
	cfg := &config.Config{JWTSecret: testSecret, JWTTTL: time.Hour}
	app := fiber.New()
	app.Post("/register", RegisterHandler(db))
	app.Post("/token", LoginHandler(cfg, db))
	app.Get("/me", JWTMiddleware(testSecret), MeHandler(db))
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	db := testsupport.NewTestDB(t)
	app := authApp(db)

	resp := postJSON(t, app, "/register", `{"email": " Alice@Example.com ", "password": "password123"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleManager, user.Role)
	assert.NotEqual(t, "password123", user.PasswordHash)

	resp = postJSON(t, app, "/register", `{"email": "alice@example.com", "password": "password123"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/token", `{"email": "alice@example.com", "password": "password123"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var tok TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	assert.Equal(t, "bearer", tok.TokenType)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "alice@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")
}

func TestLoginWithPasswordForm(t *testing.T) {
	db := testsupport.NewTestDB(t)
	app := authApp(db)

	resp := postJSON(t, app, "/register", `{"email": "bob@example.com", "password": "password123", "role": "admin"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	form := url.Values{"username": {"bob@example.com"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	app := authApp(testsupport.NewTestDB(t))

	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/register", `{"email": "nope", "password": "password123"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/register", `{"email": "a@example.com", "password": "short"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/register", `{"email": "a@example.com", "password": "password123", "role": "root"}`).StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := testsupport.NewTestDB(t)
	app := authApp(db)
	require.Equal(t, fiber.StatusCreated, postJSON(t, app, "/register", `{"email": "c@example.com", "password": "password123"}`).StatusCode)

	assert.Equal(t, fiber.StatusUnauthorized, postJSON(t, app, "/token", `{"email": "c@example.com", "password": "wrong-password"}`).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, postJSON(t, app, "/token", `{"email": "nobody@example.com", "password": "password123"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/token", `{"email": "c@example.com"}`).StatusCode)
}

func TestRegisterAllowsOnlyFirstAdmin(t *testing.T) {
	db := testsupport.NewTestDB(t)
	app := authApp(db)

	resp := postJSON(t, app, "/register", `{"email": "root@example.com", "password": "password123", "role": "admin"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/register", `{"email": "intruder@example.com", "password": "password123", "role": "admin"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)

	resp = postJSON(t, app, "/register", `{"email": "manager@example.com", "password": "password123"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

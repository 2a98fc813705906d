package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"salesforecast-backend/internal/audit"
	"salesforecast-backend/internal/auth"
	"salesforecast-backend/internal/config"
	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/testsupport"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestApp(t *testing.T, db *gorm.DB, userID uint) *fiber.App {
	t.Helper()
	repo := NewRepository(db)
	cfg := &config.Config{UploadMaxBytes: 1 << 20}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, userID)
		c.Locals(auth.CtxUserEmailKey, "a@example.com")
		return c.Next()
	})
	app.Post("/upload", UploadHandler(cfg, db, repo))
	app.Get("/options", OptionsHandler(repo))
	app.Get("/fields/:field", FieldValuesHandler(repo))
	return app
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadHandlerReplacesDataset(t *testing.T) {
	db := testsupport.NewTestDB(t)
	userID := createUser(t, db, "a@example.com")
	app := newTestApp(t, db, userID)

	csv := "product,city,date,sales,extra\nWidget,Springfield,2024-01-01,10,x\nWidget,Springfield,2024-01-02,11,y\n"
	resp, err := app.Test(multipartUpload(t, "sales.csv", csv))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, []string{"extra"}, out.DroppedColumns)
	assert.NotEmpty(t, out.BatchID)

	n, err := NewRepository(db).Count(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	logs, err := audit.List(db, audit.ListFilter{UserID: userID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionReplace, logs[0].Action)
	assert.Equal(t, out.BatchID, logs[0].EntityRef)
}

func TestUploadHandlerRejectsInvalidFile(t *testing.T) {
	db := testsupport.NewTestDB(t)
	userID := createUser(t, db, "a@example.com")
	app := newTestApp(t, db, userID)

	resp, err := app.Test(multipartUpload(t, "sales.csv", "product,city\nWidget,X\n"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFieldValuesHandler(t *testing.T) {
	db := testsupport.NewTestDB(t)
	userID := createUser(t, db, "a@example.com")
	_, err := NewRepository(db).ReplaceAll(context.Background(), userID, sampleRows())
	require.NoError(t, err)
	app := newTestApp(t, db, userID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fields/city", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Field  string   `json:"field"`
		Values []string `json:"values"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Shelbyville", "Springfield"}, out.Values)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/fields/password_hash", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	msg, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(msg), "weather_condition")
}

func TestOptionsHandler(t *testing.T) {
	db := testsupport.NewTestDB(t)
	app := newTestApp(t, db, createUser(t, db, "a@example.com"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/options", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out Options
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Products)
	assert.Empty(t, out.HolidayValues)
}

package sales

import (
	"errors"
	"fmt"
	"strings"

	"salesforecast-backend/internal/apperrors"
	"salesforecast-backend/internal/audit"
	"salesforecast-backend/internal/auth"
	"salesforecast-backend/internal/config"
	"salesforecast-backend/internal/logger"
	"salesforecast-backend/internal/metrics"
	"salesforecast-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UploadResponse struct {
	Msg            string   `json:"msg"`
	Rows           int      `json:"rows"`
	BatchID        string   `json:"batch_id"`
	DroppedColumns []string `json:"dropped_columns"`
	SkippedRows    int      `json:"skipped_rows"`
}

type datasetSnapshot struct {
	Rows           int64    `json:"rows"`
	BatchID        string   `json:"batch_id"`
	DroppedColumns []string `json:"dropped_columns,omitempty"`
}

// POST /api/sales/upload
// Replaces the user's entire dataset with the uploaded file.
func UploadHandler(cfg *config.Config, db *gorm.DB, repo *Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read uploaded file: "+err.Error())
		}
		if cfg.UploadMaxBytes > 0 && fileHeader.Size > int64(cfg.UploadMaxBytes) {
			metrics.RecordUpload("rejected", 0)
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("File is larger than %d bytes", cfg.UploadMaxBytes))
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not open uploaded file")
		}
		defer file.Close()

		parsed, err := ParseUpload(fileHeader.Filename, file)
		if err != nil {
			metrics.RecordUpload("rejected", 0)
			return toFiberError(err)
		}

		ctx := c.UserContext()
		prevCount, err := repo.Count(ctx, userID)
		if err != nil {
			logger.Errorf("upload: count previous rows for user %d: %v", userID, err)
		}
		prevVersion, err := repo.DatasetVersion(ctx, userID)
		if err != nil {
			logger.Errorf("upload: previous dataset version for user %d: %v", userID, err)
		}

		batchID, err := repo.ReplaceAll(ctx, userID, parsed.Rows)
		if err != nil {
			metrics.RecordUpload("error", 0)
			logger.Errorf("upload: replace dataset for user %d: %v", userID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Could not store sales data")
		}
		metrics.RecordUpload("success", len(parsed.Rows))

		if len(parsed.DroppedColumns) > 0 {
			logger.Warnf("upload: user %d dropped columns %v", userID, parsed.DroppedColumns)
		}
		logger.Infof("upload: user %d stored %d rows, batch %s", userID, len(parsed.Rows), batchID)

		if err := audit.WriteLog(db, audit.LogOptions{
			UserID:      userID,
			UserEmail:   auth.UserEmail(c),
			EntityType:  "sales_dataset",
			EntityRef:   batchID,
			Action:      models.AuditActionReplace,
			Description: fmt.Sprintf("Sales dataset replaced from %s (%d rows)", fileHeader.Filename, len(parsed.Rows)),
			Before:      datasetSnapshot{Rows: prevCount, BatchID: prevVersion},
			After: datasetSnapshot{
				Rows:           int64(len(parsed.Rows)),
				BatchID:        batchID,
				DroppedColumns: parsed.DroppedColumns,
			},
		}); err != nil {
			logger.Errorf("upload: %v", err)
		}

		dropped := parsed.DroppedColumns
		if dropped == nil {
			dropped = []string{}
		}
		return c.Status(fiber.StatusCreated).JSON(UploadResponse{
			Msg:            "Data uploaded successfully",
			Rows:           len(parsed.Rows),
			BatchID:        batchID,
			DroppedColumns: dropped,
			SkippedRows:    parsed.SkippedRows,
		})
	}
}

// GET /api/sales/options
func OptionsHandler(repo *Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		opts, err := repo.Options(c.UserContext(), userID)
		if err != nil {
			logger.Errorf("options for user %d: %v", userID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load options")
		}
		return c.JSON(opts)
	}
}

// GET /api/sales/fields/:field
func FieldValuesHandler(repo *Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		field := c.Params("field")
		values, err := repo.DistinctValues(c.UserContext(), userID, field)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"field": field, "values": values})
	}
}

func toFiberError(err error) error {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Field == "field":
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown field %q, expected one of: %s", ve.Value, strings.Join(DistinctFields(), ", ")))
	case errors.As(err, &ve):
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s: %s (%v)", ve.Field, ve.Message, ve.Value))
	case errors.Is(err, apperrors.ErrInvalidData):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	logger.Errorf("sales: %v", err)
	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
}

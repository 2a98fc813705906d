package audit

import (
	"salesforecast-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserEmail   string             `json:"user_email"`
	EntityType  string             `json:"entity_type"`
	EntityRef   string             `json:"entity_ref"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
}

// UserResolver returns the authenticated user id for the request.
type UserResolver func(c *fiber.Ctx) (uint, error)

// GET /api/audit-logs?entity_type=sales_dataset&limit=50
func ListAuditLogsHandler(db *gorm.DB, currentUser UserResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}

		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 1000 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 1000")
		}

		logs, err := List(db, ListFilter{
			UserID:     userID,
			EntityType: c.Query("entity_type"),
			Limit:      limit,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserEmail:   l.UserEmail,
				EntityType:  l.EntityType,
				EntityRef:   l.EntityRef,
				Action:      l.Action,
				Description: l.Description,
			})
		}

		return c.JSON(resp)
	}
}

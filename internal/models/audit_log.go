package models

import "time"

type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionReplace AuditAction = "replace"
	AuditActionDelete  AuditAction = "delete"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID    uint   `gorm:"index" json:"user_id"`
	UserEmail string `gorm:"size:255" json:"user_email"` // denormalized

	// e.g. "sales_dataset"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityRef  string `gorm:"size:64;index" json:"entity_ref"` // batch id, user id

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// Before and after state as JSON
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}

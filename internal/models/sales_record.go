package models

import "time"

// SalesRecord: one uploaded sales observation for a product/city/date.
// Rows are only ever written by a full replace of the user's dataset.
type SalesRecord struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UserID  uint      `gorm:"index:idx_sales_user_product_city,priority:1;not null" json:"user_id"`
	User    *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Product string    `gorm:"size:255;index:idx_sales_user_product_city,priority:2;not null" json:"product"`
	City    string    `gorm:"size:255;index:idx_sales_user_product_city,priority:3;not null" json:"city"`
	Date    time.Time `gorm:"type:date;index;not null" json:"date"`
	Sales   float64   `gorm:"not null" json:"sales"`

	// Scenario columns, all optional
	DiscountPct      *float64 `json:"discount_pct"`
	Seasonality      *string  `gorm:"size:50" json:"seasonality"`
	IsHoliday        *int     `json:"is_holiday"`
	WeatherCondition *string  `gorm:"size:50" json:"weather_condition"`

	BatchID   string    `gorm:"size:36;index" json:"batch_id"` // upload that wrote this row
	CreatedAt time.Time `json:"created_at"`
}

func (SalesRecord) TableName() string {
	return "sales_data"
}

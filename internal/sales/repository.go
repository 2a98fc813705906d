package sales

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"salesforecast-backend/internal/apperrors"
	"salesforecast-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// distinctFields maps a requestable field name to its sales_data column.
var distinctFields = map[string]string{
	"product":           "product",
	"city":              "city",
	"seasonality":       "seasonality",
	"weather_condition": "weather_condition",
	"is_holiday":        "is_holiday",
	"discount_pct":      "discount_pct",
	"date":              "date",
	"sales":             "sales",
}

// DistinctFields lists the field names accepted by DistinctValues.
func DistinctFields() []string {
	out := make([]string, 0, len(distinctFields))
	for f := range distinctFields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Fetch returns the user's rows for one product/city ordered by date.
// An empty slice is a valid result.
func (r *Repository) Fetch(ctx context.Context, userID uint, product, city string) ([]models.SalesRecord, error) {
	var rows []models.SalesRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product = ? AND city = ?", userID, product, city).
		Order("date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch sales for %s/%s: %w", product, city, err)
	}
	return rows, nil
}

func (r *Repository) FetchAll(ctx context.Context, userID uint) ([]models.SalesRecord, error) {
	var rows []models.SalesRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch all sales: %w", err)
	}
	return rows, nil
}

// ReplaceAll swaps the user's whole dataset for rows in one transaction.
// Row ids, user ids and batch ids are assigned here; whatever the caller put
// in those fields is ignored.
func (r *Repository) ReplaceAll(ctx context.Context, userID uint, rows []models.SalesRecord) (string, error) {
	batchID := uuid.NewString()

	insert := make([]models.SalesRecord, len(rows))
	for i, row := range rows {
		row.ID = 0
		row.UserID = userID
		row.User = nil
		row.BatchID = batchID
		row.CreatedAt = time.Time{}
		insert[i] = row
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.SalesRecord{}).Error; err != nil {
			return fmt.Errorf("delete previous sales: %w", err)
		}
		if len(insert) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&insert, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert sales: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return batchID, nil
}

// DistinctValues returns the sorted non-null values of field for the user,
// rendered as strings.
func (r *Repository) DistinctValues(ctx context.Context, userID uint, field string) ([]string, error) {
	column, ok := distinctFields[field]
	if !ok {
		return nil, apperrors.NewValidationError("field", "unknown field", field)
	}

	switch column {
	case "product", "city", "seasonality", "weather_condition":
		var values []string
		err := r.db.WithContext(ctx).Model(&models.SalesRecord{}).
			Where("user_id = ? AND "+column+" IS NOT NULL", userID).
			Distinct().Order(column).Pluck(column, &values).Error
		if err != nil {
			return nil, fmt.Errorf("distinct %s: %w", field, err)
		}
		return values, nil
	}

	// Numeric and date columns are loaded typed so their string form does not
	// depend on the SQL driver.
	var rows []models.SalesRecord
	err := r.db.WithContext(ctx).Model(&models.SalesRecord{}).
		Select(column).
		Where("user_id = ? AND "+column+" IS NOT NULL", userID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}

	set := make(map[string]struct{})
	var nums []float64
	var dates []time.Time
	for _, row := range rows {
		switch column {
		case "is_holiday":
			if row.IsHoliday != nil {
				addNumber(set, &nums, float64(*row.IsHoliday))
			}
		case "discount_pct":
			if row.DiscountPct != nil {
				addNumber(set, &nums, *row.DiscountPct)
			}
		case "sales":
			addNumber(set, &nums, row.Sales)
		case "date":
			key := row.Date.Format(dateLayout)
			if _, seen := set[key]; !seen {
				set[key] = struct{}{}
				dates = append(dates, row.Date)
			}
		}
	}

	out := make([]string, 0, len(set))
	if column == "date" {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		for _, d := range dates {
			out = append(out, d.Format(dateLayout))
		}
		return out, nil
	}
	sort.Float64s(nums)
	for _, n := range nums {
		out = append(out, formatNumber(n))
	}
	return out, nil
}

// DatasetVersion returns the batch id of the user's current dataset, or ""
// when the user has no rows.
func (r *Repository) DatasetVersion(ctx context.Context, userID uint) (string, error) {
	var row models.SalesRecord
	err := r.db.WithContext(ctx).
		Select("batch_id").
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return "", fmt.Errorf("dataset version: %w", err)
	}
	return row.BatchID, nil
}

func addNumber(set map[string]struct{}, nums *[]float64, v float64) {
	key := formatNumber(v)
	if _, seen := set[key]; seen {
		return
	}
	set[key] = struct{}{}
	*nums = append(*nums, v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r *Repository) Count(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.SalesRecord{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return n, nil
}

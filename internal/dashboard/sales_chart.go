package dashboard

import (
	"fmt"
	"sort"
	"time"

	"salesforecast-backend/internal/auth"
	"salesforecast-backend/internal/logger"
	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

type SalesChartPoint struct {
	Label        string  `json:"label"` // day / week start (Monday) / month start
	Sales        float64 `json:"sales"`
	Observations int     `json:"observations"`
}

type SalesChartResponse struct {
	Product    string            `json:"product"`
	City       string            `json:"city"`
	Period     string            `json:"period"` // daily | weekly | monthly
	From       string            `json:"from"`
	To         string            `json:"to"`
	Points     []SalesChartPoint `json:"points"`
	GrandTotal float64           `json:"grand_total"`
}

// GET /api/sales/chart?product=Widget&city=Springfield&period=weekly&count=8
// The window ends at the latest stored date for the selection.
func SalesChartHandler(repo *sales.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		product := c.Query("product")
		city := c.Query("city")
		if product == "" || city == "" {
			return fiber.NewError(fiber.StatusBadRequest, "product and city are required")
		}

		period, count, err := parseWindow(c.Query("period", "daily"), c.Query("count", ""))
		if err != nil {
			return err
		}

		rows, err := repo.Fetch(c.UserContext(), userID, product, city)
		if err != nil {
			logger.Errorf("sales chart for user %d: %v", userID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Could not aggregate sales")
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No sales data found for product/city.")
		}

		resp := BuildSalesChart(rows, period, count)
		resp.Product = product
		resp.City = city
		return c.JSON(resp)
	}
}

func parseWindow(period, countStr string) (string, int, error) {
	var count int
	switch period {
	case "weekly":
		count = 8
	case "monthly":
		count = 12
	default:
		period = "daily"
		count = 7
	}
	if countStr != "" {
		if _, err := fmt.Sscan(countStr, &count); err != nil || count <= 0 {
			return "", 0, fiber.NewError(fiber.StatusBadRequest, "invalid count")
		}
	}
	return period, count, nil
}

// BuildSalesChart sums rows into count buckets ending at the bucket of the
// latest row. Rows must be ordered by date.
func BuildSalesChart(rows []models.SalesRecord, period string, count int) SalesChartResponse {
	last := bucketStart(rows[len(rows)-1].Date, period)

	var start time.Time
	switch period {
	case "weekly":
		start = last.AddDate(0, 0, -7*(count-1))
	case "monthly":
		start = last.AddDate(0, -(count - 1), 0)
	default:
		start = last.AddDate(0, 0, -(count - 1))
	}

	buckets := make(map[time.Time]*SalesChartPoint)
	for _, r := range rows {
		b := bucketStart(r.Date, period)
		if b.Before(start) {
			continue
		}
		p, ok := buckets[b]
		if !ok {
			p = &SalesChartPoint{Label: b.Format(dateLayout)}
			buckets[b] = p
		}
		p.Sales += r.Sales
		p.Observations++
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	resp := SalesChartResponse{
		Period: period,
		From:   start.Format(dateLayout),
		To:     bucketEnd(last, period).Format(dateLayout),
		Points: make([]SalesChartPoint, 0, len(keys)),
	}
	for _, k := range keys {
		resp.Points = append(resp.Points, *buckets[k])
		resp.GrandTotal += buckets[k].Sales
	}
	return resp
}

// bucketStart truncates like Postgres date_trunc: weeks start on Monday.
func bucketStart(t time.Time, period string) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch period {
	case "weekly":
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "monthly":
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}

func bucketEnd(start time.Time, period string) time.Time {
	switch period {
	case "weekly":
		return start.AddDate(0, 0, 6)
	case "monthly":
		return start.AddDate(0, 1, -1)
	}
	return start
}

// Package scenario turns what-if scenario inputs into the fixed-width
// regressor rows fed to the forecasting model.
package scenario

import (
	"math"
	"strings"
)

const (
	ColDiscountPct = "discount_pct"
	ColIsHoliday   = "is_holiday"

	seasonalityPrefix = "seasonality_"
	weatherPrefix     = "weather_"
)

// Closed category sets. Values outside them activate no column.
var (
	SeasonalityCategories = []string{"high", "low", "summer", "winter", "spring", "fall"}
	WeatherCategories     = []string{"sunny", "rainy", "snowy", "cloudy"}
)

// Params is a what-if scenario supplied per forecast request.
type Params struct {
	DiscountPct      float64 `json:"discount_pct" validate:"gte=0"`
	Seasonality      string  `json:"seasonality"`
	IsHoliday        int     `json:"is_holiday" validate:"oneof=0 1"`
	WeatherCondition string  `json:"weather_condition"`
}

// Row maps every column in Columns() to its numeric value.
type Row map[string]float64

var columns = buildColumns()

func buildColumns() []string {
	cols := []string{ColDiscountPct, ColIsHoliday}
	for _, cat := range SeasonalityCategories {
		cols = append(cols, seasonalityPrefix+cat)
	}
	for _, cat := range WeatherCategories {
		cols = append(cols, weatherPrefix+cat)
	}
	return cols
}

// Columns returns the regressor column names in their fixed order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// SeasonalityColumn returns the column for a category, or "" if the value is
// not part of the enumeration.
func SeasonalityColumn(value string) string {
	if cat, ok := match(value, SeasonalityCategories); ok {
		return seasonalityPrefix + cat
	}
	return ""
}

// WeatherColumn is SeasonalityColumn for the weather enumeration.
func WeatherColumn(value string) string {
	if cat, ok := match(value, WeatherCategories); ok {
		return weatherPrefix + cat
	}
	return ""
}

// Baseline is the all-zero row used for historical dates.
func Baseline() Row {
	row := make(Row, len(columns))
	for _, c := range columns {
		row[c] = 0
	}
	return row
}

// Encode one-hot encodes p. At most one seasonality and one weather column
// is 1; an unknown category leaves its block all zero.
func Encode(p Params) Row {
	row := Baseline()

	discount := p.DiscountPct
	if discount < 0 || math.IsNaN(discount) || math.IsInf(discount, 0) {
		discount = 0
	}
	row[ColDiscountPct] = discount

	if p.IsHoliday != 0 {
		row[ColIsHoliday] = 1
	}

	if col := SeasonalityColumn(p.Seasonality); col != "" {
		row[col] = 1
	}
	if col := WeatherColumn(p.WeatherCondition); col != "" {
		row[col] = 1
	}
	return row
}

// Values returns the row in Columns() order. Missing columns read as 0.
func (r Row) Values() []float64 {
	out := make([]float64, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

func match(value string, categories []string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}
	for _, cat := range categories {
		if v == cat {
			return cat, true
		}
	}
	return "", false
}

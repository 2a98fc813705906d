package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumWithPrefix(row Row, prefix string) float64 {
	var total float64
	for col, v := range row {
		if strings.HasPrefix(col, prefix) {
			total += v
		}
	}
	return total
}

func TestColumnsFixedOrder(t *testing.T) {
	cols := Columns()

	require.Len(t, cols, 12)
	assert.Equal(t, "discount_pct", cols[0])
	assert.Equal(t, "is_holiday", cols[1])
	assert.Equal(t, "seasonality_high", cols[2])
	assert.Equal(t, "seasonality_fall", cols[7])
	assert.Equal(t, "weather_sunny", cols[8])
	assert.Equal(t, "weather_cloudy", cols[11])

	cols[0] = "mutated"
	assert.Equal(t, "discount_pct", Columns()[0], "callers get a copy")
}

func TestBaselineIsAllZero(t *testing.T) {
	row := Baseline()

	assert.Len(t, row, len(Columns()))
	for col, v := range row {
		assert.Zero(t, v, col)
	}
}

func TestEncodeSeasonality(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		active string
	}{
		{name: "title case", value: "Summer", active: "seasonality_summer"},
		{name: "upper case", value: "WINTER", active: "seasonality_winter"},
		{name: "padded", value: "  fall ", active: "seasonality_fall"},
		{name: "unknown", value: "monsoon"},
		{name: "empty", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Encode(Params{Seasonality: tt.value})

			for _, cat := range SeasonalityCategories {
				col := "seasonality_" + cat
				if col == tt.active {
					assert.Equal(t, 1.0, row[col], col)
				} else {
					assert.Equal(t, 0.0, row[col], col)
				}
			}
			assert.Zero(t, sumWithPrefix(row, "weather_"))
		})
	}
}

func TestEncodeWeatherCaseInsensitive(t *testing.T) {
	row := Encode(Params{WeatherCondition: "Rainy"})

	assert.Equal(t, 1.0, row["weather_rainy"])
	assert.Equal(t, 1.0, sumWithPrefix(row, "weather_"))
}

func TestEncodeAtMostOnePerEnumeration(t *testing.T) {
	values := append([]string{"", "unknown", "SUNNY", "Hot"}, SeasonalityCategories...)
	values = append(values, WeatherCategories...)

	for _, s := range values {
		for _, w := range values {
			row := Encode(Params{Seasonality: s, WeatherCondition: w, DiscountPct: 5, IsHoliday: 1})
			assert.LessOrEqual(t, sumWithPrefix(row, "seasonality_"), 1.0, "seasonality=%q", s)
			assert.LessOrEqual(t, sumWithPrefix(row, "weather_"), 1.0, "weather=%q", w)
		}
	}
}

func TestEncodeNumericFields(t *testing.T) {
	row := Encode(Params{DiscountPct: 20, IsHoliday: 1})
	assert.Equal(t, 20.0, row[ColDiscountPct])
	assert.Equal(t, 1.0, row[ColIsHoliday])

	row = Encode(Params{DiscountPct: -3, IsHoliday: 7})
	assert.Equal(t, 0.0, row[ColDiscountPct], "negative discount clamps to zero")
	assert.Equal(t, 1.0, row[ColIsHoliday], "any non-zero holiday flag is a holiday")

	row = Encode(Params{})
	assert.Equal(t, Baseline(), row)
}

func TestRowValues(t *testing.T) {
	row := Encode(Params{DiscountPct: 10, Seasonality: "high", WeatherCondition: "snowy"})
	values := row.Values()

	require.Len(t, values, 12)
	assert.Equal(t, []float64{10, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0}, values)

	assert.Equal(t, make([]float64, 12), Row{}.Values())
}

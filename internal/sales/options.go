package sales

import (
	"context"
	"sort"

	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/scenario"
)

// Options is what the UI needs to build a forecast form.
type Options struct {
	Products        []string        `json:"products"`
	Cities          []string        `json:"cities"`
	Seasonality     []string        `json:"seasonality"`
	Weather         []string        `json:"weather"`
	HolidayValues   []int           `json:"holiday_values"`
	DefaultScenario scenario.Params `json:"default_scenario"`
}

// Options aggregates the user's distinct values and a default scenario taken
// from the first non-null value of each scenario column in date order.
func (r *Repository) Options(ctx context.Context, userID uint) (*Options, error) {
	rows, err := r.FetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return BuildOptions(rows), nil
}

// BuildOptions expects rows ordered by date, id.
func BuildOptions(rows []models.SalesRecord) *Options {
	products := map[string]struct{}{}
	cities := map[string]struct{}{}
	seasons := map[string]struct{}{}
	weather := map[string]struct{}{}
	holidays := map[int]struct{}{}

	var def scenario.Params
	var haveDiscount, haveSeason, haveHoliday, haveWeather bool

	for _, row := range rows {
		products[row.Product] = struct{}{}
		cities[row.City] = struct{}{}

		if row.DiscountPct != nil && !haveDiscount {
			def.DiscountPct = *row.DiscountPct
			haveDiscount = true
		}
		if row.Seasonality != nil {
			seasons[*row.Seasonality] = struct{}{}
			if !haveSeason {
				def.Seasonality = *row.Seasonality
				haveSeason = true
			}
		}
		if row.IsHoliday != nil {
			holidays[*row.IsHoliday] = struct{}{}
			if !haveHoliday {
				def.IsHoliday = *row.IsHoliday
				haveHoliday = true
			}
		}
		if row.WeatherCondition != nil {
			weather[*row.WeatherCondition] = struct{}{}
			if !haveWeather {
				def.WeatherCondition = *row.WeatherCondition
				haveWeather = true
			}
		}
	}

	holidayValues := make([]int, 0, len(holidays))
	for h := range holidays {
		holidayValues = append(holidayValues, h)
	}
	sort.Ints(holidayValues)

	return &Options{
		Products:        sortedKeys(products),
		Cities:          sortedKeys(cities),
		Seasonality:     sortedKeys(seasons),
		Weather:         sortedKeys(weather),
		HolidayValues:   holidayValues,
		DefaultScenario: def,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

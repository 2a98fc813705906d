package sales

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"salesforecast-backend/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseUploadCSV(t *testing.T) {
	csv := "Product,City,Date,Sales,Discount_Pct,Seasonality,Is_Holiday,Weather_Condition,user_id,notes\n" +
		"Widget,Springfield,2024-01-01,10,5,Summer,1,sunny,42,first\n" +
		",,,,,,,,,\n" +
		"Widget,Springfield,2024-01-02,12,,,,,42,\n"

	res, err := ParseUpload("sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.Equal(t, "Widget", first.Product)
	assert.Equal(t, "2024-01-01", first.Date.Format(dateLayout))
	assert.Equal(t, 10.0, first.Sales)
	assert.Equal(t, 5.0, *first.DiscountPct)
	assert.Equal(t, "Summer", *first.Seasonality)
	assert.Equal(t, 1, *first.IsHoliday)
	assert.Equal(t, "sunny", *first.WeatherCondition)
	assert.Zero(t, first.UserID)

	second := res.Rows[1]
	assert.Nil(t, second.DiscountPct)
	assert.Nil(t, second.Seasonality)
	assert.Nil(t, second.IsHoliday)

	assert.Equal(t, []string{"notes", "user_id"}, res.DroppedColumns)
	assert.Equal(t, 1, res.SkippedRows)
}

func TestParseUploadMissingColumns(t *testing.T) {
	_, err := ParseUpload("sales.csv", strings.NewReader("product,date\nWidget,2024-01-01\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidData)
	assert.Contains(t, err.Error(), "city, sales")
}

func TestParseUploadRejectsNegativeSales(t *testing.T) {
	_, err := ParseUpload("sales.csv", strings.NewReader("product,city,date,sales\nWidget,X,2024-01-01,-1\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidData)
}

func TestParseUploadDayFirstDates(t *testing.T) {
	csv := "product,city,date,sales\n" +
		"Widget,X,05/01/2024,1\n" +
		"Widget,X,25/01/2024,2\n"

	res, err := ParseUpload("sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", res.Rows[0].Date.Format(dateLayout))
	assert.Equal(t, "2024-01-25", res.Rows[1].Date.Format(dateLayout))
}

func TestParseUploadMonthFirstDates(t *testing.T) {
	csv := "product,city,date,sales\n" +
		"Widget,X,05/01/2024,1\n" +
		"Widget,X,05/02/2024,2\n"

	res, err := ParseUpload("sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", res.Rows[0].Date.Format(dateLayout))
}

func TestParseUploadBadDate(t *testing.T) {
	_, err := ParseUpload("sales.csv", strings.NewReader("product,city,date,sales\nWidget,X,yesterday,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestParseUploadExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"product", "city", "date", "sales", "is_holiday"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Widget", "Springfield", "2024-03-01", "7.5", "yes"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	for _, name := range []string{"sales.xlsx", "sales.bin"} {
		res, err := ParseUpload(name, bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, name)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, 7.5, res.Rows[0].Sales)
		assert.Equal(t, 1, *res.Rows[0].IsHoliday)
	}
}

func TestParseUploadRejectsGarbage(t *testing.T) {
	_, err := ParseUpload("sales.xlsx", strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidData)

	_, err = ParseUpload("sales.csv", strings.NewReader("   "))
	assert.ErrorIs(t, err, apperrors.ErrInvalidData)
}

func TestParseUploadExcelDateCells(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"product", "city", "date", "sales"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Widget", "Springfield", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 10}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Widget", "Springfield", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 12}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := ParseUpload("sales.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2024-01-15", res.Rows[0].Date.Format(dateLayout))
	assert.Equal(t, "2024-12-31", res.Rows[1].Date.Format(dateLayout))
	assert.Equal(t, 10.0, res.Rows[0].Sales)
}

package sales

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"salesforecast-backend/internal/apperrors"
	"salesforecast-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const dateLayout = "2006-01-02"

// Columns admitted from an uploaded file. user_id is never taken from the
// file: rows always belong to the authenticated user.
var (
	requiredColumns = []string{"product", "city", "date", "sales"}
	optionalColumns = []string{"discount_pct", "seasonality", "is_holiday", "weather_condition"}
)

var isoDateLayouts = []string{
	dateLayout,
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
}

var dayFirstDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"02-01-2006",
}

type UploadResult struct {
	Rows           []models.SalesRecord
	DroppedColumns []string
	SkippedRows    int
}

// ParseUpload reads a CSV or Excel sales file into records. Spreadsheet
// extensions go straight to Excel; anything else is tried as CSV first.
func ParseUpload(filename string, r io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.InvalidData("could not read file: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.InvalidData("file is empty")
	}

	var table [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		table, err = readExcel(data)
		if err != nil {
			return nil, apperrors.InvalidData("file must be CSV or Excel: %v", err)
		}
	default:
		table, err = readCSV(data)
		if err != nil {
			var xerr error
			table, xerr = readExcel(data)
			if xerr != nil {
				return nil, apperrors.InvalidData("file must be CSV or Excel")
			}
		}
	}

	return parseTable(table)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, errors.New("binary content")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func readExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	// raw values keep date cells as serial numbers instead of display text
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func parseTable(table [][]string) (*UploadResult, error) {
	if len(table) == 0 {
		return nil, apperrors.InvalidData("file has no header row")
	}

	index := make(map[string]int)
	var dropped []string
	for i, h := range table[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if !isAdmitted(name) {
			dropped = append(dropped, name)
			continue
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.InvalidData("missing required columns: %s", strings.Join(missing, ", "))
	}
	sort.Strings(dropped)

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	type pending struct {
		line int
		rec  models.SalesRecord
		date string
	}
	var rows []pending
	skipped := 0
	for n, row := range table[1:] {
		line := n + 2
		if blank(row) {
			skipped++
			continue
		}

		rec := models.SalesRecord{
			Product: cell(row, "product"),
			City:    cell(row, "city"),
		}
		if rec.Product == "" || rec.City == "" {
			return nil, apperrors.InvalidData("row %d: product and city are required", line)
		}

		sales, err := strconv.ParseFloat(cell(row, "sales"), 64)
		if err != nil {
			return nil, apperrors.InvalidData("row %d: sales %q is not a number", line, cell(row, "sales"))
		}
		if sales < 0 {
			return nil, apperrors.InvalidData("row %d: sales must not be negative", line)
		}
		rec.Sales = sales

		if v := cell(row, "discount_pct"); v != "" {
			d, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, apperrors.InvalidData("row %d: discount_pct %q is not a number", line, v)
			}
			rec.DiscountPct = &d
		}
		if v := cell(row, "is_holiday"); v != "" {
			h, err := parseHoliday(v)
			if err != nil {
				return nil, apperrors.InvalidData("row %d: is_holiday %q must be 0 or 1", line, v)
			}
			rec.IsHoliday = &h
		}
		if v := cell(row, "seasonality"); v != "" {
			rec.Seasonality = &v
		}
		if v := cell(row, "weather_condition"); v != "" {
			rec.WeatherCondition = &v
		}

		rows = append(rows, pending{line: line, rec: rec, date: cell(row, "date")})
	}

	raw := make([]string, len(rows))
	for i, p := range rows {
		raw[i] = p.date
	}
	dates, badRow := parseDateColumn(raw)
	if badRow >= 0 {
		return nil, apperrors.InvalidData("row %d: could not parse date %q", rows[badRow].line, raw[badRow])
	}

	out := &UploadResult{
		Rows:           make([]models.SalesRecord, len(rows)),
		DroppedColumns: dropped,
		SkippedRows:    skipped,
	}
	for i, p := range rows {
		p.rec.Date = dates[i]
		out.Rows[i] = p.rec
	}
	return out, nil
}

// parseDateColumn parses the whole column with month-first layouts, and if
// any value fails, parses it again day-first. It returns the index of the
// first unparseable value, or -1.
func parseDateColumn(values []string) ([]time.Time, int) {
	dates, bad := parseAll(values, isoDateLayouts)
	if bad < 0 {
		return dates, -1
	}
	if dates, dayFirstBad := parseAll(values, append(dayFirstDateLayouts, isoDateLayouts[:5]...)); dayFirstBad < 0 {
		return dates, -1
	}
	return nil, bad
}

func parseAll(values []string, layouts []string) ([]time.Time, int) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		d, ok := parseDate(v, layouts)
		if !ok {
			return nil, i
		}
		out[i] = d
	}
	return out, -1
}

func parseDate(v string, layouts []string) (time.Time, bool) {
	if t, ok := parseExcelSerial(v); ok {
		return t, true
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Excel stores dates as days since 1899-12-30; 2958465 is 9999-12-31.
const maxExcelSerial = 2958465

func parseExcelSerial(v string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial < 1 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func parseHoliday(v string) (int, error) {
	switch strings.ToLower(v) {
	case "1", "1.0", "true", "yes":
		return 1, nil
	case "0", "0.0", "false", "no":
		return 0, nil
	}
	return 0, errors.New("not a holiday flag")
}

func isAdmitted(name string) bool {
	for _, c := range requiredColumns {
		if c == name {
			return true
		}
	}
	for _, c := range optionalColumns {
		if c == name {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

package loaders

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// DCMR workbook names and the header renames applied to them.
const (
	DCMRTenSecondFile = "pm25-10sec.xlsx"
	DCMRNO2HourlyFile = "no2-hourly.xlsx"
	DCMRPMHourlyFile  = "pm-hourly.xlsx"
)

var (
	dcmrTenSecondHeaders = map[string]string{
		"494SDM - PM2.5.L": "PM25",
		"J335 S49":         "timestamp",
	}
	dcmrNO2Headers = map[string]string{
		"494SDM\n494 NO2": "no2",
	}
	dcmrPMHeaders = map[string]string{
		"494SDM\n494 PM2,5 * factor": "PM25",
		"494SDM\n494 PM10 * factor":  "PM10",
	}
)

// DCMR loads the reference monitor workbooks of <dir>/<experiment>/.
type DCMR struct {
	Dir string
}

// TenSecond reads the 10-second PM2.5 workbook. Its header is on the second
// row.
func (d DCMR) TenSecond(experiment string) (*timeseries.Frame, error) {
	rows, err := readSheet(filepath.Join(d.Dir, experiment, DCMRTenSecondFile))
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: no header row", DCMRTenSecondFile)
	}
	header := renameHeader(rows[1], dcmrTenSecondHeaders)
	tsField := -1
	for i, h := range header {
		if h == "timestamp" {
			tsField = i
		}
	}
	if tsField < 0 {
		return nil, fmt.Errorf("%s: no timestamp column", DCMRTenSecondFile)
	}
	f, err := sheetFrame(rows[2:], header, tsField)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DCMRTenSecondFile, err)
	}
	return f, nil
}

// Hourly reads the NO2 and PM workbooks and joins them on timestamp. In both
// the first column is the timestamp, and the first and last data rows are
// not measurements.
func (d DCMR) Hourly(experiment string) (*timeseries.Frame, error) {
	no2, err := d.hourlyWorkbook(experiment, DCMRNO2HourlyFile, dcmrNO2Headers, 2)
	if err != nil {
		return nil, err
	}
	pm, err := d.hourlyWorkbook(experiment, DCMRPMHourlyFile, dcmrPMHeaders, 3)
	if err != nil {
		return nil, err
	}
	return timeseries.Join(no2, pm, timeseries.InnerJoin)
}

func (d DCMR) hourlyWorkbook(experiment, name string, headers map[string]string, width int) (*timeseries.Frame, error) {
	rows, err := readSheet(filepath.Join(d.Dir, experiment, name))
	if err != nil {
		return nil, err
	}
	if len(rows) < 3 {
		return nil, fmt.Errorf("%s: too few rows", name)
	}
	header := renameHeader(truncate(rows[0], width), headers)
	data := rows[2 : len(rows)-1]
	for i := range data {
		data[i] = truncate(data[i], width)
	}
	f, err := sheetFrame(data, header, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

func readSheet(path string) ([][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func renameHeader(row []string, mapping map[string]string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		h = strings.TrimSpace(strings.ReplaceAll(h, "\r\n", "\n"))
		if to, ok := mapping[h]; ok {
			h = to
		}
		out[i] = h
	}
	return out
}

func truncate(row []string, width int) []string {
	if len(row) > width {
		return row[:width]
	}
	return row
}

// sheetFrame converts data rows into a frame. Rows without a timestamp are
// skipped; value cells that are not numbers are missing.
func sheetFrame(rows [][]string, header []string, tsField int) (*timeseries.Frame, error) {
	var fields []int
	var names []string
	for i, h := range header {
		if i != tsField && h != "" {
			fields = append(fields, i)
			names = append(names, h)
		}
	}

	b := newColumnBuilder(names)
	row := make([]float64, len(fields))
	for n, rec := range rows {
		if tsField >= len(rec) || strings.TrimSpace(rec[tsField]) == "" {
			continue
		}
		t, err := cellTimestamp(rec[tsField])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		for k, i := range fields {
			row[k] = math.NaN()
			if i < len(rec) {
				row[k] = parseLenient(rec[i])
			}
		}
		b.add(t, row)
	}

	f, err := timeseries.New(b.index, b.names, b.columns())
	if err != nil {
		return nil, err
	}
	return f.Normalize(), nil
}

// cellTimestamp converts a raw cell to a time: either a spreadsheet serial
// date or a formatted date string.
func cellTimestamp(cell string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return t.Round(time.Second), nil
	}
	return parseTimestamp(cell)
}

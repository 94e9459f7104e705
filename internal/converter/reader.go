package converter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/xuri/excelize/v2"
	"gitlab.com/tozd/go/errors"
)

// UnnamedPrefix starts the name given to columns whose header cell is blank.
const UnnamedPrefix = "Unnamed"

// Built-in number formats that render a serial number as a date or time.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// ReadTable parses the first worksheet of an xlsx document. The first
// skipRows physical rows are discarded and the next one names the columns.
func ReadTable(in types.RawInput, skipRows int) (*types.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(in.Data))
	if err != nil {
		return nil, parseError(in.Name, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, parseError(in.Name, errors.New("workbook has no sheets"))
	}

	formatted, err := f.GetRows(sheetName)
	if err != nil {
		return nil, parseError(in.Name, err)
	}
	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, parseError(in.Name, err)
	}

	use1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		use1904 = *props.Date1904
	}

	if skipRows >= len(raw) {
		return &types.Table{}, nil
	}

	var header []string
	if skipRows < len(formatted) {
		header = formatted[skipRows]
	}
	dataStart := skipRows + 1
	dataEnd := len(raw)
	for dataEnd > dataStart && rowIsEmpty(raw[dataEnd-1]) {
		dataEnd--
	}

	width := len(header)
	for i := dataStart; i < dataEnd; i++ {
		if len(raw[i]) > width {
			width = len(raw[i])
		}
	}

	names := columnNames(header, width)
	table := &types.Table{Columns: make([]types.Column, width)}
	for j := range table.Columns {
		table.Columns[j] = types.Column{Name: names[j], Cells: make([]any, dataEnd-dataStart)}
	}

	cr := cellReader{f: f, sheet: sheetName, use1904: use1904, styles: make(map[int]bool)}
	for i := dataStart; i < dataEnd; i++ {
		for j := 0; j < width; j++ {
			v, err := cr.value(formatted, raw, i, j)
			if err != nil {
				return nil, parseError(in.Name, err)
			}
			table.Columns[j].Cells[i-dataStart] = v
		}
	}

	return table, nil
}

// columnNames fills blank header cells with "Unnamed: <index>" and
// suffixes repeated names with ".1", ".2", ...
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)
	next := make(map[string]int, width)

	for j := 0; j < width; j++ {
		name := ""
		if j < len(header) {
			name = header[j]
		}
		if name == "" {
			name = fmt.Sprintf("%s: %d", UnnamedPrefix, j)
		}

		if used[name] {
			k := next[name]
			if k == 0 {
				k = 1
			}
			candidate := fmt.Sprintf("%s.%d", name, k)
			for used[candidate] {
				k++
				candidate = fmt.Sprintf("%s.%d", name, k)
			}
			next[name] = k + 1
			name = candidate
		}

		used[name] = true
		names[j] = name
	}

	return names
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

func cellAt(rows [][]string, i, j int) string {
	if i < len(rows) && j < len(rows[i]) {
		return rows[i][j]
	}
	return ""
}

type cellReader struct {
	f       *excelize.File
	sheet   string
	use1904 bool
	// style index -> whether its number format is a date format
	styles map[int]bool
}

func (cr *cellReader) value(formatted, raw [][]string, i, j int) (any, error) {
	rawVal := cellAt(raw, i, j)
	if rawVal == "" {
		return nil, nil
	}
	text := cellAt(formatted, i, j)

	axis, err := excelize.CoordinatesToCellName(j+1, i+1)
	if err != nil {
		return nil, err
	}

	cellType, err := cr.f.GetCellType(cr.sheet, axis)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return text, nil
	case excelize.CellTypeBool:
		return rawVal == "1" || strings.EqualFold(rawVal, "true"), nil
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, rawVal); err == nil {
				return t, nil
			}
		}
		return text, nil
	}

	num, err := strconv.ParseFloat(rawVal, 64)
	if err != nil {
		return text, nil
	}

	isDate, err := cr.isDateStyle(axis)
	if err != nil {
		return nil, err
	}
	if isDate {
		if t, err := excelize.ExcelDateToTime(num, cr.use1904); err == nil {
			return t, nil
		}
	}

	return num, nil
}

func (cr *cellReader) isDateStyle(axis string) (bool, error) {
	idx, err := cr.f.GetCellStyle(cr.sheet, axis)
	if err != nil {
		return false, err
	}
	if isDate, ok := cr.styles[idx]; ok {
		return isDate, nil
	}

	isDate := false
	if style, err := cr.f.GetStyle(idx); err == nil && style != nil {
		isDate = builtinDateFormats[style.NumFmt]
		if style.CustomNumFmt != nil {
			isDate = IsDateFormat(*style.CustomNumFmt)
		}
	}

	cr.styles[idx] = isDate
	return isDate, nil
}

// IsDateFormat reports whether a number format code renders dates or times.
// Quoted literals, escaped characters and bracketed sections such as colors
// and locales are ignored.
func IsDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false

	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			if r == '"' {
				inQuote = false
			}
		case inBracket:
			if r == ']' {
				inBracket = false
			}
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		default:
			b.WriteRune(r)
		}
	}

	stripped := strings.ToLower(b.String())
	if stripped == "general" {
		return false
	}
	return strings.ContainsAny(stripped, "ydhs")
}

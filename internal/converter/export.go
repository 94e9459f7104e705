package converter

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/xuri/excelize/v2"
	"gitlab.com/tozd/go/errors"
)

const (
	ArtifactName = "concatenado.xlsx"
	MIMEType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DateTimeFormat is the number format applied to date cells on export.
	DateTimeFormat = "yyyy-mm-dd hh:mm:ss"

	// WidthSampleRows bounds how many cells per column are measured.
	WidthSampleRows = 1000
	MaxColumnWidth  = 50
	widthPadding    = 2

	textTimeLayout = "2006-01-02 15:04:05"
)

// Artifact is an exported workbook ready to be offered for download.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Export writes t as a single-sheet workbook: a header row followed by the
// data rows, with a display width set on every column.
func Export(t *types.Table, sheetName string) (*Artifact, error) {
	if sheetName == "" {
		sheetName = config.DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, errors.Errorf("naming sheet %q: %w", sheetName, err)
	}

	dateFmt := DateTimeFormat
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return nil, errors.Errorf("creating date style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, errors.Errorf("opening stream writer: %w", err)
	}

	// Widths must be set before the first row is streamed.
	for i, c := range t.Columns {
		if err := sw.SetColWidth(i+1, i+1, float64(ColumnWidth(c.Name, c.Cells))); err != nil {
			return nil, errors.Errorf("setting width of column %q: %w", c.Name, err)
		}
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, errors.Errorf("writing header row: %w", err)
	}

	for r := 0; r < t.NumRows(); r++ {
		row := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			if ts, ok := c.Cells[r].(time.Time); ok {
				row[j] = excelize.Cell{StyleID: dateStyle, Value: ts}
				continue
			}
			row[j] = c.Cells[r]
		}

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, errors.Errorf("writing row %d: %w", r+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, errors.Errorf("flushing sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Errorf("encoding workbook: %w", err)
	}

	return &Artifact{
		Name:     ArtifactName,
		MIMEType: MIMEType,
		Data:     buf.Bytes(),
	}, nil
}

// ColumnWidth is the longer of the name and the widest rendered cell among the
// first WidthSampleRows, plus padding, capped at MaxColumnWidth.
func ColumnWidth(name string, cells []any) int {
	width := utf8.RuneCountInString(name)
	for i, v := range cells {
		if i >= WidthSampleRows {
			break
		}
		if n := utf8.RuneCountInString(Text(v)); n > width {
			width = n
		}
	}
	return min(width+widthPadding, MaxColumnWidth)
}

// Text renders a cell the way it is measured and previewed.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(textTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

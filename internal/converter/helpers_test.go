package converter

import (
	"testing"

	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds an xlsx document whose first sheet holds rows starting at A1.
func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// input is a workbook with a header row and n data rows tagged with tag.
func input(t *testing.T, name, tag string, n int) types.RawInput {
	t.Helper()

	rows := [][]any{{"ID", "Tag"}}
	for i := 0; i < n; i++ {
		rows = append(rows, []any{i + 1, tag})
	}
	return types.RawInput{Name: name, Data: workbook(t, rows...)}
}

func column(t *testing.T, tbl *types.Table, name string) []any {
	t.Helper()

	idx := tbl.Index(name)
	require.GreaterOrEqual(t, idx, 0, "column %q not found in %v", name, tbl.Names())
	return tbl.Columns[idx].Cells
}

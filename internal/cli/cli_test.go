package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/converter"
	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gitlab.com/tozd/go/errors"
)

func writeWorkbook(t *testing.T, path string, rows ...[]any) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd(BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func readOutput(t *testing.T, path string) *types.Table {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tbl, err := converter.ReadTable(types.RawInput{Name: filepath.Base(path), Data: data}, 0)
	require.NoError(t, err)
	return tbl
}

func fixtureDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "b.xlsx"), []any{"Nome", "Valor"}, []any{"c", 3})
	writeWorkbook(t, filepath.Join(dir, "a.xlsx"), []any{"Nome", "Valor"}, []any{"a", 1}, []any{"b", 2})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	return dir
}

func TestRunCommand(t *testing.T) {
	dir := fixtureDir(t)
	out := filepath.Join(dir, "out", "result.xlsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))

	stdout, _, err := execute(t, "run", filepath.Join(dir, "*"),
		"-o", out,
		"--skip-rows", "0",
		"--fixed", "--fixed-name", "Lote", "--fixed-value", "L1",
		"--preview", "2",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "3 rows × 4 columns from 2 files")
	assert.Contains(t, stdout, "saved "+out)
	assert.Contains(t, stdout, "Lote")

	tbl := readOutput(t, out)
	assert.Equal(t, []string{converter.ProvenanceColumn, "Lote", "Nome", "Valor"}, tbl.Names())
	// Glob matches are taken in lexical order.
	assert.Equal(t, []any{"a.xlsx", "a.xlsx", "b.xlsx"}, tbl.Columns[0].Cells)
	assert.Equal(t, []any{"L1", "L1", "L1"}, tbl.Columns[1].Cells)
}

func TestRunCommand_ArgumentOrder(t *testing.T) {
	dir := fixtureDir(t)
	out := filepath.Join(dir, "result.xlsx")

	_, _, err := execute(t, "run",
		filepath.Join(dir, "b.xlsx"), filepath.Join(dir, "a.xlsx"),
		"-o", out, "--skip-rows", "0", "--preview", "0",
	)
	require.NoError(t, err)

	tbl := readOutput(t, out)
	assert.Equal(t, []any{"b.xlsx", "a.xlsx", "a.xlsx"}, tbl.Columns[0].Cells)
}

func TestRunCommand_OptionsFile(t *testing.T) {
	dir := fixtureDir(t)
	out := filepath.Join(dir, "result.xlsx")
	optsFile := filepath.Join(dir, "opts.yaml")
	require.NoError(t, os.WriteFile(optsFile, []byte("skip_rows: 0\nadd_fixed_column: true\nfixed_column_name: Setor\n"), 0o644))

	// The flag wins over the file.
	_, _, err := execute(t, "run", filepath.Join(dir, "a.xlsx"),
		"-o", out, "-c", optsFile, "--fixed-value", "X", "--preview", "0",
	)
	require.NoError(t, err)

	tbl := readOutput(t, out)
	assert.Equal(t, []string{converter.ProvenanceColumn, "Setor", "Nome", "Valor"}, tbl.Names())
	assert.Equal(t, []any{"X", "X"}, tbl.Columns[1].Cells)
}

func TestRunCommand_Errors(t *testing.T) {
	dir := fixtureDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xlsx"), []byte("not a zip"), 0o644))

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, err error)
	}{
		{
			name: "No matches",
			args: []string{filepath.Join(dir, "*.xls")},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, converter.ErrEmptyInput))
			},
		},
		{
			name: "Corrupt workbook",
			args: []string{filepath.Join(dir, "a.xlsx"), filepath.Join(dir, "broken.xlsx"), "--skip-rows", "0"},
			check: func(t *testing.T, err error) {
				var perr *converter.ParseError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "broken.xlsx", perr.Name)
			},
		},
		{
			name: "Wrong extension",
			args: []string{filepath.Join(dir, "notes.txt")},
			check: func(t *testing.T, err error) {
				var perr *converter.ParseError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "notes.txt", perr.Name)
			},
		},
		{
			name: "Negative skip",
			args: []string{filepath.Join(dir, "a.xlsx"), "--skip-cols", "-2"},
			check: func(t *testing.T, err error) {
				var cfgErr *config.ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "skip_left_columns", cfgErr.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "result.xlsx")
			args := append([]string{"run", "-o", out}, tt.args...)

			_, _, err := execute(t, args...)
			require.Error(t, err)
			tt.check(t, err)

			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "no artifact should be written on error")
		})
	}
}

func TestExpandArgs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.xlsx", "a.xlsx", "b.XLSX", "skip.csv", filepath.Join("sub", "d.xlsx")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	paths, err := expandArgs([]string{
		filepath.Join(dir, "c.xlsx"),
		filepath.Join(dir, "*"),
		filepath.Join(dir, "**", "d.xlsx"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "c.xlsx"),
		filepath.Join(dir, "a.xlsx"),
		filepath.Join(dir, "b.XLSX"),
		filepath.Join(dir, "sub", "d.xlsx"),
	}, paths)
}

func TestExpandArgs_InvalidPattern(t *testing.T) {
	_, err := expandArgs([]string{"reports/[.xlsx"})
	assert.Error(t, err)
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"Empty", converter.ErrEmptyInput, "no .xlsx files"},
		{"Parse", &converter.ParseError{Name: "x.xlsx", Err: errors.New("zip: not a valid zip file")}, "could not read x.xlsx"},
		{"Config", &config.ConfigurationError{Field: "skip_rows", Reason: "must be zero or more"}, "invalid options"},
		{"Other", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}

func TestVersion(t *testing.T) {
	want := "sheetstack 1.2.3\ncommit: abc123\nbuilt: 2026-01-02\n"

	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, want, stdout)

	stdout, _, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, want, stdout)
}

func TestSettingsFromEnv(t *testing.T) {
	dir := fixtureDir(t)
	out := filepath.Join(dir, "result.xlsx")
	t.Setenv("SHEETSTACK_SHEET_NAME", "consolidado")

	_, _, err := execute(t, "run", filepath.Join(dir, "a.xlsx"), "-o", out, "--skip-rows", "0", "--preview", "0")
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"consolidado"}, f.GetSheetList())
}

func TestSettingsFromEnv_Invalid(t *testing.T) {
	t.Setenv("SHEETSTACK_LOG_LEVEL", "chatty")

	_, _, err := execute(t, "run", "a.xlsx")
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "LogLevel", cfgErr.Field)
}

package converter

import (
	"bytes"
	"context"
	"testing"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func testOptions() config.Options {
	opts := config.Defaults()
	opts.SkipRows = 0
	return opts
}

func TestRun(t *testing.T) {
	inputs := []types.RawInput{
		input(t, "a.xlsx", "a", 3),
		input(t, "b.xlsx", "b", 5),
		input(t, "c.xlsx", "c", 2),
	}

	res, err := Run(context.Background(), inputs, testOptions())
	require.NoError(t, err)

	assert.Equal(t, types.Summary{Rows: 10, Columns: 3, Inputs: []string{"a.xlsx", "b.xlsx", "c.xlsx"}}, res.Summary)
	assert.Equal(t, ArtifactName, res.Artifact.Name)

	back, err := ReadTable(types.RawInput{Name: "out", Data: res.Artifact.Data}, 0)
	require.NoError(t, err)
	assert.Equal(t, res.Table.Names(), back.Names())
	assert.Equal(t, 10, back.NumRows())
}

func TestRun_Preview(t *testing.T) {
	res, err := Run(context.Background(), []types.RawInput{input(t, "big.xlsx", "x", 150)}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 150, res.Summary.Rows)
	assert.Equal(t, PreviewRows, res.Preview().NumRows())
	assert.Equal(t, res.Table.Names(), res.Preview().Names())
}

func TestRun_EmptyInput(t *testing.T) {
	_, err := Run(context.Background(), nil, testOptions())
	assert.True(t, errors.Is(err, ErrEmptyInput), "got %v", err)
}

func TestRun_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.SkipRows = -2

	_, err := Run(context.Background(), []types.RawInput{input(t, "a.xlsx", "a", 1)}, opts)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
}

func TestRun_ParseErrorAbortsRun(t *testing.T) {
	inputs := []types.RawInput{
		input(t, "good-1.xlsx", "a", 3),
		{Name: "notes.xlsx", Data: []byte("this is not a workbook")},
		input(t, "good-2.xlsx", "b", 3),
	}

	res, err := Run(context.Background(), inputs, testOptions())
	assert.Nil(t, res)

	var perr *ParseError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, "notes.xlsx", perr.Name)
}

func TestRun_Progress(t *testing.T) {
	inputs := []types.RawInput{
		input(t, "a.xlsx", "a", 1),
		input(t, "b.xlsx", "b", 1),
		input(t, "c.xlsx", "c", 1),
		input(t, "d.xlsx", "d", 1),
	}
	progress := make(chan float64, len(inputs))

	_, err := Run(context.Background(), inputs, testOptions(), WithProgress(progress))
	require.NoError(t, err)
	close(progress)

	var got []float64
	for p := range progress {
		got = append(got, p)
	}
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, got)
}

func TestRun_ProgressNeverBlocks(t *testing.T) {
	unbuffered := make(chan float64)

	_, err := Run(context.Background(), []types.RawInput{input(t, "a.xlsx", "a", 1)}, testOptions(), WithProgress(unbuffered))
	require.NoError(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, []types.RawInput{input(t, "a.xlsx", "a", 1)}, testOptions())
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRun_SheetName(t *testing.T) {
	res, err := Run(context.Background(), []types.RawInput{input(t, "a.xlsx", "a", 1)}, testOptions(), WithSheetName("merged"), WithCache(false))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact.Data)
}

func TestRun_Logs(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	_, err := Run(ctx, []types.RawInput{input(t, "a.xlsx", "a", 2)}, testOptions())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"concatenation complete"`)
	assert.Contains(t, buf.String(), `"rows":2`)
}

func TestCache(t *testing.T) {
	in := input(t, "a.xlsx", "a", 2)
	opts := testOptions()
	cache := NewCache()

	first, err := cache.Normalize(in, opts)
	require.NoError(t, err)
	second, err := cache.Normalize(in, opts)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Hits())

	renamed := types.RawInput{Name: "copy.xlsx", Data: in.Data}
	third, err := cache.Normalize(renamed, opts)
	require.NoError(t, err)
	assert.Equal(t, "copy.xlsx", third.Columns[0].Cells[0], "provenance depends on the name")

	opts.AddFixedColumn = true
	fourth, err := cache.Normalize(in, opts)
	require.NoError(t, err)
	assert.NotSame(t, first, fourth)
	assert.Equal(t, 1, cache.Hits())

	var disabled *Cache
	_, err = disabled.Normalize(in, opts)
	require.NoError(t, err)
}

func TestRun_DuplicateInputs(t *testing.T) {
	in := input(t, "a.xlsx", "a", 2)

	res, err := Run(context.Background(), []types.RawInput{in, in}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Summary.Rows)
}

package converter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "b.xlsx")
	second := filepath.Join(dir, "A.XLSX")
	require.NoError(t, os.WriteFile(first, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("two"), 0o644))

	inputs, err := LoadFiles([]string{first, second})
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "b.xlsx", inputs[0].Name)
	assert.Equal(t, []byte("one"), inputs[0].Data)
	assert.Equal(t, "A.XLSX", inputs[1].Name)
}

func TestLoadFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n"), 0o644))

	t.Run("Wrong extension", func(t *testing.T) {
		_, err := LoadFiles([]string{csvPath})
		var perr *ParseError
		require.True(t, errors.As(err, &perr), "got %v", err)
		assert.Equal(t, "data.csv", perr.Name)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadFiles([]string{filepath.Join(dir, "missing.xlsx")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

package converter

import (
	"fmt"
	"strings"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/types"

	"gitlab.com/tozd/go/errors"
)

// ProvenanceColumn is always the first column of a normalized table and holds
// the name of the file each row came from.
const ProvenanceColumn = "arquivoOrigem"

// Normalize reads one input and applies, in order: header-row skipping,
// left-column dropping, unnamed-column removal, fixed column insertion and
// provenance tagging. The provenance column is inserted last, so it ends up
// first with the fixed column right after it.
func Normalize(in types.RawInput, opts config.Options) (*types.Table, error) {
	t, err := ReadTable(in, opts.SkipRows)
	if err != nil {
		return nil, err
	}

	// Columns may all disappear below; the row count must survive that.
	rows := t.NumRows()

	DropLeftColumns(t, opts.SkipLeftColumns)

	if opts.RemoveUnnamedColumns {
		RemoveUnnamedColumns(t)
	}

	if opts.FixedColumnEnabled() {
		if opts.FixedColumnName == ProvenanceColumn || t.Index(opts.FixedColumnName) >= 0 {
			return nil, errors.WithStack(&config.ConfigurationError{
				Field:  "fixed_column_name",
				Reason: fmt.Sprintf("collides with an existing column %q in %q", opts.FixedColumnName, in.Name),
			})
		}
		t.InsertColumn(0, constantColumn(opts.FixedColumnName, opts.FixedColumnValue, rows))
	}

	if t.Index(ProvenanceColumn) >= 0 {
		return nil, parseError(in.Name, ErrProvenanceColumn)
	}
	t.InsertColumn(0, constantColumn(ProvenanceColumn, in.Name, rows))

	return t, nil
}

// DropLeftColumns removes the first n columns, or all of them when n exceeds
// the column count.
func DropLeftColumns(t *types.Table, n int) {
	if n <= 0 {
		return
	}
	n = min(n, len(t.Columns))
	t.Columns = t.Columns[n:]
}

// RemoveUnnamedColumns drops every column whose name starts with "Unnamed".
func RemoveUnnamedColumns(t *types.Table) {
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if !strings.HasPrefix(c.Name, UnnamedPrefix) {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
}

func constantColumn(name, value string, rows int) types.Column {
	cells := make([]any, rows)
	for i := range cells {
		cells[i] = value
	}
	return types.Column{Name: name, Cells: cells}
}

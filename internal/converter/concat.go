package converter

import (
	"github.com/nconklindev/sheetstack/internal/types"

	"gitlab.com/tozd/go/errors"
)

// Concatenate stacks tables in order. The result has the union of all column
// names in first-seen order; a table lacking a column contributes nil cells.
func Concatenate(tables []*types.Table) (*types.Table, error) {
	if len(tables) == 0 {
		return nil, errors.WithStack(ErrEmptyInput)
	}

	index := make(map[string]int)
	var names []string
	total := 0

	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := index[c.Name]; !ok {
				index[c.Name] = len(names)
				names = append(names, c.Name)
			}
		}
		total += t.NumRows()
	}

	out := &types.Table{Columns: make([]types.Column, len(names))}
	for i, name := range names {
		out.Columns[i] = types.Column{Name: name, Cells: make([]any, total)}
	}

	offset := 0
	for _, t := range tables {
		for _, c := range t.Columns {
			copy(out.Columns[index[c.Name]].Cells[offset:], c.Cells)
		}
		offset += t.NumRows()
	}

	return out, nil
}

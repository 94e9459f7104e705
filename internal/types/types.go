package types

// RawInput is one uploaded workbook: its display name and bytes.
type RawInput struct {
	Name string
	Data []byte
}

// Column is a named sequence of cells. Cells hold nil, string, float64,
// bool or time.Time.
type Column struct {
	Name  string
	Cells []any
}

// Table is an ordered set of equal-length columns with unique names.
type Table struct {
	Columns []Column
}

func (t *Table) NumCols() int {
	return len(t.Columns)
}

func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Row returns row i across all columns.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Cells[i]
	}
	return row
}

// Head returns a table holding at most the first n rows. Cell slices are shared.
func (t *Table) Head(n int) *Table {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	head := &Table{Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		head.Columns[i] = Column{Name: c.Name, Cells: c.Cells[:n]}
	}
	return head
}

// InsertColumn places c at position pos, shifting later columns right.
func (t *Table) InsertColumn(pos int, c Column) {
	t.Columns = append(t.Columns, Column{})
	copy(t.Columns[pos+1:], t.Columns[pos:])
	t.Columns[pos] = c
}

type Summary struct {
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Inputs  []string `json:"inputs"`
}

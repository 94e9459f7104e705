package converter

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// ErrEmptyInput is returned when a run is started without any input files.
var ErrEmptyInput = errors.Base("no input files")

// ErrProvenanceColumn means an input already carries a column named like the
// provenance column.
var ErrProvenanceColumn = errors.Base("input already has a " + ProvenanceColumn + " column")

// ParseError names the input whose bytes could not be read as a workbook.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot read %q as a spreadsheet: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(name string, err error) error {
	return errors.WithStack(&ParseError{Name: name, Err: err})
}

package converter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/sheetstack/internal/types"

	"gitlab.com/tozd/go/errors"
)

// Extension is the only accepted input file type.
const Extension = ".xlsx"

// LoadFiles reads each path into a RawInput named after the file's base name.
func LoadFiles(paths []string) ([]types.RawInput, error) {
	inputs := make([]types.RawInput, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)

		if err := CheckExtension(name); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", path, err)
		}

		inputs = append(inputs, types.RawInput{Name: name, Data: data})
	}
	return inputs, nil
}

// CheckExtension rejects names that are not .xlsx files with a ParseError.
func CheckExtension(name string) error {
	if ext := strings.ToLower(filepath.Ext(name)); ext != Extension {
		return parseError(name, errors.Errorf("unsupported file type: %q", ext))
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSkipRows         = 9
	DefaultFixedColumnName  = "Homem Aranha"
	DefaultFixedColumnValue = "1"
	DefaultSheetName        = "dados"

	envPrefix = "SHEETSTACK"
)

// Options controls how every input file is cleaned. It is built once per run
// and passed by value.
type Options struct {
	SkipRows             int    `yaml:"skip_rows" validate:"gte=0"`
	SkipLeftColumns      int    `yaml:"skip_left_columns" validate:"gte=0"`
	RemoveUnnamedColumns bool   `yaml:"remove_unnamed_columns"`
	AddFixedColumn       bool   `yaml:"add_fixed_column"`
	FixedColumnName      string `yaml:"fixed_column_name"`
	FixedColumnValue     string `yaml:"fixed_column_value"`
}

// Defaults returns the options a user sees before changing anything.
func Defaults() Options {
	return Options{
		SkipRows:             DefaultSkipRows,
		SkipLeftColumns:      0,
		RemoveUnnamedColumns: true,
		AddFixedColumn:       false,
		FixedColumnName:      DefaultFixedColumnName,
		FixedColumnValue:     DefaultFixedColumnValue,
	}
}

// FixedColumnEnabled reports whether a fixed column will be inserted.
func (o Options) FixedColumnEnabled() bool {
	return o.AddFixedColumn && o.FixedColumnName != ""
}

func (o Options) Validate() error {
	return validateStruct(o)
}

// LoadOptions reads a YAML options file on top of Defaults. Keys missing from
// the file keep their default value.
func LoadOptions(path string) (Options, error) {
	opts := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Errorf("reading options file: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errors.Errorf("parsing options file %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}

	return opts, nil
}

// Settings are process-level knobs read from SHEETSTACK_* environment variables.
type Settings struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error disabled"`
	LogFile        string `envconfig:"LOG_FILE"`
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":8080" validate:"required"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"104857600" validate:"gt=0"`
	SheetName      string `envconfig:"SHEET_NAME" default:"dados" validate:"required,max=31"`
	OptionsFile    string `envconfig:"OPTIONS_FILE"`
}

func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return nil, errors.Errorf("loading settings from env: %w", err)
	}

	if err := validateStruct(s); err != nil {
		return nil, err
	}

	return &s, nil
}

// ConfigurationError reports an option value that cannot be used.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.WithStack(&ConfigurationError{Field: fe.Field(), Reason: reason(fe)})
	}

	return errors.WithStack(err)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "required":
		return "is required"
	}
	return "failed " + fe.Tag() + " check"
}

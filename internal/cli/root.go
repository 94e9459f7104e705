// Package cli wires the cobra commands: the interactive TUI at the root, plus
// headless run and serve.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/converter"
	"github.com/nconklindev/sheetstack/internal/logging"
	"github.com/nconklindev/sheetstack/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app holds the flag values and the settings shared by every command.
type app struct {
	build    BuildInfo
	settings *config.Settings

	optionsFile string
	logLevel    string
	sheetName   string

	skipRows    int
	skipCols    int
	keepUnnamed bool
	fixedName   string
	fixedValue  string
	fixed       bool
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, build BuildInfo) int {
	cmd := NewRootCmd(build)
	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(cmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func NewRootCmd(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	cmd := &cobra.Command{
		Use:   "sheetstack",
		Short: "Concatenate xlsx reports into one workbook",
		Long: `sheetstack cleans several .xlsx reports the same way (skip preamble rows,
drop leading and unnamed columns, optionally add a constant column) and stacks
them into a single workbook. Every row is tagged with the file it came from.

Without a subcommand it opens the interactive file picker.`,
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadSettings(cmd)
		},
		RunE: a.runTUI,
	}
	cmd.SetVersionTemplate(versionString(build))

	a.addFlags(cmd)
	cmd.Flags().StringP("output", "o", converter.ArtifactName, "where the TUI saves the workbook")

	cmd.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

func (a *app) addFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&a.optionsFile, "config", "c", "", "YAML options file (defaults to $SHEETSTACK_OPTIONS_FILE)")
	f.StringVar(&a.logLevel, "log-level", "", "log level (defaults to $SHEETSTACK_LOG_LEVEL)")
	f.StringVar(&a.sheetName, "sheet", "", "sheet name in the output workbook")
	f.IntVar(&a.skipRows, "skip-rows", config.DefaultSkipRows, "rows above the header row")
	f.IntVar(&a.skipCols, "skip-cols", 0, "columns dropped from the left of each file")
	f.BoolVar(&a.keepUnnamed, "keep-unnamed", false, "keep columns whose header is blank")
	f.BoolVar(&a.fixed, "fixed", false, "add a constant column after "+converter.ProvenanceColumn)
	f.StringVar(&a.fixedName, "fixed-name", config.DefaultFixedColumnName, "name of the constant column")
	f.StringVar(&a.fixedValue, "fixed-value", config.DefaultFixedColumnValue, "value of the constant column")
}

// loadSettings reads SHEETSTACK_* and lets explicit flags win.
func (a *app) loadSettings(cmd *cobra.Command) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		settings.LogLevel = a.logLevel
	}
	if flags.Changed("sheet") {
		settings.SheetName = a.sheetName
	}
	if flags.Changed("config") {
		settings.OptionsFile = a.optionsFile
	}

	a.settings = settings
	return nil
}

// options layers the options file over the defaults, then any flag the user
// set explicitly over that.
func (a *app) options(cmd *cobra.Command) (config.Options, error) {
	opts := config.Defaults()
	if a.settings.OptionsFile != "" {
		var err error
		if opts, err = config.LoadOptions(a.settings.OptionsFile); err != nil {
			return opts, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("skip-rows") {
		opts.SkipRows = a.skipRows
	}
	if flags.Changed("skip-cols") {
		opts.SkipLeftColumns = a.skipCols
	}
	if flags.Changed("keep-unnamed") {
		opts.RemoveUnnamedColumns = !a.keepUnnamed
	}
	if flags.Changed("fixed") {
		opts.AddFixedColumn = a.fixed
	}
	if flags.Changed("fixed-name") {
		opts.FixedColumnName = a.fixedName
	}
	if flags.Changed("fixed-value") {
		opts.FixedColumnValue = a.fixedValue
	}

	return opts, opts.Validate()
}

func (a *app) runTUI(cmd *cobra.Command, args []string) error {
	opts, err := a.options(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	// The TUI owns the terminal, so logs only go to a file when one is set.
	logger, closer, err := logging.File(a.settings.LogFile, a.settings.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := logger.WithContext(cmd.Context())
	model := ui.InitialModel(ctx, ui.Config{
		Options:    opts,
		OutputPath: output,
		SheetName:  a.settings.SheetName,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return errors.Errorf("running TUI: %w", err)
	}
	return nil
}

func printError(w io.Writer, err error) {
	var perr *converter.ParseError
	var cfgErr *config.ConfigurationError

	switch {
	case errors.Is(err, converter.ErrEmptyInput):
		color.New(color.FgYellow).Fprintln(w, "⚠ no .xlsx files to concatenate")
	case errors.As(err, &perr):
		color.New(color.FgRed, color.Bold).Fprintf(w, "✗ could not read %s\n", perr.Name)
		fmt.Fprintln(w, err)
	case errors.As(err, &cfgErr):
		color.New(color.FgRed, color.Bold).Fprintln(w, "✗ invalid options")
		fmt.Fprintln(w, cfgErr)
	default:
		color.New(color.FgRed, color.Bold).Fprint(w, "✗ ")
		fmt.Fprintln(w, err)
	}
}

func versionString(b BuildInfo) string {
	return fmt.Sprintf("sheetstack %s\ncommit: %s\nbuilt: %s\n", b.Version, b.Commit, b.Date)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Skips the root's settings hook so version works with a broken env.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionString(a.build))
		},
	}
}

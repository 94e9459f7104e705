package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nconklindev/sheetstack/internal/converter"
	"github.com/nconklindev/sheetstack/internal/logging"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

const defaultPreviewRows = 10

func newRunCmd(a *app) *cobra.Command {
	var (
		output  string
		preview int
	)

	cmd := &cobra.Command{
		Use:   "run [files or globs...]",
		Short: "Concatenate workbooks without the TUI",
		Long: `Run normalizes and stacks the given workbooks in argument order and writes
the result to --output. Arguments may be doublestar globs such as
'reports/**/*.xlsx'; matches of one glob are taken in lexical order.`,
		Example: `  sheetstack run jan.xlsx fev.xlsx -o q1.xlsx
  sheetstack run 'relatorios/**/*.xlsx' --skip-rows 0 --fixed --fixed-name Lote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options(cmd)
			if err != nil {
				return err
			}

			paths, err := expandArgs(args)
			if err != nil {
				return err
			}

			logger := logging.Console(cmd.ErrOrStderr(), a.settings.LogLevel)
			ctx, runID := logging.WithRun(logger.WithContext(cmd.Context()))
			logger.Debug().Str("run_id", runID).Strs("paths", paths).Msg("expanded arguments")

			inputs, err := converter.LoadFiles(paths)
			if err != nil {
				return err
			}

			result, err := converter.Run(ctx, inputs, opts, converter.WithSheetName(a.settings.SheetName))
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, result.Artifact.Data, 0o644); err != nil {
				return errors.Errorf("saving %s: %w", output, err)
			}

			out := cmd.OutOrStdout()
			printSummary(out, result, output)
			if preview > 0 {
				if err := printPreview(out, result, preview); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", converter.ArtifactName, "output workbook path")
	cmd.Flags().IntVar(&preview, "preview", defaultPreviewRows, "rows of the result to print, 0 to disable")
	return cmd
}

// expandArgs resolves each argument in order. Plain paths pass through as
// given; glob patterns keep only .xlsx matches.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	for _, arg := range args {
		if !isGlob(arg) {
			add(arg)
			continue
		}

		if !doublestar.ValidatePathPattern(arg) {
			return nil, errors.Errorf("invalid glob %q", arg)
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("expanding %q: %w", arg, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if strings.EqualFold(filepath.Ext(m), converter.Extension) {
				add(m)
			}
		}
	}
	return paths, nil
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func printSummary(w io.Writer, result *converter.Result, output string) {
	green := color.New(color.FgGreen, color.Bold)
	faint := color.New(color.Faint)

	green.Fprint(w, "✓ ")
	fmt.Fprintf(w, "%d rows × %d columns from %d files\n",
		result.Summary.Rows, result.Summary.Columns, len(result.Summary.Inputs))
	faint.Fprintf(w, "  saved %s\n", output)
}

func printPreview(w io.Writer, result *converter.Result, n int) error {
	head := result.Table.Head(n)

	data := make([][]string, 0, head.NumRows()+1)
	data = append(data, head.Names())
	for i := 0; i < head.NumRows(); i++ {
		row := make([]string, head.NumCols())
		for j, c := range head.Columns {
			row[j] = converter.Text(c.Cells[i])
		}
		data = append(data, row)
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return errors.Errorf("rendering preview: %w", err)
	}
	fmt.Fprintln(w, table)
	return nil
}

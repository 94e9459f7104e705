package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/converter"
	"github.com/nconklindev/sheetstack/internal/logging"
	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

type state int

const (
	stateFilePicker state = iota
	stateOptions
	stateProcessing
	stateComplete
	stateError
)

type field int

const (
	fieldSkipRows field = iota
	fieldSkipLeftColumns
	fieldRemoveUnnamed
	fieldAddFixed
	fieldFixedName
	fieldFixedValue
	fieldCount
)

// Config seeds the TUI.
type Config struct {
	Options    config.Options
	OutputPath string
	SheetName  string
	StartDir   string
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	state      state
	filepicker filepicker.Model
	selected   []string
	notice     string

	opts     config.Options
	cursor   field
	editing  bool
	input    textinput.Model
	inputErr string

	outputPath string
	sheetName  string

	result       *converter.Result
	preview      table.Model
	err          error
	width        int
	height       int
	progress     progress.Model
	progressChan chan float64
	resultChan   chan runResultMsg
}

type runResultMsg struct {
	result *converter.Result
	err    error
}

type runCompleteMsg struct {
	result *converter.Result
	err    error
}

type progressMsg float64

func InitialModel(ctx context.Context, cfg Config) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{converter.Extension}
	fp.CurrentDirectory = cfg.StartDir
	if fp.CurrentDirectory == "" {
		fp.CurrentDirectory, _ = os.Getwd()
	}

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accentColor)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(softColor)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(softColor)
	fp.Styles.File = lipgloss.NewStyle().Foreground(whiteColor)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(mutedColor)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(mutedColor)

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 30

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = converter.ArtifactName
	}

	return Model{
		ctx:        ctx,
		state:      stateFilePicker,
		filepicker: fp,
		opts:       cfg.Options,
		input:      ti,
		preview:    table.New(table.WithStyles(tableStyles())),
		outputPath: outputPath,
		sheetName:  cfg.SheetName,
		progress:   progress.New(progress.WithGradient("#2E9E5B", "#7BD389")),
	}
}

func (m Model) Init() tea.Cmd {
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Leave room for the title, selected-file list and help text.
		height := msg.Height - 16
		if height < 5 {
			height = 5
		}
		m.filepicker.SetHeight(height)
		m.progress.Width = min(max(msg.Width-12, 20), 80)
		m.preview.SetHeight(max(msg.Height-16, 5))

		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "tab":
				if len(m.selected) == 0 {
					m.notice = "Select at least one file."
					return m, nil
				}
				m.notice = ""
				m.state = stateOptions
				return m, nil
			case "u":
				if len(m.selected) > 0 {
					m.selected = m.selected[:len(m.selected)-1]
				}
				return m, nil
			}

		case stateOptions:
			if m.editing {
				return m.updateEditing(msg)
			}
			return m.updateOptions(msg)

		case stateProcessing:
			if msg.String() == "esc" && m.cancel != nil {
				m.cancel()
			}
			return m, nil

		case stateComplete:
			switch msg.String() {
			case "q", "esc", "enter":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd

		case stateError:
			switch msg.String() {
			case "b":
				m.err = nil
				m.state = stateFilePicker
				return m, nil
			case "q", "enter", "esc":
				return m, tea.Quit
			}
		}

	case runCompleteMsg:
		m.cancel = nil
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.preview = previewTable(msg.result.Preview(), max(m.height-16, 5))
		m.state = stateComplete
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil
	}

	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			m.addFile(path)
			return m, cmd
		}
		if didSelect, path := m.filepicker.DidSelectDisabledFile(msg); didSelect {
			m.notice = fmt.Sprintf("%s is not an %s file.", filepath.Base(path), converter.Extension)
			return m, cmd
		}

		return m, cmd
	}

	return m, nil
}

func (m *Model) addFile(path string) {
	for _, p := range m.selected {
		if p == path {
			m.notice = filepath.Base(path) + " is already selected."
			return
		}
	}
	m.selected = append(m.selected, path)
	m.notice = ""
}

func (m Model) updateOptions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "b":
		m.state = stateFilePicker
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < fieldCount-1 {
			m.cursor++
		}
	case "left", "-":
		m.step(-1)
	case "right", "+":
		m.step(1)
	case " ":
		switch m.cursor {
		case fieldRemoveUnnamed:
			m.opts.RemoveUnnamedColumns = !m.opts.RemoveUnnamedColumns
		case fieldAddFixed:
			m.opts.AddFixedColumn = !m.opts.AddFixedColumn
		}
	case "enter":
		switch m.cursor {
		case fieldSkipRows, fieldSkipLeftColumns, fieldFixedName, fieldFixedValue:
			m.editing = true
			m.inputErr = ""
			m.input.SetValue(m.fieldValue(m.cursor))
			m.input.CursorEnd()
			return m, m.input.Focus()
		case fieldRemoveUnnamed:
			m.opts.RemoveUnnamedColumns = !m.opts.RemoveUnnamedColumns
		case fieldAddFixed:
			m.opts.AddFixedColumn = !m.opts.AddFixedColumn
		}
	case "r":
		m.state = stateProcessing
		return m.startRun()
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.inputErr = ""
		m.input.Blur()
		return m, nil
	case "enter":
		if err := m.setFieldValue(m.cursor, m.input.Value()); err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.editing = false
		m.inputErr = ""
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// step nudges the numeric field under the cursor, never below zero.
func (m *Model) step(delta int) {
	switch m.cursor {
	case fieldSkipRows:
		m.opts.SkipRows = max(m.opts.SkipRows+delta, 0)
	case fieldSkipLeftColumns:
		m.opts.SkipLeftColumns = max(m.opts.SkipLeftColumns+delta, 0)
	}
}

func (m Model) fieldValue(f field) string {
	switch f {
	case fieldSkipRows:
		return strconv.Itoa(m.opts.SkipRows)
	case fieldSkipLeftColumns:
		return strconv.Itoa(m.opts.SkipLeftColumns)
	case fieldFixedName:
		return m.opts.FixedColumnName
	case fieldFixedValue:
		return m.opts.FixedColumnValue
	}
	return ""
}

func (m *Model) setFieldValue(f field, value string) error {
	switch f {
	case fieldSkipRows, fieldSkipLeftColumns:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return errors.New("enter a whole number of 0 or more")
		}
		if f == fieldSkipRows {
			m.opts.SkipRows = n
		} else {
			m.opts.SkipLeftColumns = n
		}
	case fieldFixedName:
		m.opts.FixedColumnName = value
	case fieldFixedValue:
		m.opts.FixedColumnValue = value
	}
	return nil
}

func (m Model) startRun() (Model, tea.Cmd) {
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan runResultMsg, 1)

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	// Capture everything the goroutine needs; the model is a value.
	progressChan := m.progressChan
	resultChan := m.resultChan
	paths := append([]string(nil), m.selected...)
	opts := m.opts
	outputPath := m.outputPath
	sheetName := m.sheetName

	go func() {
		defer cancel()

		result, err := runFiles(ctx, paths, opts, outputPath, sheetName, progressChan)
		resultChan <- runResultMsg{result: result, err: err}

		close(progressChan)
		close(resultChan)
	}()

	return m, tea.Batch(
		waitForProgress(m.progressChan, m.resultChan),
		m.progress.Init(),
	)
}

func runFiles(ctx context.Context, paths []string, opts config.Options, outputPath, sheetName string, progressChan chan<- float64) (*converter.Result, error) {
	ctx, _ = logging.WithRun(ctx)

	inputs, err := converter.LoadFiles(paths)
	if err != nil {
		return nil, err
	}

	result, err := converter.Run(ctx, inputs, opts,
		converter.WithProgress(progressChan),
		converter.WithSheetName(sheetName),
	)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outputPath, result.Artifact.Data, 0o644); err != nil {
		return nil, errors.Errorf("saving %s: %w", outputPath, err)
	}
	zerolog.Ctx(ctx).Info().Str("output", outputPath).Msg("artifact saved")

	return result, nil
}

func waitForProgress(progressChan chan float64, resultChan chan runResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			// Progress channel closed, check result
			res, ok := <-resultChan
			if ok {
				return runCompleteMsg(res)
			}
			return nil
		}

		return progressMsg(p)
	}
}

func previewTable(tbl *types.Table, height int) table.Model {
	columns := make([]table.Column, tbl.NumCols())
	for i, c := range tbl.Columns {
		columns[i] = table.Column{Title: c.Name, Width: min(converter.ColumnWidth(c.Name, c.Cells), 24)}
	}

	rows := make([]table.Row, tbl.NumRows())
	for i := range rows {
		row := make(table.Row, tbl.NumCols())
		for j, c := range tbl.Columns {
			row[j] = converter.Text(c.Cells[i])
		}
		rows[i] = row
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	t.SetStyles(tableStyles())
	return t
}

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case stateOptions:
		return m.viewOptions()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("📊 sheetstack - Excel concatenator"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Pick one or more .xlsx files, clean them up and download them merged"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")

	if len(m.selected) > 0 {
		s.WriteString(CheckedStyle.Render(fmt.Sprintf("Selected (%d):", len(m.selected))))
		s.WriteString("\n")
		for i, p := range m.selected {
			s.WriteString(fmt.Sprintf("  %d. %s\n", i+1, filepath.Base(p)))
		}
	}

	if m.notice != "" {
		s.WriteString(WarningStyle.Render("⚠ " + m.notice))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("enter: add file • u: undo last • tab: options • q: quit"))

	return s.String()
}

func (m Model) viewOptions() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("⚙️ Options"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("%d file(s) → %s", len(m.selected), m.outputPath)))
	s.WriteString("\n\n")

	check := func(b bool) string {
		if b {
			return "[x]"
		}
		return "[ ]"
	}

	lines := [fieldCount]string{
		fieldSkipRows:        "Rows to skip at the top:        " + m.renderValue(fieldSkipRows),
		fieldSkipLeftColumns: "Columns to drop (left → right): " + m.renderValue(fieldSkipLeftColumns),
		fieldRemoveUnnamed:   check(m.opts.RemoveUnnamedColumns) + " Remove 'Unnamed:*' columns",
		fieldAddFixed:        check(m.opts.AddFixedColumn) + " Add fixed column",
		fieldFixedName:       "    Column name:  " + m.renderValue(fieldFixedName),
		fieldFixedValue:      "    Column value: " + m.renderValue(fieldFixedValue),
	}

	for i, line := range lines {
		f := field(i)
		cursor := "  "
		if m.cursor == f {
			cursor = "> "
		}

		line = cursor + line
		switch {
		case m.cursor == f:
			line = SelectedStyle.Render(line)
		case (f == fieldFixedName || f == fieldFixedValue) && !m.opts.AddFixedColumn:
			line = DisabledStyle.Render(line)
		default:
			line = UnselectedStyle.Render(line)
		}

		s.WriteString(line)
		s.WriteString("\n")
	}

	if m.inputErr != "" {
		s.WriteString("\n")
		s.WriteString(ErrorStyle.Render(m.inputErr))
		s.WriteString("\n")
	}

	help := "↑/↓: navigate • space: toggle • ←/→: adjust • enter: edit • r: concatenate • b: back • q: quit"
	if m.editing {
		help = "enter: save • esc: cancel"
	}
	s.WriteString(HelpStyle.Render(help))

	return BoxStyle.Render(s.String())
}

func (m Model) renderValue(f field) string {
	if m.editing && m.cursor == f {
		return m.input.View()
	}
	return m.fieldValue(f)
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("🛠️ Processing..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Concatenating %d file(s)...", len(m.selected)))
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("esc: cancel"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewComplete() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ Done!"))
	s.WriteString("\n\n")
	s.WriteString(SuccessStyle.Render(fmt.Sprintf("Final size: %d rows × %d columns", m.result.Summary.Rows, m.result.Summary.Columns)))
	s.WriteString("\n")

	// Truncate the path if it's too long
	maxPathLen := max(m.width-20, 30)
	outputPath := m.outputPath
	if len(outputPath) > maxPathLen {
		outputPath = "..." + outputPath[len(outputPath)-maxPathLen+3:]
	}
	s.WriteString(fmt.Sprintf("Saved: %s\n\n", outputPath))

	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("🔎 Preview (first %d rows)", converter.PreviewRows)))
	s.WriteString("\n")
	s.WriteString(m.preview.View())
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("↑/↓: scroll • q: exit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder

	var perr *converter.ParseError
	var cfgErr *config.ConfigurationError
	switch {
	case errors.Is(m.err, converter.ErrEmptyInput):
		s.WriteString(WarningStyle.Render("⚠ Select at least one file."))
	case errors.As(m.err, &perr):
		s.WriteString(ErrorStyle.Render("✗ Could not read " + perr.Name))
		s.WriteString("\n\n")
		s.WriteString(m.err.Error())
		s.WriteString("\n\n")
		s.WriteString("Fix or remove this file and try again.")
	case errors.As(m.err, &cfgErr):
		s.WriteString(ErrorStyle.Render("✗ Invalid options"))
		s.WriteString("\n\n")
		s.WriteString(cfgErr.Error())
	case errors.Is(m.err, context.Canceled):
		s.WriteString(WarningStyle.Render("Cancelled. Nothing was saved."))
	default:
		s.WriteString(ErrorStyle.Render("✗ Error"))
		s.WriteString("\n\n")
		s.WriteString(m.err.Error())
	}

	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("b: back to files • q: exit"))

	return BoxStyle.Render(s.String())
}

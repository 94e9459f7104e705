package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/converter"
	"github.com/nconklindev/sheetstack/internal/logging"
	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// FilesField is the multipart field carrying the uploaded workbooks.
const FilesField = "files"

type errorResponse struct {
	Error string `json:"error"`
	Input string `json:"input,omitempty"`
}

type previewResponse struct {
	types.Summary
	Headers []string   `json:"headers"`
	Preview [][]string `json:"preview"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handleConcat runs the pipeline and streams the workbook back as a download.
func (s *Server) handleConcat(w http.ResponseWriter, r *http.Request) {
	result, ok := s.process(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", result.Artifact.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Artifact.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Artifact.Data)))
	w.Header().Set("X-Row-Count", strconv.Itoa(result.Summary.Rows))
	w.Header().Set("X-Column-Count", strconv.Itoa(result.Summary.Columns))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Artifact.Data); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("writing artifact")
	}
}

// handlePreview runs the pipeline and returns the summary plus the first rows.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	result, ok := s.process(w, r)
	if !ok {
		return
	}

	head := result.Preview()
	rows := make([][]string, head.NumRows())
	for i := range rows {
		row := make([]string, head.NumCols())
		for j, c := range head.Columns {
			row[j] = converter.Text(c.Cells[i])
		}
		rows[i] = row
	}

	render.JSON(w, r, previewResponse{
		Summary: result.Summary,
		Headers: head.Names(),
		Preview: rows,
	})
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) (*converter.Result, bool) {
	if r.ContentLength > s.settings.MaxUploadBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return nil, false
		}
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := optionsFromForm(r, s.defaults)
	if err != nil {
		s.writeRunError(w, r, err)
		return nil, false
	}

	inputs, err := readUploads(r.MultipartForm.File[FilesField])
	if err != nil {
		s.writeRunError(w, r, err)
		return nil, false
	}

	ctx, runID := logging.WithRun(r.Context())
	start := time.Now()
	result, err := converter.Run(ctx, inputs, opts, converter.WithSheetName(s.settings.SheetName))
	s.metrics.observe(result, err, time.Since(start), len(inputs))
	if err != nil {
		s.writeRunError(w, r, err)
		return nil, false
	}

	w.Header().Set("X-Run-ID", runID)
	return result, true
}

func readUploads(files []*multipart.FileHeader) ([]types.RawInput, error) {
	inputs := make([]types.RawInput, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if err := converter.CheckExtension(name); err != nil {
			return nil, err
		}

		f, err := fh.Open()
		if err != nil {
			return nil, errors.Errorf("opening upload %s: %w", name, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.Errorf("reading upload %s: %w", name, err)
		}

		inputs = append(inputs, types.RawInput{Name: name, Data: data})
	}
	return inputs, nil
}

// optionsFromForm overrides defaults with any option fields present in the form.
func optionsFromForm(r *http.Request, defaults config.Options) (config.Options, error) {
	opts := defaults

	ints := []struct {
		field string
		dst   *int
	}{
		{"skip_rows", &opts.SkipRows},
		{"skip_left_columns", &opts.SkipLeftColumns},
	}
	for _, f := range ints {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.WithStack(&config.ConfigurationError{Field: f.field, Reason: "must be a whole number"})
		}
		*f.dst = n
	}

	bools := []struct {
		field string
		dst   *bool
	}{
		{"remove_unnamed_columns", &opts.RemoveUnnamedColumns},
		{"add_fixed_column", &opts.AddFixedColumn},
	}
	for _, f := range bools {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		if v == "on" {
			*f.dst = true
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.WithStack(&config.ConfigurationError{Field: f.field, Reason: "must be true or false"})
		}
		*f.dst = b
	}

	if _, ok := r.MultipartForm.Value["fixed_column_name"]; ok {
		opts.FixedColumnName = r.FormValue("fixed_column_name")
	}
	if _, ok := r.MultipartForm.Value["fixed_column_value"]; ok {
		opts.FixedColumnValue = r.FormValue("fixed_column_value")
	}

	return opts, opts.Validate()
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *converter.ParseError
	var cfgErr *config.ConfigurationError

	switch {
	case errors.Is(err, converter.ErrEmptyInput):
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "send at least one .xlsx file"})
	case errors.As(err, &perr):
		s.writeError(w, r, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Input: perr.Name})
	case errors.As(err, &cfgErr):
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: cfgErr.Error()})
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is reading the response.
		zerolog.Ctx(r.Context()).Warn().Msg("request cancelled")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("run failed")
		s.writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

package converter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/types"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// PreviewRows is how many rows front-ends show before download.
const PreviewRows = 100

// Result is the outcome of a successful run.
type Result struct {
	Table    *types.Table
	Artifact *Artifact
	Summary  types.Summary
}

// Preview returns the first PreviewRows rows of the combined table.
func (r *Result) Preview() *types.Table {
	return r.Table.Head(PreviewRows)
}

type runConfig struct {
	progress  chan<- float64
	sheetName string
	cache     bool
}

type RunOption func(*runConfig)

// WithProgress reports the fraction of inputs normalized after each one.
// Sends never block; a full channel drops the update.
func WithProgress(ch chan<- float64) RunOption {
	return func(rc *runConfig) { rc.progress = ch }
}

func WithSheetName(name string) RunOption {
	return func(rc *runConfig) { rc.sheetName = name }
}

// WithCache toggles memoizing identical inputs within the run. On by default.
func WithCache(enabled bool) RunOption {
	return func(rc *runConfig) { rc.cache = enabled }
}

// Run normalizes every input in order, concatenates the results and exports
// them. Any error aborts the whole run and no partial result is returned.
func Run(ctx context.Context, inputs []types.RawInput, opts config.Options, runOpts ...RunOption) (*Result, error) {
	rc := runConfig{sheetName: config.DefaultSheetName, cache: true}
	for _, o := range runOpts {
		o(&rc)
	}

	log := zerolog.Ctx(ctx)
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errors.WithStack(ErrEmptyInput)
	}

	var cache *Cache
	if rc.cache {
		cache = NewCache()
	}

	names := make([]string, 0, len(inputs))
	tables := make([]*types.Table, 0, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("run cancelled after %d of %d inputs: %w", i, len(inputs), err)
		}

		t, err := cache.Normalize(in, opts)
		if err != nil {
			log.Error().Err(err).Str("input", in.Name).Msg("normalize failed")
			return nil, err
		}

		log.Debug().
			Str("input", in.Name).
			Int("rows", t.NumRows()).
			Int("columns", t.NumCols()).
			Msg("input normalized")

		names = append(names, in.Name)
		tables = append(tables, t)
		reportProgress(rc.progress, float64(i+1)/float64(len(inputs)))
	}

	combined, err := Concatenate(tables)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("run cancelled before export: %w", err)
	}

	artifact, err := Export(combined, rc.sheetName)
	if err != nil {
		return nil, err
	}

	summary := types.Summary{Rows: combined.NumRows(), Columns: combined.NumCols(), Inputs: names}
	log.Info().
		Int("inputs", len(inputs)).
		Int("rows", summary.Rows).
		Int("columns", summary.Columns).
		Int("bytes", len(artifact.Data)).
		Dur("elapsed", time.Since(start)).
		Msg("concatenation complete")

	return &Result{Table: combined, Artifact: artifact, Summary: summary}, nil
}

func reportProgress(ch chan<- float64, p float64) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

// Cache memoizes Normalize by content, display name and options. It is meant
// to live for a single run.
type Cache struct {
	tables map[string]*types.Table
	hits   int
}

func NewCache() *Cache {
	return &Cache{tables: make(map[string]*types.Table)}
}

// Normalize returns the cached table for an identical input or computes it.
// A nil Cache always computes.
func (c *Cache) Normalize(in types.RawInput, opts config.Options) (*types.Table, error) {
	if c == nil {
		return Normalize(in, opts)
	}

	key := cacheKey(in, opts)
	if t, ok := c.tables[key]; ok {
		c.hits++
		return t, nil
	}

	t, err := Normalize(in, opts)
	if err != nil {
		return nil, err
	}
	c.tables[key] = t
	return t, nil
}

func (c *Cache) Hits() int {
	return c.hits
}

func cacheKey(in types.RawInput, opts config.Options) string {
	sum := sha256.Sum256(in.Data)
	return fmt.Sprintf("%x|%s|%+v", sum, in.Name, opts)
}

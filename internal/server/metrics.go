package server

import (
	"context"
	"time"

	"github.com/nconklindev/sheetstack/internal/config"
	"github.com/nconklindev/sheetstack/internal/converter"

	"github.com/prometheus/client_golang/prometheus"
	"gitlab.com/tozd/go/errors"
)

type metrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	inputs   prometheus.Counter
	rows     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetstack",
			Name:      "runs_total",
			Help:      "Concatenation runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sheetstack",
			Name:      "run_duration_seconds",
			Help:      "Time spent normalizing, concatenating and exporting.",
			Buckets:   prometheus.DefBuckets,
		}),
		inputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sheetstack",
			Name:      "inputs_total",
			Help:      "Input files received.",
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sheetstack",
			Name:      "rows_exported_total",
			Help:      "Rows written to exported workbooks.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.inputs, m.rows)
	return m
}

func (m *metrics) observe(result *converter.Result, err error, elapsed time.Duration, inputs int) {
	m.runs.WithLabelValues(outcome(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.inputs.Add(float64(inputs))
	if result != nil {
		m.rows.Add(float64(result.Summary.Rows))
	}
}

func outcome(err error) string {
	var perr *converter.ParseError
	var cfgErr *config.ConfigurationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, converter.ErrEmptyInput):
		return "empty"
	case errors.As(err, &perr):
		return "parse_error"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "error"
}

package benchmark

import (
	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/metrics"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
	"github.com/YuminosukeSato/specsel/stability"
)

// Defaults of a benchmark.
const (
	DefaultNRuns     = 10
	DefaultTrainSize = 0.75
)

// DefaultMetrics are evaluated on the test split when none are configured.
var DefaultMetrics = []string{metrics.NameMSE, metrics.NameMAE, metrics.NameR2}

type config struct {
	nRuns                int
	trainSize            float64
	randomState          int64
	metrics              []string
	newRegressor         func() model.Regressor
	nJobs                int
	correlationThreshold float64
}

func defaultConfig() config {
	return config{
		nRuns:       DefaultNRuns,
		trainSize:   DefaultTrainSize,
		randomState: -1,
		metrics:     DefaultMetrics,
		newRegressor: func() model.Regressor {
			return cross_decomposition.NewPLSRegression()
		},
		correlationThreshold: stability.DefaultCorrelationThreshold,
	}
}

// Option configures a benchmark.
type Option func(*config)

// WithNRuns sets the number of random train/test splits.
func WithNRuns(n int) Option {
	return func(c *config) { c.nRuns = n }
}

// WithTrainSize sets the fraction of samples used for training.
func WithTrainSize(f float64) Option {
	return func(c *config) { c.trainSize = f }
}

// WithRandomState seeds the splits and the selectors. -1 draws a fresh seed.
func WithRandomState(seed int64) Option {
	return func(c *config) { c.randomState = seed }
}

// WithMetrics sets the regression metrics evaluated on the test split, by
// the names accepted by metrics.Lookup.
func WithMetrics(names ...string) Option {
	return func(c *config) { c.metrics = names }
}

// WithRegressor sets the factory of the evaluation regressor refitted on the
// selected wavelengths. The default is PLS with two components.
func WithRegressor(newRegressor func() model.Regressor) Option {
	return func(c *config) { c.newRegressor = newRegressor }
}

// WithNJobs bounds the number of concurrently fitted (run, method) pairs.
func WithNJobs(n int) Option {
	return func(c *config) { c.nJobs = n }
}

// WithCorrelationThreshold sets the Zucknick correlation cut-off.
func WithCorrelationThreshold(t float64) Option {
	return func(c *config) { c.correlationThreshold = t }
}

package main

import (
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/linear"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
	fs "github.com/YuminosukeSato/specsel/sklearn/feature_selection"
)

// Config is the YAML run configuration. Zero values in the per-method blocks
// keep the library defaults.
type Config struct {
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`

	Method string `yaml:"method" validate:"required,selector"`
	Seed   int64  `yaml:"seed"`
	NJobs  int    `yaml:"n_jobs" validate:"gte=0"`

	VIP   VIPConfig   `yaml:"vip"`
	MCUVE MCUVEConfig `yaml:"mcuve"`
	CARS  CARSConfig  `yaml:"cars"`
	IRF   IRFConfig   `yaml:"irf"`
	IPLS  IPLSConfig  `yaml:"ipls"`
	VISSA VISSAConfig `yaml:"vissa"`

	Benchmark BenchmarkConfig `yaml:"benchmark"`
}

type InputConfig struct {
	Path   string `yaml:"path" validate:"required"`
	Target string `yaml:"target"`
}

type OutputConfig struct {
	// Result is the JSON result or report path; empty writes to stdout.
	Result    string `yaml:"result"`
	Selection string `yaml:"selection_csv"`
	PlotDir   string `yaml:"plot_dir"`
}

type VIPConfig struct {
	NFeatures     int      `yaml:"n_features" validate:"gte=0"`
	NComponents   int      `yaml:"n_components" validate:"gte=0"`
	MaxComponents int      `yaml:"max_components" validate:"gte=0"`
	KFolds        int      `yaml:"k_folds" validate:"omitempty,gte=2"`
	Threshold     *float64 `yaml:"threshold"`
}

type MCUVEConfig struct {
	NFeatures      int     `yaml:"n_features" validate:"gte=0"`
	NComponents    int     `yaml:"n_components" validate:"gte=0"`
	MaxComponents  int     `yaml:"max_components" validate:"gte=0"`
	KFolds         int     `yaml:"k_folds" validate:"omitempty,gte=2"`
	NIterations    int     `yaml:"n_iterations" validate:"omitempty,gte=2"`
	SampleFraction float64 `yaml:"sample_fraction" validate:"omitempty,gt=0,lte=1"`
}

type CARSConfig struct {
	NIterations    int     `yaml:"n_iterations" validate:"omitempty,gte=2"`
	MaxComponents  int     `yaml:"max_components" validate:"gte=0"`
	KFolds         int     `yaml:"k_folds" validate:"omitempty,gte=2"`
	SampleFraction float64 `yaml:"sample_fraction" validate:"omitempty,gt=0,lte=1"`
	Resampling     bool    `yaml:"resampling"`
}

type IRFConfig struct {
	IntervalWidth  int `yaml:"interval_width" validate:"gte=0"`
	NIntervalsKeep int `yaml:"n_intervals_keep" validate:"gte=0"`
	NTrees         int `yaml:"n_trees" validate:"gte=0"`
	MaxFeatures    int `yaml:"max_features" validate:"gte=0"`
}

type IPLSConfig struct {
	IntervalWidth  int `yaml:"interval_width" validate:"gte=0"`
	NIntervalsKeep int `yaml:"n_intervals_keep" validate:"gte=0"`
	NComponents    int `yaml:"n_components" validate:"gte=0"`
	MaxComponents  int `yaml:"max_components" validate:"gte=0"`
	KFolds         int `yaml:"k_folds" validate:"omitempty,gte=2"`
}

type VISSAConfig struct {
	NFeatures   int `yaml:"n_features" validate:"gte=0"`
	NComponents int `yaml:"n_components" validate:"gte=0"`
	NSubmodels  int `yaml:"n_submodels" validate:"omitempty,gte=20"`
	KFolds      int `yaml:"k_folds" validate:"omitempty,gte=2"`
}

type BenchmarkConfig struct {
	Methods   []string `yaml:"methods" validate:"omitempty,unique,dive,selector"`
	NRuns     int      `yaml:"n_runs" validate:"gte=0"`
	TrainSize float64  `yaml:"train_size" validate:"omitempty,gt=0,lt=1"`

	// Regressor refitted on the selected wavelengths: "pls" (default) or
	// "mlr" for ordinary least squares.
	Regressor   string `yaml:"regressor" validate:"omitempty,oneof=pls mlr"`
	NComponents int    `yaml:"n_components" validate:"gte=0"`
}

// newRegressor returns the evaluation regressor factory of the benchmark.
func (b BenchmarkConfig) newRegressor() func() model.Regressor {
	if b.Regressor == "mlr" {
		return func() model.Regressor { return linear.NewLinearRegression() }
	}
	var opts []cross_decomposition.Option
	if b.NComponents > 0 {
		opts = append(opts, cross_decomposition.WithNComponents(b.NComponents))
	}
	return func() model.Regressor { return cross_decomposition.NewPLSRegression(opts...) }
}

// selectorFactories maps method names to constructors taking the shared
// options (seed, n_jobs) that come last so method blocks cannot override them.
var selectorFactories = map[string]func(cfg *Config, shared ...fs.Option) model.Selector{
	"vip": func(cfg *Config, shared ...fs.Option) model.Selector {
		c := cfg.VIP
		opts := nonZero(
			intOpt(c.NFeatures, fs.WithNFeatures),
			intOpt(c.NComponents, fs.WithNComponents),
			intOpt(c.MaxComponents, fs.WithMaxComponents),
			intOpt(c.KFolds, fs.WithKFolds),
		)
		if c.Threshold != nil {
			opts = append(opts, fs.WithThreshold(*c.Threshold))
		}
		return fs.NewVIP(append(opts, shared...)...)
	},
	"mcuve": func(cfg *Config, shared ...fs.Option) model.Selector {
		c := cfg.MCUVE
		opts := nonZero(
			intOpt(c.NFeatures, fs.WithNFeatures),
			intOpt(c.NComponents, fs.WithNComponents),
			intOpt(c.MaxComponents, fs.WithMaxComponents),
			intOpt(c.KFolds, fs.WithKFolds),
			intOpt(c.NIterations, fs.WithNIterations),
			floatOpt(c.SampleFraction, fs.WithSampleFraction),
		)
		return fs.NewMCUVE(append(opts, shared...)...)
	},
	"cars": func(cfg *Config, shared ...fs.Option) model.Selector {
		c := cfg.CARS
		opts := nonZero(
			intOpt(c.NIterations, fs.WithNIterations),
			intOpt(c.MaxComponents, fs.WithMaxComponents),
			intOpt(c.KFolds, fs.WithKFolds),
			floatOpt(c.SampleFraction, fs.WithSampleFraction),
		)
		if c.Resampling {
			opts = append(opts, fs.WithResampling(true))
		}
		return fs.NewCARS(append(opts, shared...)...)
	},
	"irf": func(cfg *Config, shared ...fs.Option) model.Selector {
		c := cfg.IRF
		opts := nonZero(
			intOpt(c.IntervalWidth, fs.WithIntervalWidth),
			intOpt(c.NIntervalsKeep, fs.WithNIntervalsKeep),
			intOpt(c.NTrees, fs.WithNTrees),
			intOpt(c.MaxFeatures, fs.WithMaxFeatures),
		)
		return fs.NewIRF(append(opts, shared...)...)
	},
	"ipls": func(cfg *Config, shared ...fs.Option) model.Selector {
		c := cfg.IPLS
		opts := nonZero(
			intOpt(c.IntervalWidth, fs.WithIntervalWidth),
			intOpt(c.NIntervalsKeep, fs.WithNIntervalsKeep),
			intOpt(c.NComponents, fs.WithNComponents),
			intOpt(c.MaxComponents, fs.WithMaxComponents),
			intOpt(c.KFolds, fs.WithKFolds),
		)
		return fs.NewIPLS(append(opts, shared...)...)
	},
	"vissa": func(cfg *Config, shared ...fs.Option) model.Selector {
		c := cfg.VISSA
		opts := nonZero(
			intOpt(c.NFeatures, fs.WithNFeatures),
			intOpt(c.NComponents, fs.WithNComponents),
			intOpt(c.NSubmodels, fs.WithNSubmodels),
			intOpt(c.KFolds, fs.WithKFolds),
		)
		return fs.NewVISSA(append(opts, shared...)...)
	},
}

func intOpt(v int, with func(int) fs.Option) fs.Option {
	if v == 0 {
		return nil
	}
	return with(v)
}

func floatOpt(v float64, with func(float64) fs.Option) fs.Option {
	if v == 0 {
		return nil
	}
	return with(v)
}

func nonZero(opts ...fs.Option) []fs.Option {
	out := opts[:0]
	for _, o := range opts {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// methodNames returns the registered selector names in sorted order.
func methodNames() []string {
	names := make([]string, 0, len(selectorFactories))
	for name := range selectorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// configValidate is the validator instance for run configurations.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("selector", validateSelector)
}

func validateSelector(fl validator.FieldLevel) bool {
	_, ok := selectorFactories[fl.Field().String()]
	return ok
}

func defaultConfig() *Config {
	return &Config{Method: "vip"}
}

// loadConfig reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate checks the struct tags and reports the first failing field as an
// InvalidParameterError.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewInvalidParameterError(fe.Namespace(), "failed '"+fe.Tag()+"' check", fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}

// newSelector builds the configured selector for method with the given seed.
func (c *Config) newSelector(method string, seed int64) (model.Selector, error) {
	factory, ok := selectorFactories[method]
	if !ok {
		return nil, errors.NewInvalidParameterError("method", "unknown selector", method)
	}
	shared := []fs.Option{fs.WithRandomState(seed)}
	if c.NJobs > 0 {
		shared = append(shared, fs.WithNJobs(c.NJobs))
	}
	return factory(c, shared...), nil
}

package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/specsel/benchmark"
	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/internal/dataio"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/plotting"
	fs "github.com/YuminosukeSato/specsel/sklearn/feature_selection"
	"github.com/YuminosukeSato/specsel/stability"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "specsel",
		Short: "Wavelength selection for NIR/IR calibration",
		Long: `specsel selects informative wavelengths from spectra with VIP, MC-UVE,
CARS, I-RF, iPLS or VISSA, and benchmarks selectors on repeated random splits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetupLogger(opts.logFormat, opts.logLevel)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML run configuration")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", log.FormatJSON, "log format (json, console, slog)")

	root.AddCommand(newSelectCmd(opts), newBenchmarkCmd(opts), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the specsel version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("specsel %s\n", version)
		},
	}
}

// addInputFlags registers the flags shared by select and benchmark.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "CSV file with one spectrum per row")
	f.String("target", "", "target column name (default: last column)")
	f.Int64("seed", 0, "random seed of the stochastic selectors")
	f.Int("n-jobs", 0, "worker goroutines (0: one per CPU)")
	f.StringP("output", "o", "", "result JSON path (default: stdout)")
	f.String("plot-dir", "", "directory for PNG plots")
}

// resolveConfig loads the configuration file, applies the flags the user set
// and validates the outcome.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (*Config, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("input") {
		cfg.Input.Path, _ = f.GetString("input")
	}
	if f.Changed("target") {
		cfg.Input.Target, _ = f.GetString("target")
	}
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("n-jobs") {
		cfg.NJobs, _ = f.GetInt("n-jobs")
	}
	if f.Changed("output") {
		cfg.Output.Result, _ = f.GetString("output")
	}
	if f.Changed("plot-dir") {
		cfg.Output.PlotDir, _ = f.GetString("plot-dir")
	}
	if f.Lookup("method") != nil && f.Changed("method") {
		cfg.Method, _ = f.GetString("method")
	}
	if f.Lookup("selection-csv") != nil && f.Changed("selection-csv") {
		cfg.Output.Selection, _ = f.GetString("selection-csv")
	}
	if f.Lookup("n-features") != nil && f.Changed("n-features") {
		n, _ := f.GetInt("n-features")
		if err := cfg.setNFeatures(n); err != nil {
			return nil, err
		}
	}
	if f.Lookup("methods") != nil && f.Changed("methods") {
		cfg.Benchmark.Methods, _ = f.GetStringSlice("methods")
	}
	if f.Lookup("runs") != nil && f.Changed("runs") {
		cfg.Benchmark.NRuns, _ = f.GetInt("runs")
	}
	if f.Lookup("train-size") != nil && f.Changed("train-size") {
		cfg.Benchmark.TrainSize, _ = f.GetFloat64("train-size")
	}
	if f.Lookup("regressor") != nil && f.Changed("regressor") {
		cfg.Benchmark.Regressor, _ = f.GetString("regressor")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setNFeatures overrides n_features of the configured point selector.
func (c *Config) setNFeatures(n int) error {
	switch c.Method {
	case "vip":
		c.VIP.NFeatures = n
	case "mcuve":
		c.MCUVE.NFeatures = n
	case "vissa":
		c.VISSA.NFeatures = n
	default:
		return errors.NewInvalidParameterError("n-features", "not used by "+c.Method, n)
	}
	return nil
}

func newSelectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select wavelengths with one method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runSelect(cmd.OutOrStdout(), cfg)
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringP("method", "m", "", "selector: "+strings.Join(methodNames(), ", "))
	cmd.Flags().Int("n-features", 0, "wavelengths to keep (vip, mcuve, vissa)")
	cmd.Flags().String("selection-csv", "", "write index,wavelength,score,selected rows to this path")
	return cmd
}

func runSelect(stdout io.Writer, cfg *Config) error {
	logger := log.GetLoggerWithName("cli").With(log.OperationKey, "select")

	table, err := dataio.LoadCSV(cfg.Input.Path, cfg.Input.Target)
	if err != nil {
		return err
	}
	sel, err := cfg.newSelector(cfg.Method, cfg.Seed)
	if err != nil {
		return err
	}
	if err := sel.Fit(table.Dataset.X, table.Dataset.Y); err != nil {
		return errors.Wrapf(err, "%s fit", cfg.Method)
	}
	res, err := sel.Result()
	if err != nil {
		return err
	}

	if cfg.Output.Result == "" {
		if err := model.WriteResult(res, stdout); err != nil {
			return err
		}
	} else if err := model.SaveResult(res, cfg.Output.Result); err != nil {
		return err
	}

	if cfg.Output.Selection != "" {
		if err := writeFile(cfg.Output.Selection, func(w io.Writer) error {
			return dataio.WriteSelectionCSV(w, table.Wavelengths, res)
		}); err != nil {
			return err
		}
	}

	if dir := cfg.Output.PlotDir; dir != "" {
		if err := plotting.ScoreProfile(res, filepath.Join(dir, cfg.Method+"_scores.png")); err != nil {
			return errors.Wrap(err, "plot scores")
		}
		if cars, ok := sel.(*fs.CARS); ok {
			history, _ := cars.History()
			best, _ := cars.BestIteration()
			if err := plotting.CARSHistory(history, best, filepath.Join(dir, "cars_history.png")); err != nil {
				return errors.Wrap(err, "plot CARS history")
			}
		}
	}

	logger.Info("Selection written",
		log.ModelNameKey, res.Method,
		log.SelectedKey, res.NSelected(),
		"output", cfg.Output.Result,
	)
	return nil
}

func newBenchmarkCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Benchmark selectors on repeated train/test splits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runBenchmark(cmd, cfg)
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringSlice("methods", nil, "selectors to compare (default: all)")
	cmd.Flags().Int("runs", 0, "number of random splits (default 10)")
	cmd.Flags().Float64("train-size", 0, "training fraction of each split (default 0.75)")
	cmd.Flags().String("regressor", "", "evaluation regressor: pls (default) or mlr")
	return cmd
}

func runBenchmark(cmd *cobra.Command, cfg *Config) error {
	logger := log.GetLoggerWithName("cli").With(log.OperationKey, "benchmark")

	table, err := dataio.LoadCSV(cfg.Input.Path, cfg.Input.Target)
	if err != nil {
		return err
	}

	names := cfg.Benchmark.Methods
	if len(names) == 0 {
		names = methodNames()
	}
	methods := make([]benchmark.Method, len(names))
	for i, name := range names {
		methods[i] = benchmark.Method{
			Name: name,
			New: func(seed int64) model.Selector {
				s, _ := cfg.newSelector(name, seed)
				return s
			},
		}
	}

	bopts := []benchmark.Option{
		benchmark.WithRandomState(cfg.Seed),
		benchmark.WithRegressor(cfg.Benchmark.newRegressor()),
	}
	if cfg.Benchmark.NRuns > 0 {
		bopts = append(bopts, benchmark.WithNRuns(cfg.Benchmark.NRuns))
	}
	if cfg.Benchmark.TrainSize > 0 {
		bopts = append(bopts, benchmark.WithTrainSize(cfg.Benchmark.TrainSize))
	}
	if cfg.NJobs > 0 {
		bopts = append(bopts, benchmark.WithNJobs(cfg.NJobs))
	}

	report, err := benchmark.Run(cmd.Context(), table.Dataset.X, table.Dataset.Y, methods, bopts...)
	if err != nil {
		return err
	}

	write := func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	if cfg.Output.Result == "" {
		if err := write(cmd.OutOrStdout()); err != nil {
			return errors.Wrap(err, "encode report")
		}
	} else if err := writeFile(cfg.Output.Result, write); err != nil {
		return err
	}

	if dir := cfg.Output.PlotDir; dir != "" {
		if err := plotting.SelectionProbability(report, filepath.Join(dir, "selection_probability.png")); err != nil {
			return errors.Wrap(err, "plot selection probability")
		}
		if err := plotting.ExecTime(report, filepath.Join(dir, "exec_time.png")); err != nil {
			return errors.Wrap(err, "plot execution time")
		}
		for _, metric := range report.Metrics {
			if err := plotting.MetricBoxes(report, metric, filepath.Join(dir, metric+".png")); err != nil {
				return errors.Wrapf(err, "plot %s", metric)
			}
			if report.NRuns < 2 {
				continue
			}
			for _, score := range []string{stability.DengName, stability.ZucknickName} {
				name := metric + "_vs_" + score + ".png"
				if err := plotting.ScoreVsStability(report, metric, score, filepath.Join(dir, name)); err != nil {
					return errors.Wrapf(err, "plot %s against %s", metric, score)
				}
			}
		}
	}

	logger.Info("Benchmark written",
		"methods", len(report.Methods),
		log.RunKey, report.NRuns,
		"output", cfg.Output.Result,
	)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/specsel/benchmark"
	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// writeSpectraCSV writes n spectra of p wavelengths whose target depends on
// wavelengths 3 and 4 only.
func writeSpectraCSV(t *testing.T, n, p int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	path := filepath.Join(t.TempDir(), "spectra.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, p+1)
	for j := 0; j < p; j++ {
		header[j] = fmt.Sprintf("%d", 1100+2*j)
	}
	header[p] = "protein"
	require.NoError(t, w.Write(header))
	for i := 0; i < n; i++ {
		row := make([]string, p+1)
		y := 0.0
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			if j == 3 || j == 4 {
				y += 2 * v
			}
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		row[p] = strconv.FormatFloat(y+0.05*rng.NormFloat64(), 'g', -1, 64)
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "specsel "+version+"\n", out)
}

func TestSelectCommand(t *testing.T) {
	input := writeSpectraCSV(t, 40, 20)
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "vip.json")
	selPath := filepath.Join(dir, "vip.csv")

	_, err := execute(t, "select",
		"--input", input,
		"--method", "vip",
		"--n-features", "2",
		"--output", resultPath,
		"--selection-csv", selPath,
	)
	require.NoError(t, err)

	res, err := model.LoadResult(resultPath)
	require.NoError(t, err)
	assert.Equal(t, "VIP", res.Method)
	assert.Equal(t, []int{3, 4}, res.Indices)

	data, err := os.ReadFile(selPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 21)
	assert.Equal(t, "index,wavelength,score,selected", lines[0])
	assert.True(t, strings.HasPrefix(lines[4], "3,1106,"))
	assert.True(t, strings.HasSuffix(lines[4], ",true"))
}

func TestSelectCommandStdout(t *testing.T) {
	input := writeSpectraCSV(t, 30, 12)
	out, err := execute(t, "select", "-i", input, "-m", "mcuve", "--seed", "3")
	require.NoError(t, err)

	res, err := model.ReadResult(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "MCUVE", res.Method)
	assert.Len(t, res.Indices, 6)
}

func TestSelectCommandConfigFile(t *testing.T) {
	input := writeSpectraCSV(t, 40, 16)
	dir := t.TempDir()
	plotDir := filepath.Join(dir, "plots")
	cfgPath := filepath.Join(dir, "run.yaml")
	yaml := fmt.Sprintf(`
input:
  path: %s
  target: protein
output:
  result: %s
  plot_dir: %s
method: cars
seed: 5
cars:
  n_iterations: 10
  max_components: 4
`, input, filepath.Join(dir, "cars.json"), plotDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	// flags override the file
	_, err := execute(t, "select", "--config", cfgPath, "--seed", "9")
	require.NoError(t, err)

	res, err := model.LoadResult(filepath.Join(dir, "cars.json"))
	require.NoError(t, err)
	assert.Equal(t, "CARS", res.Method)
	assert.EqualValues(t, 9, res.Params["random_state"])
	assert.EqualValues(t, 10, res.Params["n_iterations"])
	for _, name := range []string{"cars_scores.png", "cars_history.png", "cars_history_size.png"} {
		assert.FileExists(t, filepath.Join(plotDir, name))
	}
}

func TestBenchmarkCommand(t *testing.T) {
	input := writeSpectraCSV(t, 40, 12)
	plotDir := filepath.Join(t.TempDir(), "plots")

	out, err := execute(t, "benchmark",
		"-i", input,
		"--methods", "vip,mcuve",
		"--runs", "2",
		"--plot-dir", plotDir,
	)
	require.NoError(t, err)

	var report benchmark.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"mcuve", "vip"}, report.Methods)
	assert.Equal(t, 2, report.NRuns)
	assert.Len(t, report.Records, 4)
	assert.FileExists(t, filepath.Join(plotDir, "selection_probability.png"))
	assert.FileExists(t, filepath.Join(plotDir, "exec_time.png"))
	for _, metric := range report.Metrics {
		assert.FileExists(t, filepath.Join(plotDir, metric+".png"))
		assert.FileExists(t, filepath.Join(plotDir, metric+"_vs_deng_score.png"))
		assert.FileExists(t, filepath.Join(plotDir, metric+"_vs_zucknick_score.png"))
	}
}

func TestBenchmarkCommandLeastSquares(t *testing.T) {
	input := writeSpectraCSV(t, 40, 12)
	out, err := execute(t, "benchmark", "-i", input, "--methods", "vip", "--runs", "1", "--regressor", "mlr")
	require.NoError(t, err)

	var report benchmark.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Records, 1)
	assert.Greater(t, report.Records[0].Metrics["r2"], 0.9)
	assert.Empty(t, report.Stability["vip"])

	_, err = execute(t, "benchmark", "-i", input, "--regressor", "svr")
	var ipe *errors.InvalidParameterError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "Config.Benchmark.Regressor", ipe.ParamName)
}

func TestConfigValidation(t *testing.T) {
	input := writeSpectraCSV(t, 20, 8)
	tests := []struct {
		name  string
		yaml  string
		param string
	}{
		{"unknown method", "method: pca\n", "Config.Method"},
		{"sample fraction above one", "method: mcuve\nmcuve:\n  sample_fraction: 1.5\n", "Config.MCUVE.SampleFraction"},
		{"one fold", "method: cars\ncars:\n  k_folds: 1\n", "Config.CARS.KFolds"},
		{"too few submodels", "method: vissa\nvissa:\n  n_submodels: 10\n", "Config.VISSA.NSubmodels"},
		{"duplicate methods", "benchmark:\n  methods: [vip, vip]\n", "Config.Benchmark.Methods"},
		{"negative n_jobs", "n_jobs: -1\n", "Config.NJobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "run.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(tt.yaml), 0o600))

			_, err := execute(t, "select", "-c", cfgPath, "-i", input)
			require.Error(t, err)
			var ipe *errors.InvalidParameterError
			require.True(t, errors.As(err, &ipe), "got %v", err)
			assert.Equal(t, tt.param, ipe.ParamName)
		})
	}

	t.Run("missing input", func(t *testing.T) {
		_, err := execute(t, "select", "-m", "vip")
		var ipe *errors.InvalidParameterError
		require.True(t, errors.As(err, &ipe))
		assert.Equal(t, "Config.Input.Path", ipe.ParamName)
	})

	t.Run("n-features on interval selector", func(t *testing.T) {
		_, err := execute(t, "select", "-i", input, "-m", "irf", "--n-features", "3")
		var ipe *errors.InvalidParameterError
		require.True(t, errors.As(err, &ipe))
		assert.Equal(t, "n-features", ipe.ParamName)
	})

	t.Run("bad log level", func(t *testing.T) {
		root := newRootCmd()
		root.SetArgs([]string{"version", "--log-level", "loud"})
		assert.Error(t, root.Execute())
	})
}

func TestNewSelectorDefaults(t *testing.T) {
	cfg := defaultConfig()
	cfg.IRF.IntervalWidth = 4
	for _, name := range methodNames() {
		sel, err := cfg.newSelector(name, 1)
		require.NoError(t, err, name)
		assert.NotNil(t, sel)
	}
	params := mustSelector(t, cfg, "irf").GetParams()
	assert.EqualValues(t, 4, params["interval_width"])

	cfg.IPLS.NIntervalsKeep = 3
	params = mustSelector(t, cfg, "ipls").GetParams()
	assert.EqualValues(t, 3, params["n_intervals_keep"])
	assert.EqualValues(t, 10, params["interval_width"])

	_, err := cfg.newSelector("pca", 1)
	assert.Error(t, err)
}

func mustSelector(t *testing.T, cfg *Config, name string) model.Selector {
	t.Helper()
	sel, err := cfg.newSelector(name, 1)
	require.NoError(t, err)
	return sel
}

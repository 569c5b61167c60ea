package plotting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/specsel/benchmark"
	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/sklearn/feature_selection"
)

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestScoreProfile(t *testing.T) {
	res := model.NewSelectionResult("VIP", []bool{false, true, true, false}, []float64{0.2, 1.5, 1.2, 0.4})
	path := filepath.Join(t.TempDir(), "plots", "vip.png")
	require.NoError(t, ScoreProfile(res, path))
	assertFile(t, path)

	assert.Error(t, ScoreProfile(nil, path))
}

func TestCARSHistory(t *testing.T) {
	history := []feature_selection.CARSStep{
		{Iteration: 1, Subset: []int{0, 1, 2, 3}, RMSECV: 0.5, NComponents: 2},
		{Iteration: 2, Subset: []int{1, 2}, RMSECV: 0.3, NComponents: 2},
		{Iteration: 3, Subset: []int{2}, RMSECV: 0.8, NComponents: 1},
	}
	dir := t.TempDir()
	require.NoError(t, CARSHistory(history, 2, filepath.Join(dir, "cars.png")))
	assertFile(t, filepath.Join(dir, "cars.png"))
	assertFile(t, filepath.Join(dir, "cars_size.png"))

	assert.Error(t, CARSHistory(nil, 1, filepath.Join(dir, "empty.png")))
}

func testReport() *benchmark.Report {
	return &benchmark.Report{
		Methods:      []string{"CARS", "VIP"},
		Metrics:      []string{"mse"},
		NRuns:        2,
		NWavelengths: 4,
		Records: []benchmark.RunRecord{
			{Run: 0, Method: "CARS", Support: []int{1, 2}, Metrics: map[string]float64{"mse": 0.2}, FitTime: time.Millisecond},
			{Run: 0, Method: "VIP", Support: []int{0, 1}, Metrics: map[string]float64{"mse": 0.3}, FitTime: time.Millisecond},
			{Run: 1, Method: "CARS", Support: []int{2}, Metrics: map[string]float64{"mse": 0.25}, FitTime: time.Millisecond},
			{Run: 1, Method: "VIP", Support: []int{0, 1}, Metrics: map[string]float64{"mse": 0.35}, FitTime: time.Millisecond},
		},
	}
}

func TestBenchmarkPlots(t *testing.T) {
	dir := t.TempDir()
	report := testReport()

	require.NoError(t, SelectionProbability(report, filepath.Join(dir, "prob.png")))
	assertFile(t, filepath.Join(dir, "prob.png"))

	require.NoError(t, MetricBoxes(report, "mse", filepath.Join(dir, "mse.svg")))
	assertFile(t, filepath.Join(dir, "mse.svg"))

	require.NoError(t, ExecTime(report, filepath.Join(dir, "time.png")))
	assertFile(t, filepath.Join(dir, "time.png"))

	// 安定性スコアは 2 回以上の実行で記録される
	assert.Error(t, ScoreVsStability(report, "mse", "deng_score", filepath.Join(dir, "stab.png")))
	report.Stability = map[string]map[string]float64{
		"CARS": {"deng_score": 0.4},
		"VIP":  {"deng_score": 1.0},
	}
	require.NoError(t, ScoreVsStability(report, "mse", "deng_score", filepath.Join(dir, "stab.png")))
	assertFile(t, filepath.Join(dir, "stab.png"))
	assert.Error(t, ScoreVsStability(report, "r2", "deng_score", filepath.Join(dir, "stab_r2.png")))

	assert.Error(t, MetricBoxes(report, "r2", filepath.Join(dir, "r2.png")))
	assert.Error(t, SelectionProbability(&benchmark.Report{}, filepath.Join(dir, "none.png")))
	assert.Error(t, ExecTime(&benchmark.Report{}, filepath.Join(dir, "none.png")))
}

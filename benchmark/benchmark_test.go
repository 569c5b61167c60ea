package benchmark

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/linear"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/sklearn/feature_selection"
)

func testData(n, p int, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y.SetVec(i, 2*X.At(i, 2)-X.At(i, 5)+0.1*rng.NormFloat64())
	}
	return X, y
}

func testMethods() []Method {
	return []Method{
		{Name: "VIP", New: func(int64) model.Selector {
			return feature_selection.NewVIP(feature_selection.WithNFeatures(4))
		}},
		{Name: "MCUVE", New: func(seed int64) model.Selector {
			return feature_selection.NewMCUVE(feature_selection.WithNFeatures(4),
				feature_selection.WithNIterations(10), feature_selection.WithRandomState(seed))
		}},
	}
}

func TestRun(t *testing.T) {
	X, y := testData(60, 12, 1)

	report, err := Run(context.Background(), X, y, testMethods(), WithNRuns(3), WithRandomState(5))
	require.NoError(t, err)

	assert.Equal(t, []string{"MCUVE", "VIP"}, report.Methods)
	assert.Equal(t, DefaultMetrics, report.Metrics)
	assert.Equal(t, 12, report.NWavelengths)
	require.Len(t, report.Records, 6)

	for i, rec := range report.Records {
		assert.Equal(t, i/2, rec.Run)
		assert.Equal(t, report.Methods[i%2], rec.Method)
		assert.Len(t, rec.Support, 4)
		assert.Contains(t, rec.Support, 2)
		assert.Contains(t, rec.Support, 5)
		assert.Greater(t, rec.Metrics["r2"], 0.9)
	}

	for _, method := range report.Methods {
		assert.Len(t, report.MetricSamples(method, "mse"), 3)
		assert.Contains(t, report.Summaries[method], FitTimeMetric)
		assert.Contains(t, report.Summaries[method], "mae")

		prob := report.SelectionProbability(method)
		require.Len(t, prob, 12)
		assert.Equal(t, 1.0, prob[2])
		assert.Equal(t, 1.0, prob[5])

		assert.Contains(t, report.Stability[method], "deng_score")
		assert.Contains(t, report.Stability[method], "zucknick_score")
		assert.LessOrEqual(t, report.Stability[method]["deng_score"], 1.0)
	}
}

func TestRun_Deterministic(t *testing.T) {
	X, y := testData(50, 10, 2)

	run := func(jobs int) *Report {
		report, err := Run(context.Background(), X, y, testMethods(),
			WithNRuns(4), WithRandomState(11), WithNJobs(jobs), WithMetrics("rmse"))
		require.NoError(t, err)
		return report
	}
	a, b := run(1), run(4)
	require.Len(t, b.Records, len(a.Records))
	for i := range a.Records {
		assert.Equal(t, a.Records[i].Seed, b.Records[i].Seed)
		assert.Equal(t, a.Records[i].Support, b.Records[i].Support)
		assert.Equal(t, a.Records[i].Metrics, b.Records[i].Metrics)
	}
	assert.Equal(t, a.Stability, b.Stability)
}

func TestRun_CustomRegressor(t *testing.T) {
	X, y := testData(40, 8, 3)

	report, err := Run(context.Background(), X, y, testMethods()[:1],
		WithNRuns(1), WithRandomState(1),
		WithRegressor(func() model.Regressor { return linear.NewLinearRegression() }))
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Empty(t, report.Stability)
	assert.Equal(t, 0.0, report.Summaries["VIP"]["mse"].Std)
}

func TestRun_Errors(t *testing.T) {
	X, y := testData(20, 6, 4)
	ctx := context.Background()
	var ipe *errors.InvalidParameterError

	_, err := Run(ctx, X, y, nil)
	assert.True(t, errors.As(err, &ipe))

	_, err = Run(ctx, X, y, testMethods(), WithNRuns(0))
	assert.True(t, errors.As(err, &ipe))

	_, err = Run(ctx, X, y, testMethods(), WithMetrics("accuracy"))
	assert.True(t, errors.As(err, &ipe))

	_, err = Run(ctx, X, y, testMethods(), WithTrainSize(1))
	assert.True(t, errors.As(err, &ipe))

	dup := append(testMethods(), testMethods()[0])
	_, err = Run(ctx, X, y, dup)
	assert.True(t, errors.As(err, &ipe))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Run(cancelled, X, y, testMethods(), WithNRuns(2))
	assert.ErrorIs(t, err, context.Canceled)
}

package feature_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/sklearn/model_selection"
)

func TestIPLS_SelectsInformativeInterval(t *testing.T) {
	X, y := syntheticSpectra(100, 50, 0.1, 31)

	ipls := NewIPLS(WithIntervalWidth(5))
	require.NoError(t, ipls.Fit(X, y))

	selected, err := ipls.SelectedIntervals()
	require.NoError(t, err)
	require.Equal(t, []model.Interval{{Start: 10, End: 15}}, selected)

	intervalScores, err := ipls.GetIntervalScores()
	require.NoError(t, err)
	require.Len(t, intervalScores, 10)
	for k, s := range intervalScores {
		assert.Less(t, s, 0.0)
		if k != 2 {
			assert.Greater(t, intervalScores[2], s+0.5, "interval %d", k)
		}
	}

	res, err := ipls.Result()
	require.NoError(t, err)
	require.NotNil(t, res.CVError)
	assert.InDelta(t, -intervalScores[2], *res.CVError, 1e-12)
	for j := 10; j < 15; j++ {
		assert.Equal(t, intervalScores[2], res.Scores[j])
	}
}

func TestIPLS_IntervalScoreIsRMSECV(t *testing.T) {
	X, y := syntheticSpectra(40, 12, 0.2, 35)

	ipls := NewIPLS(WithIntervalWidth(4), WithKFolds(4))
	require.NoError(t, ipls.Fit(X, y))
	intervalScores, err := ipls.GetIntervalScores()
	require.NoError(t, err)

	cv := model_selection.NewKFold(4, false, 0)
	for k, iv := range []model.Interval{{Start: 0, End: 4}, {Start: 4, End: 8}, {Start: 8, End: 12}} {
		want, err := model_selection.CrossValRMSE(model.SelectColumns(X, iv.Indices()), y, 2, cv, 0)
		require.NoError(t, err)
		assert.InDelta(t, -want, intervalScores[k], 1e-9, "interval %s", iv)
	}
}

func TestIPLS_ComponentSearchNeverWorse(t *testing.T) {
	X, y := syntheticSpectra(60, 20, 0.1, 36)

	fixed := NewIPLS(WithIntervalWidth(10))
	require.NoError(t, fixed.Fit(X, y))
	searched := NewIPLS(WithIntervalWidth(10), WithComponentSearch(4, 5))
	require.NoError(t, searched.Fit(X, y))

	a, err := fixed.GetIntervalScores()
	require.NoError(t, err)
	b, err := searched.GetIntervalScores()
	require.NoError(t, err)
	for k := range a {
		assert.GreaterOrEqual(t, b[k], a[k]-1e-12)
	}
}

func TestIPLS_ConstantIntervalUsesMeanPredictor(t *testing.T) {
	X, y := syntheticSpectra(30, 10, 0.1, 37)
	for i := 0; i < 30; i++ {
		for j := 5; j < 10; j++ {
			X.Set(i, j, 2.5)
		}
	}

	ipls := NewIPLS(WithIntervalWidth(5), WithKFolds(3))
	require.NoError(t, ipls.Fit(X, y))
	intervalScores, err := ipls.GetIntervalScores()
	require.NoError(t, err)

	baseline, err := meanPredictorRMSECV(y, model_selection.NewKFold(3, false, 0))
	require.NoError(t, err)
	assert.InDelta(t, -baseline, intervalScores[1], 1e-12)
}

func TestIPLS_Deterministic(t *testing.T) {
	X, y := syntheticSpectra(40, 20, 0.2, 38)

	fit := func(jobs int) []float64 {
		ipls := NewIPLS(WithIntervalWidth(3), WithNIntervalsKeep(2), WithNJobs(jobs))
		require.NoError(t, ipls.Fit(X, y))
		s, err := ipls.GetIntervalScores()
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, fit(1), fit(4))
}

func TestIPLS_Errors(t *testing.T) {
	X, y := syntheticSpectra(30, 10, 0.1, 39)

	assertInvalidParameter(t, NewIPLS(WithIntervalWidth(5), WithNIntervalsKeep(3)).Fit(X, y))
	assertInvalidParameter(t, NewIPLS(WithIntervalWidth(0)).Fit(X, y))
	assertInvalidParameter(t, NewIPLS(WithIntervalWidth(5), WithNComponents(0)).Fit(X, y))
	assertInvalidParameter(t, NewIPLS(WithIntervalWidth(5), WithKFolds(1)).Fit(X, y))

	Xs, ys := syntheticSpectra(4, 10, 0.1, 40)
	assertInsufficientSamples(t, NewIPLS(WithIntervalWidth(5)).Fit(Xs, ys))
}

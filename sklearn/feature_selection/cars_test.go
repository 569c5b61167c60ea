package feature_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionRatio(t *testing.T) {
	assert.InDelta(t, 1.0, retentionRatio(1, 20, 50), 1e-12)
	assert.InDelta(t, 2.0/50, retentionRatio(20, 20, 50), 1e-12)
	for it := 2; it <= 20; it++ {
		assert.Less(t, retentionRatio(it, 20, 50), retentionRatio(it-1, 20, 50))
	}
	assert.Equal(t, 1.0, retentionRatio(3, 5, 2))
}

func TestCARS_ConvergesToInformativeWavelengths(t *testing.T) {
	X, y := syntheticSpectra(100, 50, 0.1, 21)

	cars := NewCARS(WithNIterations(20), WithRandomState(42))
	require.NoError(t, cars.Fit(X, y))

	idx, err := cars.GetSupportIndices()
	require.NoError(t, err)
	for _, j := range informative {
		assert.Contains(t, idx, j)
	}

	history, err := cars.History()
	require.NoError(t, err)
	require.Len(t, history, 20)
	assert.Len(t, history[0].Subset, 50)
	for it := 1; it < len(history); it++ {
		assert.LessOrEqual(t, len(history[it].Subset), len(history[it-1].Subset))
	}

	best, err := cars.BestIteration()
	require.NoError(t, err)
	winner := history[best-1]
	assert.LessOrEqual(t, winner.RMSECV, history[0].RMSECV)
	assert.Equal(t, winner.Subset, idx)

	res, err := cars.Result()
	require.NoError(t, err)
	require.NotNil(t, res.CVError)
	assert.Equal(t, winner.RMSECV, *res.CVError)

	scores, err := cars.GetScores()
	require.NoError(t, err)
	for j, s := range scores {
		if !res.Support[j] {
			assert.Equal(t, 0.0, s)
		}
	}
}

func TestCARS_TwoIterations(t *testing.T) {
	X, y := syntheticSpectra(40, 20, 0.1, 22)

	cars := NewCARS(WithNIterations(2), WithRandomState(1))
	require.NoError(t, cars.Fit(X, y))

	history, err := cars.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Len(t, history[0].Subset, 20)
	assert.Len(t, history[1].Subset, 2)

	idx, err := cars.GetSupportIndices()
	require.NoError(t, err)
	assert.True(t, len(idx) == 20 || len(idx) == 2)
}

func TestCARS_Deterministic(t *testing.T) {
	X, y := syntheticSpectra(50, 30, 0.2, 23)

	fit := func(opts ...Option) []CARSStep {
		cars := NewCARS(append([]Option{WithNIterations(10), WithRandomState(9)}, opts...)...)
		require.NoError(t, cars.Fit(X, y))
		h, err := cars.History()
		require.NoError(t, err)
		return h
	}
	assert.Equal(t, fit(), fit())
	assert.Equal(t, fit(WithResampling(true), WithSampleFraction(0.8)),
		fit(WithResampling(true), WithSampleFraction(0.8)))
}

func TestCARS_Resampling(t *testing.T) {
	X, y := syntheticSpectra(60, 30, 0.1, 24)

	cars := NewCARS(WithNIterations(15), WithResampling(true), WithSampleFraction(0.9), WithRandomState(3))
	require.NoError(t, cars.Fit(X, y))

	history, err := cars.History()
	require.NoError(t, err)
	for it := 1; it < len(history); it++ {
		assert.LessOrEqual(t, len(history[it].Subset), len(history[it-1].Subset))
		assert.NotEmpty(t, history[it].Subset)
	}
	assert.Equal(t, true, cars.GetParams()["resampling"])
}

func TestCARS_Errors(t *testing.T) {
	X, y := syntheticSpectra(30, 10, 0.1, 25)

	assertInvalidParameter(t, NewCARS(WithNIterations(1)).Fit(X, y))
	assertInvalidParameter(t, NewCARS(WithKFolds(1)).Fit(X, y))
	assertInvalidParameter(t, NewCARS(WithMaxComponents(0)).Fit(X, y))
	assertInvalidParameter(t, NewCARS(WithSampleFraction(2)).Fit(X, y))

	small, ys := syntheticSpectra(4, 10, 0.1, 26)
	assertInsufficientSamples(t, NewCARS(WithKFolds(5)).Fit(small, ys))
}

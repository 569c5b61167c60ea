package feature_selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
)

func allSelectors() map[string]func() model.Selector {
	return map[string]func() model.Selector{
		"VIP": func() model.Selector { return NewVIP(WithNFeatures(10)) },
		"MCUVE": func() model.Selector {
			return NewMCUVE(WithNFeatures(10), WithNIterations(30), WithRandomState(1))
		},
		"CARS": func() model.Selector { return NewCARS(WithNIterations(10), WithRandomState(2)) },
		"IRF": func() model.Selector {
			return NewIRF(WithIntervalWidth(5), WithNIntervalsKeep(2), WithNTrees(20), WithRandomState(3))
		},
		"IPLS": func() model.Selector {
			return NewIPLS(WithIntervalWidth(5), WithNIntervalsKeep(2))
		},
		"VISSA": func() model.Selector {
			return NewVISSA(WithNFeatures(8), WithNSubmodels(100), WithRandomState(4))
		},
	}
}

// TestSelectors_MaskAndTransform checks the contract shared by all selectors
func TestSelectors_MaskAndTransform(t *testing.T) {
	X, y := syntheticSpectra(60, 30, 0.1, 7)

	for name, newSelector := range allSelectors() {
		t.Run(name, func(t *testing.T) {
			sel := newSelector()
			require.NoError(t, sel.Fit(X, y))

			mask, err := sel.GetSupport()
			require.NoError(t, err)
			require.Len(t, mask, 30)
			selected := countTrue(mask)
			assert.GreaterOrEqual(t, selected, 1)
			assert.LessOrEqual(t, selected, 30)

			idx, err := sel.GetSupportIndices()
			require.NoError(t, err)
			assert.Equal(t, model.IndicesFromSupport(mask), idx)

			Xt, err := sel.Transform(X)
			require.NoError(t, err)
			r, c := Xt.Dims()
			assert.Equal(t, 60, r)
			assert.Equal(t, selected, c)
			for k, j := range idx {
				assert.Equal(t, X.At(5, j), Xt.At(5, k))
			}

			scores, err := sel.GetScores()
			require.NoError(t, err)
			assert.Len(t, scores, 30)

			res, err := sel.Result()
			require.NoError(t, err)
			assert.Equal(t, name, res.Method)
			assert.NoError(t, res.Validate(30))

			_, err = sel.Transform(mat.NewDense(2, 29, nil))
			var de *errors.DimensionError
			assert.True(t, errors.As(err, &de))
		})
	}
}

// TestSelectors_NotFitted checks that accessors fail before a successful fit
func TestSelectors_NotFitted(t *testing.T) {
	for name, newSelector := range allSelectors() {
		t.Run(name, func(t *testing.T) {
			sel := newSelector()
			var nfe *errors.NotFittedError

			_, err := sel.GetSupport()
			assert.True(t, errors.As(err, &nfe))
			_, err = sel.Transform(mat.NewDense(2, 2, nil))
			assert.True(t, errors.As(err, &nfe))
			_, err = sel.GetScores()
			assert.True(t, errors.As(err, &nfe))
			_, err = sel.Result()
			assert.True(t, errors.As(err, &nfe))
		})
	}
}

// TestSelectors_InvalidInput checks input validation and that a failed fit
// leaves the selector unfitted
func TestSelectors_InvalidInput(t *testing.T) {
	X, y := syntheticSpectra(40, 20, 0.1, 8)
	bad := mat.DenseCopyOf(X)
	bad.Set(3, 4, math.NaN())

	for name, newSelector := range allSelectors() {
		t.Run(name, func(t *testing.T) {
			sel := newSelector()
			require.NoError(t, sel.Fit(X, y))

			err := sel.Fit(bad, y)
			var ipe *errors.InvalidParameterError
			assert.True(t, errors.As(err, &ipe))

			_, err = sel.GetSupport()
			var nfe *errors.NotFittedError
			assert.True(t, errors.As(err, &nfe))

			err = sel.Fit(X, mat.NewVecDense(39, nil))
			var de *errors.DimensionError
			assert.True(t, errors.As(err, &de))
		})
	}
}

// TestSelectors_Params checks the parameter contract
func TestSelectors_Params(t *testing.T) {
	for name, newSelector := range allSelectors() {
		t.Run(name, func(t *testing.T) {
			sel := newSelector()
			params := sel.GetParams()
			require.NotEmpty(t, params)

			assert.NoError(t, sel.SetParams(params))
			assert.Equal(t, params, sel.GetParams())

			err := sel.SetParams(map[string]interface{}{"no_such_option": 1})
			var ipe *errors.InvalidParameterError
			assert.True(t, errors.As(err, &ipe))
		})
	}

	vip := NewVIP()
	require.NoError(t, vip.SetParams(map[string]interface{}{"n_features": 3.0, "threshold": 1.0}))
	assert.Equal(t, 3, vip.GetParams()["n_features"])
	assert.Equal(t, 1.0, vip.GetParams()["threshold"])

	err := vip.SetParams(map[string]interface{}{"n_components": "two"})
	var ipe *errors.InvalidParameterError
	assert.True(t, errors.As(err, &ipe))
	assert.Equal(t, 2, vip.GetParams()["n_components"])
}

// TestSelectors_Logging checks the structured fit records
func TestSelectors_Logging(t *testing.T) {
	logger, restore := log.UseTestProvider(log.LevelInfo)
	defer restore()

	X, y := syntheticSpectra(40, 20, 0.1, 9)
	sel := NewVIP(WithNFeatures(5))
	require.NoError(t, sel.Fit(X, y))

	assert.True(t, logger.ContainsMessage("Training started"))
	assert.True(t, logger.ContainsMessage("Training completed"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "VIP"))
	assert.True(t, logger.ContainsField(log.SelectedKey, float64(5)))
	assert.False(t, logger.ContainsMessage("VIP scores computed"))
}

// TestFitTransform checks the convenience wrapper
func TestFitTransform(t *testing.T) {
	X, y := syntheticSpectra(40, 20, 0.1, 10)
	Xt, err := FitTransform(NewVIP(WithNFeatures(4)), X, y)
	require.NoError(t, err)
	_, c := Xt.Dims()
	assert.Equal(t, 4, c)
}

// TestTopK checks ranking and tie breaking
func TestTopK(t *testing.T) {
	assert.Equal(t, []int{1, 3, 0}, topK([]float64{1, 5, 0, 5, 0.5}, 3))
	assert.Equal(t, []int{0, 1}, topK([]float64{2, 2}, 5))
}

// TestResolveNFeatures checks the n_features defaults and bounds
func TestResolveNFeatures(t *testing.T) {
	n, err := resolveNFeatures(0, 9)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = resolveNFeatures(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = resolveNFeatures(10, 9)
	var ipe *errors.InvalidParameterError
	assert.True(t, errors.As(err, &ipe))

	_, err = resolveNFeatures(-1, 9)
	assert.True(t, errors.As(err, &ipe))
}

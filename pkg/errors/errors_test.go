package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "specsel: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Transform",
			kind:    "not fitted",
			wantMsg: "specsel: Transform: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("VIP.Transform", 50, 48, 1)
	assert.Equal(t, "specsel: VIP.Transform: dimension mismatch on axis 1 (wavelengths). Expected 50, got 48", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 50, dimErr.Expected)
	assert.Equal(t, 48, dimErr.Got)

	rows := NewDimensionError("Fit", 100, 99, 0)
	assert.Contains(t, rows.Error(), "(rows)")
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("CARS", "GetSupport")
	assert.Equal(t, "specsel: CARS: this model is not fitted yet. Call Fit() before using GetSupport()", err.Error())

	var nfErr *NotFittedError
	assert.True(t, As(err, &nfErr))
}

func TestNewInvalidParameterError(t *testing.T) {
	err := NewInvalidParameterError("n_iterations", "must be at least 2", 1)
	assert.Equal(t, "specsel: invalid parameter 'n_iterations': must be at least 2 (got: 1)", err.Error())

	var ipErr *InvalidParameterError
	require.True(t, As(err, &ipErr))
	assert.Equal(t, "n_iterations", ipErr.ParamName)
	assert.Equal(t, 1, ipErr.Value)
}

func TestNewInsufficientSamplesError(t *testing.T) {
	err := NewInsufficientSamplesError("KFold.Split", 5, 3, "fewer samples than folds")
	assert.Equal(t, "specsel: KFold.Split: insufficient samples: fewer samples than folds (required 5, got 3)", err.Error())

	var isErr *InsufficientSamplesError
	require.True(t, As(err, &isErr))
	assert.Equal(t, 5, isErr.Required)

	// 他の種類とは区別される
	var rdErr *RankDeficiencyError
	assert.False(t, As(err, &rdErr))
}

func TestNewRankDeficiencyError(t *testing.T) {
	err := NewRankDeficiencyError("PLS.Fit", "all wavelengths have zero variance")
	assert.Equal(t, "specsel: PLS.Fit: rank deficient: all wavelengths have zero variance", err.Error())

	var rdErr *RankDeficiencyError
	assert.True(t, As(err, &rdErr))
}

func TestWarnings(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewComponentCapWarning("PLS.Fit", 10, 4, "only 4 wavelengths"))
	Warn(NewDegenerateDataWarning("MCUVE.Fit", 2, 0, "have zero coefficient spread"))

	require.Len(t, got, 2)
	assert.Equal(t, "PLS.Fit: n_components reduced from 10 to 4 (only 4 wavelengths)", got[0].Error())
	assert.Equal(t, "MCUVE.Fit: 2 wavelength(s) have zero coefficient spread; score set to 0", got[1].Error())
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "loading spectra")
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.False(t, Is(wrapped, ErrSingularMatrix))
	assert.True(t, strings.HasPrefix(wrapped.Error(), "loading spectra"))
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrSingularMatrix, "component %d", 3)
	assert.Equal(t, "component 3: singular matrix", wrapped.Error())
	assert.True(t, Is(wrapped, ErrSingularMatrix))
}

func TestErrorChaining(t *testing.T) {
	base := NewInvalidParameterError("k_folds", "must be at least 2", 1)
	err := Wrap(NewModelError("CARS.Fit", "cross-validation", base), "benchmark run 3")

	var ipErr *InvalidParameterError
	require.True(t, As(err, &ipErr))
	assert.Equal(t, "k_folds", ipErr.ParamName)
	assert.Contains(t, err.Error(), "benchmark run 3")
}

func TestCheckFinite(t *testing.T) {
	type grid [][]float64
	m := matrixFunc(func(i, j int) float64 { return grid{{1, 2}, {3, 4}}[i][j] })
	assert.NoError(t, CheckFinite("X", m, 2, 2))

	bad := matrixFunc(func(i, j int) float64 {
		if i == 1 && j == 0 {
			return nan()
		}
		return 1
	})
	err := CheckFinite("X", bad, 2, 2)
	var ipErr *InvalidParameterError
	require.True(t, As(err, &ipErr))
	assert.Equal(t, "X", ipErr.ParamName)
	assert.Equal(t, [2]int{1, 0}, ipErr.Value)
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.Equal(t, 0.0, SafeDivide(1, 1e-12))
	assert.InDelta(t, 2.5, SafeDivide(5, 2), 1e-12)
}

type matrixFunc func(i, j int) float64

func (f matrixFunc) At(i, j int) float64 { return f(i, j) }

func nan() float64 {
	zero := 0.0
	return zero / zero
}

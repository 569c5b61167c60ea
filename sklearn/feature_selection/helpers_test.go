package feature_selection

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// informative are the wavelengths the synthetic target depends on.
var informative = []int{10, 11, 12, 13, 14, 15}

// syntheticSpectra returns n×p spectra with independent standard normal
// intensities and y = Σ_{j∈informative} x_j + N(0, noise²).
func syntheticSpectra(n, p int, noise float64, seed uint64) (*mat.Dense, *mat.VecDense) {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, norm.Rand())
		}
		v := 0.0
		for _, j := range informative {
			if j < p {
				v += X.At(i, j)
			}
		}
		y.SetVec(i, v+noise*norm.Rand())
	}
	return X, y
}

func countTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}

func assertInvalidParameter(t *testing.T, err error) {
	t.Helper()
	var ipe *errors.InvalidParameterError
	assert.True(t, errors.As(err, &ipe), "expected InvalidParameterError, got %v", err)
}

func assertInsufficientSamples(t *testing.T, err error) {
	t.Helper()
	var ise *errors.InsufficientSamplesError
	assert.True(t, errors.As(err, &ise), "expected InsufficientSamplesError, got %v", err)
}

package errors

import (
	"math"
)

// CheckFinite reports an InvalidParameterError when the matrix contains NaN or Inf.
// Spectra and targets with missing values cannot be used for selection.
func CheckFinite(param string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewInvalidParameterError(param, "contains NaN or Inf (missing values are not supported)",
					[2]int{i, j})
			}
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// SpectralDataset は前処理済みスペクトル X (n×p) と目的変数 y (n) の読み取り専用ビュー。
// 選択器は Fit の間これを借用し、変更しない。
type SpectralDataset struct {
	X *mat.Dense
	Y *mat.VecDense
}

// NewSpectralDataset は X と y を検証して SpectralDataset を作成する。
// y は n×1 の行列または mat.Vector を受け付ける。
//
// 検証内容:
//   - n ≥ 2, p ≥ 1
//   - X と y の行数が一致する
//   - NaN / Inf を含まない
func NewSpectralDataset(X, y mat.Matrix) (*SpectralDataset, error) {
	if X == nil || y == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "spectral dataset")
	}
	n, p := X.Dims()
	if p < 1 {
		return nil, errors.NewInvalidParameterError("X", "must contain at least one wavelength", p)
	}
	if n < 2 {
		return nil, errors.NewInsufficientSamplesError("SpectralDataset", 2, n, "at least two spectra are needed")
	}
	yr, yc := y.Dims()
	if yc != 1 {
		return nil, errors.NewInvalidParameterError("y", "must be a single target column", yc)
	}
	if yr != n {
		return nil, errors.NewDimensionError("SpectralDataset", n, yr, 0)
	}
	if err := errors.CheckFinite("X", X, n, p); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite("y", y, n, 1); err != nil {
		return nil, err
	}

	yv := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yv.SetVec(i, y.At(i, 0))
	}
	return &SpectralDataset{X: mat.DenseCopyOf(X), Y: yv}, nil
}

// Dims returns the number of samples and wavelengths.
func (d *SpectralDataset) Dims() (n, p int) {
	return d.X.Dims()
}

// Subset returns a new dataset restricted to the given rows and wavelengths.
// A nil slice keeps every row or column.
func (d *SpectralDataset) Subset(rows, cols []int) *SpectralDataset {
	X := d.X
	if rows != nil {
		X = SelectRows(X, rows)
	}
	if cols != nil {
		X = SelectColumns(X, cols)
	}
	y := d.Y
	if rows != nil {
		y = SelectElems(d.Y, rows)
	}
	return &SpectralDataset{X: X, Y: y}
}

// SelectColumns copies the given columns of X into a new matrix, in order.
func SelectColumns(X mat.Matrix, cols []int) *mat.Dense {
	n, _ := X.Dims()
	out := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		for k, j := range cols {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out
}

// SelectRows copies the given rows of X into a new matrix, in order.
func SelectRows(X mat.Matrix, rows []int) *mat.Dense {
	_, p := X.Dims()
	out := mat.NewDense(len(rows), p, nil)
	for k, i := range rows {
		for j := 0; j < p; j++ {
			out.Set(k, j, X.At(i, j))
		}
	}
	return out
}

// SelectElems copies the given elements of y into a new vector.
func SelectElems(y mat.Vector, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for k, i := range idx {
		out.SetVec(k, y.AtVec(i))
	}
	return out
}

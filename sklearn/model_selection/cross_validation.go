package model_selection

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
)

// CVResult holds the RMSECV of every scanned component count.
type CVResult struct {
	// RMSECV[k-1] is the cross-validated error with k latent components.
	RMSECV []float64
	// BestNComponents is the argmin of RMSECV, ties broken by fewer components.
	BestNComponents int
	BestRMSECV      float64
}

// CrossValRMSE fits the latent regression core with nComponents on k−1 folds,
// predicts the held-out fold and returns sqrt(Σ residual² / n) over all folds.
// At most nJobs folds are fitted at once; 0 uses every CPU.
func CrossValRMSE(X mat.Matrix, y mat.Vector, nComponents int, cv *KFold, nJobs int) (float64, error) {
	if nComponents < 1 {
		return 0, errors.NewInvalidParameterError("n_components", "must be at least 1", nComponents)
	}
	sse, n, err := foldSSE(X, y, nComponents, cv, true, nJobs)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sse[nComponents-1] / float64(n)), nil
}

// ScanComponents computes RMSECV for every component count 1..K where
// K = min(maxComponents, p, smallest training fold − 1). Each fold is fitted
// once with K components; lower complexities reuse the same fit.
func ScanComponents(X mat.Matrix, y mat.Vector, maxComponents int, cv *KFold, nJobs int) (*CVResult, error) {
	if maxComponents < 1 {
		return nil, errors.NewInvalidParameterError("max_components", "must be at least 1", maxComponents)
	}
	sse, n, err := foldSSE(X, y, maxComponents, cv, false, nJobs)
	if err != nil {
		return nil, err
	}

	res := &CVResult{RMSECV: make([]float64, len(sse))}
	for k := range sse {
		res.RMSECV[k] = math.Sqrt(sse[k] / float64(n))
	}
	// floats.MinIdx returns the first minimum, i.e. the smallest component count.
	best := floats.MinIdx(res.RMSECV)
	res.BestNComponents = best + 1
	res.BestRMSECV = res.RMSECV[best]
	return res, nil
}

// SelectNComponents returns the component count in 1..maxComponents with the
// lowest RMSECV and that error.
func SelectNComponents(X mat.Matrix, y mat.Vector, maxComponents int, cv *KFold, nJobs int) (int, float64, error) {
	res, err := ScanComponents(X, y, maxComponents, cv, nJobs)
	if err != nil {
		return 0, 0, err
	}
	return res.BestNComponents, res.BestRMSECV, nil
}

// foldSSE returns, for k = 1..K, the sum of squared held-out residuals over all
// folds. With exact set, K must equal nComponents or the call fails; otherwise
// K is capped by the wavelength count and the smallest training fold.
func foldSSE(X mat.Matrix, y mat.Vector, nComponents int, cv *KFold, exact bool, nJobs int) ([]float64, int, error) {
	n, p := X.Dims()
	if y.Len() != n {
		return nil, 0, errors.NewDimensionError("CrossValRMSE", n, y.Len(), 0)
	}
	folds, err := cv.Split(n)
	if err != nil {
		return nil, 0, err
	}

	minTrain := n
	for _, f := range folds {
		if len(f.TrainIndices) < minTrain {
			minTrain = len(f.TrainIndices)
		}
	}

	K := nComponents
	if !exact {
		if K > p {
			K = p
		}
		if K > minTrain-1 {
			K = minTrain - 1
		}
	}
	if K < 1 || minTrain < K+1 {
		// 少なくとも 1 成分を学習できる訓練サンプル数を要求する
		return nil, 0, errors.NewInsufficientSamplesError("CrossValRMSE", max(K, 1)+1, minTrain,
			"training folds too small for the requested components")
	}

	perFold := make([][]float64, len(folds))
	err = parallel.ForEach(context.Background(), len(folds), nJobs, func(_ context.Context, f int) error {
		fold := folds[f]
		Xtr := model.SelectRows(X, fold.TrainIndices)
		ytr := model.SelectElems(y, fold.TrainIndices)
		Xte := model.SelectRows(X, fold.TestIndices)
		yte := model.SelectElems(y, fold.TestIndices)

		latent, err := cross_decomposition.Fit(Xtr, ytr, K)
		if err != nil {
			return err
		}

		sse := make([]float64, K)
		for k := 1; k <= K; k++ {
			// 抽出できた成分数を超える場合は抽出済みの最大成分数のモデルで代用する
			use := k
			if use > latent.NComponents {
				use = latent.NComponents
			}
			pred, err := latent.PredictWith(Xte, use)
			if err != nil {
				return err
			}
			var s float64
			for i := 0; i < yte.Len(); i++ {
				r := yte.AtVec(i) - pred.AtVec(i)
				s += r * r
			}
			sse[k-1] = s
		}
		perFold[f] = sse
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	total := make([]float64, K)
	for _, sse := range perFold {
		floats.Add(total, sse)
	}
	return total, n, nil
}

package feature_selection

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
)

// MC-UVE defaults.
const (
	DefaultMCUVEIterations     = 100
	DefaultMCUVESampleFraction = 0.8
)

// mcuveMinParallel is the wavelength count above which stabilities are
// computed on several goroutines.
const mcuveMinParallel = 512

var mcuveKeys = []string{"n_features", "n_components", "max_components", "k_folds",
	"n_iterations", "sample_fraction", "random_state", "n_jobs"}

// MCUVE は Monte Carlo Uninformative Variable Elimination による波長選択器。
//
// n_iterations 回、⌈n·sample_fraction⌉ 個のサンプルを非復元抽出して PLS を当てはめ、
// 各波長の回帰係数を記録する。安定度 c(j) = mean(coef_j) / std(coef_j)
// （標本標準偏差）の絶対値が大きい順に n_features 個を残す。
// 標準偏差が 0 の波長は c(j) = 0 とし、DegenerateDataWarning を出す。
//
// GetScores は符号付きの c(j) を返す。
type MCUVE struct {
	selectorBase
}

// NewMCUVE creates an MC-UVE selector with 100 iterations on 80% subsamples.
func NewMCUVE(opts ...Option) *MCUVE {
	return &MCUVE{
		selectorBase: newSelectorBase("MCUVE", params{
			nComponents:    cross_decomposition.DefaultNComponents,
			nIterations:    DefaultMCUVEIterations,
			sampleFraction: DefaultMCUVESampleFraction,
			randomState:    -1,
		}, opts),
	}
}

// Fit runs the Monte Carlo resampling on X (n×p) and y and stores the selection.
// Subsets are drawn sequentially from the seed before the fits run
// concurrently, so a fixed seed gives the same scores regardless of n_jobs.
func (m *MCUVE) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MCUVE.Fit")

	ds, start, err := m.begin(X, y)
	if err != nil {
		return err
	}
	n, p := ds.Dims()

	nFeatures, err := resolveNFeatures(m.params.nFeatures, p)
	if err != nil {
		return err
	}
	iterations := m.params.nIterations
	if iterations < 2 {
		return errors.NewInvalidParameterError("n_iterations", "must be at least 2", iterations)
	}
	frac := m.params.sampleFraction
	if !(frac > 0 && frac <= 1) {
		return errors.NewInvalidParameterError("sample_fraction", "must be in (0, 1]", frac)
	}
	nComponents, err := m.resolveComponents(ds)
	if err != nil {
		return err
	}
	nSub := int(math.Ceil(float64(n) * frac))
	if nSub < min(nComponents, p)+1 {
		return errors.NewInsufficientSamplesError("MCUVE.Fit", min(nComponents, p)+1, nSub,
			"subsample too small for the requested components")
	}

	rng, seed := newRand(m.params.randomState)
	subsets := make([][]int, iterations)
	for it := range subsets {
		subsets[it] = rng.Perm(n)[:nSub]
	}
	m.logger.Debug("Monte Carlo sampling prepared",
		log.RandomSeedKey, seed,
		log.IterationKey, iterations,
		log.SamplesKey, nSub,
	)

	// coefs[it] は反復 it の係数ベクトル
	coefs := make([][]float64, iterations)
	err = parallel.ForEach(context.Background(), iterations, m.params.nJobs, func(_ context.Context, it int) error {
		sub := ds.Subset(subsets[it], nil)
		latent, err := cross_decomposition.Fit(sub.X, sub.Y, nComponents)
		if err != nil {
			return errors.Wrapf(err, "MC-UVE iteration %d", it)
		}
		coefs[it] = latent.Coef
		return nil
	})
	if err != nil {
		return err
	}

	scores := make([]float64, p)
	flat := make([]bool, p)
	parallel.Chunks(p, m.params.nJobs, mcuveMinParallel, func(lo, hi int) {
		col := make([]float64, iterations)
		for j := lo; j < hi; j++ {
			for it := range coefs {
				col[it] = coefs[it][j]
			}
			mean, std := stat.MeanStdDev(col, nil)
			flat[j] = std < 1e-10
			scores[j] = errors.SafeDivide(mean, std)
		}
	})
	degenerate := 0
	for _, f := range flat {
		if f {
			degenerate++
		}
	}
	if degenerate > 0 {
		errors.Warn(errors.NewDegenerateDataWarning("MCUVE.Fit", degenerate, 0, "have zero coefficient spread"))
	}

	retained := topK(absValues(scores), nFeatures)
	return m.finish(ds, pointResult(p, retained, scores), start, mcuveKeys)
}

// GetParams returns the selector's configuration.
func (m *MCUVE) GetParams() map[string]interface{} {
	return m.params.getAll(mcuveKeys)
}

// SetParams updates the selector's configuration.
func (m *MCUVE) SetParams(values map[string]interface{}) error {
	return m.params.set(values, mcuveKeys)
}

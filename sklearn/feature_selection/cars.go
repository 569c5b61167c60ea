package feature_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
	"github.com/YuminosukeSato/specsel/sklearn/model_selection"
)

// CARS defaults.
const (
	DefaultCARSIterations    = 50
	DefaultCARSMaxComponents = 10
)

var carsKeys = []string{"n_iterations", "max_components", "k_folds", "sample_fraction",
	"resampling", "random_state", "n_jobs"}

// CARSStep records one shrinkage iteration.
type CARSStep struct {
	Iteration int `json:"iteration"`
	// Subset is W_t, the retained wavelengths in ascending order.
	Subset      []int   `json:"subset"`
	RMSECV      float64 `json:"rmsecv"`
	NComponents int     `json:"n_components"`
}

// CARS は Competitive Adaptive Reweighted Sampling による波長選択器。
//
// 反復 t = 1..N で候補集合 W_{t-1} に PLS を当てはめ、|係数| の大きい順に
// m(t) = max(2, round(r(t)·p)) 個を残す。保持率は指数的に減衰する:
//
//	r(t) = exp(-k·(t-1)),  k = ln(p/2) / (N-1)
//
// したがって r(1) = 1、r(N) = 2/p となる。各 W_t の RMSECV を成分数 1..max_components
// の走査で求め、RMSECV 最小の反復（同点は波長数の少ない方）の W_t を選択する。
//
// WithResampling(true) では、決定的に残した m(t) 個から |係数| に比例する確率で
// m(t) 回の復元抽出を行い、一度でも引かれた波長だけを残す。
// WithSampleFraction(f < 1) では係数の当てはめに各反復でサンプルの一部だけを使う。
type CARS struct {
	selectorBase

	history []CARSStep
	best    int
}

// NewCARS creates a CARS selector with 50 iterations, up to 10 latent
// components and 5-fold cross-validation.
func NewCARS(opts ...Option) *CARS {
	return &CARS{
		selectorBase: newSelectorBase("CARS", params{
			nIterations:    DefaultCARSIterations,
			maxComponents:  DefaultCARSMaxComponents,
			kFolds:         model_selection.DefaultNSplits,
			sampleFraction: 1,
			randomState:    -1,
		}, opts),
	}
}

// retentionRatio returns r(t) for p wavelengths and n iterations.
func retentionRatio(t, n, p int) float64 {
	if p <= 2 {
		return 1
	}
	k := math.Log(float64(p)/2) / float64(n-1)
	return math.Exp(-k * float64(t-1))
}

// Fit runs the shrinkage iterations on X (n×p) and y and stores the selection.
func (c *CARS) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "CARS.Fit")

	c.history = nil
	ds, start, err := c.begin(X, y)
	if err != nil {
		return err
	}
	n, p := ds.Dims()

	iterations := c.params.nIterations
	if iterations < 2 {
		return errors.NewInvalidParameterError("n_iterations", "must be at least 2", iterations)
	}
	if c.params.kFolds < 2 {
		return errors.NewInvalidParameterError("k_folds", "must be at least 2", c.params.kFolds)
	}
	if c.params.maxComponents < 1 {
		return errors.NewInvalidParameterError("max_components", "must be at least 1", c.params.maxComponents)
	}
	frac := c.params.sampleFraction
	if !(frac > 0 && frac <= 1) {
		return errors.NewInvalidParameterError("sample_fraction", "must be in (0, 1]", frac)
	}
	if n < c.params.kFolds {
		return errors.NewInsufficientSamplesError("CARS.Fit", c.params.kFolds, n,
			"fewer samples than cross-validation folds")
	}
	nFit := n
	if frac < 1 {
		nFit = int(math.Ceil(float64(n) * frac))
	}
	if nFit < 2 {
		return errors.NewInsufficientSamplesError("CARS.Fit", 2, nFit, "sample fraction leaves fewer than two samples")
	}

	rng, seed := newRand(c.params.randomState)
	cv := model_selection.NewKFold(c.params.kFolds, true, rng.Uint64())
	c.logger.Debug("CARS started", log.RandomSeedKey, seed, log.IterationKey, iterations)

	current := make([]int, p)
	for j := range current {
		current[j] = j
	}

	for t := 1; t <= iterations; t++ {
		rows := []int(nil)
		if nFit < n {
			rows = rng.Perm(n)[:nFit]
		}
		sub := ds.Subset(rows, current)
		ncomp := min(c.params.maxComponents, len(current), nFit-1)
		latent, err := cross_decomposition.Fit(sub.X, sub.Y, ncomp)
		if err != nil {
			return errors.Wrapf(err, "CARS iteration %d", t)
		}
		weights := absValues(latent.Coef)

		m := int(math.Round(retentionRatio(t, iterations, p) * float64(p)))
		m = min(max(2, m), len(current))

		// current は昇順なので、安定ソートで同点は列番号の小さい方が残る
		keepPos := topK(weights, m)
		if c.params.resampling {
			keepPos = c.resample(rng, keepPos, weights)
		}
		next := make([]int, len(keepPos))
		for i, pos := range keepPos {
			next[i] = current[pos]
		}
		sort.Ints(next)

		scan, err := model_selection.ScanComponents(model.SelectColumns(ds.X, next), ds.Y, c.params.maxComponents, cv, c.params.nJobs)
		if err != nil {
			return errors.Wrapf(err, "CARS iteration %d", t)
		}
		c.history = append(c.history, CARSStep{
			Iteration:   t,
			Subset:      next,
			RMSECV:      scan.BestRMSECV,
			NComponents: scan.BestNComponents,
		})
		c.logger.Debug("CARS iteration",
			log.IterationKey, t,
			log.SelectedKey, len(next),
			log.RMSECVKey, scan.BestRMSECV,
			log.ComponentsKey, scan.BestNComponents,
		)
		current = next
	}

	c.best = 0
	for i, step := range c.history {
		bestStep := c.history[c.best]
		if step.RMSECV < bestStep.RMSECV ||
			(step.RMSECV == bestStep.RMSECV && len(step.Subset) < len(bestStep.Subset)) {
			c.best = i
		}
	}
	winner := c.history[c.best]

	// スコアは選択集合に当てはめ直した |係数|、選択外の波長は 0
	scores := make([]float64, p)
	latent, err := cross_decomposition.Fit(model.SelectColumns(ds.X, winner.Subset), ds.Y, winner.NComponents)
	if err != nil {
		return err
	}
	for i, j := range winner.Subset {
		scores[j] = math.Abs(latent.Coef[i])
	}

	res := pointResult(p, winner.Subset, scores)
	res.SetCVError(winner.RMSECV)
	return c.finish(ds, res, start, carsKeys)
}

// resample draws len(keep) wavelengths with replacement, with probability
// proportional to their weight, and returns the distinct positions drawn.
func (c *CARS) resample(rng *rand.Rand, keep []int, weights []float64) []int {
	w := make([]float64, len(keep))
	for i, pos := range keep {
		w[i] = weights[pos]
	}
	total := floats.Sum(w)
	if total <= 0 {
		return keep
	}
	cum := make([]float64, len(w))
	floats.CumSum(cum, w)

	drawn := make([]bool, len(keep))
	for range keep {
		u := rng.Float64() * total
		i := sort.SearchFloat64s(cum, u)
		if i >= len(keep) {
			i = len(keep) - 1
		}
		drawn[i] = true
	}
	out := make([]int, 0, len(keep))
	for i, ok := range drawn {
		if ok {
			out = append(out, keep[i])
		}
	}
	return out
}

// History returns the per-iteration record of the last fit.
func (c *CARS) History() ([]CARSStep, error) {
	if err := c.state.RequireFitted(c.name, "History"); err != nil {
		return nil, err
	}
	return append([]CARSStep(nil), c.history...), nil
}

// BestIteration returns the 1-based iteration whose subset was selected.
func (c *CARS) BestIteration() (int, error) {
	if err := c.state.RequireFitted(c.name, "BestIteration"); err != nil {
		return 0, err
	}
	return c.history[c.best].Iteration, nil
}

// GetParams returns the selector's configuration.
func (c *CARS) GetParams() map[string]interface{} {
	return c.params.getAll(carsKeys)
}

// SetParams updates the selector's configuration.
func (c *CARS) SetParams(values map[string]interface{}) error {
	return c.params.set(values, carsKeys)
}

package feature_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// params はすべての選択器が共有する設定値。
// 各選択器は自分に関係するキーだけを GetParams/SetParams で公開し、
// 関係しないオプションは無視する。
type params struct {
	nFeatures      int
	nComponents    int
	maxComponents  int
	kFolds         int
	nIterations    int
	sampleFraction float64
	randomState    int64
	nJobs          int

	threshold    float64
	useThreshold bool
	resampling   bool

	intervalWidth  int
	nIntervalsKeep int
	nTrees         int
	maxFeatures    int

	nSubmodels int
}

// Option configures a selector.
type Option func(*params)

// WithNFeatures sets the number of wavelengths a point selector retains.
// 0 retains half of the wavelengths (at least one).
func WithNFeatures(n int) Option {
	return func(p *params) { p.nFeatures = n }
}

// WithNComponents sets the number of latent components of the regression core.
func WithNComponents(n int) Option {
	return func(p *params) { p.nComponents = n }
}

// WithMaxComponents sets the upper bound of the component scan (CARS).
func WithMaxComponents(n int) Option {
	return func(p *params) { p.maxComponents = n }
}

// WithComponentSearch makes VIP and MC-UVE choose n_components in 1..max by
// minimum RMSECV over kFolds contiguous folds.
func WithComponentSearch(max, kFolds int) Option {
	return func(p *params) {
		p.maxComponents = max
		p.kFolds = kFolds
	}
}

// WithKFolds sets the number of cross-validation folds.
func WithKFolds(k int) Option {
	return func(p *params) { p.kFolds = k }
}

// WithNIterations sets the number of Monte Carlo or shrinkage iterations.
func WithNIterations(n int) Option {
	return func(p *params) { p.nIterations = n }
}

// WithSampleFraction sets the fraction of samples drawn per iteration.
func WithSampleFraction(f float64) Option {
	return func(p *params) { p.sampleFraction = f }
}

// WithRandomState seeds the selector. -1 draws a fresh seed on every fit.
func WithRandomState(seed int64) Option {
	return func(p *params) { p.randomState = seed }
}

// WithNJobs bounds the number of concurrent workers. 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(p *params) { p.nJobs = n }
}

// WithThreshold switches VIP to threshold mode: every wavelength whose score
// reaches t is retained.
func WithThreshold(t float64) Option {
	return func(p *params) {
		p.threshold = t
		p.useThreshold = true
	}
}

// WithResampling enables weighted random resampling of the retained
// wavelengths in CARS after the deterministic shrink.
func WithResampling(on bool) Option {
	return func(p *params) { p.resampling = on }
}

// WithIntervalWidth sets the width of the wavelength intervals.
func WithIntervalWidth(w int) Option {
	return func(p *params) { p.intervalWidth = w }
}

// WithNIntervalsKeep sets the number of intervals an interval selector retains.
func WithNIntervalsKeep(n int) Option {
	return func(p *params) { p.nIntervalsKeep = n }
}

// WithNTrees sets the number of trees in each interval forest.
func WithNTrees(n int) Option {
	return func(p *params) { p.nTrees = n }
}

// WithMaxFeatures sets the per-split feature count of the interval forests.
func WithMaxFeatures(n int) Option {
	return func(p *params) { p.maxFeatures = n }
}

// WithNSubmodels sets the number of submodels sampled per VISSA round.
func WithNSubmodels(n int) Option {
	return func(p *params) { p.nSubmodels = n }
}

func (p *params) apply(opts []Option) {
	for _, opt := range opts {
		opt(p)
	}
}

// get returns the value of one parameter key.
func (p *params) get(key string) interface{} {
	switch key {
	case "n_features":
		return p.nFeatures
	case "n_components":
		return p.nComponents
	case "max_components":
		return p.maxComponents
	case "k_folds":
		return p.kFolds
	case "n_iterations":
		return p.nIterations
	case "sample_fraction":
		return p.sampleFraction
	case "random_state":
		return p.randomState
	case "n_jobs":
		return p.nJobs
	case "threshold":
		if !p.useThreshold {
			return nil
		}
		return p.threshold
	case "resampling":
		return p.resampling
	case "interval_width":
		return p.intervalWidth
	case "n_intervals_keep":
		return p.nIntervalsKeep
	case "n_trees":
		return p.nTrees
	case "max_features":
		return p.maxFeatures
	case "n_submodels":
		return p.nSubmodels
	}
	return nil
}

func (p *params) getAll(keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out[k] = p.get(k)
	}
	return out
}

// set assigns the given values; keys outside allowed are rejected. Values are
// applied to a copy first so a failing call leaves p unchanged.
func (p *params) set(values map[string]interface{}, allowed []string) error {
	next := *p
	for key, v := range values {
		if !contains(allowed, key) {
			return errors.NewInvalidParameterError(key, "unknown parameter", v)
		}
		var ok bool
		switch key {
		case "sample_fraction":
			next.sampleFraction, ok = model.ParamFloat(v)
		case "threshold":
			if v == nil {
				next.useThreshold, ok = false, true
				break
			}
			next.threshold, ok = model.ParamFloat(v)
			next.useThreshold = ok
		case "resampling":
			next.resampling, ok = v.(bool)
		case "random_state":
			var seed int
			seed, ok = model.ParamInt(v)
			next.randomState = int64(seed)
		default:
			var n int
			n, ok = model.ParamInt(v)
			if ok {
				*next.intField(key) = n
			}
		}
		if !ok {
			return errors.NewInvalidParameterError(key, "value has the wrong type", v)
		}
	}
	*p = next
	return nil
}

func (p *params) intField(key string) *int {
	switch key {
	case "n_features":
		return &p.nFeatures
	case "n_components":
		return &p.nComponents
	case "max_components":
		return &p.maxComponents
	case "k_folds":
		return &p.kFolds
	case "n_iterations":
		return &p.nIterations
	case "n_jobs":
		return &p.nJobs
	case "interval_width":
		return &p.intervalWidth
	case "n_intervals_keep":
		return &p.nIntervalsKeep
	case "n_trees":
		return &p.nTrees
	case "max_features":
		return &p.maxFeatures
	case "n_submodels":
		return &p.nSubmodels
	}
	// unreachable for allowed keys
	var discard int
	return &discard
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// resolveNFeatures returns the number of wavelengths to retain out of p.
func resolveNFeatures(nFeatures, p int) (int, error) {
	switch {
	case nFeatures == 0:
		return max(1, p/2), nil
	case nFeatures < 0:
		return 0, errors.NewInvalidParameterError("n_features", "must be at least 1", nFeatures)
	case nFeatures > p:
		return 0, errors.NewInvalidParameterError("n_features", "exceeds the number of wavelengths", nFeatures)
	}
	return nFeatures, nil
}

// newRand returns a PCG generator for randomState, or a freshly seeded one
// when randomState is negative. The seed actually used is returned for logging.
func newRand(randomState int64) (*rand.Rand, uint64) {
	seed := uint64(randomState)
	if randomState < 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed)), seed
}

// topK returns the positions of the k largest scores, ties broken by the
// lower position, in ranking order.
func topK(scores []float64, k int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}
	return order[:k]
}

// absValues returns |v| element-wise.
func absValues(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}

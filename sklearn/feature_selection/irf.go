package feature_selection

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/ensemble"
)

// I-RF defaults.
const (
	DefaultIntervalWidth = 10
	DefaultIRFTrees      = ensemble.DefaultNEstimators
)

var irfKeys = []string{"interval_width", "n_intervals_keep", "n_trees", "max_features",
	"random_state", "n_jobs"}

// IRF は Interval Random Forest による波長帯選択器。
//
// 波長軸を幅 interval_width の区間に分割し（最後の区間は狭くてもよい）、
// 区間ごとにその波長だけからなる部分行列でランダムフォレストを学習する。
// 区間の重要度は、区間の全波長を同時に置換したときの out-of-bag MSE の増加量を
// 木ごとに求めて平均したもの。重要度の高い n_intervals_keep 個の区間を
// 丸ごと残す（同点は左の区間）。
//
// GetScores は各波長が属する区間の重要度を返す。
type IRF struct {
	selectorBase
}

// NewIRF creates an I-RF selector keeping the best interval of width 10,
// scored with 100 trees.
func NewIRF(opts ...Option) *IRF {
	return &IRF{
		selectorBase: newSelectorBase("IRF", params{
			intervalWidth:  DefaultIntervalWidth,
			nIntervalsKeep: 1,
			nTrees:         DefaultIRFTrees,
			randomState:    -1,
		}, opts),
	}
}

// Fit scores every interval of X (n×p) against y and stores the selection.
func (r *IRF) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "IRF.Fit")

	ds, start, err := r.begin(X, y)
	if err != nil {
		return err
	}
	_, p := ds.Dims()

	intervals, err := model.Partition(p, r.params.intervalWidth)
	if err != nil {
		return err
	}
	keep := r.params.nIntervalsKeep
	if keep < 1 || keep > len(intervals) {
		return errors.NewInvalidParameterError("n_intervals_keep",
			"must be between 1 and the number of intervals", keep)
	}
	if r.params.nTrees < 1 {
		return errors.NewInvalidParameterError("n_trees", "must be at least 1", r.params.nTrees)
	}

	rng, seed := newRand(r.params.randomState)
	seeds := make([]int64, len(intervals))
	for i := range seeds {
		// WithRandomState は負の値を「未指定」と解釈するため 63 ビットに収める
		seeds[i] = int64(rng.Uint64() >> 1)
	}
	r.logger.Debug("Interval forests started",
		log.RandomSeedKey, seed,
		log.IntervalKey, len(intervals),
	)

	importance := make([]float64, len(intervals))
	err = parallel.ForEach(context.Background(), len(intervals), r.params.nJobs, func(_ context.Context, k int) error {
		iv := intervals[k]
		sub := ds.Subset(nil, iv.Indices())
		forest := ensemble.NewRandomForestRegressor(
			ensemble.WithNEstimators(r.params.nTrees),
			ensemble.WithMaxFeatures(r.params.maxFeatures),
			ensemble.WithRandomState(seeds[k]),
			ensemble.WithNJobs(1),
		)
		if err := forest.Fit(sub.X, sub.Y); err != nil {
			return errors.Wrapf(err, "interval %s", iv)
		}
		all := make([]int, iv.Width())
		for j := range all {
			all[j] = j
		}
		imp, err := forest.PermutationImportance([][]int{all})
		if err != nil {
			return errors.Wrapf(err, "interval %s", iv)
		}
		importance[k] = imp[0]
		r.logger.Debug("Interval scored", log.IntervalKey, iv.String(), "importance", imp[0])
		return nil
	})
	if err != nil {
		return err
	}

	best := topK(importance, keep)
	sort.Ints(best)
	var retained []int
	for _, k := range best {
		retained = append(retained, intervals[k].Indices()...)
	}

	scores := make([]float64, p)
	for k, iv := range intervals {
		for j := iv.Start; j < iv.End; j++ {
			scores[j] = importance[k]
		}
	}

	res := pointResult(p, retained, scores)
	res.Intervals = intervals
	res.IntervalScores = importance
	return r.finish(ds, res, start, irfKeys)
}

// SelectedIntervals returns the retained intervals in ascending order.
func (r *IRF) SelectedIntervals() ([]model.Interval, error) {
	if err := r.state.RequireFitted(r.name, "SelectedIntervals"); err != nil {
		return nil, err
	}
	return retainedIntervals(r.result), nil
}

// GetIntervalScores returns the importance of every interval, aligned with
// the intervals of the result.
func (r *IRF) GetIntervalScores() ([]float64, error) {
	if err := r.state.RequireFitted(r.name, "GetIntervalScores"); err != nil {
		return nil, err
	}
	return append([]float64(nil), r.result.IntervalScores...), nil
}

// GetParams returns the selector's configuration.
func (r *IRF) GetParams() map[string]interface{} {
	return r.params.getAll(irfKeys)
}

// SetParams updates the selector's configuration.
func (r *IRF) SetParams(values map[string]interface{}) error {
	return r.params.set(values, irfKeys)
}

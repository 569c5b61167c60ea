package feature_selection

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
	"github.com/YuminosukeSato/specsel/sklearn/model_selection"
)

var iplsKeys = []string{"interval_width", "n_intervals_keep", "n_components", "max_components",
	"k_folds", "n_jobs"}

// IPLS は interval PLS による波長帯選択器。
//
// 波長軸を幅 interval_width の区間に分割し、区間ごとにその波長だけで PLS の
// RMSECV を求める（連続 fold、k_folds 分割）。RMSECV の小さい n_intervals_keep 個の
// 区間を丸ごと残す（同点は左の区間）。区間スコアは -RMSECV。
//
// 成分数は n_components（区間幅で上限）を使う。WithComponentSearch を指定すると
// 区間ごとに 1..max の走査で RMSECV 最小の成分数を選ぶ。
// 分散のない区間は学習平均による予測の RMSECV で評価する。
type IPLS struct {
	selectorBase
}

// NewIPLS creates an interval PLS selector keeping the best interval of width
// 10, scored with two latent components over 5 contiguous folds.
func NewIPLS(opts ...Option) *IPLS {
	return &IPLS{
		selectorBase: newSelectorBase("IPLS", params{
			intervalWidth:  DefaultIntervalWidth,
			nIntervalsKeep: 1,
			nComponents:    cross_decomposition.DefaultNComponents,
			kFolds:         model_selection.DefaultNSplits,
		}, opts),
	}
}

// Fit scores every interval of X (n×p) against y and stores the selection.
func (s *IPLS) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "IPLS.Fit")

	ds, start, err := s.begin(X, y)
	if err != nil {
		return err
	}
	n, p := ds.Dims()

	intervals, err := model.Partition(p, s.params.intervalWidth)
	if err != nil {
		return err
	}
	keep := s.params.nIntervalsKeep
	if keep < 1 || keep > len(intervals) {
		return errors.NewInvalidParameterError("n_intervals_keep",
			"must be between 1 and the number of intervals", keep)
	}
	if s.params.maxComponents == 0 && s.params.nComponents < 1 {
		return errors.NewInvalidParameterError("n_components", "must be at least 1", s.params.nComponents)
	}
	if s.params.kFolds < 2 {
		return errors.NewInvalidParameterError("k_folds", "must be at least 2", s.params.kFolds)
	}
	if n < s.params.kFolds {
		return errors.NewInsufficientSamplesError("IPLS.Fit", s.params.kFolds, n,
			"fewer samples than cross-validation folds")
	}
	cv := model_selection.NewKFold(s.params.kFolds, false, 0)

	rmsecv := make([]float64, len(intervals))
	err = parallel.ForEach(context.Background(), len(intervals), s.params.nJobs, func(_ context.Context, k int) error {
		v, err := s.subsetRMSECV(ds, intervals[k].Indices(), cv)
		if err != nil {
			return errors.Wrapf(err, "interval %s", intervals[k])
		}
		rmsecv[k] = v
		s.logger.Debug("Interval scored", log.IntervalKey, intervals[k].String(), log.RMSECVKey, v)
		return nil
	})
	if err != nil {
		return err
	}

	intervalScores := make([]float64, len(intervals))
	for k, v := range rmsecv {
		intervalScores[k] = -v
	}
	best := topK(intervalScores, keep)
	sort.Ints(best)
	var retained []int
	for _, k := range best {
		retained = append(retained, intervals[k].Indices()...)
	}

	scores := make([]float64, p)
	for k, iv := range intervals {
		for j := iv.Start; j < iv.End; j++ {
			scores[j] = intervalScores[k]
		}
	}

	res := pointResult(p, retained, scores)
	res.Intervals = intervals
	res.IntervalScores = intervalScores
	if keep == 1 {
		res.SetCVError(rmsecv[best[0]])
	} else {
		v, err := s.subsetRMSECV(ds, retained, cv)
		if err != nil {
			return err
		}
		res.SetCVError(v)
	}
	return s.finish(ds, res, start, iplsKeys)
}

// subsetRMSECV returns the RMSECV of a PLS model on the given wavelengths.
func (s *IPLS) subsetRMSECV(ds *model.SpectralDataset, cols []int, cv *model_selection.KFold) (float64, error) {
	maxComp := s.params.nComponents
	if s.params.maxComponents > 0 {
		maxComp = s.params.maxComponents
	}
	// 区間単位で並列化済みなので fold は逐次に学習する
	scan, err := model_selection.ScanComponents(model.SelectColumns(ds.X, cols), ds.Y, maxComp, cv, 1)
	if err != nil {
		var rank *errors.RankDeficiencyError
		if errors.As(err, &rank) {
			return meanPredictorRMSECV(ds.Y, cv)
		}
		return 0, err
	}
	if s.params.maxComponents > 0 {
		return scan.BestRMSECV, nil
	}
	return scan.RMSECV[len(scan.RMSECV)-1], nil
}

// meanPredictorRMSECV is the RMSECV of predicting every held-out sample with
// the training mean of y.
func meanPredictorRMSECV(y mat.Vector, cv *model_selection.KFold) (float64, error) {
	n := y.Len()
	folds, err := cv.Split(n)
	if err != nil {
		return 0, err
	}
	var sse float64
	for _, f := range folds {
		mean := stat.Mean(model.SelectElems(y, f.TrainIndices).RawVector().Data, nil)
		for _, i := range f.TestIndices {
			r := y.AtVec(i) - mean
			sse += r * r
		}
	}
	return math.Sqrt(sse / float64(n)), nil
}

// SelectedIntervals returns the retained intervals in ascending order.
func (s *IPLS) SelectedIntervals() ([]model.Interval, error) {
	if err := s.state.RequireFitted(s.name, "SelectedIntervals"); err != nil {
		return nil, err
	}
	return retainedIntervals(s.result), nil
}

// GetIntervalScores returns -RMSECV of every interval, aligned with the
// intervals of the result.
func (s *IPLS) GetIntervalScores() ([]float64, error) {
	if err := s.state.RequireFitted(s.name, "GetIntervalScores"); err != nil {
		return nil, err
	}
	return append([]float64(nil), s.result.IntervalScores...), nil
}

// GetParams returns the selector's configuration.
func (s *IPLS) GetParams() map[string]interface{} {
	return s.params.getAll(iplsKeys)
}

// SetParams updates the selector's configuration.
func (s *IPLS) SetParams(values map[string]interface{}) error {
	return s.params.set(values, iplsKeys)
}

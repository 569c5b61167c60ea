// Package feature_selection は近赤外スペクトルの波長選択アルゴリズムを提供する。
//
// 点選択器（VIP, MC-UVE, CARS, VISSA）は個々の波長を、区間選択器（I-RF, IPLS）は
// 連続した波長帯をまとめて選択する。すべての選択器は model.Selector を満たし、
// Fit が成功するまでアクセサは NotFittedError を返す。
//
// 使用例:
//
//	sel := feature_selection.NewCARS(feature_selection.WithNIterations(50), feature_selection.WithRandomState(42))
//	if err := sel.Fit(X, y); err != nil {
//	    return err
//	}
//	mask, _ := sel.GetSupport()
//	Xsel, _ := sel.Transform(X)
package feature_selection

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/model_selection"
)

// selectorBase holds the fit state and accessors shared by every selector.
type selectorBase struct {
	name   string
	state  *model.StateManager
	logger log.Logger
	params params

	result *model.SelectionResult
}

func newSelectorBase(name string, defaults params, opts []Option) selectorBase {
	defaults.apply(opts)
	return selectorBase{
		name:   name,
		state:  model.NewStateManager(),
		params: defaults,
		logger: log.GetLoggerWithName("feature_selection").With(
			log.ModelNameKey, name,
			log.EstimatorIDKey, uuid.NewString(),
		),
	}
}

// begin validates the input and logs the start of a fit. Any previous
// result is discarded, so a failing fit leaves the selector unfitted.
func (b *selectorBase) begin(X, y mat.Matrix) (*model.SpectralDataset, time.Time, error) {
	b.state.Reset()
	b.result = nil

	ds, err := model.NewSpectralDataset(X, y)
	if err != nil {
		return nil, time.Time{}, err
	}
	n, p := ds.Dims()
	b.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, p,
	)
	return ds, time.Now(), nil
}

// finish stores the result and marks the selector fitted.
func (b *selectorBase) finish(ds *model.SpectralDataset, res *model.SelectionResult, start time.Time, keys []string) error {
	n, p := ds.Dims()
	res.Method = b.name
	res.Params = b.params.getAll(keys)
	if err := res.Validate(p); err != nil {
		return err
	}
	b.result = res
	b.state.SetFitted(p, n)

	fields := []any{
		log.OperationKey, log.OperationFit,
		log.SelectedKey, res.NSelected(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if res.CVError != nil {
		fields = append(fields, log.RMSECVKey, *res.CVError)
	}
	b.logger.Info("Training completed", fields...)
	return nil
}

// resolveComponents returns the latent component count for ds: the configured
// n_components, or the RMSECV minimizer when component search is enabled.
func (b *selectorBase) resolveComponents(ds *model.SpectralDataset) (int, error) {
	if b.params.maxComponents > 0 {
		k := b.params.kFolds
		if k == 0 {
			k = model_selection.DefaultNSplits
		}
		best, rmsecv, err := model_selection.SelectNComponents(ds.X, ds.Y, b.params.maxComponents,
			model_selection.NewKFold(k, false, 0), b.params.nJobs)
		if err != nil {
			return 0, err
		}
		b.logger.Debug("Component search finished",
			log.ComponentsKey, best,
			log.RMSECVKey, rmsecv,
		)
		return best, nil
	}
	if b.params.nComponents < 1 {
		return 0, errors.NewInvalidParameterError("n_components", "must be at least 1", b.params.nComponents)
	}
	return b.params.nComponents, nil
}

// IsFitted reports whether the last fit succeeded.
func (b *selectorBase) IsFitted() bool { return b.state.IsFitted() }

// GetSupport returns the retained-wavelength mask of length p.
func (b *selectorBase) GetSupport() ([]bool, error) {
	if err := b.state.RequireFitted(b.name, "GetSupport"); err != nil {
		return nil, err
	}
	return append([]bool(nil), b.result.Support...), nil
}

// GetSupportIndices returns the retained wavelengths in ascending order.
func (b *selectorBase) GetSupportIndices() ([]int, error) {
	if err := b.state.RequireFitted(b.name, "GetSupportIndices"); err != nil {
		return nil, err
	}
	return append([]int(nil), b.result.Indices...), nil
}

// GetScores returns the per-wavelength diagnostic scores.
func (b *selectorBase) GetScores() ([]float64, error) {
	if err := b.state.RequireFitted(b.name, "GetScores"); err != nil {
		return nil, err
	}
	return append([]float64(nil), b.result.Scores...), nil
}

// Result returns a copy of the last selection result.
func (b *selectorBase) Result() (*model.SelectionResult, error) {
	if err := b.state.RequireFitted(b.name, "Result"); err != nil {
		return nil, err
	}
	return b.result.Clone(), nil
}

// Transform restricts X to the retained wavelengths.
func (b *selectorBase) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := b.state.RequireFitted(b.name, "Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := b.state.CheckFeatures(b.name+".Transform", c); err != nil {
		return nil, err
	}
	return model.SelectColumns(X, b.result.Indices), nil
}

// FitTransform fits s and returns X restricted to the retained wavelengths.
func FitTransform(s model.Selector, X, y mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X, y); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// pointResult builds the result of a point selector that retains the given
// wavelengths out of p.
func pointResult(p int, retained []int, scores []float64) *model.SelectionResult {
	return model.NewSelectionResult("", model.SupportFromIndices(p, retained), scores)
}

// retainedIntervals returns the intervals of an interval selector's result
// whose wavelengths are retained.
func retainedIntervals(res *model.SelectionResult) []model.Interval {
	var out []model.Interval
	for _, iv := range res.Intervals {
		if res.Support[iv.Start] {
			out = append(out, iv)
		}
	}
	return out
}

package feature_selection

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
	"github.com/YuminosukeSato/specsel/sklearn/model_selection"
)

// VISSA defaults.
const (
	DefaultVISSASubmodels = 500
	// vissaTopFraction of the submodels update the wavelength weights.
	vissaTopFraction = 0.05
	// vissaInnerRounds bounds the weight refinements per outer round.
	vissaInnerRounds = 5
)

var vissaKeys = []string{"n_features", "n_components", "n_submodels", "k_folds",
	"random_state", "n_jobs"}

// VISSA は Variable Iterative Space Shrinkage Approach による波長選択器。
//
// 波長ごとの重み w_j（初期値 0.5）に従って、各波長が round(w_j·n_submodels) 個の
// サブモデルに含まれる二値サンプリング行列を作り、各サブモデルを交差検証 MSE で
// 評価する。上位 5% のサブモデルでの出現頻度を新しい重みとし、上位平均スコアが
// 改善する限り重みを更新する。改善が止まるか、n_features 個の波長の重みがほぼ 1
// になったら終了し、重みの大きい順に n_features 個を残す。
//
// GetScores は最終的な重みを返す。
type VISSA struct {
	selectorBase

	rounds int
}

// NewVISSA creates a VISSA selector sampling 500 submodels per round.
func NewVISSA(opts ...Option) *VISSA {
	return &VISSA{
		selectorBase: newSelectorBase("VISSA", params{
			nComponents: cross_decomposition.DefaultNComponents,
			nSubmodels:  DefaultVISSASubmodels,
			kFolds:      model_selection.DefaultNSplits,
			randomState: -1,
		}, opts),
	}
}

// Fit runs the weighted binary matrix sampling on X (n×p) and y and stores
// the selection.
func (v *VISSA) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "VISSA.Fit")

	v.rounds = 0
	ds, start, err := v.begin(X, y)
	if err != nil {
		return err
	}
	n, p := ds.Dims()

	nFeatures, err := resolveNFeatures(v.params.nFeatures, p)
	if err != nil {
		return err
	}
	nSub := v.params.nSubmodels
	top := int(vissaTopFraction * float64(nSub))
	if top < 1 {
		return errors.NewInvalidParameterError("n_submodels", "must be at least 20 so that the top 5% is not empty", nSub)
	}
	if v.params.nComponents < 1 {
		return errors.NewInvalidParameterError("n_components", "must be at least 1", v.params.nComponents)
	}
	if v.params.kFolds < 2 {
		return errors.NewInvalidParameterError("k_folds", "must be at least 2", v.params.kFolds)
	}
	if n < v.params.kFolds {
		return errors.NewInsufficientSamplesError("VISSA.Fit", v.params.kFolds, n,
			"fewer samples than cross-validation folds")
	}

	rng, seed := newRand(v.params.randomState)
	cv := model_selection.NewKFold(v.params.kFolds, true, rng.Uint64())
	v.logger.Debug("VISSA started", log.RandomSeedKey, seed)

	eval := &submodelEvaluator{ds: ds, cv: cv, nComponents: v.params.nComponents, nJobs: v.params.nJobs}
	selected := (float64(nSub) - 0.5) / float64(nSub)

	weights := make([]float64, p)
	for j := range weights {
		weights[j] = 0.5
	}
	topScore := math.Inf(-1)
	for {
		score, next, err := v.refine(rng, eval, weights, top)
		if err != nil {
			return err
		}
		v.rounds++
		v.logger.Debug("VISSA round",
			log.IterationKey, v.rounds,
			log.MSEKey, -score,
		)
		if !(score > topScore) {
			break
		}
		topScore = score
		weights = next

		nearOne := 0
		for _, w := range next {
			if w >= selected {
				nearOne++
			}
		}
		if nearOne >= nFeatures {
			break
		}
	}

	res := pointResult(p, topK(weights, nFeatures), weights)
	if !math.IsInf(topScore, -1) {
		res.SetCVError(math.Sqrt(-topScore))
	}
	return v.finish(ds, res, start, vissaKeys)
}

// refine samples submodels around weights until the mean score of the best
// submodels stops improving, and returns that score and the weights derived
// from the best round.
func (v *VISSA) refine(rng *rand.Rand, eval *submodelEvaluator, weights []float64, top int) (float64, []float64, error) {
	nSub := v.params.nSubmodels
	best := math.Inf(-1)
	var bestWeights []float64
	for round := 0; round < vissaInnerRounds; round++ {
		bsm := binarySamplingMatrix(rng, weights, nSub)
		scores, err := eval.scoreAll(bsm, nSub)
		if err != nil {
			return 0, nil, err
		}
		order := topK(scores, top)
		avg := 0.0
		for _, s := range order {
			avg += scores[s]
		}
		avg /= float64(top)
		if !(avg > best) {
			break
		}
		best = avg
		bestWeights = make([]float64, len(weights))
		for j := range bestWeights {
			count := 0
			for _, s := range order {
				if bsm[j][s] {
					count++
				}
			}
			bestWeights[j] = float64(count) / float64(top)
		}
	}
	if bestWeights == nil {
		bestWeights = weights
	}
	return best, bestWeights, nil
}

// binarySamplingMatrix returns a p×nSub matrix in which wavelength j appears
// in round(w_j·nSub) submodels placed at random.
func binarySamplingMatrix(rng *rand.Rand, weights []float64, nSub int) [][]bool {
	bsm := make([][]bool, len(weights))
	for j, w := range weights {
		appearances := int(math.Round(w * float64(nSub)))
		row := make([]bool, nSub)
		for s, pos := range rng.Perm(nSub) {
			row[pos] = s < appearances
		}
		bsm[j] = row
	}
	return bsm
}

// submodelEvaluator scores wavelength subsets by negative cross-validated MSE.
type submodelEvaluator struct {
	ds          *model.SpectralDataset
	cv          *model_selection.KFold
	nComponents int
	nJobs       int
}

// scoreAll scores every column of bsm. Empty or degenerate submodels score -Inf.
func (e *submodelEvaluator) scoreAll(bsm [][]bool, nSub int) ([]float64, error) {
	scores := make([]float64, nSub)
	err := parallel.ForEach(context.Background(), nSub, e.nJobs, func(_ context.Context, s int) error {
		var cols []int
		for j := range bsm {
			if bsm[j][s] {
				cols = append(cols, j)
			}
		}
		scores[s] = math.Inf(-1)
		if len(cols) == 0 {
			return nil
		}
		ncomp := min(e.nComponents, len(cols))
		// サブモデル単位で並列化済みなので fold は逐次に学習する
		rmsecv, err := model_selection.CrossValRMSE(model.SelectColumns(e.ds.X, cols), e.ds.Y, ncomp, e.cv, 1)
		if err != nil {
			var rank *errors.RankDeficiencyError
			if errors.As(err, &rank) {
				return nil
			}
			return err
		}
		scores[s] = -rmsecv * rmsecv
		return nil
	})
	return scores, err
}

// Rounds returns the number of outer weight updates of the last fit.
func (v *VISSA) Rounds() (int, error) {
	if err := v.state.RequireFitted(v.name, "Rounds"); err != nil {
		return 0, err
	}
	return v.rounds, nil
}

// GetParams returns the selector's configuration.
func (v *VISSA) GetParams() map[string]interface{} {
	return v.params.getAll(vissaKeys)
}

// SetParams updates the selector's configuration.
func (v *VISSA) SetParams(values map[string]interface{}) error {
	return v.params.set(values, vissaKeys)
}

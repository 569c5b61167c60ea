// Package ensemble implements bagged regression forests with out-of-bag
// bookkeeping and permutation importance of feature groups.
package ensemble

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/metrics"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/sklearn/tree"
)

// DefaultNEstimators is the number of trees grown when none is configured.
const DefaultNEstimators = 100

// RandomForestRegressor はブートストラップ標本と分割ごとの特徴量サブサンプリングで
// 回帰木を育てるランダムフォレスト。
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators    int
	maxFeatures    int
	maxDepth       int
	minSamplesLeaf int
	randomState    int64
	nJobs          int

	Trees []*tree.DecisionTreeRegressor
	// inBag[t][i] は木 t のブートストラップ標本にサンプル i が含まれた回数
	inBag [][]int
	// permSeeds は木ごとの置換重要度用シード
	permSeeds []uint64

	x *mat.Dense
	y []float64
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) { f.nEstimators = n }
}

// WithMaxFeatures sets the number of features tried at each split.
// 0 uses max(1, ⌈p/3⌉), the usual choice for regression forests.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForestRegressor) { f.maxFeatures = n }
}

// WithMaxDepth limits tree depth. 0 grows fully.
func WithMaxDepth(d int) Option {
	return func(f *RandomForestRegressor) { f.maxDepth = d }
}

// WithMinSamplesLeaf sets the minimum leaf size.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) { f.minSamplesLeaf = n }
}

// WithRandomState seeds the forest. -1 draws a fresh seed.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) { f.randomState = seed }
}

// WithNJobs bounds the number of trees grown concurrently. 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) { f.nJobs = n }
}

// NewRandomForestRegressor creates a forest of 100 fully grown trees.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		state:          model.NewStateManager(),
		nEstimators:    DefaultNEstimators,
		minSamplesLeaf: 1,
		randomState:    -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MaxFeaturesFor returns the per-split feature count used for p features.
func (f *RandomForestRegressor) MaxFeaturesFor(p int) int {
	if f.maxFeatures > 0 {
		return min(f.maxFeatures, p)
	}
	return max(1, (p+2)/3)
}

// Fit grows the forest. Tree seeds are drawn sequentially from the forest
// seed before the trees are grown concurrently, so the result does not depend
// on scheduling.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")
	f.state.Reset()

	if f.nEstimators < 1 {
		return errors.NewInvalidParameterError("n_trees", "must be at least 1", f.nEstimators)
	}
	n, p := X.Dims()
	if n < 2 || p < 1 {
		return errors.NewInsufficientSamplesError("RandomForestRegressor.Fit", 2, n, "need at least two samples and one feature")
	}
	yVec, err := metrics.ToVector(y)
	if err != nil {
		return err
	}
	if yVec.Len() != n {
		return errors.NewDimensionError("RandomForestRegressor.Fit", n, yVec.Len(), 0)
	}

	f.x = mat.DenseCopyOf(X)
	f.y = append([]float64(nil), yVec.RawVector().Data...)

	seed := uint64(f.randomState)
	if f.randomState < 0 {
		seed = rand.Uint64()
	}
	master := rand.New(rand.NewPCG(seed, seed))
	treeSeeds := make([]uint64, f.nEstimators)
	f.permSeeds = make([]uint64, f.nEstimators)
	for t := range treeSeeds {
		treeSeeds[t] = master.Uint64()
		f.permSeeds[t] = master.Uint64()
	}

	mtry := f.MaxFeaturesFor(p)
	f.Trees = make([]*tree.DecisionTreeRegressor, f.nEstimators)
	f.inBag = make([][]int, f.nEstimators)
	err = parallel.ForEach(context.Background(), f.nEstimators, f.nJobs, func(_ context.Context, t int) error {
		rng := rand.New(rand.NewPCG(treeSeeds[t], treeSeeds[t]))
		counts := make([]int, n)
		sample := make([]int, n)
		for i := range sample {
			k := rng.IntN(n)
			sample[i] = k
			counts[k]++
		}
		dt := tree.NewDecisionTreeRegressor(
			tree.WithMaxFeatures(mtry),
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesLeaf(f.minSamplesLeaf),
		)
		if err := dt.FitIndices(f.x, f.y, sample, rng); err != nil {
			return err
		}
		f.Trees[t] = dt
		f.inBag[t] = counts
		return nil
	})
	if err != nil {
		return err
	}

	f.state.SetFitted(p, n)
	return nil
}

// Predict returns the mean prediction of the trees as an n×1 column.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.state.CheckFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		at := func(j int) float64 { return X.At(i, j) }
		s := 0.0
		for _, dt := range f.Trees {
			s += dt.PredictFunc(at)
		}
		out.SetVec(i, s/float64(len(f.Trees)))
	}
	return out, nil
}

// oobRows returns the samples left out of tree t's bootstrap sample.
func (f *RandomForestRegressor) oobRows(t int) []int {
	var rows []int
	for i, c := range f.inBag[t] {
		if c == 0 {
			rows = append(rows, i)
		}
	}
	return rows
}

// OOBPrediction returns, for every training sample, the mean prediction of the
// trees that did not see it, and whether any such tree exists.
func (f *RandomForestRegressor) OOBPrediction() ([]float64, []bool, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "OOBPrediction"); err != nil {
		return nil, nil, err
	}
	n := len(f.y)
	sum := make([]float64, n)
	count := make([]int, n)
	for t, dt := range f.Trees {
		for _, i := range f.oobRows(t) {
			sum[i] += dt.PredictFunc(func(j int) float64 { return f.x.At(i, j) })
			count[i]++
		}
	}
	ok := make([]bool, n)
	for i := range sum {
		if count[i] > 0 {
			sum[i] /= float64(count[i])
			ok[i] = true
		}
	}
	return sum, ok, nil
}

// OOBScore returns R² of the out-of-bag predictions.
func (f *RandomForestRegressor) OOBScore() (float64, error) {
	pred, ok, err := f.OOBPrediction()
	if err != nil {
		return 0, err
	}
	var yTrue, yPred []float64
	for i := range pred {
		if ok[i] {
			yTrue = append(yTrue, f.y[i])
			yPred = append(yPred, pred[i])
		}
	}
	if len(yTrue) == 0 {
		return 0, errors.NewInsufficientSamplesError("RandomForestRegressor.OOBScore", 1, 0, "no out-of-bag samples")
	}
	return metrics.R2Score(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
}

// PermutationImportance returns, for each group of feature columns, the
// increase of out-of-bag MSE when the group's columns are permuted jointly
// across the out-of-bag samples of a tree, averaged over trees. Trees with
// fewer than two out-of-bag samples are skipped.
//
// Each tree draws its permutations from its own seed, so the result is
// deterministic for a seeded forest.
func (f *RandomForestRegressor) PermutationImportance(groups [][]int) ([]float64, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "PermutationImportance"); err != nil {
		return nil, err
	}
	_, p := f.x.Dims()
	inGroup := make([][]bool, len(groups))
	for g, cols := range groups {
		inGroup[g] = make([]bool, p)
		for _, j := range cols {
			if j < 0 || j >= p {
				return nil, errors.NewInvalidParameterError("groups", "column out of range", j)
			}
			inGroup[g][j] = true
		}
	}

	perTree := make([][]float64, len(f.Trees))
	err := parallel.ForEach(context.Background(), len(f.Trees), f.nJobs, func(_ context.Context, t int) error {
		rows := f.oobRows(t)
		if len(rows) < 2 {
			return nil
		}
		dt := f.Trees[t]
		rng := rand.New(rand.NewPCG(f.permSeeds[t], f.permSeeds[t]))

		base := 0.0
		for _, i := range rows {
			r := f.y[i] - dt.PredictFunc(func(j int) float64 { return f.x.At(i, j) })
			base += r * r
		}
		base /= float64(len(rows))

		imp := make([]float64, len(groups))
		for g := range groups {
			perm := rng.Perm(len(rows))
			mse := 0.0
			for k, i := range rows {
				donor := rows[perm[k]]
				pred := dt.PredictFunc(func(j int) float64 {
					if inGroup[g][j] {
						return f.x.At(donor, j)
					}
					return f.x.At(i, j)
				})
				r := f.y[i] - pred
				mse += r * r
			}
			imp[g] = mse/float64(len(rows)) - base
		}
		perTree[t] = imp
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(groups))
	used := 0
	for _, imp := range perTree {
		if imp == nil {
			continue
		}
		used++
		for g := range out {
			out[g] += imp[g]
		}
	}
	if used == 0 {
		return nil, errors.NewInsufficientSamplesError("RandomForestRegressor.PermutationImportance", 2, 0,
			"no tree has out-of-bag samples")
	}
	for g := range out {
		out[g] /= float64(used)
	}
	return out, nil
}

// FeatureImportances returns the impurity-based importances averaged over trees.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	p, _ := f.state.GetDimensions()
	out := make([]float64, p)
	for _, dt := range f.Trees {
		for j, v := range dt.FeatureImportances {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(f.Trees))
	}
	return out, nil
}

// GetParams returns the model's hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_trees":          f.nEstimators,
		"max_features":     f.maxFeatures,
		"max_depth":        f.maxDepth,
		"min_samples_leaf": f.minSamplesLeaf,
		"random_state":     f.randomState,
	}
}

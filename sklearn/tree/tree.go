// Package tree implements CART regression trees grown by variance reduction,
// the base learner of the random forests used for interval scoring.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/metrics"
	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// minGain below which a split is not worth making.
const minGain = 1e-12

// Node is one node of a fitted tree. Leaves have LeftChild == RightChild == -1.
type Node struct {
	NodeID     int
	ParentID   int
	LeftChild  int
	RightChild int

	SplitFeature int
	Threshold    float64
	Gain         float64 // SSE reduction of the split

	LeafValue float64
	NSamples  int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild < 0
}

type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

// DecisionTreeRegressor は分散減少で分割する回帰木。
// 分割ごとに maxFeatures 個の特徴量をランダムに選んで候補とする。
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     int64

	Nodes []Node
	// FeatureImportances は総分散減少を正規化した不純度ベースの重要度
	FeatureImportances []float64

	// 学習中のみ使用
	x   *mat.Dense
	y   []float64
	rng *rand.Rand
}

// NewDecisionTreeRegressor creates a regression tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit grows the tree on every row of X.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	n, _ := X.Dims()
	yVec, err := metrics.ToVector(y)
	if err != nil {
		return err
	}
	if yVec.Len() != n {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", n, yVec.Len(), 0)
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	seed := uint64(t.randomState)
	if t.randomState < 0 {
		seed = rand.Uint64()
	}
	return t.FitIndices(mat.DenseCopyOf(X), yVec.RawVector().Data, indices, rand.New(rand.NewPCG(seed, seed)))
}

// FitIndices grows the tree on the rows listed in indices, which may repeat
// (bootstrap samples). rng drives the per-split feature subsampling.
func (t *DecisionTreeRegressor) FitIndices(X *mat.Dense, y []float64, indices []int, rng *rand.Rand) error {
	t.state.Reset()
	n, p := X.Dims()
	if len(indices) == 0 || p == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", n, len(y), 0)
	}
	if t.minSamplesLeaf < 1 || t.minSamplesSplit < 2 {
		return errors.NewInvalidParameterError("min_samples_leaf", "must be at least 1 (and min_samples_split at least 2)", t.minSamplesLeaf)
	}

	t.x, t.y, t.rng = X, y, rng
	t.Nodes = t.Nodes[:0]
	t.FeatureImportances = make([]float64, p)

	t.buildNode(append([]int(nil), indices...), -1, 0)

	total := 0.0
	for _, v := range t.FeatureImportances {
		total += v
	}
	if total > 0 {
		for j := range t.FeatureImportances {
			t.FeatureImportances[j] /= total
		}
	}

	t.x, t.y, t.rng = nil, nil, nil
	t.state.SetFitted(p, len(indices))
	return nil
}

func (t *DecisionTreeRegressor) buildNode(indices []int, parentIdx, depth int) int {
	nodeIdx := len(t.Nodes)
	leaf := Node{
		NodeID:     nodeIdx,
		ParentID:   parentIdx,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  t.mean(indices),
		NSamples:   len(indices),
	}

	if (t.maxDepth > 0 && depth >= t.maxDepth) || len(indices) < t.minSamplesSplit {
		t.Nodes = append(t.Nodes, leaf)
		return nodeIdx
	}

	best := t.findBestSplit(indices)
	if best.gain < minGain {
		t.Nodes = append(t.Nodes, leaf)
		return nodeIdx
	}

	node := leaf
	node.SplitFeature = best.feature
	node.Threshold = best.threshold
	node.Gain = best.gain
	t.Nodes = append(t.Nodes, node)
	t.FeatureImportances[best.feature] += best.gain

	var left, right []int
	for _, idx := range indices {
		if t.x.At(idx, best.feature) <= best.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	leftChild := t.buildNode(left, nodeIdx, depth+1)
	rightChild := t.buildNode(right, nodeIdx, depth+1)
	t.Nodes[nodeIdx].LeftChild = leftChild
	t.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

// findBestSplit tries maxFeatures randomly chosen features.
func (t *DecisionTreeRegressor) findBestSplit(indices []int) splitInfo {
	_, p := t.x.Dims()
	features := t.rng.Perm(p)
	if t.maxFeatures > 0 && t.maxFeatures < p {
		features = features[:t.maxFeatures]
	}

	best := splitInfo{gain: -math.MaxFloat64}
	for _, j := range features {
		split := t.findBestSplitForFeature(indices, j)
		if split.gain > best.gain {
			best = split
		}
	}
	return best
}

// findBestSplitForFeature scans the sorted values of one feature. The gain of
// a split is the SSE reduction sumL²/nL + sumR²/nR − sum²/n.
func (t *DecisionTreeRegressor) findBestSplitForFeature(indices []int, feature int) splitInfo {
	type pair struct {
		value, target float64
	}
	values := make([]pair, len(indices))
	total := 0.0
	for i, idx := range indices {
		values[i] = pair{value: t.x.At(idx, feature), target: t.y[idx]}
		total += t.y[idx]
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].value < values[j].value
	})

	n := len(values)
	parent := total * total / float64(n)
	best := splitInfo{feature: feature, gain: -math.MaxFloat64}

	leftSum := 0.0
	for i := 0; i < n-1; i++ {
		leftSum += values[i].target
		leftCount := i + 1
		rightCount := n - leftCount

		// Skip if same value
		if values[i].value == values[i+1].value {
			continue
		}
		if leftCount < t.minSamplesLeaf || rightCount < t.minSamplesLeaf {
			continue
		}

		rightSum := total - leftSum
		gain := leftSum*leftSum/float64(leftCount) + rightSum*rightSum/float64(rightCount) - parent
		if gain > best.gain {
			best.gain = gain
			best.threshold = (values[i].value + values[i+1].value) / 2
		}
	}
	return best
}

func (t *DecisionTreeRegressor) mean(indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	s := 0.0
	for _, idx := range indices {
		s += t.y[idx]
	}
	return s / float64(len(indices))
}

// PredictFunc walks the tree for one sample whose feature j is at(j).
func (t *DecisionTreeRegressor) PredictFunc(at func(j int) float64) float64 {
	node := &t.Nodes[0]
	for !node.IsLeaf() {
		if at(node.SplitFeature) <= node.Threshold {
			node = &t.Nodes[node.LeftChild]
		} else {
			node = &t.Nodes[node.RightChild]
		}
	}
	return node.LeafValue
}

// Predict returns predictions as an n×1 column.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := t.state.CheckFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		i := i
		out.SetVec(i, t.PredictFunc(func(j int) float64 { return X.At(i, j) }))
	}
	return out, nil
}

// Depth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		n := t.Nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.LeftChild), walk(n.RightChild))
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// GetParams returns the model's hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.randomState,
	}
}

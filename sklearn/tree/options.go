package tree

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many randomly chosen features are tried at each
// split. 0 tries every feature.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxFeatures = n
	}
}

// WithRandomState seeds the feature subsampling. -1 draws a fresh seed.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) {
		t.randomState = seed
	}
}

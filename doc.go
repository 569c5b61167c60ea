// Package specsel provides wavelength (variable) selection for multivariate
// calibration of NIR/IR spectra, built on gonum.
//
// Given a spectral matrix X (n samples × p wavelengths) and a reference
// vector y, a selector picks the wavelengths that carry predictive
// information about y. All selectors share one scikit-learn style API:
// Fit, GetSupport, GetSupportIndices, Transform, GetScores, Result, and
// GetParams/SetParams.
//
// # Selectors
//
//   - VIP: Variable Importance in Projection of a PLS model
//   - MC-UVE: Monte-Carlo Uninformative Variable Elimination
//   - CARS: Competitive Adaptive Reweighted Sampling
//   - I-RF: interval Random Frog with random-forest importance per interval
//   - IPLS: interval PLS, intervals ranked by their own RMSECV
//   - VISSA: Variable Iterative Space Shrinkage Approach
//
// # Quick Start
//
//	cars := feature_selection.NewCARS(
//	    feature_selection.WithNIterations(50),
//	    feature_selection.WithRandomState(42),
//	)
//	if err := cars.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	idx, _ := cars.GetSupportIndices()
//	Xsel, _ := cars.Transform(X)
//
// Stochastic selectors are reproducible for a fixed random state regardless
// of the number of worker goroutines.
//
// # Packages
//
//   - sklearn/feature_selection: the selectors
//   - sklearn/cross_decomposition: PLS1 regression (NIPALS), VIP scores, component scans
//   - sklearn/model_selection: K-fold splits, train/test splits, cross-validated RMSE
//   - sklearn/ensemble, sklearn/tree: random forest regression used by I-RF
//   - stability: Deng and Zucknick selection-stability scores
//   - benchmark: repeated train/test comparison of selectors
//   - plotting: PNG plots of scores, CARS history and benchmark results
//   - metrics: regression metrics (MSE, MAE, R²)
//   - core/model: shared interfaces, SpectralDataset and SelectionResult
//   - core/parallel: deterministic parallel loops
//   - pkg/errors, pkg/log: structured errors and logging
//
// The specsel command (cmd/specsel) runs selection and benchmarks on CSV
// files from the command line.
package specsel

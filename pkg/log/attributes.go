// Standard attribute keys shared by every selector, so that log records from
// VIP, MC-UVE, CARS, I-RF and VISSA can be filtered the same way.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the selector or regressor type.
	// Examples: "VIP", "CARS", "PLSRegression"
	ModelNameKey = "model.name"

	// EstimatorIDKey is a unique identifier for one estimator instance (UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "feature_selection", "cross_decomposition", "benchmark"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey is the number of spectra (rows).
	SamplesKey = "data.samples"

	// FeaturesKey is the number of wavelengths (columns).
	FeaturesKey = "data.features"

	// SelectedKey is the number of wavelengths retained by a selector.
	SelectedKey = "selection.selected"
)

// Performance and Progress
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the current iteration of CARS, MC-UVE or VISSA.
	IterationKey = "training.iteration"

	// RMSECVKey records a cross-validated root mean squared error.
	RMSECVKey = "metrics.rmsecv"

	// MSEKey records a mean squared error on held-out samples.
	MSEKey = "metrics.mse"

	// R2ScoreKey records the coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// ComponentsKey records the number of latent components used by a fit.
	ComponentsKey = "pls.n_components"

	// IntervalKey records the index of a wavelength interval (I-RF).
	IntervalKey = "selection.interval"
)

// Error and Configuration Context
const (
	// ErrorTypeKey categorizes the type of error or warning encountered.
	ErrorTypeKey = "error.type"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// MethodKey names a benchmarked method.
	MethodKey = "benchmark.method"

	// RunKey records the index of a benchmark run.
	RunKey = "benchmark.run"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSelect    = "select"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
)

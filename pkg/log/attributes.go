// Package log attribute keys for machine learning operations.
//
// Using these standard keys keeps log output consistent across packages and
// enables filtering by model kind, operation and data shape when debugging a
// meta-learner run.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "LinearRegression", "LogisticRegression", "TLearner"
	ModelNameKey = "model.name"

	// ModelKindKey names the logical role a sub-model plays inside a
	// meta-learner. Examples: "propensity_model", "variant_outcome_model"
	ModelKindKey = "model.kind"

	// ModelOrdinalKey is the index of a sub-model within its kind, in
	// [0, cardinality).
	ModelOrdinalKey = "model.ordinal"

	// VariantKey identifies the meta-learner variant. Examples: "S", "T",
	// "X", "R", "DR"
	VariantKey = "learner.variant"

	// EstimatorIDKey provides a unique identifier for a specific estimator
	// instance, typically a UUID.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "crossfit", "metalearner", "linear"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Standard OperationKey values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
)

// Standard PhaseKey values.
const (
	PhaseTraining  = "training"
	PhaseInference = "inference"
)

// Data shape and characteristics.
const (
	// SamplesKey indicates the number of samples (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) being processed.
	FeaturesKey = "data.features"

	// VariantsKey indicates the number of treatment variants.
	VariantsKey = "data.variants"

	// FoldsKey indicates the number of cross-fitting folds.
	FoldsKey = "crossfit.folds"

	// PredsKey indicates the number of predictions produced.
	PredsKey = "data.predictions"
)

// Performance metrics.
const (
	// DurationMsKey records the execution time of an operation in
	// milliseconds.
	DurationMsKey = "perf.duration_ms"
)

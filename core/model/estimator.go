// Package model provides core abstractions for machine learning estimators.
//
// This package defines the capability set every base model consumed by a
// meta-learner must conform to:
//
//   - Estimator: fit/predict with hyperparameters and fitted-state reporting
//   - Classifier: an Estimator that can additionally produce class
//     probabilities
//   - Factory: allocates fresh, untrained estimator instances so that
//     cross-fitting can train independent copies per fold
//
// The meta-learner layer never constructs estimators directly; it receives
// factories, applies per-kind parameters through SetParams and delegates
// training to the cross-fitting collaborator.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Params holds hyperparameters as a name to value mapping. Values are
// typically int, float64, string or bool; each estimator documents the
// parameters it understands and ignores unknown keys.
type Params map[string]interface{}

// Clone returns a shallow copy of the parameter map. A nil receiver yields
// an empty, non-nil map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Estimator is the minimal trainable model contract. Implementations must be
// usable after zero or more SetParams calls followed by Fit; Predict before a
// successful Fit returns a NotFittedError.
type Estimator interface {
	// Fit trains the estimator on X (n_samples x n_features) and targets y
	// (length n_samples). fitParams carries per-call fitting options such as
	// sample weights under "sample_weight"; nil means defaults.
	Fit(X mat.Matrix, y *mat.VecDense, fitParams Params) error

	// Predict returns point predictions of length n_samples.
	Predict(X mat.Matrix) (*mat.VecDense, error)

	// SetParams applies hyperparameters prior to fitting.
	SetParams(params Params) error

	// IsFitted reports whether Fit has completed successfully.
	IsFitted() bool
}

// Classifier is an Estimator that predicts class labels and can report
// per-class probabilities.
type Classifier interface {
	Estimator

	// PredictProba returns an (n_samples x n_classes) matrix of class
	// probabilities, columns ordered by Classes.
	PredictProba(X mat.Matrix) (*mat.Dense, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []int
}

// Factory allocates a fresh, untrained estimator. Factories must return a
// new instance on every call; cross-fitting trains one instance per fold and
// instances are never shared.
type Factory func() Estimator

// IsClassifierFactory reports whether the factory produces classifiers. It
// allocates a throwaway instance to probe the capability; factories are
// expected to be cheap.
func IsClassifierFactory(f Factory) bool {
	if f == nil {
		return false
	}
	_, ok := f().(Classifier)
	return ok
}

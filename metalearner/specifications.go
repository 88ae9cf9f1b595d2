package metalearner

import (
	"github.com/ezoic/metalearners/crossfit"
)

// Provision is the configuration view available to model-specification
// functions. Cardinality and prediction-mode functions are evaluated during
// construction, before the meta-learner is fully built; only the fields
// exposed here are guaranteed to be set at that point.
type Provision interface {
	// NVariants returns the number of treatment variants, at least 2.
	NVariants() int

	// IsClassification reports whether the outcome is categorical.
	IsClassification() bool
}

// ModelSpecification declares, for one model kind, how many independent
// estimator instances the kind needs and which prediction mode those
// estimators must support. Both are functions of the instantiated learner
// so that, for example, one outcome model per treatment variant can be
// requested.
type ModelSpecification struct {
	Cardinality   func(Provision) int
	PredictMethod func(Provision) crossfit.PredictMethod
}

// ModelSpecifications maps kind names to their specifications. Nuisance and
// treatment kinds live in disjoint registries; the reserved propensity kind
// may only ever appear in a nuisance registry.
type ModelSpecifications map[string]ModelSpecification

// kindNames returns the registry's kind names in unspecified order.
func (s ModelSpecifications) kindNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// fixedCardinality returns a cardinality function independent of the
// learner configuration.
func fixedCardinality(n int) func(Provision) int {
	return func(Provision) int { return n }
}

// perVariantCardinality requests one estimator per treatment variant.
func perVariantCardinality(p Provision) int {
	return p.NVariants()
}

// outcomePredictMethod selects probabilities for classification outcomes
// and point predictions otherwise.
func outcomePredictMethod(p Provision) crossfit.PredictMethod {
	if p.IsClassification() {
		return crossfit.MethodPredictProba
	}
	return crossfit.MethodPredict
}

// probaPredictMethod always selects class probabilities; used for the
// propensity kind.
func probaPredictMethod(Provision) crossfit.PredictMethod {
	return crossfit.MethodPredictProba
}

// pointPredictMethod always selects point predictions; used for
// treatment-effect kinds, which regress pseudo-outcomes.
func pointPredictMethod(Provision) crossfit.PredictMethod {
	return crossfit.MethodPredict
}

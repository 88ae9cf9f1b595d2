// Package metalearner implements meta-learners for estimating conditional
// average treatment effects (CATE).
//
// A meta-learner composes ordinary supervised models into a treatment-effect
// estimator. This package provides the orchestration layer: each variant
// (S, T, X, R, DR) declares the named sub-models it needs ("model kinds",
// split into nuisance and treatment roles), and the shared Base wires one
// cross-fitting estimator per (kind, ordinal) pair, validates configuration
// at construction, and routes data with per-kind feature subsetting through
// the generic FitNuisance / FitTreatment / PredictNuisance /
// PredictTreatment operations.
//
// Construction is all-or-nothing: a configuration error leaves no usable
// instance. Use ForPrefix or New to select a variant by its short code:
//
//	learner, err := metalearner.New("T", metalearner.Config{
//		NuisanceModelFactory: metalearner.Uniform[model.Factory](newRegressor),
//		NVariants:            2,
//		IsClassification:     false,
//	})
package metalearner

import (
	"fmt"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// PropensityModel is the reserved kind name for the propensity sub-model.
// It may never appear in a treatment registry nor be configured through the
// generic nuisance channels; use the dedicated Propensity* configuration
// fields instead.
const PropensityModel = "propensity_model"

// PerKind holds a configuration value that applies either uniformly to all
// model kinds or individually per kind. The zero value is "unset".
type PerKind[T any] struct {
	uniform T
	byKind  map[string]T
	mode    perKindMode
}

type perKindMode int

const (
	perKindUnset perKindMode = iota
	perKindUniform
	perKindByKind
)

// Uniform returns a PerKind applying v to every kind.
func Uniform[T any](v T) PerKind[T] {
	return PerKind[T]{uniform: v, mode: perKindUniform}
}

// ByKind returns a PerKind with an explicit per-kind mapping. The key set
// must exactly match the declared kind names of the variant it is used with.
func ByKind[T any](m map[string]T) PerKind[T] {
	return PerKind[T]{byKind: m, mode: perKindByKind}
}

// IsSet reports whether a value has been supplied.
func (p PerKind[T]) IsSet() bool {
	return p.mode != perKindUnset
}

// HasKind reports whether p is an explicit mapping containing name. Unset
// and uniform values report false.
func (p PerKind[T]) HasKind(name string) bool {
	if p.mode != perKindByKind {
		return false
	}
	_, ok := p.byKind[name]
	return ok
}

// normalize produces a mapping covering exactly expectedNames. A uniform
// value is broadcast to every name; an explicit mapping whose key set equals
// expectedNames is returned unchanged (sharing, not copying). An explicit
// mapping with a different key set is a configuration error. An unset value
// broadcasts the zero value of T.
func (p PerKind[T]) normalize(expectedNames []string) (map[string]T, error) {
	if p.mode == perKindByKind {
		if len(p.byKind) == len(expectedNames) {
			matched := true
			for _, name := range expectedNames {
				if _, ok := p.byKind[name]; !ok {
					matched = false
					break
				}
			}
			if matched {
				return p.byKind, nil
			}
		}
		return nil, mlErrors.NewValueError("metalearner",
			fmt.Sprintf("per-kind mapping keys do not match the expected model kinds %v", expectedNames))
	}

	out := make(map[string]T, len(expectedNames))
	for _, name := range expectedNames {
		out[name] = p.uniform
	}
	return out, nil
}

// combinePropensityAndNuisance folds the dedicated propensity value into the
// nuisance mapping. When the propensity kind is declared among nuisanceNames
// the remaining names are normalized from nuisance and the propensity entry
// is set from propensity unconditionally; otherwise nuisance alone is
// normalized over all names and propensity is ignored.
func combinePropensityAndNuisance[T any](propensity T, nuisance PerKind[T], nuisanceNames []string) (map[string]T, error) {
	hasPropensity := false
	rest := make([]string, 0, len(nuisanceNames))
	for _, name := range nuisanceNames {
		if name == PropensityModel {
			hasPropensity = true
			continue
		}
		rest = append(rest, name)
	}

	if !hasPropensity {
		return nuisance.normalize(nuisanceNames)
	}

	out, err := nuisance.normalize(rest)
	if err != nil {
		return nil, err
	}
	// The normalized map may be shared with the caller-supplied mapping;
	// copy before inserting the propensity entry.
	combined := make(map[string]T, len(out)+1)
	for k, v := range out {
		combined[k] = v
	}
	combined[PropensityModel] = propensity
	return combined, nil
}

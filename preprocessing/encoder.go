// Package preprocessing provides data transformations used around model
// fitting: one-hot encoding of categorical variables and feature scaling.
package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// OneHotEncoder converts integer categories into 0/1 indicator columns. It
// is used by the S-learner to append treatment-variant indicators to the
// covariate matrix before fitting its base model.
type OneHotEncoder struct {
	state *model.StateManager

	// Categories holds the sorted distinct categories seen during Fit.
	Categories []int

	categoryToIdx map[int]int
}

// NewOneHotEncoder creates an unfitted OneHotEncoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{state: model.NewStateManager()}
}

// Fit learns the distinct categories present in values.
func (e *OneHotEncoder) Fit(values []int) error {
	if len(values) == 0 {
		return mlErrors.NewModelError("OneHotEncoder.Fit", "empty data", mlErrors.ErrEmptyData)
	}

	seen := make(map[int]bool)
	for _, v := range values {
		seen[v] = true
	}

	categories := make([]int, 0, len(seen))
	for v := range seen {
		categories = append(categories, v)
	}
	sort.Ints(categories)

	e.Categories = categories
	e.categoryToIdx = make(map[int]int, len(categories))
	for idx, v := range categories {
		e.categoryToIdx[v] = idx
	}

	e.state.SetFitted()
	return nil
}

// Transform encodes values into an (n x n_categories) indicator matrix.
// Unknown categories are rejected.
func (e *OneHotEncoder) Transform(values []int) (*mat.Dense, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}

	out := mat.NewDense(len(values), len(e.Categories), nil)
	for i, v := range values {
		idx, ok := e.categoryToIdx[v]
		if !ok {
			return nil, mlErrors.NewValidationError("values", "unknown category", v)
		}
		out.Set(i, idx, 1)
	}
	return out, nil
}

// FitTransform fits the encoder and transforms values in one step.
func (e *OneHotEncoder) FitTransform(values []int) (*mat.Dense, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// NOutputs returns the number of indicator columns produced by Transform.
func (e *OneHotEncoder) NOutputs() int {
	return len(e.Categories)
}

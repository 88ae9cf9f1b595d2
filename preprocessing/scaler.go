package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// StandardScaler standardizes features by removing the mean and scaling to
// unit variance. Constant columns are left centered but unscaled.
type StandardScaler struct {
	state *model.StateManager

	// Mean and Scale hold the per-feature statistics learned during Fit.
	Mean  []float64
	Scale []float64

	// NFeatures is the number of input features.
	NFeatures int
}

// NewStandardScaler creates an unfitted StandardScaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{state: model.NewStateManager()}
}

// Fit computes per-feature mean and standard deviation from X.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return mlErrors.NewModelError("StandardScaler.Fit", "empty data", mlErrors.ErrEmptyData)
	}

	mean := make([]float64, d)
	scale := make([]float64, d)

	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += X.At(i, j)
		}
		mean[j] = sum / float64(n)

		var ss float64
		for i := 0; i < n; i++ {
			diff := X.At(i, j) - mean[j]
			ss += diff * diff
		}
		std := math.Sqrt(ss / float64(n))
		if std == 0 {
			std = 1
		}
		scale[j] = std
	}

	s.Mean = mean
	s.Scale = scale
	s.NFeatures = d
	s.state.SetFitted()
	s.state.SetDimensions(d, n)
	return nil
}

// Transform standardizes X using the statistics learned during Fit.
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}

	n, d := X.Dims()
	if d != s.NFeatures {
		return nil, mlErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, d, 1)
	}

	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms X in one step.
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

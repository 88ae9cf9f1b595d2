package preprocessing_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/preprocessing"
)

const epsilon = 1e-10 // Tolerance for floating-point comparisons

func TestStandardScaler_FitTransform(t *testing.T) {
	// Feature 1: [1, 2, 3] -> mean=2, std=0.816
	// Feature 2: [4, 5, 6] -> mean=5, std=0.816
	X := mat.NewDense(3, 2, []float64{
		1, 4,
		2, 5,
		3, 6,
	})

	scaler := preprocessing.NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	wantMean := []float64{2, 5}
	wantStd := 0.816496580927726
	for j, want := range wantMean {
		if math.Abs(scaler.Mean[j]-want) > epsilon {
			t.Errorf("Mean[%d]: expected %f, got %f", j, want, scaler.Mean[j])
		}
		if math.Abs(scaler.Scale[j]-wantStd) > epsilon {
			t.Errorf("Scale[%d]: expected %f, got %f", j, wantStd, scaler.Scale[j])
		}
	}

	// Columns have zero mean and unit variance after scaling.
	n, d := scaled.Dims()
	for j := 0; j < d; j++ {
		var sum, ss float64
		for i := 0; i < n; i++ {
			sum += scaled.At(i, j)
		}
		m := sum / float64(n)
		for i := 0; i < n; i++ {
			diff := scaled.At(i, j) - m
			ss += diff * diff
		}
		if math.Abs(m) > epsilon {
			t.Errorf("Column %d mean after scaling: expected 0, got %f", j, m)
		}
		if math.Abs(ss/float64(n)-1) > epsilon {
			t.Errorf("Column %d variance after scaling: expected 1, got %f", j, ss/float64(n))
		}
	}
}

func TestStandardScaler_ConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{7, 7, 7})

	scaler := preprocessing.NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// Constant columns are centered but not scaled.
	if scaler.Scale[0] != 1 {
		t.Errorf("Constant column scale: expected 1, got %f", scaler.Scale[0])
	}
	for i := 0; i < 3; i++ {
		if math.Abs(scaled.At(i, 0)) > epsilon {
			t.Errorf("Centered constant value at %d: expected 0, got %f", i, scaled.At(i, 0))
		}
	}
}

func TestStandardScaler_TransformBeforeFit(t *testing.T) {
	scaler := preprocessing.NewStandardScaler()
	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	if !errors.Is(err, mlErrors.ErrNotFitted) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
}

func TestStandardScaler_DimensionMismatch(t *testing.T) {
	scaler := preprocessing.NewStandardScaler()
	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	_, err := scaler.Transform(mat.NewDense(2, 3, nil))
	if !errors.Is(err, mlErrors.ErrDimensionMismatch) {
		t.Errorf("Expected DimensionError, got %v", err)
	}
}

func TestStandardScaler_EmptyData(t *testing.T) {
	scaler := preprocessing.NewStandardScaler()
	if err := scaler.Fit(&mat.Dense{}); !errors.Is(err, mlErrors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData, got %v", err)
	}
}

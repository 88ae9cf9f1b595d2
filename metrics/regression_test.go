package metrics_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/metrics"
)

const epsilon = 1e-10 // Tolerance for floating-point comparisons

func TestMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	yPred := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("MSE failed: %v", err)
	}
	if mse != 0 {
		t.Errorf("Perfect prediction MSE: expected 0, got %f", mse)
	}

	yPred = mat.NewVecDense(4, []float64{2, 3, 4, 5})
	mse, err = metrics.MSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("MSE failed: %v", err)
	}
	if math.Abs(mse-1) > epsilon {
		t.Errorf("Constant offset MSE: expected 1, got %f", mse)
	}
}

func TestRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{0, 0})
	yPred := mat.NewVecDense(2, []float64{3, 4})

	rmse, err := metrics.RMSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("RMSE failed: %v", err)
	}
	// MSE = (9+16)/2 = 12.5
	if math.Abs(rmse-math.Sqrt(12.5)) > epsilon {
		t.Errorf("RMSE: expected %f, got %f", math.Sqrt(12.5), rmse)
	}
}

func TestMAE(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{1, 2, 3})
	yPred := mat.NewVecDense(3, []float64{2, 2, 1})

	mae, err := metrics.MAE(yTrue, yPred)
	if err != nil {
		t.Fatalf("MAE failed: %v", err)
	}
	if math.Abs(mae-1) > epsilon {
		t.Errorf("MAE: expected 1, got %f", mae)
	}
}

func TestR2Score(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	r2, err := metrics.R2Score(yTrue, yTrue)
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if math.Abs(r2-1) > epsilon {
		t.Errorf("Perfect prediction R2: expected 1, got %f", r2)
	}

	// Predicting the mean scores zero.
	mean := mat.NewVecDense(4, []float64{2.5, 2.5, 2.5, 2.5})
	r2, err = metrics.R2Score(yTrue, mean)
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if math.Abs(r2) > epsilon {
		t.Errorf("Mean prediction R2: expected 0, got %f", r2)
	}
}

func TestR2ScoreZeroVariance(t *testing.T) {
	constant := mat.NewVecDense(3, []float64{5, 5, 5})
	if _, err := metrics.R2Score(constant, constant); err == nil {
		t.Error("Expected error for zero-variance yTrue")
	}
}

func TestRegressionMetricsValidation(t *testing.T) {
	short := mat.NewVecDense(2, []float64{1, 2})
	long := mat.NewVecDense(3, []float64{1, 2, 3})

	if _, err := metrics.MSE(short, long); err == nil {
		t.Error("Expected dimension error from MSE")
	}
	if _, err := metrics.MAE(short, long); err == nil {
		t.Error("Expected dimension error from MAE")
	}
}

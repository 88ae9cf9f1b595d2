package linear

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// separableData builds a well-separated binary problem around x = 0.
func separableData(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := float64(i-n/2) / float64(n)
		X.Set(i, 0, x)
		if x > 0 {
			y.SetVec(i, 1)
		}
	}
	return X, y
}

func TestLogisticRegression_BinaryFit(t *testing.T) {
	X, y := separableData(40)

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !clf.IsFitted() {
		t.Fatal("IsFitted should be true after Fit")
	}

	classes := clf.Classes()
	if len(classes) != 2 || classes[0] != 0 || classes[1] != 1 {
		t.Fatalf("Expected classes [0 1], got %v", classes)
	}

	preds, err := clf.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	correct := 0
	for i := 0; i < 40; i++ {
		if preds.AtVec(i) == y.AtVec(i) {
			correct++
		}
	}
	if correct < 36 {
		t.Errorf("Expected at least 36/40 correct on separable data, got %d", correct)
	}
}

func TestLogisticRegression_PredictProba(t *testing.T) {
	X, y := separableData(40)

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	probs, err := clf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	n, c := probs.Dims()
	if n != 40 || c != 2 {
		t.Fatalf("Expected 40x2 probabilities, got %dx%d", n, c)
	}
	for i := 0; i < n; i++ {
		sum := probs.At(i, 0) + probs.At(i, 1)
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("Row %d probabilities sum to %f", i, sum)
		}
		for j := 0; j < c; j++ {
			if probs.At(i, j) < 0 || probs.At(i, j) > 1 {
				t.Errorf("Probability out of range at (%d,%d): %f", i, j, probs.At(i, j))
			}
		}
	}

	// Probability of the positive class should increase with x.
	if probs.At(0, 1) >= probs.At(39, 1) {
		t.Errorf("Positive probability should increase with x: %f vs %f",
			probs.At(0, 1), probs.At(39, 1))
	}
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	// Three linearly shifted clusters.
	n := 60
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		class := i % 3
		X.Set(i, 0, float64(class)*3+float64(i%5)*0.1)
		y.SetVec(i, float64(class))
	}

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	classes := clf.Classes()
	if len(classes) != 3 {
		t.Fatalf("Expected 3 classes, got %v", classes)
	}

	probs, err := clf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	_, c := probs.Dims()
	if c != 3 {
		t.Fatalf("Expected 3 probability columns, got %d", c)
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += probs.At(i, j)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("Row %d probabilities sum to %f", i, sum)
		}
	}
}

func TestLogisticRegression_SetParams(t *testing.T) {
	clf := NewLogisticRegression()
	err := clf.SetParams(map[string]interface{}{
		"C":             0.5,
		"max_iter":      50,
		"tol":           1e-5,
		"fit_intercept": false,
	})
	if err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}

	if err := clf.SetParams(map[string]interface{}{"C": "high"}); err == nil {
		t.Error("Expected error for non-numeric C")
	}
}

func TestLogisticRegression_PredictBeforeFit(t *testing.T) {
	clf := NewLogisticRegression()
	_, err := clf.PredictProba(mat.NewDense(2, 1, []float64{0, 1}))
	if !errors.Is(err, mlErrors.ErrNotFitted) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
}

func TestLogisticRegression_SingleClass(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, nil) // all zero

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y, nil); err == nil {
		t.Error("Expected error when only one class is present")
	}
}

package metrics_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/metrics"
)

func TestUpliftCurve(t *testing.T) {
	// Scores rank the responder first. Treated responder, treated
	// non-responder, two control non-responders.
	scores := mat.NewVecDense(4, []float64{0.9, 0.1, 0.5, 0.2})
	y := mat.NewVecDense(4, []float64{1, 0, 0, 0})
	w := []int{1, 1, 0, 0}

	curve, err := metrics.UpliftCurve(scores, y, w)
	if err != nil {
		t.Fatalf("UpliftCurve failed: %v", err)
	}
	if len(curve) != 4 {
		t.Fatalf("Expected curve of length 4, got %d", len(curve))
	}

	// Top-1 prefix holds only the treated responder.
	if math.Abs(curve[0]-1) > epsilon {
		t.Errorf("curve[0]: expected 1, got %f", curve[0])
	}
	// Full population: treated mean 0.5, control mean 0.
	if math.Abs(curve[3]-0.5) > epsilon {
		t.Errorf("curve[3]: expected 0.5, got %f", curve[3])
	}
}

func TestAUUCPrefersInformativeScores(t *testing.T) {
	n := 20
	y := mat.NewVecDense(n, nil)
	w := make([]int, n)
	informative := mat.NewVecDense(n, nil)
	uninformative := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		w[i] = i % 2
		// Treated observations in the first half respond.
		if w[i] == 1 && i < n/2 {
			y.SetVec(i, 1)
		}
		if w[i] == 1 && i < n/2 {
			informative.SetVec(i, 1)
		}
		uninformative.SetVec(i, float64((i*7)%5))
	}

	good, err := metrics.AUUC(informative, y, w)
	if err != nil {
		t.Fatalf("AUUC failed: %v", err)
	}
	random, err := metrics.AUUC(uninformative, y, w)
	if err != nil {
		t.Fatalf("AUUC failed: %v", err)
	}
	if good <= random {
		t.Errorf("Informative scores should score higher: %f vs %f", good, random)
	}
}

func TestQiniCoefficientConstantScores(t *testing.T) {
	// Constant scores preserve input order; with alternating assignment and
	// outcomes proportional everywhere the coefficient stays near zero.
	n := 40
	scores := mat.NewVecDense(n, nil)
	y := mat.NewVecDense(n, nil)
	w := make([]int, n)
	for i := 0; i < n; i++ {
		w[i] = i % 2
		y.SetVec(i, float64(w[i]))
	}

	q, err := metrics.QiniCoefficient(scores, y, w)
	if err != nil {
		t.Fatalf("QiniCoefficient failed: %v", err)
	}
	if math.Abs(q) > 0.2 {
		t.Errorf("Expected near-zero Qini for constant scores, got %f", q)
	}
}

func TestUpliftValidation(t *testing.T) {
	scores := mat.NewVecDense(3, []float64{1, 2, 3})
	y := mat.NewVecDense(2, []float64{0, 1})

	if _, err := metrics.UpliftCurve(scores, y, []int{0, 1, 0}); err == nil {
		t.Error("Expected dimension error for mismatched y")
	}
	if _, err := metrics.AUUC(scores, mat.NewVecDense(3, nil), []int{0, 1}); err == nil {
		t.Error("Expected dimension error for mismatched w")
	}
}

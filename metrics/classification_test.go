package metrics_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/metrics"
)

func TestBinaryLogLoss(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{1, 0})
	yPred := mat.NewVecDense(2, []float64{0.8, 0.2})

	loss, err := metrics.BinaryLogLoss(yTrue, yPred)
	if err != nil {
		t.Fatalf("BinaryLogLoss failed: %v", err)
	}
	want := -math.Log(0.8)
	if math.Abs(loss-want) > epsilon {
		t.Errorf("BinaryLogLoss: expected %f, got %f", want, loss)
	}
}

func TestBinaryLogLossClampsExtremes(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{1, 0})
	yPred := mat.NewVecDense(2, []float64{0, 1}) // maximally wrong

	loss, err := metrics.BinaryLogLoss(yTrue, yPred)
	if err != nil {
		t.Fatalf("BinaryLogLoss failed: %v", err)
	}
	if math.IsInf(loss, 0) || math.IsNaN(loss) {
		t.Errorf("Clamped loss should be finite, got %f", loss)
	}
}

func TestBinaryLogLossRejectsNonBinaryLabels(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{0.5, 1})
	yPred := mat.NewVecDense(2, []float64{0.5, 0.5})

	if _, err := metrics.BinaryLogLoss(yTrue, yPred); err == nil {
		t.Error("Expected error for non-binary labels")
	}
}

func TestLogLoss(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{0, 1})
	proba := mat.NewDense(2, 2, []float64{
		0.9, 0.1,
		0.3, 0.7,
	})

	loss, err := metrics.LogLoss(yTrue, proba)
	if err != nil {
		t.Fatalf("LogLoss failed: %v", err)
	}
	want := -(math.Log(0.9) + math.Log(0.7)) / 2
	if math.Abs(loss-want) > epsilon {
		t.Errorf("LogLoss: expected %f, got %f", want, loss)
	}
}

func TestLogLossRejectsOutOfRangeLabel(t *testing.T) {
	yTrue := mat.NewVecDense(1, []float64{3})
	proba := mat.NewDense(1, 2, []float64{0.5, 0.5})

	if _, err := metrics.LogLoss(yTrue, proba); err == nil {
		t.Error("Expected error for label outside probability columns")
	}
}

func TestAccuracy(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{0, 1, 1, 0})
	yPred := mat.NewVecDense(4, []float64{0, 1, 0, 0})

	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		t.Fatalf("Accuracy failed: %v", err)
	}
	if math.Abs(acc-0.75) > epsilon {
		t.Errorf("Accuracy: expected 0.75, got %f", acc)
	}
}

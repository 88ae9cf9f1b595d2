package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// probability clamp to keep log terms finite
const logLossEpsilon = 1e-15

// BinaryLogLoss calculates the cross-entropy between binary labels and
// predicted positive-class probabilities. Probabilities are clamped away
// from 0 and 1 before taking logs.
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewValueError("BinaryLogLoss", "empty vector")
	}
	if yPred.Len() != n {
		return 0, mlErrors.NewDimensionError("BinaryLogLoss", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, mlErrors.NewValidationError(
				"yTrue",
				"must contain only binary values (0 or 1)",
				y,
			)
		}
		p := yPred.AtVec(i)
		if p < logLossEpsilon {
			p = logLossEpsilon
		}
		if p > 1-logLossEpsilon {
			p = 1 - logLossEpsilon
		}
		sum -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return sum / float64(n), nil
}

// LogLoss calculates the multi-class cross-entropy between integer labels
// and an (n x n_classes) probability matrix. Labels index columns of proba.
func LogLoss(yTrue *mat.VecDense, proba *mat.Dense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewValueError("LogLoss", "empty vector")
	}
	pr, pc := proba.Dims()
	if pr != n {
		return 0, mlErrors.NewDimensionError("LogLoss", n, pr, 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		label := int(yTrue.AtVec(i))
		if label < 0 || label >= pc {
			return 0, mlErrors.NewValidationError(
				"yTrue",
				"label outside probability matrix columns",
				label,
			)
		}
		p := proba.At(i, label)
		if p < logLossEpsilon {
			p = logLossEpsilon
		}
		sum -= math.Log(p)
	}
	return sum / float64(n), nil
}

// Accuracy calculates the fraction of samples where the predicted label
// equals the true label.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewValueError("Accuracy", "empty vector")
	}
	if yPred.Len() != n {
		return 0, mlErrors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Package metrics provides evaluation metrics for machine learning models.
//
// The package implements the regression and classification metrics used by
// the meta-learner Evaluate implementations:
//
//   - MSE, RMSE, MAE: squared and absolute prediction error
//   - R2Score: coefficient of determination
//   - BinaryLogLoss: cross-entropy for probabilistic binary predictions
//   - Accuracy: fraction of correctly classified samples
//
// All metrics operate on gonum vectors and validate shapes before computing.
//
// Example:
//
//	rmse, err := metrics.RMSE(yTrue, yPred)
//	if err != nil {
//	    log.Fatal(err)
//	}
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// MSE calculates the mean squared error between true and predicted values.
// Lower is better; the metric is sensitive to outliers.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, mlErrors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE calculates the root mean squared error, the square root of MSE,
// expressed in the units of the target.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the mean absolute error, a more outlier-robust companion
// to MSE.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, mlErrors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score calculates the coefficient of determination. A perfect model
// scores 1; a model no better than predicting the mean scores 0; worse
// models score negative. Returns an error when yTrue has zero variance.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, mlErrors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, mlErrors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	var mean float64
	for i := 0; i < n; i++ {
		mean += yTrue.AtVec(i)
	}
	mean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - mean
		tss += d * d
		r := yTrue.AtVec(i) - yPred.AtVec(i)
		rss += r * r
	}

	if tss == 0 {
		return 0, mlErrors.NewValueError("R2Score", "zero variance in yTrue")
	}
	return 1 - rss/tss, nil
}

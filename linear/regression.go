// Package linear provides linear base models for meta-learner factories.
//
// The package implements two estimators conforming to the core/model
// capability set:
//
//   - LinearRegression: ordinary or weighted least squares via the normal
//     equations
//   - LogisticRegression: binary and one-vs-rest logistic regression fit
//     with L-BFGS
//
// Both are intended as default nuisance and treatment models; any estimator
// satisfying model.Estimator (or model.Classifier for propensity and
// classification outcomes) can be used instead.
//
// Example:
//
//	lr := linear.NewLinearRegression()
//	if err := lr.Fit(X, y, nil); err != nil {
//		log.Fatal(err)
//	}
//	preds, err := lr.Predict(XTest)
package linear

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	"github.com/ezoic/metalearners/core/parallel"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/pkg/log"
)

// LinearRegression is an ordinary least squares regressor. When the fit
// parameter "sample_weight" (a []float64 of length n_samples) is supplied it
// solves the weighted least squares problem instead, which the R-learner
// relies on for its weighted pseudo-outcome regression.
type LinearRegression struct {
	state  *model.StateManager
	logger log.Logger

	fitIntercept bool

	// Weights holds the learned coefficients; Intercept the learned bias.
	Weights   *mat.VecDense
	Intercept float64
	NFeatures int
}

// NewLinearRegression creates an untrained linear regression model.
func NewLinearRegression() *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	lr.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "LinearRegression",
		log.ComponentKey, "linear",
	)
	return lr
}

// SetParams applies hyperparameters. Supported: "fit_intercept" (bool).
func (lr *LinearRegression) SetParams(params model.Params) error {
	if v, ok := params["fit_intercept"]; ok {
		b, ok := v.(bool)
		if !ok {
			return mlErrors.NewValueError("LinearRegression.SetParams", "fit_intercept must be a bool")
		}
		lr.fitIntercept = b
	}
	return nil
}

// sequential fallback below this row count
const parallelThreshold = 1000

// Fit solves the (weighted) normal equations (X^T W X) w = X^T W y.
func (lr *LinearRegression) Fit(X mat.Matrix, y *mat.VecDense, fitParams model.Params) (err error) {
	defer mlErrors.Recover(&err, "LinearRegression.Fit")

	start := time.Now()
	n, d := X.Dims()

	if n == 0 || d == 0 {
		return mlErrors.NewModelError("LinearRegression.Fit", "empty data", mlErrors.ErrEmptyData)
	}
	if y.Len() != n {
		return mlErrors.NewDimensionError("LinearRegression.Fit", n, y.Len(), 0)
	}

	weights, err := sampleWeights(fitParams, n)
	if err != nil {
		return err
	}

	lr.logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	// Design matrix, optionally with a leading column of ones.
	cols := d
	offset := 0
	if lr.fitIntercept {
		cols = d + 1
		offset = 1
	}
	design := mat.NewDense(n, cols, nil)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(startRow, endRow int) {
		for i := startRow; i < endRow; i++ {
			if lr.fitIntercept {
				design.Set(i, 0, 1)
			}
			for j := 0; j < d; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	// W-scaled copy of the design matrix; W is the identity when no
	// weights were supplied.
	weighted := design
	if weights != nil {
		weighted = mat.NewDense(n, cols, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < cols; j++ {
				weighted.Set(i, j, design.At(i, j)*weights[i])
			}
		}
	}

	var xtx mat.Dense
	xtx.Mul(weighted.T(), design)

	var xty mat.VecDense
	xty.MulVec(weighted.T(), y)

	var coef mat.VecDense
	if err := coef.SolveVec(&xtx, &xty); err != nil {
		return mlErrors.NewModelError("LinearRegression.Fit", "singular matrix", mlErrors.ErrSingularMatrix)
	}

	lr.Weights = mat.NewVecDense(d, nil)
	if lr.fitIntercept {
		lr.Intercept = coef.AtVec(0)
		for j := 0; j < d; j++ {
			lr.Weights.SetVec(j, coef.AtVec(j+1))
		}
	} else {
		lr.Intercept = 0
		lr.Weights.CopyVec(&coef)
	}

	lr.NFeatures = d
	lr.state.SetFitted()
	lr.state.SetDimensions(d, n)

	lr.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict computes y = X*w + b for each row of X.
func (lr *LinearRegression) Predict(X mat.Matrix) (_ *mat.VecDense, err error) {
	defer mlErrors.Recover(&err, "LinearRegression.Predict")
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}

	n, d := X.Dims()
	if d != lr.NFeatures {
		return nil, mlErrors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, d, 1)
	}

	preds := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		p := lr.Intercept
		for j := 0; j < d; j++ {
			p += X.At(i, j) * lr.Weights.AtVec(j)
		}
		preds.SetVec(i, p)
	}
	return preds, nil
}

// IsFitted reports whether the model has been fitted.
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// sampleWeights extracts and validates the "sample_weight" fit parameter.
// Returns nil when the parameter is absent.
func sampleWeights(fitParams model.Params, n int) ([]float64, error) {
	if fitParams == nil {
		return nil, nil
	}
	raw, ok := fitParams["sample_weight"]
	if !ok {
		return nil, nil
	}
	weights, ok := raw.([]float64)
	if !ok {
		return nil, mlErrors.NewValueError("sample_weight", "must be a []float64")
	}
	if len(weights) != n {
		return nil, mlErrors.NewDimensionError("sample_weight", n, len(weights), 0)
	}
	return weights, nil
}

package linear

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ezoic/metalearners/core/model"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/pkg/log"
)

const probabilityEpsilon = 1e-15

// LogisticRegression is an L2-regularized logistic regression classifier
// fit with L-BFGS. Binary problems use a single decision function; problems
// with more than two classes fall back to one-vs-rest.
type LogisticRegression struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters.
	c            float64 // inverse regularization strength
	maxIter      int
	tol          float64
	fitIntercept bool

	classes    []int
	coef       [][]float64 // one row per binary sub-problem
	intercepts []float64
	nFeatures  int
}

// NewLogisticRegression creates an untrained classifier with C=1.0,
// max_iter=100 and tol=1e-4.
func NewLogisticRegression() *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		c:            1.0,
		maxIter:      100,
		tol:          1e-4,
		fitIntercept: true,
	}
	lr.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "LogisticRegression",
		log.ComponentKey, "linear",
	)
	return lr
}

// SetParams applies hyperparameters. Supported: "C" (float64), "max_iter"
// (int), "tol" (float64), "fit_intercept" (bool).
func (lr *LogisticRegression) SetParams(params model.Params) error {
	for key, v := range params {
		switch key {
		case "C":
			c, ok := v.(float64)
			if !ok || c <= 0 {
				return mlErrors.NewValueError("LogisticRegression.SetParams", "C must be a positive float64")
			}
			lr.c = c
		case "max_iter":
			iter, ok := v.(int)
			if !ok || iter <= 0 {
				return mlErrors.NewValueError("LogisticRegression.SetParams", "max_iter must be a positive int")
			}
			lr.maxIter = iter
		case "tol":
			tol, ok := v.(float64)
			if !ok || tol <= 0 {
				return mlErrors.NewValueError("LogisticRegression.SetParams", "tol must be a positive float64")
			}
			lr.tol = tol
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return mlErrors.NewValueError("LogisticRegression.SetParams", "fit_intercept must be a bool")
			}
			lr.fitIntercept = b
		}
	}
	return nil
}

// stableSigmoid computes sigmoid(z) without overflow for large |z|.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1 / (1 + ez)
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

func clampProbability(p float64) float64 {
	if p < probabilityEpsilon {
		return probabilityEpsilon
	}
	if p > 1-probabilityEpsilon {
		return 1 - probabilityEpsilon
	}
	return p
}

// Fit trains the classifier. Targets must be integer-valued; class labels
// are taken from the distinct values of y.
func (lr *LogisticRegression) Fit(X mat.Matrix, y *mat.VecDense, fitParams model.Params) (err error) {
	defer mlErrors.Recover(&err, "LogisticRegression.Fit")

	start := time.Now()
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return mlErrors.NewModelError("LogisticRegression.Fit", "empty data", mlErrors.ErrEmptyData)
	}
	if y.Len() != n {
		return mlErrors.NewDimensionError("LogisticRegression.Fit", n, y.Len(), 0)
	}

	classes := distinctLabels(y)
	if len(classes) < 2 {
		return mlErrors.NewValueError("LogisticRegression.Fit", "y contains fewer than 2 classes")
	}

	lr.logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	binary := len(classes) == 2
	nProblems := len(classes)
	if binary {
		nProblems = 1
	}

	coef := make([][]float64, nProblems)
	intercepts := make([]float64, nProblems)
	for k := 0; k < nProblems; k++ {
		// Binary: positive class is classes[1]. One-vs-rest: positive
		// class is classes[k].
		positive := classes[1]
		if !binary {
			positive = classes[k]
		}
		targets := make([]float64, n)
		for i := 0; i < n; i++ {
			if int(y.AtVec(i)) == positive {
				targets[i] = 1
			}
		}

		w, b, err := lr.solveBinary(X, targets)
		if err != nil {
			return err
		}
		coef[k] = w
		intercepts[k] = b
	}

	lr.classes = classes
	lr.coef = coef
	lr.intercepts = intercepts
	lr.nFeatures = d
	lr.state.SetFitted()
	lr.state.SetDimensions(d, n)

	lr.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// solveBinary minimizes the L2-penalized logistic loss with L-BFGS.
func (lr *LogisticRegression) solveBinary(X mat.Matrix, targets []float64) ([]float64, float64, error) {
	n, d := X.Dims()

	// Parameter vector layout: [intercept?, coefficients...].
	offset := 0
	dim := d
	if lr.fitIntercept {
		offset = 1
		dim = d + 1
	}

	margin := func(params []float64, i int) float64 {
		z := 0.0
		if lr.fitIntercept {
			z = params[0]
		}
		for j := 0; j < d; j++ {
			z += params[j+offset] * X.At(i, j)
		}
		return z
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			loss := 0.0
			for i := 0; i < n; i++ {
				p := clampProbability(stableSigmoid(margin(params, i)))
				loss -= targets[i]*math.Log(p) + (1-targets[i])*math.Log(1-p)
			}
			// L2 penalty on coefficients, not the intercept.
			for j := offset; j < dim; j++ {
				loss += 0.5 / lr.c * params[j] * params[j]
			}
			return loss
		},
		Grad: func(grad, params []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < n; i++ {
				residual := stableSigmoid(margin(params, i)) - targets[i]
				if lr.fitIntercept {
					grad[0] += residual
				}
				for j := 0; j < d; j++ {
					grad[j+offset] += residual * X.At(i, j)
				}
			}
			for j := offset; j < dim; j++ {
				grad[j] += params[j] / lr.c
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}

	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if err != nil && result == nil {
		return nil, 0, mlErrors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}

	params := result.X
	w := make([]float64, d)
	b := 0.0
	if lr.fitIntercept {
		b = params[0]
	}
	copy(w, params[offset:])
	return w, b, nil
}

// PredictProba returns an (n x n_classes) matrix of class probabilities,
// columns ordered by Classes.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "LogisticRegression.PredictProba")
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}

	n, d := X.Dims()
	if d != lr.nFeatures {
		return nil, mlErrors.NewDimensionError("LogisticRegression.PredictProba", lr.nFeatures, d, 1)
	}

	nClasses := len(lr.classes)
	out := mat.NewDense(n, nClasses, nil)

	if nClasses == 2 {
		for i := 0; i < n; i++ {
			z := lr.intercepts[0]
			for j := 0; j < d; j++ {
				z += lr.coef[0][j] * X.At(i, j)
			}
			p := stableSigmoid(z)
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
		}
		return out, nil
	}

	// One-vs-rest scores normalized to sum to one.
	for i := 0; i < n; i++ {
		total := 0.0
		for k := 0; k < nClasses; k++ {
			z := lr.intercepts[k]
			for j := 0; j < d; j++ {
				z += lr.coef[k][j] * X.At(i, j)
			}
			p := clampProbability(stableSigmoid(z))
			out.Set(i, k, p)
			total += p
		}
		for k := 0; k < nClasses; k++ {
			out.Set(i, k, out.At(i, k)/total)
		}
	}
	return out, nil
}

// Predict returns the most probable class label per row.
func (lr *LogisticRegression) Predict(X mat.Matrix) (*mat.VecDense, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	preds := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		best := 0
		for k := 1; k < len(lr.classes); k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		preds.SetVec(i, float64(lr.classes[best]))
	}
	return preds, nil
}

// Classes returns the sorted class labels seen during fitting.
func (lr *LogisticRegression) Classes() []int {
	out := make([]int, len(lr.classes))
	copy(out, lr.classes)
	return out
}

// IsFitted reports whether the model has been fitted.
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

func distinctLabels(y *mat.VecDense) []int {
	seen := make(map[int]bool)
	for i := 0; i < y.Len(); i++ {
		seen[int(y.AtVec(i))] = true
	}
	labels := make([]int, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Ints(labels)
	return labels
}

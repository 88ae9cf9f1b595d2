// Package crossfit implements cross-fitting for trainable estimators.
//
// Cross-fitting trains k copies of an estimator, each on the complement of
// one fold of the training data. The resulting CrossFitEstimator can produce
// two flavors of prediction:
//
//   - in-sample (isOOS=false): every training observation is predicted by
//     the one fold model that did not see it during training, giving
//     honest predictions for the data the estimator was fitted on
//   - out-of-sample (isOOS=true): new observations are predicted by every
//     fold model and the per-fold predictions are combined according to an
//     OosMethod
//
// This discipline is what allows a meta-learner to consume unbiased nuisance
// predictions downstream without a separate holdout set.
package crossfit

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/pkg/log"
)

// PredictMethod enumerates the prediction modes an underlying estimator may
// support. Prediction-mode selection is explicit; there is no reflective
// method lookup.
type PredictMethod string

const (
	// MethodPredict requests point predictions.
	MethodPredict PredictMethod = "predict"

	// MethodPredictProba requests class probabilities.
	MethodPredictProba PredictMethod = "predict_proba"
)

// OosMethod selects how fold-level predictions are combined for
// out-of-sample data.
type OosMethod string

const (
	// OosOverall averages the predictions of all fold models. This is the
	// default.
	OosOverall OosMethod = "overall"

	// OosMedian takes the element-wise median across fold models.
	OosMedian OosMethod = "median"
)

// CrossFitEstimator trains one estimator per fold and serves in-sample and
// out-of-sample predictions. Instances are allocated untrained, transition
// to trained exactly once via Fit and are never re-allocated; they are owned
// exclusively by the meta-learner that created them.
type CrossFitEstimator struct {
	nFolds      int
	factory     model.Factory
	params      model.Params
	randomState int64

	state  *model.StateManager
	logger log.Logger
	id     string

	foldModels  []model.Estimator
	testIndices [][]int
	nTrain      int
}

// New creates an untrained CrossFitEstimator. randomState seeds the fold
// shuffle; a negative value draws a fresh seed. Parameters are applied to
// every fold model via SetParams before fitting.
func New(nFolds int, factory model.Factory, params model.Params, randomState int64) *CrossFitEstimator {
	id := uuid.NewString()
	return &CrossFitEstimator{
		nFolds:      nFolds,
		factory:     factory,
		params:      params.Clone(),
		randomState: randomState,
		state:       model.NewStateManager(),
		id:          id,
		logger: log.GetLoggerWithName("crossfit").With(
			log.ComponentKey, "crossfit",
			log.EstimatorIDKey, id,
		),
	}
}

// NFolds returns the configured fold count.
func (c *CrossFitEstimator) NFolds() int {
	return c.nFolds
}

// IsFitted reports whether Fit has completed successfully.
func (c *CrossFitEstimator) IsFitted() bool {
	return c.state.IsFitted()
}

// IsClassifier reports whether the underlying factory produces classifiers
// and therefore supports MethodPredictProba.
func (c *CrossFitEstimator) IsClassifier() bool {
	return model.IsClassifierFactory(c.factory)
}

func (c *CrossFitEstimator) seed() int64 {
	if c.randomState >= 0 {
		return c.randomState
	}
	max := big.NewInt(int64(1) << 62)
	if n, err := crand.Int(crand.Reader, max); err == nil {
		return n.Int64()
	}
	return time.Now().UnixNano()
}

// foldIndices shuffles [0, n) with the configured seed and partitions it
// into nFolds nearly equal folds.
func (c *CrossFitEstimator) foldIndices(n int) [][]int {
	perm := rand.New(rand.NewSource(c.seed())).Perm(n)
	folds := make([][]int, c.nFolds)
	for i, idx := range perm {
		k := i % c.nFolds
		folds[k] = append(folds[k], idx)
	}
	for _, fold := range folds {
		sort.Ints(fold)
	}
	return folds
}

// Fit trains one fold model per fold on the complement of that fold.
//
// Requires at least nFolds rows so every fold model sees training data. The
// estimator remembers fold membership so in-sample predictions can later be
// stitched from held-out fold predictions.
func (c *CrossFitEstimator) Fit(X mat.Matrix, y *mat.VecDense, fitParams model.Params) (err error) {
	defer mlErrors.Recover(&err, "CrossFitEstimator.Fit")

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return mlErrors.NewModelError("CrossFitEstimator.Fit", "empty data", mlErrors.ErrEmptyData)
	}
	if y.Len() != n {
		return mlErrors.NewDimensionError("CrossFitEstimator.Fit", n, y.Len(), 0)
	}
	if c.nFolds < 2 {
		return mlErrors.NewValueError("CrossFitEstimator.Fit", "n_folds must be at least 2")
	}
	if n < c.nFolds {
		return mlErrors.NewValueError("CrossFitEstimator.Fit", "fewer samples than folds")
	}

	start := time.Now()
	c.logger.Debug("Cross-fitting started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.FoldsKey, c.nFolds,
	)

	folds := c.foldIndices(n)

	foldModels := make([]model.Estimator, c.nFolds)
	for k, testIdx := range folds {
		trainIdx := complementIndices(n, testIdx)

		est := c.factory()
		if len(c.params) > 0 {
			if err := est.SetParams(c.params); err != nil {
				return mlErrors.Wrapf(err, "applying params to fold %d model", k)
			}
		}

		foldParams, err := subsetFitParams(fitParams, trainIdx, n)
		if err != nil {
			return mlErrors.Wrapf(err, "aligning fit params for fold %d", k)
		}

		XTrain := subsetRows(X, trainIdx)
		yTrain := subsetVec(y, trainIdx)
		if err := est.Fit(XTrain, yTrain, foldParams); err != nil {
			return mlErrors.Wrapf(err, "fitting fold %d model", k)
		}
		foldModels[k] = est
	}

	c.foldModels = foldModels
	c.testIndices = folds
	c.nTrain = n
	c.state.SetFitted()

	c.logger.Debug("Cross-fitting completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// subsetFitParams aligns row-wise fit parameters with a fold's training
// rows. "sample_weight" is the one row-aligned parameter in the estimator
// contract; everything else passes through unchanged.
func subsetFitParams(fitParams model.Params, rows []int, n int) (model.Params, error) {
	raw, ok := fitParams["sample_weight"]
	if !ok {
		return fitParams, nil
	}
	weights, ok := raw.([]float64)
	if !ok {
		return nil, mlErrors.NewValueError("sample_weight", "must be a []float64")
	}
	if len(weights) != n {
		return nil, mlErrors.NewDimensionError("sample_weight", n, len(weights), 0)
	}
	sub := make([]float64, len(rows))
	for i, r := range rows {
		sub[i] = weights[r]
	}
	out := fitParams.Clone()
	out["sample_weight"] = sub
	return out, nil
}

// Predict produces point predictions for X.
//
// With isOOS=false, X must be the training matrix (same row order); each row
// is predicted by the fold model that held it out. With isOOS=true,
// predictions of all fold models are combined per oosMethod.
func (c *CrossFitEstimator) Predict(X mat.Matrix, isOOS bool, oosMethod OosMethod) (_ *mat.VecDense, err error) {
	defer mlErrors.Recover(&err, "CrossFitEstimator.Predict")
	if !c.state.IsFitted() {
		return nil, mlErrors.NewNotFittedError("CrossFitEstimator", "Predict")
	}

	n, _ := X.Dims()
	if !isOOS {
		if n != c.nTrain {
			return nil, mlErrors.NewDimensionError("CrossFitEstimator.Predict", c.nTrain, n, 0)
		}
		out := mat.NewVecDense(n, nil)
		for k, testIdx := range c.testIndices {
			preds, err := c.foldModels[k].Predict(subsetRows(X, testIdx))
			if err != nil {
				return nil, mlErrors.Wrapf(err, "in-sample prediction with fold %d model", k)
			}
			for i, idx := range testIdx {
				out.SetVec(idx, preds.AtVec(i))
			}
		}
		return out, nil
	}

	perFold := make([]*mat.VecDense, c.nFolds)
	for k, est := range c.foldModels {
		preds, err := est.Predict(X)
		if err != nil {
			return nil, mlErrors.Wrapf(err, "out-of-sample prediction with fold %d model", k)
		}
		perFold[k] = preds
	}
	return combineVecs(perFold, oosMethod)
}

// PredictProba produces class probabilities for X; the underlying estimators
// must be classifiers. Semantics of isOOS and oosMethod match Predict.
func (c *CrossFitEstimator) PredictProba(X mat.Matrix, isOOS bool, oosMethod OosMethod) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "CrossFitEstimator.PredictProba")
	if !c.state.IsFitted() {
		return nil, mlErrors.NewNotFittedError("CrossFitEstimator", "PredictProba")
	}

	classifiers := make([]model.Classifier, c.nFolds)
	for k, est := range c.foldModels {
		clf, ok := est.(model.Classifier)
		if !ok {
			return nil, mlErrors.NewValueError("CrossFitEstimator.PredictProba",
				"underlying estimator does not support class probabilities")
		}
		classifiers[k] = clf
	}

	nClasses := len(classifiers[0].Classes())
	n, _ := X.Dims()

	if !isOOS {
		if n != c.nTrain {
			return nil, mlErrors.NewDimensionError("CrossFitEstimator.PredictProba", c.nTrain, n, 0)
		}
		out := mat.NewDense(n, nClasses, nil)
		for k, testIdx := range c.testIndices {
			probs, err := classifiers[k].PredictProba(subsetRows(X, testIdx))
			if err != nil {
				return nil, mlErrors.Wrapf(err, "in-sample probabilities with fold %d model", k)
			}
			if _, pc := probs.Dims(); pc != nClasses {
				return nil, mlErrors.NewDimensionError("CrossFitEstimator.PredictProba", nClasses, pc, 1)
			}
			for i, idx := range testIdx {
				for j := 0; j < nClasses; j++ {
					out.Set(idx, j, probs.At(i, j))
				}
			}
		}
		return out, nil
	}

	perFold := make([]*mat.Dense, c.nFolds)
	for k, clf := range classifiers {
		probs, err := clf.PredictProba(X)
		if err != nil {
			return nil, mlErrors.Wrapf(err, "out-of-sample probabilities with fold %d model", k)
		}
		if _, pc := probs.Dims(); pc != nClasses {
			return nil, mlErrors.NewDimensionError("CrossFitEstimator.PredictProba", nClasses, pc, 1)
		}
		perFold[k] = probs
	}
	return combineDense(perFold, oosMethod)
}

// PredictWith dispatches to the prediction operation selected by method and
// always returns a dense matrix: (n x 1) for MethodPredict and
// (n x n_classes) for MethodPredictProba.
func (c *CrossFitEstimator) PredictWith(method PredictMethod, X mat.Matrix, isOOS bool, oosMethod OosMethod) (*mat.Dense, error) {
	dispatch, ok := predictDispatch[method]
	if !ok {
		return nil, mlErrors.NewValueError("CrossFitEstimator.PredictWith",
			"unknown predict method "+string(method))
	}
	return dispatch(c, X, isOOS, oosMethod)
}

// predictDispatch maps each prediction mode to its implementation.
var predictDispatch = map[PredictMethod]func(*CrossFitEstimator, mat.Matrix, bool, OosMethod) (*mat.Dense, error){
	MethodPredict: func(c *CrossFitEstimator, X mat.Matrix, isOOS bool, oosMethod OosMethod) (*mat.Dense, error) {
		preds, err := c.Predict(X, isOOS, oosMethod)
		if err != nil {
			return nil, err
		}
		n := preds.Len()
		out := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			out.Set(i, 0, preds.AtVec(i))
		}
		return out, nil
	},
	MethodPredictProba: func(c *CrossFitEstimator, X mat.Matrix, isOOS bool, oosMethod OosMethod) (*mat.Dense, error) {
		return c.PredictProba(X, isOOS, oosMethod)
	},
}

// NOutputs reports the output dimensionality of the given prediction mode,
// used to pre-size result tensors. For MethodPredictProba before fitting the
// class count is unknown and defaults to 2.
func (c *CrossFitEstimator) NOutputs(method PredictMethod) int {
	if method == MethodPredict {
		return 1
	}
	if c.state.IsFitted() {
		if clf, ok := c.foldModels[0].(model.Classifier); ok {
			return len(clf.Classes())
		}
	}
	return 2
}

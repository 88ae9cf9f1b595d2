package metalearner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	"github.com/ezoic/metalearners/crossfit"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// subsetRows copies the given rows of X into a new dense matrix.
func subsetRows(X mat.Matrix, rows []int) *mat.Dense {
	_, c := X.Dims()
	sub := mat.NewDense(len(rows), c, nil)
	for i, row := range rows {
		for j := 0; j < c; j++ {
			sub.Set(i, j, X.At(row, j))
		}
	}
	return sub
}

// subsetVecRows copies the given rows of y into a new vector.
func subsetVecRows(y *mat.VecDense, rows []int) *mat.VecDense {
	sub := mat.NewVecDense(len(rows), nil)
	for i, row := range rows {
		sub.SetVec(i, y.AtVec(row))
	}
	return sub
}

// complementRows returns the indices in [0, n) not contained in rows,
// in ascending order.
func complementRows(n int, rows []int) []int {
	member := make([]bool, n)
	for _, row := range rows {
		member[row] = true
	}
	out := make([]int, 0, n-len(rows))
	for i := 0; i < n; i++ {
		if !member[i] {
			out = append(out, i)
		}
	}
	return out
}

// scatterRows writes the rows of src into dst at the given row indices.
func scatterRows(dst *mat.Dense, rows []int, src *mat.Dense) {
	_, c := src.Dims()
	for i, row := range rows {
		for j := 0; j < c; j++ {
			dst.Set(row, j, src.At(i, j))
		}
	}
}

// intsToVec converts integer labels to a float vector for classifier fitting.
func intsToVec(w []int) *mat.VecDense {
	v := mat.NewVecDense(len(w), nil)
	for i, x := range w {
		v.SetVec(i, float64(x))
	}
	return v
}

// clip bounds x to [lo, hi].
func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// propensityEpsilon bounds estimated propensities away from 0 and 1 before
// they are used as divisors or inverse-probability weights.
const propensityEpsilon = 1e-7

// predictNuisanceStitched produces full-length predictions from a nuisance
// estimator that was trained on only a subset of the rows of X. For
// out-of-sample requests this is an ordinary predict. For in-sample requests
// the training rows get honest held-out-fold predictions while the remaining
// rows, unseen during training, are predicted by averaging the fold models.
func (b *Base) predictNuisanceStitched(kind string, ordinal int, X mat.Matrix, trainRows []int, isOOS bool, oosMethod crossfit.OosMethod) (*mat.Dense, error) {
	if isOOS {
		return b.PredictNuisance(kind, ordinal, X, true, oosMethod)
	}

	n, _ := X.Dims()
	inPreds, err := b.PredictNuisance(kind, ordinal, subsetRows(X, trainRows), false, oosMethod)
	if err != nil {
		return nil, err
	}
	_, k := inPreds.Dims()
	out := mat.NewDense(n, k, nil)
	scatterRows(out, trainRows, inPreds)

	rest := complementRows(n, trainRows)
	if len(rest) > 0 {
		outPreds, err := b.PredictNuisance(kind, ordinal, subsetRows(X, rest), true, crossfit.OosOverall)
		if err != nil {
			return nil, err
		}
		scatterRows(out, rest, outPreds)
	}
	return out, nil
}

// predictTreatmentStitched is the treatment-registry counterpart of
// predictNuisanceStitched.
func (b *Base) predictTreatmentStitched(kind string, ordinal int, X mat.Matrix, trainRows []int, isOOS bool, oosMethod crossfit.OosMethod) (*mat.VecDense, error) {
	if isOOS {
		return b.PredictTreatment(kind, ordinal, X, true, oosMethod)
	}

	n, _ := X.Dims()
	inPreds, err := b.PredictTreatment(kind, ordinal, subsetRows(X, trainRows), false, oosMethod)
	if err != nil {
		return nil, err
	}
	out := mat.NewVecDense(n, nil)
	for i, row := range trainRows {
		out.SetVec(row, inPreds.AtVec(i))
	}

	rest := complementRows(n, trainRows)
	if len(rest) > 0 {
		outPreds, err := b.PredictTreatment(kind, ordinal, subsetRows(X, rest), true, crossfit.OosOverall)
		if err != nil {
			return nil, err
		}
		for i, row := range rest {
			out.SetVec(row, outPreds.AtVec(i))
		}
	}
	return out, nil
}

// outcomeVec reduces raw outcome-model predictions to a single value per
// observation. Regression predictions pass through; binary classification
// contributes the positive-class probability; multi-class classification
// contributes the expected class value, relying on the {0...k-1} encoding
// that CheckOutcome enforces.
func (b *Base) outcomeVec(preds *mat.Dense) *mat.VecDense {
	n, k := preds.Dims()
	out := mat.NewVecDense(n, nil)
	switch {
	case !b.isClassification || k == 1:
		for i := 0; i < n; i++ {
			out.SetVec(i, preds.At(i, 0))
		}
	case k == 2:
		for i := 0; i < n; i++ {
			out.SetVec(i, preds.At(i, 1))
		}
	default:
		for i := 0; i < n; i++ {
			var e float64
			for j := 0; j < k; j++ {
				e += float64(j) * preds.At(i, j)
			}
			out.SetVec(i, e)
		}
	}
	return out
}

// requireClassifierNuisance validates that the listed nuisance kinds were
// configured with classifier factories.
func (b *Base) requireClassifierNuisance(kinds ...string) error {
	for _, kind := range kinds {
		if !model.IsClassifierFactory(b.nuisanceFactories[kind]) {
			return mlErrors.NewValueError(b.spec.name,
				fmt.Sprintf("nuisance kind %q requires a classifier factory", kind))
		}
	}
	return nil
}

// requireRegressorTreatment validates that the listed treatment kinds were
// configured with regressor factories. Treatment models regress
// pseudo-outcomes and are regressors even for classification outcomes.
func (b *Base) requireRegressorTreatment(kinds ...string) error {
	for _, kind := range kinds {
		if model.IsClassifierFactory(b.treatmentFactories[kind]) {
			return mlErrors.NewValueError(b.spec.name,
				fmt.Sprintf("treatment kind %q requires a regressor factory", kind))
		}
	}
	return nil
}

// requireOutcomeFactories validates outcome-model kinds against the outcome
// type: classifiers for classification, regressors otherwise.
func (b *Base) requireOutcomeFactories(kinds ...string) error {
	for _, kind := range kinds {
		isClassifier := model.IsClassifierFactory(b.nuisanceFactories[kind])
		if b.isClassification && !isClassifier {
			return mlErrors.NewValueError(b.spec.name,
				fmt.Sprintf("nuisance kind %q requires a classifier factory for classification outcomes", kind))
		}
		if !b.isClassification && isClassifier {
			return mlErrors.NewValueError(b.spec.name,
				fmt.Sprintf("nuisance kind %q requires a regressor factory for regression outcomes", kind))
		}
	}
	return nil
}

package metalearner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/metrics"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// DRLearner estimates treatment effects by regressing doubly robust
// pseudo-outcomes: outcome-model differences corrected with inverse
// propensity weighted residuals. The correction keeps the estimate
// consistent if either the outcome models or the propensity model is
// well specified.
type DRLearner struct {
	*Base

	trainRows [][]int
}

// NewDRLearner instantiates a DR-learner for a binary treatment.
func NewDRLearner(cfg Config) (*DRLearner, error) {
	base, err := newBase(variantSpec{
		name: "DR",
		nuisanceSpecs: ModelSpecifications{
			VariantOutcomeModel: {
				Cardinality:   perVariantCardinality,
				PredictMethod: outcomePredictMethod,
			},
			PropensityModel: {
				Cardinality:   fixedCardinality(1),
				PredictMethod: probaPredictMethod,
			},
		},
		treatmentSpecs: ModelSpecifications{
			TreatmentModel: {
				Cardinality:   fixedCardinality(1),
				PredictMethod: pointPredictMethod,
			},
		},
		validateModels: func(b *Base) error {
			if err := b.requireOutcomeFactories(VariantOutcomeModel); err != nil {
				return err
			}
			if err := b.requireClassifierNuisance(PropensityModel); err != nil {
				return err
			}
			return b.requireRegressorTreatment(TreatmentModel)
		},
	}, cfg)
	if err != nil {
		return nil, err
	}
	return &DRLearner{Base: base}, nil
}

// pseudoOutcomes computes the doubly robust pseudo-outcome for every
// observation from cross-fitted outcome and propensity predictions.
func (dr *DRLearner) pseudoOutcomes(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (*mat.VecDense, error) {
	mu0Preds, err := dr.predictNuisanceStitched(VariantOutcomeModel, 0, X, dr.trainRows[0], isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	mu1Preds, err := dr.predictNuisanceStitched(VariantOutcomeModel, 1, X, dr.trainRows[1], isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	mu0 := dr.outcomeVec(mu0Preds)
	mu1 := dr.outcomeVec(mu1Preds)

	propensity, err := dr.PredictNuisance(PropensityModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}

	n := y.Len()
	pseudo := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		e1 := clip(propensity.At(i, 1), propensityEpsilon, 1-propensityEpsilon)
		e0 := 1 - e1
		gamma := mu1.AtVec(i) - mu0.AtVec(i)
		if w[i] == 1 {
			gamma += (y.AtVec(i) - mu1.AtVec(i)) / e1
		} else {
			gamma -= (y.AtVec(i) - mu0.AtVec(i)) / e0
		}
		pseudo.SetVec(i, gamma)
	}
	return pseudo, nil
}

// Fit trains the per-variant outcome models and the propensity model, forms
// doubly robust pseudo-outcomes from their honest in-sample predictions, and
// regresses the pseudo-outcomes with the treatment model.
func (dr *DRLearner) Fit(X mat.Matrix, y *mat.VecDense, w []int) (err error) {
	defer mlErrors.Recover(&err, "DRLearner.Fit")

	if err := dr.validateFitInputs(X, y, w); err != nil {
		return err
	}
	rows := variantRows(w, dr.nVariants)

	for v := 0; v < dr.nVariants; v++ {
		if err := dr.FitNuisance(VariantOutcomeModel, v,
			subsetRows(X, rows[v]), subsetVecRows(y, rows[v]), nil); err != nil {
			return mlErrors.NewModelError("DRLearner.Fit",
				fmt.Sprintf("fitting outcome model for variant %d", v), err)
		}
	}
	if err := dr.FitNuisance(PropensityModel, 0, X, intsToVec(w), nil); err != nil {
		return mlErrors.NewModelError("DRLearner.Fit", "fitting propensity model", err)
	}
	dr.trainRows = rows

	pseudo, err := dr.pseudoOutcomes(X, y, w, false, crossfit.OosOverall)
	if err != nil {
		return err
	}
	if err := dr.FitTreatment(TreatmentModel, 0, X, pseudo, nil); err != nil {
		return mlErrors.NewModelError("DRLearner.Fit", "fitting treatment model", err)
	}

	n, d := X.Dims()
	dr.markFitted(n, d)
	return nil
}

// Predict returns the treatment model's effect estimates.
func (dr *DRLearner) Predict(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "DRLearner.Predict")

	if err := dr.requireFitted("Predict"); err != nil {
		return nil, err
	}
	tau, err := dr.PredictTreatment(TreatmentModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}

	n := tau.Len()
	effects := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		effects.Set(i, 0, tau.AtVec(i))
	}
	return effects, nil
}

// Evaluate reports the outcome models' losses on their variant rows, the
// propensity model's cross-entropy, and the treatment model's RMSE against
// recomputed pseudo-outcomes.
func (dr *DRLearner) Evaluate(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (map[string]float64, error) {
	if err := dr.requireFitted("Evaluate"); err != nil {
		return nil, err
	}
	if err := CheckTreatment(w, dr.nVariants); err != nil {
		return nil, err
	}

	rows := variantRows(w, dr.nVariants)
	losses := make(map[string]float64, dr.nVariants+2)
	for v := 0; v < dr.nVariants; v++ {
		preds, err := dr.PredictNuisance(VariantOutcomeModel, v, subsetRows(X, rows[v]), isOOS, oosMethod)
		if err != nil {
			return nil, err
		}
		yv := subsetVecRows(y, rows[v])
		var loss float64
		if dr.isClassification {
			loss, err = metrics.LogLoss(yv, preds)
		} else {
			loss, err = metrics.RMSE(yv, dr.outcomeVec(preds))
		}
		if err != nil {
			return nil, err
		}
		losses[fmt.Sprintf("%s_%d", VariantOutcomeModel, v)] = loss
	}

	propensity, err := dr.PredictNuisance(PropensityModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	propensityLoss, err := metrics.LogLoss(intsToVec(w), propensity)
	if err != nil {
		return nil, err
	}
	losses[PropensityModel] = propensityLoss

	pseudo, err := dr.pseudoOutcomes(X, y, w, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	tau, err := dr.PredictTreatment(TreatmentModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	treatmentLoss, err := metrics.RMSE(pseudo, tau)
	if err != nil {
		return nil, err
	}
	losses[TreatmentModel] = treatmentLoss

	return losses, nil
}

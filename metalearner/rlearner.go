package metalearner

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/metrics"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// Kind names of the R-learner's models. OutcomeModel regresses the outcome
// on features alone, ignoring assignment.
const (
	OutcomeModel   = "outcome_model"
	TreatmentModel = "treatment_model"
)

// RLearner estimates treatment effects by regressing a residualized
// pseudo-outcome. Outcome and propensity residuals are formed from honest
// cross-fitted predictions; the second stage minimizes the R-loss via a
// weighted regression.
type RLearner struct {
	*Base
}

// NewRLearner instantiates an R-learner for a binary treatment.
func NewRLearner(cfg Config) (*RLearner, error) {
	base, err := newBase(variantSpec{
		name: "R",
		nuisanceSpecs: ModelSpecifications{
			OutcomeModel: {
				Cardinality:   fixedCardinality(1),
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
			if err := b.requireOutcomeFactories(OutcomeModel); err != nil {
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
	return &RLearner{Base: base}, nil
}

// residuals computes outcome and assignment residuals from cross-fitted
// nuisance predictions.
func (r *RLearner) residuals(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (residY, residW *mat.VecDense, err error) {
	outcomePreds, err := r.PredictNuisance(OutcomeModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, nil, err
	}
	mHat := r.outcomeVec(outcomePreds)

	propensity, err := r.PredictNuisance(PropensityModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, nil, err
	}

	n := y.Len()
	residY = mat.NewVecDense(n, nil)
	residW = mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		eHat := clip(propensity.At(i, 1), propensityEpsilon, 1-propensityEpsilon)
		residY.SetVec(i, y.AtVec(i)-mHat.AtVec(i))
		residW.SetVec(i, float64(w[i])-eHat)
	}
	return residY, residW, nil
}

// Fit trains the nuisance models, residualizes outcome and assignment with
// their honest in-sample predictions, and fits the treatment model on the
// pseudo-outcome with squared assignment residuals as sample weights.
func (r *RLearner) Fit(X mat.Matrix, y *mat.VecDense, w []int) (err error) {
	defer mlErrors.Recover(&err, "RLearner.Fit")

	if err := r.validateFitInputs(X, y, w); err != nil {
		return err
	}

	if err := r.FitNuisance(OutcomeModel, 0, X, y, nil); err != nil {
		return mlErrors.NewModelError("RLearner.Fit", "fitting outcome model", err)
	}
	if err := r.FitNuisance(PropensityModel, 0, X, intsToVec(w), nil); err != nil {
		return mlErrors.NewModelError("RLearner.Fit", "fitting propensity model", err)
	}

	residY, residW, err := r.residuals(X, y, w, false, crossfit.OosOverall)
	if err != nil {
		return err
	}

	n := y.Len()
	pseudo := mat.NewVecDense(n, nil)
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		pseudo.SetVec(i, residY.AtVec(i)/residW.AtVec(i))
		weights[i] = residW.AtVec(i) * residW.AtVec(i)
	}
	if err := r.FitTreatment(TreatmentModel, 0, X, pseudo,
		model.Params{"sample_weight": weights}); err != nil {
		return mlErrors.NewModelError("RLearner.Fit", "fitting treatment model", err)
	}

	_, d := X.Dims()
	r.markFitted(n, d)
	return nil
}

// Predict returns the treatment model's effect estimates.
func (r *RLearner) Predict(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "RLearner.Predict")

	if err := r.requireFitted("Predict"); err != nil {
		return nil, err
	}
	tau, err := r.PredictTreatment(TreatmentModel, 0, X, isOOS, oosMethod)
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

// Evaluate reports the nuisance models' losses and the R-loss of the
// effect estimates.
func (r *RLearner) Evaluate(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (map[string]float64, error) {
	if err := r.requireFitted("Evaluate"); err != nil {
		return nil, err
	}
	if err := CheckTreatment(w, r.nVariants); err != nil {
		return nil, err
	}

	losses := make(map[string]float64, 3)

	outcomePreds, err := r.PredictNuisance(OutcomeModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	var outcomeLoss float64
	if r.isClassification {
		outcomeLoss, err = metrics.LogLoss(y, outcomePreds)
	} else {
		outcomeLoss, err = metrics.RMSE(y, r.outcomeVec(outcomePreds))
	}
	if err != nil {
		return nil, err
	}
	losses[OutcomeModel] = outcomeLoss

	propensity, err := r.PredictNuisance(PropensityModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	propensityLoss, err := metrics.LogLoss(intsToVec(w), propensity)
	if err != nil {
		return nil, err
	}
	losses[PropensityModel] = propensityLoss

	residY, residW, err := r.residuals(X, y, w, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	tau, err := r.PredictTreatment(TreatmentModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	var rLoss float64
	for i := 0; i < y.Len(); i++ {
		resid := residY.AtVec(i) - tau.AtVec(i)*residW.AtVec(i)
		rLoss += resid * resid
	}
	losses["r_loss"] = math.Sqrt(rLoss / float64(y.Len()))

	return losses, nil
}

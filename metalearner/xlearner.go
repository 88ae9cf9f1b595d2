package metalearner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/metrics"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// Kind names of the X-learner's second-stage effect models.
const (
	ControlEffectModel   = "control_effect_model"
	TreatmentEffectModel = "treatment_effect_model"
)

// XLearner estimates treatment effects in two stages: per-variant outcome
// models impute individual effects, second-stage models regress the imputed
// effects, and a propensity model blends the control-side and treated-side
// estimates.
type XLearner struct {
	*Base

	trainRows [][]int
}

// NewXLearner instantiates an X-learner for a binary treatment and a binary
// or continuous outcome.
func NewXLearner(cfg Config) (*XLearner, error) {
	base, err := newBase(variantSpec{
		name: "X",
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
			ControlEffectModel: {
				Cardinality:   fixedCardinality(1),
				PredictMethod: pointPredictMethod,
			},
			TreatmentEffectModel: {
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
			return b.requireRegressorTreatment(ControlEffectModel, TreatmentEffectModel)
		},
	}, cfg)
	if err != nil {
		return nil, err
	}
	return &XLearner{Base: base}, nil
}

// Fit trains the outcome and propensity models, imputes individual treatment
// effects on each side of the assignment, and regresses the imputed effects
// with the second-stage models.
func (x *XLearner) Fit(X mat.Matrix, y *mat.VecDense, w []int) (err error) {
	defer mlErrors.Recover(&err, "XLearner.Fit")

	if err := x.validateFitInputs(X, y, w); err != nil {
		return err
	}
	rows := variantRows(w, x.nVariants)

	for v := 0; v < x.nVariants; v++ {
		if err := x.FitNuisance(VariantOutcomeModel, v,
			subsetRows(X, rows[v]), subsetVecRows(y, rows[v]), nil); err != nil {
			return mlErrors.NewModelError("XLearner.Fit",
				fmt.Sprintf("fitting outcome model for variant %d", v), err)
		}
	}
	if err := x.FitNuisance(PropensityModel, 0, X, intsToVec(w), nil); err != nil {
		return mlErrors.NewModelError("XLearner.Fit", "fitting propensity model", err)
	}

	// The control model never saw the treated rows and vice versa, so the
	// imputation predictions are honest without stitching.
	xTreated := subsetRows(X, rows[1])
	mu0, err := x.PredictNuisance(VariantOutcomeModel, 0, xTreated, true, crossfit.OosOverall)
	if err != nil {
		return err
	}
	mu0Vec := x.outcomeVec(mu0)
	dTreated := mat.NewVecDense(len(rows[1]), nil)
	for i, row := range rows[1] {
		dTreated.SetVec(i, y.AtVec(row)-mu0Vec.AtVec(i))
	}
	if err := x.FitTreatment(TreatmentEffectModel, 0, xTreated, dTreated, nil); err != nil {
		return mlErrors.NewModelError("XLearner.Fit", "fitting treatment effect model", err)
	}

	xControl := subsetRows(X, rows[0])
	mu1, err := x.PredictNuisance(VariantOutcomeModel, 1, xControl, true, crossfit.OosOverall)
	if err != nil {
		return err
	}
	mu1Vec := x.outcomeVec(mu1)
	dControl := mat.NewVecDense(len(rows[0]), nil)
	for i, row := range rows[0] {
		dControl.SetVec(i, mu1Vec.AtVec(i)-y.AtVec(row))
	}
	if err := x.FitTreatment(ControlEffectModel, 0, xControl, dControl, nil); err != nil {
		return mlErrors.NewModelError("XLearner.Fit", "fitting control effect model", err)
	}

	x.trainRows = rows
	n, d := X.Dims()
	x.markFitted(n, d)
	return nil
}

// Predict blends the two second-stage estimates with the estimated
// propensity, weighting the control-side estimate by the treatment
// probability.
func (x *XLearner) Predict(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "XLearner.Predict")

	if err := x.requireFitted("Predict"); err != nil {
		return nil, err
	}

	tauTreated, err := x.predictTreatmentStitched(TreatmentEffectModel, 0, X, x.trainRows[1], isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	tauControl, err := x.predictTreatmentStitched(ControlEffectModel, 0, X, x.trainRows[0], isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	propensity, err := x.PredictNuisance(PropensityModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	effects := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		g := clip(propensity.At(i, 1), propensityEpsilon, 1-propensityEpsilon)
		effects.Set(i, 0, g*tauControl.AtVec(i)+(1-g)*tauTreated.AtVec(i))
	}
	return effects, nil
}

// Evaluate reports the outcome models' losses on their variant rows and the
// propensity model's cross-entropy.
func (x *XLearner) Evaluate(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (map[string]float64, error) {
	if err := x.requireFitted("Evaluate"); err != nil {
		return nil, err
	}
	if err := CheckTreatment(w, x.nVariants); err != nil {
		return nil, err
	}

	rows := variantRows(w, x.nVariants)
	losses := make(map[string]float64, x.nVariants+1)
	for v := 0; v < x.nVariants; v++ {
		preds, err := x.PredictNuisance(VariantOutcomeModel, v, subsetRows(X, rows[v]), isOOS, oosMethod)
		if err != nil {
			return nil, err
		}
		yv := subsetVecRows(y, rows[v])
		var loss float64
		if x.isClassification {
			loss, err = metrics.LogLoss(yv, preds)
		} else {
			loss, err = metrics.RMSE(yv, x.outcomeVec(preds))
		}
		if err != nil {
			return nil, err
		}
		losses[fmt.Sprintf("%s_%d", VariantOutcomeModel, v)] = loss
	}

	propensity, err := x.PredictNuisance(PropensityModel, 0, X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	propensityLoss, err := metrics.LogLoss(intsToVec(w), propensity)
	if err != nil {
		return nil, err
	}
	losses[PropensityModel] = propensityLoss
	return losses, nil
}

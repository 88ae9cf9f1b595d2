package metalearner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/metrics"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// VariantOutcomeModel is the kind name of per-variant outcome models used by
// the T, X and DR learners.
const VariantOutcomeModel = "variant_outcome_model"

// TLearner estimates treatment effects by fitting one outcome model per
// treatment variant and differencing their predictions against the control
// model. It has no treatment models and no propensity model.
type TLearner struct {
	*Base

	// trainRows[v] holds the row indices of variant v from the last Fit,
	// needed for stitched in-sample prediction.
	trainRows [][]int
}

// NewTLearner instantiates a T-learner. Treatment effects for more than two
// variants are supported; multi-class classification outcomes are not.
func NewTLearner(cfg Config) (*TLearner, error) {
	base, err := newBase(variantSpec{
		name: "T",
		nuisanceSpecs: ModelSpecifications{
			VariantOutcomeModel: {
				Cardinality:   perVariantCardinality,
				PredictMethod: outcomePredictMethod,
			},
		},
		treatmentSpecs:         ModelSpecifications{},
		supportsMultiTreatment: true,
		validateModels: func(b *Base) error {
			return b.requireOutcomeFactories(VariantOutcomeModel)
		},
	}, cfg)
	if err != nil {
		return nil, err
	}
	return &TLearner{Base: base}, nil
}

// Fit trains one outcome model per treatment variant on that variant's rows.
func (t *TLearner) Fit(X mat.Matrix, y *mat.VecDense, w []int) (err error) {
	defer mlErrors.Recover(&err, "TLearner.Fit")

	if err := t.validateFitInputs(X, y, w); err != nil {
		return err
	}
	rows := variantRows(w, t.nVariants)
	for v := 0; v < t.nVariants; v++ {
		if err := t.FitNuisance(VariantOutcomeModel, v,
			subsetRows(X, rows[v]), subsetVecRows(y, rows[v]), nil); err != nil {
			return mlErrors.NewModelError("TLearner.Fit",
				fmt.Sprintf("fitting outcome model for variant %d", v), err)
		}
	}
	t.trainRows = rows

	n, d := X.Dims()
	t.markFitted(n, d)
	return nil
}

// variantOutcomes returns one outcome estimate per observation for each
// variant, stitching in-sample predictions across the variant partitions.
func (t *TLearner) variantOutcomes(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) ([]*mat.VecDense, error) {
	outcomes := make([]*mat.VecDense, t.nVariants)
	for v := 0; v < t.nVariants; v++ {
		preds, err := t.predictNuisanceStitched(VariantOutcomeModel, v, X, t.trainRows[v], isOOS, oosMethod)
		if err != nil {
			return nil, err
		}
		outcomes[v] = t.outcomeVec(preds)
	}
	return outcomes, nil
}

// Predict returns the estimated treatment effect of each non-control variant
// against control, one column per variant.
func (t *TLearner) Predict(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "TLearner.Predict")

	if err := t.requireFitted("Predict"); err != nil {
		return nil, err
	}
	outcomes, err := t.variantOutcomes(X, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	effects := mat.NewDense(n, t.nVariants-1, nil)
	for v := 1; v < t.nVariants; v++ {
		for i := 0; i < n; i++ {
			effects.Set(i, v-1, outcomes[v].AtVec(i)-outcomes[0].AtVec(i))
		}
	}
	return effects, nil
}

// Evaluate reports one loss per variant outcome model, computed on the rows
// of that variant. Regression outcomes use RMSE, classification outcomes use
// cross-entropy.
func (t *TLearner) Evaluate(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (map[string]float64, error) {
	if err := t.requireFitted("Evaluate"); err != nil {
		return nil, err
	}
	if err := CheckTreatment(w, t.nVariants); err != nil {
		return nil, err
	}

	rows := variantRows(w, t.nVariants)
	losses := make(map[string]float64, t.nVariants)
	for v := 0; v < t.nVariants; v++ {
		preds, err := t.PredictNuisance(VariantOutcomeModel, v, subsetRows(X, rows[v]), isOOS, oosMethod)
		if err != nil {
			return nil, err
		}
		yv := subsetVecRows(y, rows[v])
		var loss float64
		if t.isClassification {
			loss, err = metrics.LogLoss(yv, preds)
		} else {
			loss, err = metrics.RMSE(yv, t.outcomeVec(preds))
		}
		if err != nil {
			return nil, err
		}
		losses[fmt.Sprintf("%s_%d", VariantOutcomeModel, v)] = loss
	}
	return losses, nil
}

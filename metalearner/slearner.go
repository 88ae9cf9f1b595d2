package metalearner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/metrics"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/preprocessing"
)

// BaseModel is the kind name of the single outcome model of the S-learner.
const BaseModel = "base_model"

// SLearner estimates treatment effects with a single outcome model fitted on
// the features augmented with one-hot encoded treatment indicators. Effects
// are differences of counterfactual predictions obtained by toggling the
// indicator columns.
type SLearner struct {
	*Base

	encoder *preprocessing.OneHotEncoder
}

// NewSLearner instantiates an S-learner. It supports both multiple treatment
// variants and multi-class classification outcomes.
func NewSLearner(cfg Config) (*SLearner, error) {
	base, err := newBase(variantSpec{
		name: "S",
		nuisanceSpecs: ModelSpecifications{
			BaseModel: {
				Cardinality:   fixedCardinality(1),
				PredictMethod: outcomePredictMethod,
			},
		},
		treatmentSpecs:         ModelSpecifications{},
		supportsMultiTreatment: true,
		supportsMultiClass:     true,
		validateModels: func(b *Base) error {
			return b.requireOutcomeFactories(BaseModel)
		},
	}, cfg)
	if err != nil {
		return nil, err
	}
	return &SLearner{Base: base}, nil
}

// augment appends one-hot treatment indicators to X. The control indicator
// is dropped (variant 0 encodes as all zeros) so the augmented design stays
// full rank when the base model fits an intercept.
func (s *SLearner) augment(X mat.Matrix, w []int) (*mat.Dense, error) {
	indicators, err := s.encoder.Transform(w)
	if err != nil {
		return nil, err
	}
	n, d := X.Dims()
	k := s.encoder.NOutputs() - 1
	aug := mat.NewDense(n, d+k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			aug.Set(i, j, X.At(i, j))
		}
		for j := 0; j < k; j++ {
			aug.Set(i, d+j, indicators.At(i, j+1))
		}
	}
	return aug, nil
}

// constantTreatment returns a treatment vector assigning variant v to every
// observation.
func constantTreatment(n, v int) []int {
	w := make([]int, n)
	for i := range w {
		w[i] = v
	}
	return w
}

// Fit trains the base model on the treatment-augmented feature matrix.
func (s *SLearner) Fit(X mat.Matrix, y *mat.VecDense, w []int) (err error) {
	defer mlErrors.Recover(&err, "SLearner.Fit")

	if err := s.validateFitInputs(X, y, w); err != nil {
		return err
	}

	// Fit the encoder on the full variant range rather than the observed w
	// so counterfactual encoding is identical across calls.
	s.encoder = preprocessing.NewOneHotEncoder()
	if err := s.encoder.Fit(allVariants(s.nVariants)); err != nil {
		return err
	}

	aug, err := s.augment(X, w)
	if err != nil {
		return err
	}
	if err := s.FitNuisance(BaseModel, 0, aug, y, nil); err != nil {
		return mlErrors.NewModelError("SLearner.Fit", "fitting base model", err)
	}

	n, d := X.Dims()
	s.markFitted(n, d)
	return nil
}

// allVariants returns the sequence 0..nVariants-1.
func allVariants(nVariants int) []int {
	vs := make([]int, nVariants)
	for v := range vs {
		vs[v] = v
	}
	return vs
}

// conditionalOutcome predicts the outcome under the counterfactual
// assignment of variant v to every observation.
func (s *SLearner) conditionalOutcome(X mat.Matrix, v int, isOOS bool, oosMethod crossfit.OosMethod) (*mat.VecDense, error) {
	n, _ := X.Dims()
	aug, err := s.augment(X, constantTreatment(n, v))
	if err != nil {
		return nil, err
	}
	preds, err := s.PredictNuisance(BaseModel, 0, aug, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	return s.outcomeVec(preds), nil
}

// Predict returns counterfactual outcome differences against control, one
// column per non-control variant.
func (s *SLearner) Predict(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "SLearner.Predict")

	if err := s.requireFitted("Predict"); err != nil {
		return nil, err
	}

	control, err := s.conditionalOutcome(X, 0, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	effects := mat.NewDense(n, s.nVariants-1, nil)
	for v := 1; v < s.nVariants; v++ {
		treated, err := s.conditionalOutcome(X, v, isOOS, oosMethod)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			effects.Set(i, v-1, treated.AtVec(i)-control.AtVec(i))
		}
	}
	return effects, nil
}

// Evaluate reports the base model's loss on the observed assignments.
func (s *SLearner) Evaluate(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (map[string]float64, error) {
	if err := s.requireFitted("Evaluate"); err != nil {
		return nil, err
	}
	if err := CheckTreatment(w, s.nVariants); err != nil {
		return nil, err
	}

	aug, err := s.augment(X, w)
	if err != nil {
		return nil, err
	}
	preds, err := s.PredictNuisance(BaseModel, 0, aug, isOOS, oosMethod)
	if err != nil {
		return nil, err
	}

	var loss float64
	if s.isClassification {
		loss, err = metrics.LogLoss(y, preds)
	} else {
		loss, err = metrics.RMSE(y, s.outcomeVec(preds))
	}
	if err != nil {
		return nil, err
	}
	return map[string]float64{fmt.Sprintf("%s_0", BaseModel): loss}, nil
}

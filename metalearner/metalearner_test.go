package metalearner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/linear"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

func newRegressor() model.Estimator { return linear.NewLinearRegression() }

func newClassifier() model.Estimator { return linear.NewLogisticRegression() }

// upliftData draws a synthetic randomized experiment with a constant
// additive treatment effect.
func upliftData(n int, effect float64, seed int64) (*mat.Dense, *mat.VecDense, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	w := make([]int, n)
	for i := 0; i < n; i++ {
		x0 := rng.NormFloat64()
		x1 := rng.NormFloat64()
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		// Deterministic halves keep both variants present.
		w[i] = i % 2
		y.SetVec(i, 1.0+2.0*x0-x1+effect*float64(w[i])+0.1*rng.NormFloat64())
	}
	return X, y, w
}

func regressionConfig() Config {
	return Config{
		NuisanceModelFactory: Uniform[model.Factory](newRegressor),
		NVariants:            2,
		NFolds:               2,
		RandomState:          42,
	}
}

func propensityConfig() Config {
	cfg := regressionConfig()
	cfg.TreatmentModelFactory = Uniform[model.Factory](newRegressor)
	cfg.PropensityModelFactory = newClassifier
	return cfg
}

func TestConstructionRejectsSingleVariant(t *testing.T) {
	for _, prefix := range []string{"S", "T", "X", "R", "DR"} {
		cfg := propensityConfig()
		if prefix == "S" || prefix == "T" {
			cfg = regressionConfig()
		}
		cfg.NVariants = 1
		_, err := New(prefix, cfg)
		assert.Error(t, err, prefix)
	}
}

func TestMultiTreatmentSupportVariesByVariant(t *testing.T) {
	for _, prefix := range []string{"S", "T"} {
		cfg := regressionConfig()
		cfg.NVariants = 3
		_, err := New(prefix, cfg)
		assert.NoError(t, err, prefix)
	}
	for _, prefix := range []string{"X", "R", "DR"} {
		cfg := propensityConfig()
		cfg.NVariants = 3
		_, err := New(prefix, cfg)
		require.Error(t, err, prefix)
		assert.ErrorIs(t, err, mlErrors.ErrNotImplemented, prefix)
	}
}

func TestConstructionRejectsPropensityViaNuisanceChannels(t *testing.T) {
	cfg := propensityConfig()
	cfg.NuisanceModelFactory = ByKind(map[string]model.Factory{
		OutcomeModel:    newRegressor,
		PropensityModel: newClassifier,
	})
	_, err := NewRLearner(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PropensityModelFactory")

	cfg = propensityConfig()
	cfg.NuisanceModelParams = ByKind(map[string]model.Params{
		PropensityModel: {"C": 0.5},
	})
	_, err = NewRLearner(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PropensityModelParams")
}

func TestConstructionRequiresPropensityWhenDeclared(t *testing.T) {
	cfg := propensityConfig()
	cfg.PropensityModelFactory = nil
	for _, prefix := range []string{"X", "R", "DR"} {
		_, err := New(prefix, cfg)
		require.Error(t, err, prefix)
		assert.Contains(t, err.Error(), "propensity", prefix)
	}
}

func TestConstructionIgnoresUnusedPropensity(t *testing.T) {
	X, y, w := upliftData(40, 1.0, 29)
	for _, prefix := range []string{"S", "T"} {
		cfg := regressionConfig()
		cfg.PropensityModelFactory = newClassifier
		learner, err := New(prefix, cfg)
		require.NoError(t, err, prefix)
		assert.NoError(t, learner.Fit(X, y, w), prefix)
	}
}

func TestConstructionNFolds(t *testing.T) {
	for _, nFolds := range []int{-1, 1} {
		cfg := regressionConfig()
		cfg.NFolds = nFolds
		_, err := NewTLearner(cfg)
		assert.Errorf(t, err, "NFolds=%d", nFolds)
	}

	cfg := regressionConfig()
	cfg.NFolds = 0
	learner, err := NewTLearner(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultNFolds, learner.NFolds())
}

func TestConstructionRunsParamValidationHook(t *testing.T) {
	spec := variantSpec{
		name: "T",
		nuisanceSpecs: ModelSpecifications{
			VariantOutcomeModel: {
				Cardinality:   perVariantCardinality,
				PredictMethod: outcomePredictMethod,
			},
		},
		treatmentSpecs:         ModelSpecifications{},
		supportsMultiTreatment: true,
		validateParams: func(cfg Config) error {
			if cfg.RandomState > 100 {
				return mlErrors.NewValueError("T", "random_state out of range")
			}
			return nil
		},
	}

	cfg := regressionConfig()
	cfg.RandomState = 101
	_, err := newBase(spec, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "random_state")

	cfg.RandomState = 42
	_, err = newBase(spec, cfg)
	assert.NoError(t, err)
}

func TestConstructionRejectsMismatchedByKind(t *testing.T) {
	cfg := regressionConfig()
	cfg.NuisanceModelFactory = ByKind(map[string]model.Factory{
		"no_such_kind": newRegressor,
	})
	_, err := NewTLearner(cfg)
	assert.Error(t, err)
}

func TestConstructionValidatesFactoryRoles(t *testing.T) {
	t.Run("classification needs classifier outcome", func(t *testing.T) {
		cfg := regressionConfig()
		cfg.IsClassification = true
		_, err := NewTLearner(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "classifier factory")
	})

	t.Run("regression rejects classifier outcome", func(t *testing.T) {
		cfg := regressionConfig()
		cfg.NuisanceModelFactory = Uniform[model.Factory](newClassifier)
		_, err := NewTLearner(cfg)
		assert.Error(t, err)
	})

	t.Run("treatment models must regress", func(t *testing.T) {
		cfg := propensityConfig()
		cfg.TreatmentModelFactory = Uniform[model.Factory](newClassifier)
		_, err := NewRLearner(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "regressor factory")
	})
}

func TestPredictBeforeFit(t *testing.T) {
	learner, err := NewTLearner(regressionConfig())
	require.NoError(t, err)

	X := mat.NewDense(4, 2, nil)
	_, err = learner.Predict(X, false, crossfit.OosOverall)
	require.Error(t, err)
	assert.ErrorIs(t, err, mlErrors.ErrNotFitted)
}

func TestFitRejectsInvalidTreatment(t *testing.T) {
	learner, err := NewTLearner(regressionConfig())
	require.NoError(t, err)

	X, y, _ := upliftData(20, 1.0, 1)
	w := make([]int, 20) // all control
	err = learner.Fit(X, y, w)
	assert.Error(t, err)
}

func TestMetaLearnersRecoverConstantEffect(t *testing.T) {
	const effect = 2.0
	X, y, w := upliftData(200, effect, 3)

	cases := []struct {
		prefix string
		cfg    Config
	}{
		{"S", regressionConfig()},
		{"T", regressionConfig()},
		{"X", propensityConfig()},
		{"R", propensityConfig()},
		{"DR", propensityConfig()},
	}
	for _, tc := range cases {
		t.Run(tc.prefix, func(t *testing.T) {
			learner, err := New(tc.prefix, tc.cfg)
			require.NoError(t, err)
			require.NoError(t, learner.Fit(X, y, w))
			assert.True(t, learner.IsFitted())

			for _, isOOS := range []bool{false, true} {
				effects, err := learner.Predict(X, isOOS, crossfit.OosOverall)
				require.NoError(t, err)
				r, c := effects.Dims()
				assert.Equal(t, 200, r)
				assert.Equal(t, 1, c)

				var sum float64
				for i := 0; i < r; i++ {
					sum += effects.At(i, 0)
				}
				avg := sum / float64(r)
				assert.InDeltaf(t, effect, avg, 0.5,
					"average effect estimate %f (isOOS=%v)", avg, isOOS)
			}
		})
	}
}

func TestSLearnerAugmentDropsControlIndicator(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	n := 90
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	w := make([]int, n)
	for i := 0; i < n; i++ {
		x0 := rng.NormFloat64()
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.NormFloat64())
		w[i] = i % 3
		y.SetVec(i, x0+float64(w[i])+0.1*rng.NormFloat64())
	}

	cfg := regressionConfig()
	cfg.NVariants = 3
	learner, err := NewSLearner(cfg)
	require.NoError(t, err)
	// The default LinearRegression fits an intercept; a full set of
	// indicator columns would make the augmented design singular.
	require.NoError(t, learner.Fit(X, y, w))

	aug, err := learner.augment(X, w)
	require.NoError(t, err)
	_, c := aug.Dims()
	assert.Equal(t, 2+cfg.NVariants-1, c)
	for i := 0; i < n; i++ {
		for v := 1; v < cfg.NVariants; v++ {
			want := 0.0
			if w[i] == v {
				want = 1.0
			}
			assert.Equal(t, want, aug.At(i, 2+v-1))
		}
	}
}

func TestPredictOutOfSampleOnNewData(t *testing.T) {
	X, y, w := upliftData(120, 1.5, 5)
	learner, err := NewTLearner(regressionConfig())
	require.NoError(t, err)
	require.NoError(t, learner.Fit(X, y, w))

	newX, _, _ := upliftData(30, 1.5, 6)
	for _, oos := range []crossfit.OosMethod{crossfit.OosOverall, crossfit.OosMedian} {
		effects, err := learner.Predict(newX, true, oos)
		require.NoError(t, err)
		r, c := effects.Dims()
		assert.Equal(t, 30, r)
		assert.Equal(t, 1, c)
	}
}

func TestMultiVariantPredictShape(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 150
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	w := make([]int, n)
	for i := 0; i < n; i++ {
		x0 := rng.NormFloat64()
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.NormFloat64())
		w[i] = i % 3
		y.SetVec(i, x0+float64(w[i])+0.1*rng.NormFloat64())
	}

	for _, prefix := range []string{"S", "T"} {
		cfg := regressionConfig()
		cfg.NVariants = 3
		learner, err := New(prefix, cfg)
		require.NoError(t, err)
		require.NoError(t, learner.Fit(X, y, w))

		effects, err := learner.Predict(X, true, crossfit.OosOverall)
		require.NoError(t, err)
		r, c := effects.Dims()
		assert.Equal(t, n, r)
		assert.Equal(t, 2, c)
	}
}

func TestClassificationOutcome(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	w := make([]int, n)
	for i := 0; i < n; i++ {
		x0 := rng.NormFloat64()
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.NormFloat64())
		w[i] = i % 2
		logit := x0 + 1.5*float64(w[i])
		p := 1 / (1 + math.Exp(-logit))
		if rng.Float64() < p {
			y.SetVec(i, 1)
		}
	}

	cfg := Config{
		NuisanceModelFactory: Uniform[model.Factory](newClassifier),
		NVariants:            2,
		IsClassification:     true,
		NFolds:               2,
		RandomState:          17,
	}
	learner, err := NewTLearner(cfg)
	require.NoError(t, err)
	require.NoError(t, learner.Fit(X, y, w))

	effects, err := learner.Predict(X, true, crossfit.OosOverall)
	require.NoError(t, err)
	// Effects on a probability outcome stay within [-1, 1].
	r, _ := effects.Dims()
	for i := 0; i < r; i++ {
		assert.LessOrEqual(t, math.Abs(effects.At(i, 0)), 1.0)
	}
}

func TestEvaluateReportsPerModelLosses(t *testing.T) {
	X, y, w := upliftData(120, 1.0, 13)

	learner, err := NewDRLearner(propensityConfig())
	require.NoError(t, err)
	require.NoError(t, learner.Fit(X, y, w))

	losses, err := learner.Evaluate(X, y, w, false, crossfit.OosOverall)
	require.NoError(t, err)
	assert.Contains(t, losses, "variant_outcome_model_0")
	assert.Contains(t, losses, "variant_outcome_model_1")
	assert.Contains(t, losses, PropensityModel)
	assert.Contains(t, losses, TreatmentModel)
	for name, loss := range losses {
		assert.Falsef(t, math.IsNaN(loss), "loss %s is NaN", name)
	}
}

func TestFeatureSetSubsetsColumns(t *testing.T) {
	X, y, w := upliftData(80, 1.0, 19)

	cfg := regressionConfig()
	cfg.FeatureSet = ByKind(map[string][]int{
		VariantOutcomeModel: {0},
	})
	learner, err := NewTLearner(cfg)
	require.NoError(t, err)
	require.NoError(t, learner.Fit(X, y, w))

	effects, err := learner.Predict(X, true, crossfit.OosOverall)
	require.NoError(t, err)
	r, c := effects.Dims()
	assert.Equal(t, 80, r)
	assert.Equal(t, 1, c)
}

func TestFeatureSetRejectsOutOfRangeColumn(t *testing.T) {
	X, y, w := upliftData(40, 1.0, 23)

	cfg := regressionConfig()
	cfg.FeatureSet = ByKind(map[string][]int{
		VariantOutcomeModel: {5},
	})
	learner, err := NewTLearner(cfg)
	require.NoError(t, err)
	err = learner.Fit(X, y, w)
	assert.Error(t, err)
}

func TestNuisanceTensors(t *testing.T) {
	learner, err := NewDRLearner(propensityConfig())
	require.NoError(t, err)

	tensors := learner.NuisanceTensors(50)
	require.Contains(t, tensors, VariantOutcomeModel)
	require.Contains(t, tensors, PropensityModel)
	assert.Len(t, tensors[VariantOutcomeModel], 2)
	assert.Len(t, tensors[PropensityModel], 1)

	r, c := tensors[VariantOutcomeModel][0].Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 1, c)

	r, c = tensors[PropensityModel][0].Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 2, c)
}

package metalearner

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	"github.com/ezoic/metalearners/crossfit"
	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/pkg/log"
)

// DefaultNFolds is the number of cross-fitting folds used when Config.NFolds
// is left at zero.
const DefaultNFolds = 10

// Config carries everything needed to instantiate a meta-learner variant.
// Factories and params can be supplied uniformly or per model kind; the
// propensity sub-model has dedicated fields and must never be configured
// through the generic nuisance channels.
type Config struct {
	// NuisanceModelFactory provides factories for the variant's nuisance
	// kinds. Required whenever the variant declares nuisance kinds other
	// than the propensity model.
	NuisanceModelFactory PerKind[model.Factory]

	// TreatmentModelFactory provides factories for the variant's treatment
	// kinds. Required whenever the variant declares treatment kinds.
	TreatmentModelFactory PerKind[model.Factory]

	// PropensityModelFactory provides the factory for the reserved
	// propensity kind. Required iff the variant declares it.
	PropensityModelFactory model.Factory

	// NuisanceModelParams, TreatmentModelParams and PropensityModelParams
	// are forwarded to SetParams of the matching estimators. All optional.
	NuisanceModelParams   PerKind[model.Params]
	TreatmentModelParams  PerKind[model.Params]
	PropensityModelParams model.Params

	// FeatureSet restricts, per model kind, which columns of X a kind's
	// estimators see. A nil slice (or an unset value) means all columns.
	FeatureSet PerKind[[]int]

	// NVariants is the number of treatment variants including control.
	// Must be at least 2.
	NVariants int

	// IsClassification declares the outcome categorical. Outcome models
	// are then required to be classifiers.
	IsClassification bool

	// NFolds is the number of cross-fitting folds. Zero selects
	// DefaultNFolds; negative values are rejected.
	NFolds int

	// RandomState seeds fold assignment. Values <= 0 leave the folds
	// unseeded.
	RandomState int64
}

// MetaLearner is the common surface of all variants. Fit trains every
// nuisance and treatment sub-model; Predict returns an (nObs, nVariants-1)
// matrix of estimated conditional average treatment effects, one column per
// non-control variant.
type MetaLearner interface {
	Fit(X mat.Matrix, y *mat.VecDense, w []int) error
	Predict(X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (*mat.Dense, error)
	Evaluate(X mat.Matrix, y *mat.VecDense, w []int, isOOS bool, oosMethod crossfit.OosMethod) (map[string]float64, error)

	Name() string
	NVariants() int
	IsClassification() bool
	IsFitted() bool
}

// variantSpec is a variant's static self-description, consumed by newBase.
type variantSpec struct {
	name                   string
	nuisanceSpecs          ModelSpecifications
	treatmentSpecs         ModelSpecifications
	supportsMultiTreatment bool
	supportsMultiClass     bool

	// validateParams runs first during construction and checks
	// variant-specific configuration constraints beyond the shared ones.
	// Nil means no extra constraints.
	validateParams func(Config) error

	// validateModels runs after estimator allocation and checks
	// variant-specific factory requirements, e.g. that outcome factories
	// produce classifiers for classification outcomes.
	validateModels func(*Base) error
}

// Base implements the shared mechanics of every variant: configuration
// validation, estimator allocation and the generic fit and predict
// operations with per-kind feature subsetting. Variants embed *Base and add
// their pseudo-outcome logic on top.
type Base struct {
	spec  variantSpec
	state *model.StateManager

	nVariants        int
	isClassification bool
	nFolds           int
	randomState      int64

	nuisanceFactories  map[string]model.Factory
	treatmentFactories map[string]model.Factory
	nuisanceParams     map[string]model.Params
	treatmentParams    map[string]model.Params
	featureSet         map[string][]int

	nuisanceModels  map[string][]*crossfit.CrossFitEstimator
	treatmentModels map[string][]*crossfit.CrossFitEstimator

	logger log.Logger
}

// newBase builds a Base from a variant description and a caller Config.
// Construction is all-or-nothing: the first violated constraint aborts with
// an error and no partially initialized learner escapes.
func newBase(spec variantSpec, cfg Config) (*Base, error) {
	if spec.validateParams != nil {
		if err := spec.validateParams(cfg); err != nil {
			return nil, err
		}
	}
	if _, declared := spec.treatmentSpecs[PropensityModel]; declared {
		return nil, mlErrors.NewValueError(spec.name,
			"the propensity model must not appear among the treatment model kinds")
	}
	if cfg.NuisanceModelFactory.HasKind(PropensityModel) {
		return nil, mlErrors.NewValueError(spec.name,
			"the propensity model factory must be set via PropensityModelFactory, not via NuisanceModelFactory")
	}
	if cfg.NuisanceModelParams.HasKind(PropensityModel) {
		return nil, mlErrors.NewValueError(spec.name,
			"propensity model params must be set via PropensityModelParams, not via NuisanceModelParams")
	}

	if err := checkNVariants(spec.name, cfg.NVariants, spec.supportsMultiTreatment); err != nil {
		return nil, err
	}

	// A propensity factory supplied to a variant that declares no propensity
	// kind is ignored, mirroring combinePropensityAndNuisance.
	if _, wantsPropensity := spec.nuisanceSpecs[PropensityModel]; wantsPropensity && cfg.PropensityModelFactory == nil {
		return nil, mlErrors.NewValueError(spec.name,
			"this variant needs a propensity model; please provide PropensityModelFactory")
	}

	nFolds := cfg.NFolds
	switch {
	case nFolds == 0:
		nFolds = DefaultNFolds
	case nFolds < 2:
		return nil, mlErrors.NewValueError(spec.name,
			fmt.Sprintf("n_folds must be at least 2, got %d", nFolds))
	}

	nuisanceNames := spec.nuisanceSpecs.kindNames()
	treatmentNames := spec.treatmentSpecs.kindNames()

	nuisanceFactories, err := combinePropensityAndNuisance(
		cfg.PropensityModelFactory, cfg.NuisanceModelFactory, nuisanceNames)
	if err != nil {
		return nil, err
	}
	treatmentFactories, err := cfg.TreatmentModelFactory.normalize(treatmentNames)
	if err != nil {
		return nil, err
	}
	for _, kind := range nuisanceNames {
		if nuisanceFactories[kind] == nil {
			return nil, mlErrors.NewValueError(spec.name,
				fmt.Sprintf("no model factory provided for nuisance kind %q", kind))
		}
	}
	for _, kind := range treatmentNames {
		if treatmentFactories[kind] == nil {
			return nil, mlErrors.NewValueError(spec.name,
				fmt.Sprintf("no model factory provided for treatment kind %q", kind))
		}
	}

	nuisanceParams, err := combinePropensityAndNuisance(
		cfg.PropensityModelParams, cfg.NuisanceModelParams, nuisanceNames)
	if err != nil {
		return nil, err
	}
	treatmentParams, err := cfg.TreatmentModelParams.normalize(treatmentNames)
	if err != nil {
		return nil, err
	}

	allNames := make([]string, 0, len(nuisanceNames)+len(treatmentNames))
	allNames = append(allNames, nuisanceNames...)
	allNames = append(allNames, treatmentNames...)
	sort.Strings(allNames)
	featureSet, err := cfg.FeatureSet.normalize(allNames)
	if err != nil {
		return nil, err
	}

	randomState := cfg.RandomState
	if randomState <= 0 {
		randomState = -1
	}

	b := &Base{
		spec:               spec,
		state:              model.NewStateManager(),
		nVariants:          cfg.NVariants,
		isClassification:   cfg.IsClassification,
		nFolds:             nFolds,
		randomState:        randomState,
		nuisanceFactories:  nuisanceFactories,
		treatmentFactories: treatmentFactories,
		nuisanceParams:     nuisanceParams,
		treatmentParams:    treatmentParams,
		featureSet:         featureSet,
		logger: log.GetLoggerWithName("metalearner").With(
			log.VariantKey, spec.name,
		),
	}

	b.nuisanceModels = b.allocate(spec.nuisanceSpecs, nuisanceFactories, nuisanceParams)
	b.treatmentModels = b.allocate(spec.treatmentSpecs, treatmentFactories, treatmentParams)

	if spec.validateModels != nil {
		if err := spec.validateModels(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// allocate instantiates one cross-fitting estimator per (kind, ordinal)
// pair, with as many ordinals as the kind's cardinality requests.
func (b *Base) allocate(specs ModelSpecifications, factories map[string]model.Factory, params map[string]model.Params) map[string][]*crossfit.CrossFitEstimator {
	models := make(map[string][]*crossfit.CrossFitEstimator, len(specs))
	for kind, spec := range specs {
		n := spec.Cardinality(b)
		estimators := make([]*crossfit.CrossFitEstimator, n)
		for i := range estimators {
			estimators[i] = crossfit.New(b.nFolds, factories[kind], params[kind], b.randomState)
		}
		models[kind] = estimators
	}
	return models
}

// Name returns the variant's short code, e.g. "T" or "DR".
func (b *Base) Name() string { return b.spec.name }

// NVariants returns the number of treatment variants including control.
func (b *Base) NVariants() int { return b.nVariants }

// IsClassification reports whether the outcome is categorical.
func (b *Base) IsClassification() bool { return b.isClassification }

// NFolds returns the number of cross-fitting folds.
func (b *Base) NFolds() int { return b.nFolds }

// IsFitted reports whether Fit has completed successfully.
func (b *Base) IsFitted() bool { return b.state.IsFitted() }

// NuisanceModelSpecifications returns the variant's nuisance registry.
func (b *Base) NuisanceModelSpecifications() ModelSpecifications {
	return b.spec.nuisanceSpecs
}

// TreatmentModelSpecifications returns the variant's treatment registry.
func (b *Base) TreatmentModelSpecifications() ModelSpecifications {
	return b.spec.treatmentSpecs
}

// SupportsMultiTreatment reports whether more than two variants are allowed.
func (b *Base) SupportsMultiTreatment() bool { return b.spec.supportsMultiTreatment }

// SupportsMultiClass reports whether classification outcomes may have more
// than two classes.
func (b *Base) SupportsMultiClass() bool { return b.spec.supportsMultiClass }

func (b *Base) nuisanceEstimator(kind string, ordinal int) (*crossfit.CrossFitEstimator, error) {
	estimators, ok := b.nuisanceModels[kind]
	if !ok {
		return nil, mlErrors.NewValueError(b.spec.name,
			fmt.Sprintf("unknown nuisance model kind %q", kind))
	}
	if ordinal < 0 || ordinal >= len(estimators) {
		return nil, mlErrors.NewValueError(b.spec.name,
			fmt.Sprintf("nuisance kind %q has %d models, ordinal %d is out of range", kind, len(estimators), ordinal))
	}
	return estimators[ordinal], nil
}

func (b *Base) treatmentEstimator(kind string, ordinal int) (*crossfit.CrossFitEstimator, error) {
	estimators, ok := b.treatmentModels[kind]
	if !ok {
		return nil, mlErrors.NewValueError(b.spec.name,
			fmt.Sprintf("unknown treatment model kind %q", kind))
	}
	if ordinal < 0 || ordinal >= len(estimators) {
		return nil, mlErrors.NewValueError(b.spec.name,
			fmt.Sprintf("treatment kind %q has %d models, ordinal %d is out of range", kind, len(estimators), ordinal))
	}
	return estimators[ordinal], nil
}

// featureColumns returns the feature subset configured for kind, nil meaning
// all columns.
func (b *Base) featureColumns(kind string) []int {
	return b.featureSet[kind]
}

// subsetFeatures applies the kind's feature subset to X. With no subset
// configured X is returned unchanged.
func (b *Base) subsetFeatures(kind string, X mat.Matrix) (mat.Matrix, error) {
	cols := b.featureSet[kind]
	if cols == nil {
		return X, nil
	}
	r, c := X.Dims()
	sub := mat.NewDense(r, len(cols), nil)
	for j, col := range cols {
		if col < 0 || col >= c {
			return nil, mlErrors.NewValueError(b.spec.name,
				fmt.Sprintf("feature index %d for kind %q is out of range for %d features", col, kind, c))
		}
		for i := 0; i < r; i++ {
			sub.Set(i, j, X.At(i, col))
		}
	}
	return sub, nil
}

// FitNuisance trains the (kind, ordinal) nuisance estimator on X and y,
// applying the kind's feature subset first.
func (b *Base) FitNuisance(kind string, ordinal int, X mat.Matrix, y *mat.VecDense, fitParams model.Params) error {
	estimator, err := b.nuisanceEstimator(kind, ordinal)
	if err != nil {
		return err
	}
	sub, err := b.subsetFeatures(kind, X)
	if err != nil {
		return err
	}
	b.logger.Debug("fitting nuisance model",
		log.ModelKindKey, kind,
		log.ModelOrdinalKey, ordinal,
		log.OperationKey, log.OperationFit,
	)
	return estimator.Fit(sub, y, fitParams)
}

// FitTreatment trains the (kind, ordinal) treatment estimator on X and y,
// applying the kind's feature subset first.
func (b *Base) FitTreatment(kind string, ordinal int, X mat.Matrix, y *mat.VecDense, fitParams model.Params) error {
	estimator, err := b.treatmentEstimator(kind, ordinal)
	if err != nil {
		return err
	}
	sub, err := b.subsetFeatures(kind, X)
	if err != nil {
		return err
	}
	b.logger.Debug("fitting treatment model",
		log.ModelKindKey, kind,
		log.ModelOrdinalKey, ordinal,
		log.OperationKey, log.OperationFit,
	)
	return estimator.Fit(sub, y, fitParams)
}

// PredictNuisance produces predictions from the (kind, ordinal) nuisance
// estimator using the prediction mode the kind's specification selects. The
// result has one column for point predictions and one column per class for
// probability predictions.
func (b *Base) PredictNuisance(kind string, ordinal int, X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (*mat.Dense, error) {
	estimator, err := b.nuisanceEstimator(kind, ordinal)
	if err != nil {
		return nil, err
	}
	sub, err := b.subsetFeatures(kind, X)
	if err != nil {
		return nil, err
	}
	method := b.spec.nuisanceSpecs[kind].PredictMethod(b)
	return estimator.PredictWith(method, sub, isOOS, oosMethod)
}

// PredictTreatment produces point predictions from the (kind, ordinal)
// treatment estimator.
func (b *Base) PredictTreatment(kind string, ordinal int, X mat.Matrix, isOOS bool, oosMethod crossfit.OosMethod) (*mat.VecDense, error) {
	estimator, err := b.treatmentEstimator(kind, ordinal)
	if err != nil {
		return nil, err
	}
	sub, err := b.subsetFeatures(kind, X)
	if err != nil {
		return nil, err
	}
	return estimator.Predict(sub, isOOS, oosMethod)
}

// NuisanceTensors pre-sizes one output matrix per nuisance (kind, ordinal)
// pair for nObs observations. Column counts follow each kind's prediction
// mode, so probability kinds get one column per class.
func (b *Base) NuisanceTensors(nObs int) map[string][]*mat.Dense {
	tensors := make(map[string][]*mat.Dense, len(b.nuisanceModels))
	for kind, estimators := range b.nuisanceModels {
		method := b.spec.nuisanceSpecs[kind].PredictMethod(b)
		out := make([]*mat.Dense, len(estimators))
		for i, estimator := range estimators {
			out[i] = mat.NewDense(nObs, estimator.NOutputs(method), nil)
		}
		tensors[kind] = out
	}
	return tensors
}

// validateFitInputs runs the shared input checks of every variant's Fit.
func (b *Base) validateFitInputs(X mat.Matrix, y *mat.VecDense, w []int) error {
	if X == nil || y == nil {
		return mlErrors.NewValueError(b.spec.name, "X and y must be non-nil")
	}
	n, _ := X.Dims()
	if n == 0 {
		return mlErrors.Wrap(mlErrors.ErrEmptyData, b.spec.name)
	}
	if y.Len() != n {
		return mlErrors.NewDimensionError(b.spec.name+".Fit", n, y.Len(), 0)
	}
	if len(w) != n {
		return mlErrors.NewDimensionError(b.spec.name+".Fit", n, len(w), 0)
	}
	if err := CheckTreatment(w, b.nVariants); err != nil {
		return err
	}
	return CheckOutcome(y, b.isClassification, b.spec.supportsMultiClass)
}

// markFitted records a successful Fit of n samples with d features.
func (b *Base) markFitted(n, d int) {
	b.state.SetDimensions(d, n)
	b.state.SetFitted()
	b.logger.Info("meta-learner fitted",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.VariantsKey, b.nVariants,
		log.FoldsKey, b.nFolds,
	)
}

// requireFitted guards predict-time entry points.
func (b *Base) requireFitted(method string) error {
	return b.state.RequireFitted(b.spec.name+"Learner", method)
}

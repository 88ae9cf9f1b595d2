// Command metalearn fits a meta-learner on a CSV experiment dataset and
// reports the average treatment effect, per-model losses, and uplift
// ranking quality. Configuration comes from a YAML file and METALEARN_
// environment variables.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/metalearners/core/model"
	"github.com/ezoic/metalearners/crossfit"
	"github.com/ezoic/metalearners/linear"
	"github.com/ezoic/metalearners/metalearner"
	"github.com/ezoic/metalearners/metrics"
	"github.com/ezoic/metalearners/pkg/log"
	"github.com/ezoic/metalearners/preprocessing"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "metalearn:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.SetProvider(log.NewZerologProvider(log.ToLogLevel(cfg.Log.Level)))
	logger := log.GetLoggerWithName("metalearn")

	if cfg.Data.Path == "" {
		return fmt.Errorf("data.path is required (set it in the config file or METALEARN_DATA_PATH)")
	}

	X, y, w, features, err := loadDataset(cfg.Data)
	if err != nil {
		return fmt.Errorf("loading %s: %w", cfg.Data.Path, err)
	}
	n, d := X.Dims()
	logger.Info("dataset loaded",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.VariantsKey, cfg.Learner.NVariants)

	if cfg.Data.Scale {
		scaler := preprocessing.NewStandardScaler()
		X, err = scaler.FitTransform(X)
		if err != nil {
			return fmt.Errorf("scaling features: %w", err)
		}
	}

	learner, err := buildLearner(cfg.Learner)
	if err != nil {
		return err
	}
	if err := learner.Fit(X, y, w); err != nil {
		return fmt.Errorf("fitting %s-learner: %w", cfg.Learner.Variant, err)
	}

	effects, err := learner.Predict(X, false, crossfit.OosOverall)
	if err != nil {
		return fmt.Errorf("predicting effects: %w", err)
	}
	losses, err := learner.Evaluate(X, y, w, false, crossfit.OosOverall)
	if err != nil {
		return fmt.Errorf("evaluating models: %w", err)
	}

	report(os.Stdout, cfg.Learner.Variant, features, effects, y, w, losses)
	return nil
}

// buildLearner wires linear base models into the requested variant. The
// propensity model is only attached for variants that declare it.
func buildLearner(cfg LearnerConfig) (metalearner.MetaLearner, error) {
	newRegressor := func() model.Estimator { return linear.NewLinearRegression() }
	newClassifier := func() model.Estimator { return linear.NewLogisticRegression() }

	outcome := newRegressor
	if cfg.Classification {
		outcome = newClassifier
	}

	mlCfg := metalearner.Config{
		NuisanceModelFactory: metalearner.Uniform[model.Factory](outcome),
		NVariants:            cfg.NVariants,
		IsClassification:     cfg.Classification,
		NFolds:               cfg.NFolds,
		RandomState:          cfg.RandomState,
	}
	switch cfg.Variant {
	case "X", "R", "DR":
		mlCfg.TreatmentModelFactory = metalearner.Uniform[model.Factory](newRegressor)
		mlCfg.PropensityModelFactory = newClassifier
	}

	learner, err := metalearner.New(cfg.Variant, mlCfg)
	if err != nil {
		return nil, fmt.Errorf("constructing %s-learner: %w", cfg.Variant, err)
	}
	return learner, nil
}

// loadDataset reads a headered CSV. The outcome and treatment columns are
// located by name; every other column is a feature, in file order.
func loadDataset(cfg DataConfig) (*mat.Dense, *mat.VecDense, []int, []string, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, nil, fmt.Errorf("need a header row and at least one data row")
	}

	header := records[0]
	outcomeIdx, treatmentIdx := -1, -1
	var features []string
	var featureIdx []int
	for j, name := range header {
		switch name {
		case cfg.OutcomeCol:
			outcomeIdx = j
		case cfg.TreatmentCol:
			treatmentIdx = j
		default:
			features = append(features, name)
			featureIdx = append(featureIdx, j)
		}
	}
	if outcomeIdx < 0 {
		return nil, nil, nil, nil, fmt.Errorf("outcome column %q not found in header", cfg.OutcomeCol)
	}
	if treatmentIdx < 0 {
		return nil, nil, nil, nil, fmt.Errorf("treatment column %q not found in header", cfg.TreatmentCol)
	}

	rows := records[1:]
	X := mat.NewDense(len(rows), len(featureIdx), nil)
	y := mat.NewVecDense(len(rows), nil)
	w := make([]int, len(rows))
	for i, record := range rows {
		if len(record) != len(header) {
			return nil, nil, nil, nil, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(record), len(header))
		}
		for jj, j := range featureIdx {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("row %d column %q: %w", i+2, header[j], err)
			}
			X.Set(i, jj, v)
		}
		yv, err := strconv.ParseFloat(record[outcomeIdx], 64)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("row %d column %q: %w", i+2, cfg.OutcomeCol, err)
		}
		y.SetVec(i, yv)
		wv, err := strconv.Atoi(record[treatmentIdx])
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("row %d column %q: %w", i+2, cfg.TreatmentCol, err)
		}
		w[i] = wv
	}
	return X, y, w, features, nil
}

func report(out *os.File, variant string, features []string, effects *mat.Dense, y *mat.VecDense, w []int, losses map[string]float64) {
	n, cols := effects.Dims()
	fmt.Fprintf(out, "%s-learner on %d observations (%d features)\n\n", variant, n, len(features))

	for c := 0; c < cols; c++ {
		var ate float64
		for i := 0; i < n; i++ {
			ate += effects.At(i, c)
		}
		ate /= float64(n)
		fmt.Fprintf(out, "ATE (variant %d vs control): %.4f\n", c+1, ate)
	}

	scores := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		scores.SetVec(i, effects.At(i, 0))
	}
	if auuc, err := metrics.AUUC(scores, y, w); err == nil {
		fmt.Fprintf(out, "AUUC: %.4f\n", auuc)
	}
	if qini, err := metrics.QiniCoefficient(scores, y, w); err == nil {
		fmt.Fprintf(out, "Qini: %.4f\n", qini)
	}

	names := make([]string, 0, len(losses))
	for name := range losses {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "\nmodel losses:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-28s %.4f\n", name, losses[name])
	}
}

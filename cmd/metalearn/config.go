package main

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config drives one experiment run. Values come from defaults, then an
// optional YAML file, then METALEARN_-prefixed environment variables
// (METALEARN_LEARNER_VARIANT -> learner.variant).
type Config struct {
	Learner LearnerConfig `koanf:"learner"`
	Data    DataConfig    `koanf:"data"`
	Log     LogConfig     `koanf:"log"`
}

type LearnerConfig struct {
	Variant        string `koanf:"variant"`
	NVariants      int    `koanf:"n_variants"`
	NFolds         int    `koanf:"n_folds"`
	RandomState    int64  `koanf:"random_state"`
	Classification bool   `koanf:"classification"`
}

type DataConfig struct {
	Path         string `koanf:"path"`
	OutcomeCol   string `koanf:"outcome_col"`
	TreatmentCol string `koanf:"treatment_col"`
	Scale        bool   `koanf:"scale"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

var k = koanf.New(".")

func loadConfig(path string) (*Config, error) {
	// Defaults
	k.Set("learner.variant", "T")
	k.Set("learner.n_variants", 2)
	k.Set("learner.n_folds", 10)
	k.Set("learner.random_state", -1)
	k.Set("data.outcome_col", "y")
	k.Set("data.treatment_col", "w")
	k.Set("data.scale", true)
	k.Set("log.level", "info")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Only the first underscore separates the section from the key, so
	// METALEARN_LEARNER_N_FOLDS maps to learner.n_folds.
	if err := k.Load(env.Provider("METALEARN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "METALEARN_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

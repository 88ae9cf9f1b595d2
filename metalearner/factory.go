package metalearner

import (
	"fmt"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// Constructor builds a meta-learner variant from a Config.
type Constructor func(Config) (MetaLearner, error)

// ForPrefix returns the constructor for a variant code. Exactly "S", "T",
// "X", "R" and "DR" are known; any other code is a configuration error.
func ForPrefix(prefix string) (Constructor, error) {
	switch prefix {
	case "S":
		return func(cfg Config) (MetaLearner, error) { return NewSLearner(cfg) }, nil
	case "T":
		return func(cfg Config) (MetaLearner, error) { return NewTLearner(cfg) }, nil
	case "X":
		return func(cfg Config) (MetaLearner, error) { return NewXLearner(cfg) }, nil
	case "R":
		return func(cfg Config) (MetaLearner, error) { return NewRLearner(cfg) }, nil
	case "DR":
		return func(cfg Config) (MetaLearner, error) { return NewDRLearner(cfg) }, nil
	default:
		return nil, mlErrors.NewValueError("metalearner",
			fmt.Sprintf("no meta-learner implementation found for prefix %q", prefix))
	}
}

// New instantiates the variant identified by prefix.
func New(prefix string, cfg Config) (MetaLearner, error) {
	ctor, err := ForPrefix(prefix)
	if err != nil {
		return nil, err
	}
	return ctor(cfg)
}

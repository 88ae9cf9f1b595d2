package metalearner

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// checkNVariants validates the configured number of treatment variants
// against the variant's multi-treatment capability.
func checkNVariants(variantName string, nVariants int, supportsMultiTreatment bool) error {
	if nVariants < 2 {
		return mlErrors.NewValueError(variantName,
			"n_variants needs to be an integer strictly greater than 1")
	}
	if nVariants > 2 && !supportsMultiTreatment {
		return mlErrors.NewNotImplementedError(variantName,
			fmt.Sprintf("only binary treatment variants are supported, yet n_variants was set to %d", nVariants))
	}
	return nil
}

// CheckTreatment validates that w is encoded with consecutive integers
// {0, ..., nVariants-1} and that every variant is present at least once.
func CheckTreatment(w []int, nVariants int) error {
	if len(w) == 0 {
		return mlErrors.NewValidationError("w", "treatment vector is empty", nil)
	}

	present := make(map[int]bool)
	for _, v := range w {
		present[v] = true
	}

	if len(present) != nVariants {
		return mlErrors.NewValidationError("w",
			fmt.Sprintf("number of variants present in the treatment (%d) differs from the number specified at instantiation (%d)",
				len(present), nVariants),
			len(present))
	}
	for v := 0; v < nVariants; v++ {
		if !present[v] {
			return mlErrors.NewValidationError("w",
				fmt.Sprintf("treatment variants should be encoded with values {0...%d} and all variants should be present", nVariants-1),
				v)
		}
	}
	return nil
}

// CheckOutcome validates a classification outcome: class labels must be the
// consecutive integers {0, ..., k-1}, all present, and k may exceed 2 only
// for variants with multi-class support. Regression outcomes pass unchecked.
func CheckOutcome(y *mat.VecDense, isClassification, supportsMultiClass bool) error {
	if !isClassification {
		return nil
	}

	classes := make(map[int]bool)
	for i := 0; i < y.Len(); i++ {
		v := y.AtVec(i)
		c := int(v)
		if v != float64(c) || c < 0 {
			return mlErrors.NewValidationError("y",
				"classification outcomes must be encoded as nonnegative integers", v)
		}
		classes[c] = true
	}
	for c := 0; c < len(classes); c++ {
		if !classes[c] {
			return mlErrors.NewValidationError("y",
				fmt.Sprintf("classification outcomes should be encoded with values {0...%d} and all classes should be present", len(classes)-1),
				c)
		}
	}
	if len(classes) < 2 {
		return mlErrors.NewValidationError("y",
			"classification requires at least two classes", len(classes))
	}
	if len(classes) > 2 && !supportsMultiClass {
		return mlErrors.NewValidationError("y",
			fmt.Sprintf("multiclass classification is not supported by this variant, yet %d classes were found", len(classes)),
			len(classes))
	}
	return nil
}

// variantRows groups row indices by treatment variant. w must already have
// passed CheckTreatment.
func variantRows(w []int, nVariants int) [][]int {
	rows := make([][]int, nVariants)
	for i, v := range w {
		rows[v] = append(rows[v], i)
	}
	return rows
}

package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// upliftPrefix accumulates treated and control outcome totals over a prefix
// of observations ranked by predicted effect.
type upliftPrefix struct {
	treatedSum   float64
	controlSum   float64
	treatedCount int
	controlCount int
}

func (p upliftPrefix) uplift() float64 {
	var treatedMean, controlMean float64
	if p.treatedCount > 0 {
		treatedMean = p.treatedSum / float64(p.treatedCount)
	}
	if p.controlCount > 0 {
		controlMean = p.controlSum / float64(p.controlCount)
	}
	return treatedMean - controlMean
}

// rankByScore returns observation indices ordered by descending score, ties
// broken by original position for determinism.
func rankByScore(scores *mat.VecDense) []int {
	n := scores.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores.AtVec(order[a]) > scores.AtVec(order[b])
	})
	return order
}

func validateUpliftInputs(op string, scores, y *mat.VecDense, w []int) error {
	n := scores.Len()
	if n == 0 {
		return mlErrors.NewValueError(op, "empty vector")
	}
	if y.Len() != n {
		return mlErrors.NewDimensionError(op, n, y.Len(), 0)
	}
	if len(w) != n {
		return mlErrors.NewDimensionError(op, n, len(w), 0)
	}
	return nil
}

// UpliftCurve computes the cumulative uplift curve for effect estimates.
// Observations are ranked by descending score; entry k-1 is the difference
// between the treated and control mean outcomes among the top k
// observations. A useful effect model yields a curve that starts high and
// decays toward the overall average treatment effect.
func UpliftCurve(scores, y *mat.VecDense, w []int) ([]float64, error) {
	if err := validateUpliftInputs("UpliftCurve", scores, y, w); err != nil {
		return nil, err
	}

	n := scores.Len()
	curve := make([]float64, n)
	var prefix upliftPrefix
	for k, idx := range rankByScore(scores) {
		if w[idx] > 0 {
			prefix.treatedSum += y.AtVec(idx)
			prefix.treatedCount++
		} else {
			prefix.controlSum += y.AtVec(idx)
			prefix.controlCount++
		}
		curve[k] = prefix.uplift()
	}
	return curve, nil
}

// AUUC computes the area under the uplift curve, normalized by the number of
// observations. Scores that rank truly responsive observations first yield a
// larger area than uninformative scores.
func AUUC(scores, y *mat.VecDense, w []int) (float64, error) {
	curve, err := UpliftCurve(scores, y, w)
	if err != nil {
		return 0, err
	}

	var area float64
	for _, u := range curve {
		area += u
	}
	return area / float64(len(curve)), nil
}

// QiniCoefficient computes the area between the uplift curve and the
// constant curve of the overall average treatment effect, normalized by the
// number of observations. Uninformative scores give a coefficient near zero.
func QiniCoefficient(scores, y *mat.VecDense, w []int) (float64, error) {
	curve, err := UpliftCurve(scores, y, w)
	if err != nil {
		return 0, err
	}

	overall := curve[len(curve)-1]
	var area float64
	for _, u := range curve {
		area += u - overall
	}
	return area / float64(len(curve)), nil
}

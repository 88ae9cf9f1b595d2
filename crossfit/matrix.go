package crossfit

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
)

// subsetRows copies the given rows of X into a new dense matrix.
func subsetRows(X mat.Matrix, indices []int) *mat.Dense {
	_, d := X.Dims()
	out := mat.NewDense(len(indices), d, nil)
	for i, idx := range indices {
		for j := 0; j < d; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// subsetVec copies the given entries of y into a new vector.
func subsetVec(y *mat.VecDense, indices []int) *mat.VecDense {
	out := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		out.SetVec(i, y.AtVec(idx))
	}
	return out
}

// complementIndices returns [0, n) minus the sorted exclude set.
func complementIndices(n int, exclude []int) []int {
	out := make([]int, 0, n-len(exclude))
	e := 0
	for i := 0; i < n; i++ {
		if e < len(exclude) && exclude[e] == i {
			e++
			continue
		}
		out = append(out, i)
	}
	return out
}

// combineVecs merges per-fold prediction vectors according to oosMethod.
func combineVecs(perFold []*mat.VecDense, oosMethod OosMethod) (*mat.VecDense, error) {
	n := perFold[0].Len()
	out := mat.NewVecDense(n, nil)

	switch oosMethod {
	case OosOverall, "":
		for _, preds := range perFold {
			out.AddVec(out, preds)
		}
		out.ScaleVec(1/float64(len(perFold)), out)
	case OosMedian:
		buf := make([]float64, len(perFold))
		for i := 0; i < n; i++ {
			for k, preds := range perFold {
				buf[k] = preds.AtVec(i)
			}
			out.SetVec(i, median(buf))
		}
	default:
		return nil, mlErrors.NewValueError("crossfit", "unknown oos method "+string(oosMethod))
	}
	return out, nil
}

// combineDense merges per-fold probability matrices according to oosMethod.
func combineDense(perFold []*mat.Dense, oosMethod OosMethod) (*mat.Dense, error) {
	n, d := perFold[0].Dims()
	out := mat.NewDense(n, d, nil)

	switch oosMethod {
	case OosOverall, "":
		for _, probs := range perFold {
			out.Add(out, probs)
		}
		out.Scale(1/float64(len(perFold)), out)
	case OosMedian:
		buf := make([]float64, len(perFold))
		for i := 0; i < n; i++ {
			for j := 0; j < d; j++ {
				for k, probs := range perFold {
					buf[k] = probs.At(i, j)
				}
				out.Set(i, j, median(buf))
			}
		}
	default:
		return nil, mlErrors.NewValueError("crossfit", "unknown oos method "+string(oosMethod))
	}
	return out, nil
}

// median mutates buf by sorting it.
func median(buf []float64) float64 {
	sort.Float64s(buf)
	m := len(buf) / 2
	if len(buf)%2 == 1 {
		return buf[m]
	}
	return (buf[m-1] + buf[m]) / 2
}

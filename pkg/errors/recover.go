package errors

import (
	cerrors "github.com/cockroachdb/errors"
)

// Recover converts a panic in the calling function into an error assigned to
// *errp. It is intended as a deferred guard at the entry of Fit and Predict
// implementations, where an index out of range inside gonum should surface as
// an ordinary error rather than crash the caller:
//
//	func (m *Model) Fit(X mat.Matrix, y *mat.VecDense) (err error) {
//		defer errors.Recover(&err, "Model.Fit")
//		...
//	}
//
// If the recovered value is already an error it is wrapped with the operation
// name; anything else is formatted into a new error. An existing non-nil
// *errp is left untouched so a regular error return wins over a panic in a
// deferred cleanup.
func Recover(errp *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if *errp != nil {
		return
	}
	if err, ok := r.(error); ok {
		*errp = cerrors.Wrapf(err, "panic in %s", op)
		return
	}
	*errp = cerrors.Newf("panic in %s: %v", op, r)
}

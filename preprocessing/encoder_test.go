package preprocessing_test

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	mlErrors "github.com/ezoic/metalearners/pkg/errors"
	"github.com/ezoic/metalearners/preprocessing"
)

func TestOneHotEncoder_FitTransform(t *testing.T) {
	enc := preprocessing.NewOneHotEncoder()

	encoded, err := enc.FitTransform([]int{0, 1, 2, 1, 0})
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := encoded.Dims()
	if r != 5 || c != 3 {
		t.Fatalf("Expected 5x3 indicators, got %dx%d", r, c)
	}
	if enc.NOutputs() != 3 {
		t.Errorf("NOutputs: expected 3, got %d", enc.NOutputs())
	}

	expected := mat.NewDense(5, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
	})
	if !mat.Equal(encoded, expected) {
		t.Errorf("Unexpected encoding:\ngot:\n%v\nwant:\n%v",
			mat.Formatted(encoded), mat.Formatted(expected))
	}
}

func TestOneHotEncoder_CategoriesSorted(t *testing.T) {
	enc := preprocessing.NewOneHotEncoder()
	if err := enc.Fit([]int{5, 1, 3, 1, 5}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want := []int{1, 3, 5}
	if len(enc.Categories) != 3 {
		t.Fatalf("Expected 3 categories, got %d", len(enc.Categories))
	}
	for i, v := range want {
		if enc.Categories[i] != v {
			t.Errorf("Categories[%d]: expected %d, got %d", i, v, enc.Categories[i])
		}
	}
}

func TestOneHotEncoder_UnknownCategory(t *testing.T) {
	enc := preprocessing.NewOneHotEncoder()
	if err := enc.Fit([]int{0, 1}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if _, err := enc.Transform([]int{2}); err == nil {
		t.Error("Expected error for unknown category")
	}
}

func TestOneHotEncoder_TransformBeforeFit(t *testing.T) {
	enc := preprocessing.NewOneHotEncoder()
	_, err := enc.Transform([]int{0})
	if !errors.Is(err, mlErrors.ErrNotFitted) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
}

func TestOneHotEncoder_EmptyInput(t *testing.T) {
	enc := preprocessing.NewOneHotEncoder()
	if err := enc.Fit(nil); !errors.Is(err, mlErrors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData, got %v", err)
	}
}

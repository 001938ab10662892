package eval_test

import (
	"slices"
	"testing"

	"github.com/grexie/matchnet/pkg/eval"
)

func TestCosKNN(t *testing.T) {
	trainX := [][]float64{{1, 0}, {0.9, 0.1}, {0.8, 0.3}, {0, 1}, {0.1, 0.9}, {0.2, 0.9}}
	trainY := []int{1, 1, 1, 2, 2, 2}
	testX := [][]float64{{1, 0.05}, {0.05, 1}, {2, 2.1}, {0.7, 0.2}}
	testY := []int{1, 2, 2, 2}

	accuracy, predicted, err := eval.CosKNN(3, testX, testY, trainX, trainY)
	if err != nil {
		t.Fatalf("error scoring: %v", err)
	}
	if !slices.Equal(predicted, []int{1, 2, 2, 1}) {
		t.Fatalf("unexpected predictions %v", predicted)
	}
	if accuracy != 0.75 {
		t.Fatalf("expected accuracy 0.75, got %f", accuracy)
	}
}

func TestCosKNNTieBreak(t *testing.T) {
	trainX := [][]float64{{1, 0}, {0, 1}, {1, 1}, {-1, 0}}
	trainY := []int{7, 3, 5, 9}

	_, predicted, err := eval.CosKNN(2, [][]float64{{1, 0.2}}, []int{7}, trainX, trainY)
	if err != nil {
		t.Fatalf("error scoring: %v", err)
	}
	if predicted[0] != 7 {
		t.Fatalf("expected the tie to go to the most similar neighbour, got %d", predicted[0])
	}
}

func TestCosKNNScaleInvariant(t *testing.T) {
	trainX := [][]float64{{1, 0}, {0, 1}}
	trainY := []int{1, 2}

	_, a, _ := eval.CosKNN(1, [][]float64{{3, 1}}, []int{1}, trainX, trainY)
	_, b, _ := eval.CosKNN(1, [][]float64{{300, 100}}, []int{1}, trainX, trainY)
	if a[0] != b[0] {
		t.Fatalf("scaling the query changed its label from %d to %d", a[0], b[0])
	}
}

func TestCosKNNErrors(t *testing.T) {
	if _, _, err := eval.CosKNN(0, nil, nil, [][]float64{{1}}, []int{1}); err == nil {
		t.Fatalf("expected an error for k=0")
	}
	if _, _, err := eval.CosKNN(1, [][]float64{{1}}, []int{1}, nil, nil); err == nil {
		t.Fatalf("expected an error without train embeddings")
	}
	if _, _, err := eval.CosKNN(1, [][]float64{{1}}, []int{}, [][]float64{{1}}, []int{1}); err == nil {
		t.Fatalf("expected an error for mismatched lengths")
	}
}

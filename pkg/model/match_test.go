package model

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func runMatch(t *testing.T, support [][]float64, query []float64, labels []float64, ways int) (pred, attention, similarities []float64) {
	batch := 2
	width := len(query)
	g := gorgonia.NewGraph()

	match, err := NewMatchCosine(ways, len(support)/ways)
	if err != nil {
		t.Fatalf("error creating matching layer: %v", err)
	}

	repeat := func(v []float64) []float64 {
		out := make([]float64, 0, batch*len(v))
		for range batch {
			out = append(out, v...)
		}
		return out
	}

	inputs := []*gorgonia.Node{}
	for i, v := range append(support, query) {
		inputs = append(inputs, gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(batch, width),
			gorgonia.WithName(fmt.Sprintf("slot_%d", i)),
			gorgonia.WithValue(tensor.New(tensor.WithShape(batch, width), tensor.WithBacking(repeat(v))))))
	}
	inputs = append(inputs, gorgonia.NewTensor(g, tensor.Float64, 3,
		gorgonia.WithShape(batch, len(support), ways),
		gorgonia.WithName("labels"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(batch, len(support), ways), tensor.WithBacking(repeat(labels))))))

	out, err := match.Apply(inputs)
	if err != nil {
		t.Fatalf("error applying matching layer: %v", err)
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("error running matching layer: %v", err)
	}

	if pred, err = valueData(out.Value()); err != nil {
		t.Fatal(err)
	}
	if attention, err = valueData(match.Attention().Value()); err != nil {
		t.Fatal(err)
	}
	if similarities, err = valueData(match.Similarities().Value()); err != nil {
		t.Fatal(err)
	}
	return pred, attention, similarities
}

func TestMatchCosine(t *testing.T) {
	support := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}}
	query := []float64{1, 0, 0}
	labels := []float64{
		1, 0,
		0, 1,
		0, 1,
		1, 0,
	}

	pred, attention, similarities := runMatch(t, support, query, labels, 2)

	if len(pred) != 4 || len(attention) != 8 || len(similarities) != 8 {
		t.Fatalf("unexpected output sizes %d, %d, %d", len(pred), len(attention), len(similarities))
	}

	expected := []float64{1, 0, 0, 1 / math.Sqrt2}
	for i, s := range similarities[:4] {
		if math.Abs(s-expected[i]) > 1e-6 {
			t.Fatalf("similarity %d: expected %f, got %f", i, expected[i], s)
		}
	}

	for row := range 2 {
		sum := 0.0
		for _, a := range attention[row*4 : (row+1)*4] {
			if a < 0 {
				t.Fatalf("negative attention %f", a)
			}
			sum += a
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("attention row %d sums to %f", row, sum)
		}

		p := pred[row*2 : (row+1)*2]
		if math.Abs(p[0]+p[1]-1) > 1e-9 {
			t.Fatalf("prediction row %d sums to %f", row, p[0]+p[1])
		}
		if p[0] <= p[1] {
			t.Fatalf("expected the query to match class 0, got %v", p)
		}
		if math.Abs(p[0]-(attention[row*4]+attention[row*4+3])) > 1e-9 {
			t.Fatalf("prediction %f is not the attention mass of class 0", p[0])
		}
	}
}

func TestMatchCosineZeroQuery(t *testing.T) {
	support := [][]float64{{1, 2}, {3, 4}}
	labels := []float64{1, 0, 0, 1}

	pred, _, similarities := runMatch(t, support, []float64{0, 0}, labels, 2)
	for _, v := range append(pred, similarities...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("expected finite output for a zero query, got %v and %v", pred, similarities)
		}
	}
	for _, s := range similarities {
		if s != 0 {
			t.Fatalf("expected zero similarities for a zero query, got %v", similarities)
		}
	}
	if math.Abs(pred[0]-0.5) > 1e-9 {
		t.Fatalf("expected a uniform prediction for a zero query, got %v", pred)
	}

	pred, _, similarities = runMatch(t, [][]float64{{0, 0}, {2, 0}}, []float64{1, 0}, labels, 2)
	if math.Abs(similarities[0]) > 1e-9 || math.Abs(similarities[1]-1) > 1e-6 {
		t.Fatalf("expected similarities 0 and 1 with a zero support, got %v", similarities)
	}
	for _, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("expected finite output for a zero support, got %v", pred)
		}
	}
}

func TestMatchCosineArity(t *testing.T) {
	g := gorgonia.NewGraph()
	match, err := NewMatchCosine(2, 2)
	if err != nil {
		t.Fatalf("error creating matching layer: %v", err)
	}
	if match.Arity() != 6 {
		t.Fatalf("expected arity 6, got %d", match.Arity())
	}

	inputs := []*gorgonia.Node{}
	for range 5 {
		inputs = append(inputs, gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(2, 3), gorgonia.WithName(fmt.Sprintf("slot_%d", len(inputs)))))
	}
	if _, err := match.Apply(inputs); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for a wrong arity, got %v", err)
	}

	if _, err := NewMatchCosine(0, 1); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for zero ways, got %v", err)
	}
}

func TestCategoricalCrossEntropy(t *testing.T) {
	g := gorgonia.NewGraph()
	pred := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("pred"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{0.5, 0.5, 0.25, 0.75}))))
	target := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("target"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 0, 0, 1}))))

	loss, err := CategoricalCrossEntropy(pred, target)
	if err != nil {
		t.Fatalf("error building loss: %v", err)
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("error running loss: %v", err)
	}

	expected := -(math.Log(0.5+probEpsilon) + math.Log(0.75+probEpsilon)) / 2
	if got := loss.Value().Data().(float64); math.Abs(got-expected) > 1e-9 {
		t.Fatalf("expected loss %f, got %f", expected, got)
	}

	wrong := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(2, 3), gorgonia.WithName("wrong"))
	if _, err := CategoricalCrossEntropy(pred, wrong); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for mismatched shapes, got %v", err)
	}
}

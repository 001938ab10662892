package episode_test

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/grexie/matchnet/pkg/episode"
	"github.com/grexie/matchnet/pkg/features"
)

func makePool(classes, vectors, length int) features.Pool {
	pool := features.Pool{}
	for c := 0; c < classes; c++ {
		class := c + 1
		for v := 0; v < vectors; v++ {
			vector := make([]float64, length)
			for i := range vector {
				vector[i] = float64(class*1000 + v*10 + i)
			}
			pool[class] = append(pool[class], vector)
		}
	}
	return pool
}

func classOf(vector []float64) int {
	return int(vector[0]) / 1000
}

func TestPackEpisodes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	params := episode.Params{Ways: 5, Shots: 5, MaxClassDraws: 1000}
	pool := makePool(7, 6, 4)

	episodes, err := episode.Pack(rng, pool, params)
	if err != nil {
		t.Fatalf("error packing episodes: %v", err)
	}
	if len(episodes) != pool.Len() {
		t.Fatalf("expected %d episodes, got %d", pool.Len(), len(episodes))
	}

	for i, e := range episodes {
		if len(e.Support) != 26 || len(e.Labels) != 25 {
			t.Fatalf("episode %d: expected 26 slots and 25 labels, got %d and %d", i, len(e.Support), len(e.Labels))
		}
		if !slices.Contains(e.Classes, classOf(e.Support[25])) {
			t.Fatalf("episode %d: query class %d not among drawn classes %v", i, classOf(e.Support[25]), e.Classes)
		}
		if e.TargetClass() != classOf(e.Support[25]) {
			t.Fatalf("episode %d: target class %d, query class %d", i, e.TargetClass(), classOf(e.Support[25]))
		}

		counts := map[int]int{}
		for j, label := range e.Labels {
			if e.Classes[label] != classOf(e.Support[j]) {
				t.Fatalf("episode %d slot %d: label class %d, vector class %d", i, j, e.Classes[label], classOf(e.Support[j]))
			}
			counts[label]++
		}
		for label := range params.Ways {
			if counts[label] != params.Shots {
				t.Fatalf("episode %d: label %d has %d slots, expected %d", i, label, counts[label], params.Shots)
			}
		}
	}
}

func TestEpisodeTensors(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	params := episode.Params{Ways: 5, Shots: 5, MaxClassDraws: 1000}
	episodes, err := episode.Pack(rng, makePool(5, 5, 3), params)
	if err != nil {
		t.Fatalf("error packing episodes: %v", err)
	}

	e := episodes[0]
	if shape := e.SupportTensor().Shape(); !shape.Eq([]int{26, 3, 1}) {
		t.Fatalf("unexpected support shape %v", shape)
	}

	labels := e.LabelTensor()
	if shape := labels.Shape(); !shape.Eq([]int{25, 5}) {
		t.Fatalf("unexpected label shape %v", shape)
	}
	data := labels.Data().([]float64)
	for row := 0; row < 25; row++ {
		sum := 0.0
		for col := 0; col < 5; col++ {
			v := data[row*5+col]
			if v != 0 && v != 1 {
				t.Fatalf("row %d: non one-hot value %f", row, v)
			}
			sum += v
		}
		if sum != 1 {
			t.Fatalf("row %d: one-hot row sums to %f", row, sum)
		}
	}

	target := e.TargetTensor().Data().([]float64)
	if target[e.Target] != 1 {
		t.Fatalf("target tensor %v does not mark index %d", target, e.Target)
	}
}

func TestPackExactShots(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	params := episode.Params{Ways: 5, Shots: 5, MaxClassDraws: 1000}
	pool := makePool(5, 5, 2)

	episodes, err := episode.Pack(rng, pool, params)
	if err != nil {
		t.Fatalf("error packing episodes: %v", err)
	}

	for i, e := range episodes {
		seen := map[float64]bool{}
		for _, v := range e.Support[:25] {
			if seen[v[0]] {
				t.Fatalf("episode %d: vector %v repeated in support", i, v)
			}
			seen[v[0]] = true
		}
	}
}

func TestPackDeterministic(t *testing.T) {
	params := episode.Params{Ways: 3, Shots: 2, MaxClassDraws: 1000}
	pool := makePool(6, 4, 2)

	a, err := episode.Pack(rand.New(rand.NewPCG(7, 7)), pool, params)
	if err != nil {
		t.Fatalf("error packing episodes: %v", err)
	}
	b, err := episode.Pack(rand.New(rand.NewPCG(7, 7)), pool, params)
	if err != nil {
		t.Fatalf("error packing episodes: %v", err)
	}

	for i := range a {
		if !slices.Equal(a[i].Classes, b[i].Classes) || !slices.Equal(a[i].Labels, b[i].Labels) {
			t.Fatalf("episode %d differs between runs with the same seed", i)
		}
		for j := range a[i].Support {
			if !slices.Equal(a[i].Support[j], b[i].Support[j]) {
				t.Fatalf("episode %d slot %d differs between runs with the same seed", i, j)
			}
		}
	}
}

func TestPackErrors(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))

	if _, err := episode.Pack(rng, makePool(3, 5, 2), episode.Params{Ways: 5, Shots: 5, MaxClassDraws: 10}); !errors.Is(err, episode.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for too few classes, got %v", err)
	}

	if _, err := episode.Pack(rng, makePool(5, 5, 2), episode.Params{Ways: 0, Shots: 5, MaxClassDraws: 10}); !errors.Is(err, episode.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for zero ways, got %v", err)
	}

	pool := makePool(5, 5, 2)
	pool[3] = pool[3][:2]
	if _, err := episode.Pack(rng, pool, episode.Params{Ways: 5, Shots: 5, MaxClassDraws: 10}); !errors.Is(err, episode.ErrSampling) {
		t.Fatalf("expected ErrSampling for a short class, got %v", err)
	}
}

func TestPackBoundedDraws(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	params := episode.Params{Ways: 1, Shots: 1, MaxClassDraws: 1}
	pool := makePool(1000, 1, 1)

	_, err := episode.Pack(rng, pool, params)
	if !errors.Is(err, episode.ErrSampling) {
		t.Fatalf("expected ErrSampling once the draw bound is exhausted, got %v", err)
	}
}

func TestCreateTrainInstances(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 6))
	params := episode.Params{Ways: 2, Shots: 2, MaxClassDraws: 1000}
	data := features.Dataset{
		101: makePool(3, 3, 4),
		102: makePool(2, 4, 4),
	}

	set, err := episode.CreateTrainInstances(rng, data, params)
	if err != nil {
		t.Fatalf("error creating train instances: %v", err)
	}
	if set.Len() != 9+8 {
		t.Fatalf("expected 17 episodes, got %d", set.Len())
	}

	support, labels, targets := set.Shapes()
	if !support.Eq([]int{17, 5, 4, 1}) {
		t.Fatalf("unexpected support shape %v", support)
	}
	if !labels.Eq([]int{17, 4, 2}) {
		t.Fatalf("unexpected labels shape %v", labels)
	}
	if !targets.Eq([]int{17, 2}) {
		t.Fatalf("unexpected targets shape %v", targets)
	}

	indices := []int{0, 16}
	if got := len(set.Slot(indices, 4)); got != 2*4 {
		t.Fatalf("expected query slot of 8 values, got %d", got)
	}
	if got := len(set.Labels(indices)); got != 2*4*2 {
		t.Fatalf("expected 16 label values, got %d", got)
	}
	if got := len(set.Targets(indices)); got != 2*2 {
		t.Fatalf("expected 4 target values, got %d", got)
	}
}

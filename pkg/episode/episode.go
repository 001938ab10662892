package episode

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"

	"github.com/grexie/matchnet/pkg/features"
	"gorgonia.org/tensor"
)

var (
	ErrConfiguration = errors.New("invalid episode configuration")
	ErrSampling      = errors.New("episode sampling failed")
)

type Params struct {
	Ways          int
	Shots         int
	MaxClassDraws int
}

// SupportSize is the number of labelled support slots per episode.
func (p Params) SupportSize() int {
	return p.Ways * p.Shots
}

func (p Params) validate() error {
	if p.Ways < 1 || p.Shots < 1 {
		return fmt.Errorf("%w: ways and shots must be positive, got %d-way %d-shot", ErrConfiguration, p.Ways, p.Shots)
	}
	if p.MaxClassDraws < 1 {
		return fmt.Errorf("%w: max class draws must be positive, got %d", ErrConfiguration, p.MaxClassDraws)
	}
	return nil
}

// Episode is one few-shot instance. Support holds Ways*Shots labelled vectors
// in shuffled slot order followed by the query in the last slot.
type Episode struct {
	Support [][]float64
	Labels  []int
	Target  int
	Classes []int
}

func (e Episode) Ways() int {
	return len(e.Classes)
}

// TargetClass is the query's activity label.
func (e Episode) TargetClass() int {
	return e.Classes[e.Target]
}

// SupportTensor has shape (Ways*Shots+1, featureLength, 1).
func (e Episode) SupportTensor() *tensor.Dense {
	length := len(e.Support[0])
	backing := make([]float64, 0, len(e.Support)*length)
	for _, v := range e.Support {
		backing = append(backing, v...)
	}
	return tensor.New(tensor.WithShape(len(e.Support), length, 1), tensor.WithBacking(backing))
}

// LabelTensor has shape (Ways*Shots, Ways) with one one-hot row per support slot.
func (e Episode) LabelTensor() *tensor.Dense {
	ways := e.Ways()
	backing := make([]float64, len(e.Labels)*ways)
	for i, label := range e.Labels {
		backing[i*ways+label] = 1
	}
	return tensor.New(tensor.WithShape(len(e.Labels), ways), tensor.WithBacking(backing))
}

// TargetTensor is the one-hot query label of shape (Ways).
func (e Episode) TargetTensor() *tensor.Dense {
	backing := make([]float64, e.Ways())
	backing[e.Target] = 1
	return tensor.New(tensor.WithShape(e.Ways()), tensor.WithBacking(backing))
}

// drawClasses draws params.Ways distinct classes until the draw contains
// class, giving up after params.MaxClassDraws attempts.
func drawClasses(rng *rand.Rand, classes []int, class int, params Params) ([]int, error) {
	for range params.MaxClassDraws {
		drawn := make([]int, params.Ways)
		for i, idx := range rng.Perm(len(classes))[:params.Ways] {
			drawn[i] = classes[idx]
		}
		if slices.Contains(drawn, class) {
			return drawn, nil
		}
	}
	return nil, fmt.Errorf("%w: class %d not drawn in %d attempts", ErrSampling, class, params.MaxClassDraws)
}

// Pack builds one episode per feature vector of the pool, using each vector
// once as the query. Classes are visited in ascending order.
func Pack(rng *rand.Rand, pool features.Pool, params Params) ([]Episode, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	classes := pool.Classes()
	if len(classes) < params.Ways {
		return nil, fmt.Errorf("%w: pool has %d classes, %d-way episodes need at least %d", ErrConfiguration, len(classes), params.Ways, params.Ways)
	}

	n := params.SupportSize()
	episodes := make([]Episode, 0, pool.Len())

	for _, class := range classes {
		for _, item := range pool[class] {
			slots := rng.Perm(n)

			drawn, err := drawClasses(rng, classes, class, params)
			if err != nil {
				return nil, err
			}

			e := Episode{
				Support: make([][]float64, n+1),
				Labels:  make([]int, n),
				Classes: drawn,
			}

			ind := 0
			for j, c := range drawn {
				vectors := pool[c]
				if len(vectors) < params.Shots {
					return nil, fmt.Errorf("%w: class %d has %d vectors, need %d", ErrSampling, c, len(vectors), params.Shots)
				}
				for _, idx := range rng.Perm(len(vectors))[:params.Shots] {
					e.Support[slots[ind]] = vectors[idx]
					e.Labels[slots[ind]] = j
					ind++
				}
				if c == class {
					e.Support[n] = item
					e.Target = j
				}
			}

			episodes = append(episodes, e)
		}
	}

	return episodes, nil
}

// CreateTrainInstances packs every subject of data, in ascending subject
// order, into a single set.
func CreateTrainInstances(rng *rand.Rand, data features.Dataset, params Params) (*Set, error) {
	set := &Set{Ways: params.Ways, Shots: params.Shots}
	for _, subject := range data.Subjects() {
		episodes, err := Pack(rng, data[subject], params)
		if err != nil {
			return nil, fmt.Errorf("subject %d: %w", subject, err)
		}
		set.Episodes = append(set.Episodes, episodes...)
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: no training episodes", ErrConfiguration)
	}

	support, labels, targets := set.Shapes()
	log.Printf("data shapes: support %v, labels %v, targets %v", support, labels, targets)

	return set, nil
}

package model

import (
	"fmt"
	"math/rand/v2"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MatchingNetwork is the full episodic training graph: one shared Embedding
// applied to every support slot and to the query, feeding a MatchCosine
// readout scored with categorical cross-entropy.
type MatchingNetwork struct {
	g      *gorgonia.ExprGraph
	params ModelParams

	Embedding *Embedding
	Match     *MatchCosine

	// Slots holds one (batch, featureLength) input per support slot, then the query.
	Slots   []*gorgonia.Node
	Labels  *gorgonia.Node
	Targets *gorgonia.Node

	Pred *gorgonia.Node
	Loss *gorgonia.Node
}

func NewMatchingNetwork(params ModelParams, rng *rand.Rand) (*MatchingNetwork, error) {
	g := gorgonia.NewGraph()

	embedding, err := NewEmbedding(g, params, rng)
	if err != nil {
		return nil, err
	}
	match, err := NewMatchCosine(params.ClassesPerSet, params.SamplesPerClass)
	if err != nil {
		return nil, err
	}

	n := params.SupportSize()
	m := &MatchingNetwork{
		g:         g,
		params:    params,
		Embedding: embedding,
		Match:     match,
		Slots:     make([]*gorgonia.Node, n+1),
	}

	inputs := make([]*gorgonia.Node, 0, n+2)
	for slot := range n + 1 {
		name := fmt.Sprintf("support_%d", slot)
		if slot == n {
			name = "query"
		}
		m.Slots[slot] = gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(params.BatchSize, params.FeatureLength()),
			gorgonia.WithName(name))

		embedded, err := embedding.Apply(m.Slots[slot])
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", name, err)
		}
		inputs = append(inputs, embedded)
	}

	m.Labels = gorgonia.NewTensor(g, tensor.Float64, 3,
		gorgonia.WithShape(params.BatchSize, n, params.ClassesPerSet),
		gorgonia.WithName("support_labels"))
	inputs = append(inputs, m.Labels)

	m.Targets = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(params.BatchSize, params.ClassesPerSet),
		gorgonia.WithName("targets"))

	if m.Pred, err = match.Apply(inputs); err != nil {
		return nil, err
	}
	if m.Loss, err = CategoricalCrossEntropy(m.Pred, m.Targets); err != nil {
		return nil, fmt.Errorf("loss: %v", err)
	}

	return m, nil
}

func (m *MatchingNetwork) Graph() *gorgonia.ExprGraph {
	return m.g
}

func (m *MatchingNetwork) Learnables() gorgonia.Nodes {
	return m.Embedding.Learnables()
}

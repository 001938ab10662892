package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MatchCosine is the matching network readout: a softmax over the cosine
// similarities between the query and every support embedding, used to weight
// the one-hot support labels. It has no learnable parameters.
type MatchCosine struct {
	Ways    int
	Shots   int
	Epsilon float64

	similarities *gorgonia.Node
	attention    *gorgonia.Node
}

func NewMatchCosine(ways, shots int) (*MatchCosine, error) {
	if ways < 1 || shots < 1 {
		return nil, fmt.Errorf("%w: matching layer needs positive ways and shots, got %d and %d", ErrConfiguration, ways, shots)
	}
	return &MatchCosine{
		Ways:    ways,
		Shots:   shots,
		Epsilon: 1e-10,
	}, nil
}

// Arity is the number of inputs Apply expects: every support embedding, the
// query embedding and the support labels.
func (m *MatchCosine) Arity() int {
	return m.Ways*m.Shots + 2
}

// Apply takes support embeddings (batch, E)..., the query embedding (batch, E)
// and the support labels (batch, Ways*Shots, Ways), and returns the predicted
// class distribution (batch, Ways).
func (m *MatchCosine) Apply(inputs []*gorgonia.Node) (*gorgonia.Node, error) {
	if len(inputs) != m.Arity() {
		return nil, fmt.Errorf("%w: a %d-way %d-shot matching layer should be called on %d inputs, got %d", ErrConfiguration, m.Ways, m.Shots, m.Arity(), len(inputs))
	}

	n := len(inputs) - 2
	query := inputs[n]
	labels := inputs[n+1]
	batch := query.Shape()[0]

	if s := labels.Shape(); len(s) != 3 || s[1] != n || s[2] != m.Ways {
		return nil, fmt.Errorf("%w: support labels should have shape (%d, %d, %d), got %v", ErrConfiguration, batch, n, m.Ways, s)
	}

	queryMagnitude, err := m.inverseMagnitude(query)
	if err != nil {
		return nil, fmt.Errorf("query magnitude: %v", err)
	}

	similarities := make([]*gorgonia.Node, n)
	for i := range n {
		support := inputs[i]

		supportMagnitude, err := m.inverseMagnitude(support)
		if err != nil {
			return nil, fmt.Errorf("support %d magnitude: %v", i, err)
		}

		product, err := gorgonia.HadamardProd(query, support)
		if err != nil {
			return nil, fmt.Errorf("support %d: %v", i, err)
		}
		dot, err := gorgonia.Sum(product, 1)
		if err != nil {
			return nil, fmt.Errorf("support %d dot product: %v", i, err)
		}

		cosine, err := gorgonia.HadamardProd(dot, supportMagnitude)
		if err != nil {
			return nil, err
		}
		if cosine, err = gorgonia.HadamardProd(cosine, queryMagnitude); err != nil {
			return nil, err
		}

		if similarities[i], err = gorgonia.Reshape(cosine, tensor.Shape{batch, 1}); err != nil {
			return nil, err
		}
	}

	if m.similarities, err = gorgonia.Concat(1, similarities...); err != nil {
		return nil, fmt.Errorf("failed to concat similarities: %v", err)
	}
	if m.attention, err = gorgonia.SoftMax(m.similarities); err != nil {
		return nil, fmt.Errorf("failed to compute attention: %v", err)
	}

	weights, err := gorgonia.Reshape(m.attention, tensor.Shape{batch, n, 1})
	if err != nil {
		return nil, err
	}
	weighted, err := gorgonia.BroadcastHadamardProd(labels, weights, nil, []byte{2})
	if err != nil {
		return nil, fmt.Errorf("failed to weight support labels: %v", err)
	}

	return gorgonia.Sum(weighted, 1)
}

// Similarities is the (batch, Ways*Shots) cosine similarity node of the last Apply.
func (m *MatchCosine) Similarities() *gorgonia.Node {
	return m.similarities
}

// Attention is the (batch, Ways*Shots) softmax of Similarities.
func (m *MatchCosine) Attention() *gorgonia.Node {
	return m.attention
}

// inverseMagnitude returns rsqrt(max(Σx², eps)) per row of x. The clip is
// written as eps + relu(Σx² - eps) so it stays differentiable.
func (m *MatchCosine) inverseMagnitude(x *gorgonia.Node) (*gorgonia.Node, error) {
	squared, err := gorgonia.Square(x)
	if err != nil {
		return nil, err
	}
	sum, err := gorgonia.Sum(squared, 1)
	if err != nil {
		return nil, err
	}
	eps := gorgonia.NewConstant(m.Epsilon)
	excess, err := gorgonia.Sub(sum, eps)
	if err != nil {
		return nil, err
	}
	excess, err = gorgonia.Rectify(excess)
	if err != nil {
		return nil, err
	}
	clipped, err := gorgonia.Add(excess, eps)
	if err != nil {
		return nil, err
	}
	return gorgonia.InverseSqrt(clipped)
}

package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Embed runs the trained embedding network alone over vectors and returns
// one embedding per vector. Vectors are processed in batches of
// params.BatchSize with the last batch zero-padded.
func Embed(params ModelParams, weights Weights, vectors [][]float64) ([][]float64, error) {
	if len(vectors) == 0 {
		return [][]float64{}, nil
	}

	featureLength := params.FeatureLength()
	for i, v := range vectors {
		if len(v) != featureLength {
			return nil, fmt.Errorf("%w: vector %d has length %d, expected %d", ErrConfiguration, i, len(v), featureLength)
		}
	}

	batchSize := min(params.BatchSize, len(vectors))

	g := gorgonia.NewGraph()
	x := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(batchSize, featureLength),
		gorgonia.WithName("x"))

	embedding, err := newFrozenEmbedding(g, params, weights)
	if err != nil {
		return nil, err
	}
	out, err := embedding.Apply(x)
	if err != nil {
		return nil, err
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	embeddings := make([][]float64, 0, len(vectors))
	for start := 0; start < len(vectors); start += batchSize {
		batch := tensor.New(
			tensor.WithShape(batchSize, featureLength),
			tensor.WithBacking(flattenBatchFeatures(vectors, start, batchSize, featureLength)))
		if err := gorgonia.Let(x, batch); err != nil {
			return nil, fmt.Errorf("failed to update x tensor: %v", err)
		}

		vm.Reset()
		if err := vm.RunAll(); err != nil {
			return nil, fmt.Errorf("forward pass failed: %v", err)
		}

		data, err := valueData(out.Value())
		if err != nil {
			return nil, err
		}
		rows := min(batchSize, len(vectors)-start)
		embeddings = append(embeddings, unflattenRows(data, rows, params.EmbeddingSize)...)
	}

	return embeddings, nil
}

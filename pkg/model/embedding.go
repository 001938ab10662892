package model

import (
	"fmt"
	"math/rand/v2"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Learnable order of Weights.Learnables.
const (
	weightConv = iota
	weightConvBias
	weightNorm0Gamma
	weightNorm0Beta
	weightDense
	weightDenseBias
	weightNorm1Gamma
	weightNorm1Beta
	weightCount
)

// Weights is a snapshot of a trained embedding network.
type Weights struct {
	Learnables []tensor.Tensor
	Norms      []NormStats
}

// Embedding is the shared feature-vector encoder:
//
//	conv1d+relu -> maxpool -> norm -> flatten -> dense+relu -> norm
//
// The first norm has one statistic per conv filter, the second one per
// embedding unit.
//
// A training Embedding owns learnable nodes; every Apply call reuses them, so
// all slots of an episode are encoded with the same weights.
type Embedding struct {
	g      *gorgonia.ExprGraph
	params ModelParams

	convW, convB   *gorgonia.Node
	denseW, denseB *gorgonia.Node
	gamma, beta    [2]*gorgonia.Node

	frozen *Weights
	norms  []NormStats
	calls  []*normCall
}

func embeddingDims(params ModelParams) (convWidth, pooledWidth, flat int, err error) {
	convWidth = params.FeatureLength() - params.KernelSize + 1
	if convWidth < params.PoolSize {
		return 0, 0, 0, fmt.Errorf("%w: feature length %d too short for kernel %d and pool %d", ErrConfiguration, params.FeatureLength(), params.KernelSize, params.PoolSize)
	}
	pooledWidth = (convWidth-params.PoolSize)/params.PoolSize + 1
	return convWidth, pooledWidth, params.ConvFilters * pooledWidth, nil
}

func NewEmbedding(g *gorgonia.ExprGraph, params ModelParams, rng *rand.Rand) (*Embedding, error) {
	_, _, flat, err := embeddingDims(params)
	if err != nil {
		return nil, err
	}

	e := &Embedding{
		g:      g,
		params: params,
		norms:  []NormStats{newNormStats(params.ConvFilters), newNormStats(params.EmbeddingSize)},
	}

	e.convW = gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(params.ConvFilters, 1, 1, params.KernelSize),
		gorgonia.WithInit(glorotUniform(rng, params.KernelSize, params.ConvFilters*params.KernelSize)),
		gorgonia.WithName("conv_w"))
	e.convB = gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(1, params.ConvFilters, 1, 1),
		gorgonia.WithInit(gorgonia.Zeroes()),
		gorgonia.WithName("conv_b"))

	e.denseW = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(flat, params.EmbeddingSize),
		gorgonia.WithInit(glorotUniform(rng, flat, params.EmbeddingSize)),
		gorgonia.WithName("dense_w"))
	e.denseB = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(1, params.EmbeddingSize),
		gorgonia.WithInit(gorgonia.Zeroes()),
		gorgonia.WithName("dense_b"))

	for layer, shape := range []tensor.Shape{{1, params.ConvFilters, 1, 1}, {1, params.EmbeddingSize}} {
		e.gamma[layer] = gorgonia.NewTensor(g, tensor.Float64, shape.Dims(),
			gorgonia.WithShape(shape...),
			gorgonia.WithInit(gorgonia.Ones()),
			gorgonia.WithName(fmt.Sprintf("norm%d_gamma", layer)))
		e.beta[layer] = gorgonia.NewTensor(g, tensor.Float64, shape.Dims(),
			gorgonia.WithShape(shape...),
			gorgonia.WithInit(gorgonia.Zeroes()),
			gorgonia.WithName(fmt.Sprintf("norm%d_beta", layer)))
	}

	return e, nil
}

// newFrozenEmbedding rebuilds a trained embedding in g for inference.
func newFrozenEmbedding(g *gorgonia.ExprGraph, params ModelParams, weights Weights) (*Embedding, error) {
	if len(weights.Learnables) != weightCount || len(weights.Norms) != 2 {
		return nil, fmt.Errorf("%w: expected %d weight tensors and 2 norm layers, got %d and %d", ErrConfiguration, weightCount, len(weights.Learnables), len(weights.Norms))
	}
	if _, _, _, err := embeddingDims(params); err != nil {
		return nil, err
	}

	constant := func(t tensor.Tensor, name string) *gorgonia.Node {
		return gorgonia.NewTensor(g, tensor.Float64, t.Dims(),
			gorgonia.WithShape(t.Shape()...),
			gorgonia.WithValue(t),
			gorgonia.WithName(name))
	}

	return &Embedding{
		g:      g,
		params: params,
		convW:  constant(weights.Learnables[weightConv], "conv_w"),
		convB:  constant(weights.Learnables[weightConvBias], "conv_b"),
		denseW: constant(weights.Learnables[weightDense], "dense_w"),
		denseB: constant(weights.Learnables[weightDenseBias], "dense_b"),
		frozen: &weights,
	}, nil
}

// Learnables returns the trainable nodes in Weights.Learnables order.
func (e *Embedding) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes{
		e.convW, e.convB,
		e.gamma[0], e.beta[0],
		e.denseW, e.denseB,
		e.gamma[1], e.beta[1],
	}
}

// Apply encodes a (batch, featureLength) matrix into (batch, EmbeddingSize).
func (e *Embedding) Apply(x *gorgonia.Node) (*gorgonia.Node, error) {
	batch := x.Shape()[0]
	_, _, flat, err := embeddingDims(e.params)
	if err != nil {
		return nil, err
	}

	image, err := gorgonia.Reshape(x, tensor.Shape{batch, 1, 1, e.params.FeatureLength()})
	if err != nil {
		return nil, fmt.Errorf("failed to reshape input: %v", err)
	}

	conv, err := gorgonia.Conv2d(image, e.convW, tensor.Shape{1, e.params.KernelSize}, []int{0, 0}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, fmt.Errorf("conv error: %v", err)
	}
	conv, err = gorgonia.BroadcastAdd(conv, e.convB, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, fmt.Errorf("conv bias error: %v", err)
	}
	convAct, err := gorgonia.Rectify(conv)
	if err != nil {
		return nil, err
	}

	pooled, err := gorgonia.MaxPool2D(convAct, tensor.Shape{1, e.params.PoolSize}, []int{0, 0}, []int{1, e.params.PoolSize})
	if err != nil {
		return nil, fmt.Errorf("pool error: %v", err)
	}
	l0, err := e.normalize(0, pooled)
	if err != nil {
		return nil, err
	}
	flattened, err := gorgonia.Reshape(l0, tensor.Shape{batch, flat})
	if err != nil {
		return nil, fmt.Errorf("flatten error: %v", err)
	}

	dense, err := gorgonia.Mul(flattened, e.denseW)
	if err != nil {
		return nil, fmt.Errorf("dense error: %v", err)
	}
	dense, err = gorgonia.BroadcastAdd(dense, e.denseB, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("dense bias error: %v", err)
	}
	denseAct, err := gorgonia.Rectify(dense)
	if err != nil {
		return nil, err
	}

	return e.normalize(1, denseAct)
}

func (e *Embedding) normalize(layer int, x *gorgonia.Node) (*gorgonia.Node, error) {
	if e.frozen != nil {
		gamma := [2]int{weightNorm0Gamma, weightNorm1Gamma}[layer]
		beta := [2]int{weightNorm0Beta, weightNorm1Beta}[layer]
		return frozenNorm(e.g, x, e.frozen.Learnables[gamma], e.frozen.Learnables[beta], e.frozen.Norms[layer], fmt.Sprintf("norm%d", layer))
	}

	out, mean, variance, err := batchNorm(x, e.gamma[layer], e.beta[layer])
	if err != nil {
		return nil, fmt.Errorf("norm%d: %w", layer, err)
	}

	call := &normCall{layer: layer}
	gorgonia.Read(mean, &call.mean)
	gorgonia.Read(variance, &call.variance)
	e.calls = append(e.calls, call)

	return out, nil
}

// updateNorms folds the batch statistics of the last step into the running
// statistics, one application at a time in graph order.
func (e *Embedding) updateNorms() error {
	for _, call := range e.calls {
		mean, err := valueData(call.mean)
		if err != nil {
			return fmt.Errorf("norm%d mean: %v", call.layer, err)
		}
		variance, err := valueData(call.variance)
		if err != nil {
			return fmt.Errorf("norm%d variance: %v", call.layer, err)
		}
		e.norms[call.layer].update(mean, variance)
	}
	return nil
}

// Weights snapshots the current learnables and running statistics.
func (e *Embedding) Weights() (Weights, error) {
	if e.frozen != nil {
		return *e.frozen, nil
	}

	w := Weights{}
	for _, n := range e.Learnables() {
		t, err := getWeightsTensor(n)
		if err != nil {
			return Weights{}, err
		}
		w.Learnables = append(w.Learnables, t.Clone().(tensor.Tensor))
	}
	for _, s := range e.norms {
		w.Norms = append(w.Norms, s.clone())
	}
	return w, nil
}

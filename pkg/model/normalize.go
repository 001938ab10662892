package model

import (
	"fmt"
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	normMomentum = 0.99
	normEpsilon  = 1e-3
)

// NormStats are the running statistics of one normalisation layer.
type NormStats struct {
	Mean     []float64
	Variance []float64
}

func newNormStats(features int) NormStats {
	s := NormStats{
		Mean:     make([]float64, features),
		Variance: make([]float64, features),
	}
	for i := range s.Variance {
		s.Variance[i] = 1
	}
	return s
}

func (s NormStats) clone() NormStats {
	return NormStats{
		Mean:     append([]float64(nil), s.Mean...),
		Variance: append([]float64(nil), s.Variance...),
	}
}

func (s *NormStats) update(mean, variance []float64) {
	for i := range s.Mean {
		s.Mean[i] = normMomentum*s.Mean[i] + (1-normMomentum)*mean[i]
		s.Variance[i] = normMomentum*s.Variance[i] + (1-normMomentum)*variance[i]
	}
}

// normCall captures the batch statistics of one application of a
// normalisation layer during a training step.
type normCall struct {
	layer    int
	mean     gorgonia.Value
	variance gorgonia.Value
}

// normShape returns the axes a normalisation layer reduces over and the shape
// of its per-feature statistics. Axis 1 is the feature axis: the columns of a
// (batch, features) matrix or the channels of a (batch, channels, 1, width)
// feature map.
func normShape(x *gorgonia.Node) ([]int, []byte, tensor.Shape) {
	shape := x.Shape()
	axes := []int{}
	pattern := []byte{}
	stat := make(tensor.Shape, len(shape))
	for axis := range shape {
		if axis == 1 {
			stat[axis] = shape[axis]
			continue
		}
		stat[axis] = 1
		axes = append(axes, axis)
		pattern = append(pattern, byte(axis))
	}
	return axes, pattern, stat
}

// batchNorm normalises x per feature with its batch statistics and then
// applies the learned gamma and beta, both shaped like the statistics.
func batchNorm(x, gamma, beta *gorgonia.Node) (out, mean, variance *gorgonia.Node, err error) {
	axes, pattern, stat := normShape(x)

	if mean, err = gorgonia.Mean(x, axes...); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to compute batch mean: %v", err)
	}
	meanStat, err := gorgonia.Reshape(mean, stat)
	if err != nil {
		return nil, nil, nil, err
	}
	centered, err := gorgonia.BroadcastSub(x, meanStat, nil, pattern)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to center batch: %v", err)
	}

	squared, err := gorgonia.Square(centered)
	if err != nil {
		return nil, nil, nil, err
	}
	if variance, err = gorgonia.Mean(squared, axes...); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to compute batch variance: %v", err)
	}
	shifted, err := gorgonia.Add(variance, gorgonia.NewConstant(normEpsilon))
	if err != nil {
		return nil, nil, nil, err
	}
	std, err := gorgonia.Sqrt(shifted)
	if err != nil {
		return nil, nil, nil, err
	}
	stdStat, err := gorgonia.Reshape(std, stat)
	if err != nil {
		return nil, nil, nil, err
	}
	normed, err := gorgonia.BroadcastHadamardDiv(centered, stdStat, nil, pattern)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to scale batch: %v", err)
	}

	if out, err = affine(normed, gamma, beta, pattern); err != nil {
		return nil, nil, nil, err
	}
	return out, mean, variance, nil
}

// frozenNorm applies a normalisation layer with fixed running statistics.
// The statistics, gamma and beta fold into one scale and one shift per feature.
func frozenNorm(g *gorgonia.ExprGraph, x *gorgonia.Node, gamma, beta tensor.Tensor, stats NormStats, name string) (*gorgonia.Node, error) {
	_, pattern, stat := normShape(x)
	features := stat.TotalSize()

	gammaData, ok := gamma.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: gamma is not float64", name)
	}
	betaData, ok := beta.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: beta is not float64", name)
	}
	if len(gammaData) != features || len(betaData) != features || len(stats.Mean) != features {
		return nil, fmt.Errorf("%w: %s expects %d features", ErrConfiguration, name, features)
	}

	scale := make([]float64, features)
	shift := make([]float64, features)
	for i := range features {
		scale[i] = gammaData[i] / math.Sqrt(stats.Variance[i]+normEpsilon)
		shift[i] = betaData[i] - stats.Mean[i]*scale[i]
	}

	scaleNode := gorgonia.NewTensor(g, tensor.Float64, stat.Dims(),
		gorgonia.WithShape(stat...),
		gorgonia.WithName(name+"_scale"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(stat...), tensor.WithBacking(scale))))
	shiftNode := gorgonia.NewTensor(g, tensor.Float64, stat.Dims(),
		gorgonia.WithShape(stat...),
		gorgonia.WithName(name+"_shift"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(stat...), tensor.WithBacking(shift))))

	return affine(x, scaleNode, shiftNode, pattern)
}

func affine(x, scale, shift *gorgonia.Node, pattern []byte) (*gorgonia.Node, error) {
	scaled, err := gorgonia.BroadcastHadamardProd(x, scale, nil, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to apply scale: %v", err)
	}
	return gorgonia.BroadcastAdd(scaled, shift, nil, pattern)
}

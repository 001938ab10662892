package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func argmax(slice []float64) int {
	maxIndex := 0
	maxValue := slice[0]
	for i, value := range slice {
		if value > maxValue {
			maxValue = value
			maxIndex = i
		}
	}
	return maxIndex
}

func getWeightsTensor(n *gorgonia.Node) (tensor.Tensor, error) {
	v := n.Value()
	if v == nil {
		return nil, fmt.Errorf("node %s has nil value", n.Name())
	}
	t, ok := v.(tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("value of %s is not a tensor", n.Name())
	}
	return t, nil
}

func valueData(v gorgonia.Value) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("value was not computed")
	}
	data, ok := v.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("expected []float64 data, got %T", v.Data())
	}
	return append([]float64(nil), data...), nil
}

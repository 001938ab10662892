package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

const probEpsilon = 1e-7

// CategoricalCrossEntropy scores a (batch, ways) prediction against one-hot
// targets: the mean over episodes of -Σ target·log(pred + eps).
func CategoricalCrossEntropy(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	if !pred.Shape().Eq(target.Shape()) {
		return nil, fmt.Errorf("%w: prediction shape %v does not match target shape %v", ErrConfiguration, pred.Shape(), target.Shape())
	}

	logPred, err := gorgonia.Add(pred, gorgonia.NewConstant(probEpsilon))
	if err == nil {
		logPred, err = gorgonia.Log(logPred)
	}
	if err != nil {
		return nil, fmt.Errorf("log prediction: %v", err)
	}

	perEpisode, err := gorgonia.HadamardProd(target, logPred)
	if err == nil {
		perEpisode, err = gorgonia.Sum(perEpisode, 1)
	}
	if err != nil {
		return nil, fmt.Errorf("episode log-likelihood: %v", err)
	}

	loss, err := gorgonia.Mean(perEpisode)
	if err != nil {
		return nil, fmt.Errorf("mean loss: %v", err)
	}
	return gorgonia.Neg(loss)
}

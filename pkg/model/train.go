package model

import (
	"fmt"
	"math/rand/v2"
	"runtime"

	"github.com/grexie/matchnet/pkg/episode"
	"github.com/jedib0t/go-pretty/v6/progress"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Train fits the network on the episode set for params.Epochs passes. Each
// pass visits the episodes in a fresh random order in mini-batches of
// params.BatchSize. The graph has a fixed batch dimension, so the trailing
// set.Len() % BatchSize episodes of each shuffled pass (up to BatchSize-1)
// are not trained on in that epoch.
func Train(pw progress.Writer, m *MatchingNetwork, set *episode.Set, rng *rand.Rand) (Weights, error) {
	params := m.params
	batchSize := params.BatchSize
	n := params.SupportSize()
	ways := params.ClassesPerSet
	featureLength := params.FeatureLength()

	if set.Ways != ways || set.Shots != params.SamplesPerClass {
		return Weights{}, fmt.Errorf("%w: network is %d-way %d-shot, episodes are %d-way %d-shot", ErrConfiguration, ways, params.SamplesPerClass, set.Ways, set.Shots)
	}
	if set.FeatureLength() != featureLength {
		return Weights{}, fmt.Errorf("%w: network expects feature length %d, episodes have %d", ErrConfiguration, featureLength, set.FeatureLength())
	}

	batches := set.Len() / batchSize
	if batches == 0 {
		return Weights{}, fmt.Errorf("%w: %d episodes is less than one batch of %d", ErrConfiguration, set.Len(), batchSize)
	}

	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: "Training",
			Total:   int64(params.Epochs * batches),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	learnables := m.Learnables()
	if _, err := gorgonia.Grad(m.Loss, learnables...); err != nil {
		return Weights{}, fmt.Errorf("failed to compute gradients: %v", err)
	}

	vm := gorgonia.NewTapeMachine(m.g,
		gorgonia.BindDualValues(learnables...),
		gorgonia.WithLogger(nil),
		gorgonia.WithValueFmt("%3.3f"),
	)
	defer vm.Close()

	solver := gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(params.LearnRate),
		gorgonia.WithBeta1(0.9),
		gorgonia.WithBeta2(0.999),
		gorgonia.WithEps(1e-8),
	)

	for epoch := range params.Epochs {
		indices := rng.Perm(set.Len())
		trainLoss := 0.0
		correct := 0

		for batch := range batches {
			batchIndices := indices[batch*batchSize : (batch+1)*batchSize]

			for slot, node := range m.Slots {
				slotBatch := tensor.New(
					tensor.WithShape(batchSize, featureLength),
					tensor.WithBacking(set.Slot(batchIndices, slot)))
				if err := gorgonia.Let(node, slotBatch); err != nil {
					return Weights{}, fmt.Errorf("failed to update %s: %v", node.Name(), err)
				}
			}
			labels := tensor.New(
				tensor.WithShape(batchSize, n, ways),
				tensor.WithBacking(set.Labels(batchIndices)))
			if err := gorgonia.Let(m.Labels, labels); err != nil {
				return Weights{}, fmt.Errorf("failed to update support labels: %v", err)
			}
			targets := set.Targets(batchIndices)
			if err := gorgonia.Let(m.Targets, tensor.New(tensor.WithShape(batchSize, ways), tensor.WithBacking(targets))); err != nil {
				return Weights{}, fmt.Errorf("failed to update targets: %v", err)
			}

			vm.Reset()
			if err := vm.RunAll(); err != nil {
				return Weights{}, fmt.Errorf("forward/backward pass failed: %v", err)
			}

			if err := solver.Step(gorgonia.NodesToValueGrads(learnables)); err != nil {
				return Weights{}, fmt.Errorf("solver step failed: %v", err)
			}
			if err := m.Embedding.updateNorms(); err != nil {
				return Weights{}, err
			}

			trainLoss += m.Loss.Value().Data().(float64)
			pred, err := valueData(m.Pred.Value())
			if err != nil {
				return Weights{}, fmt.Errorf("prediction: %v", err)
			}
			correct += countCorrect(pred, targets, ways)

			if tracker != nil {
				tracker.Increment(1)
			}
		}

		if tracker != nil {
			tracker.UpdateMessage(fmt.Sprintf("Training %d/%d - L: %.4f, A: %.4f", epoch+1, params.Epochs,
				trainLoss/float64(batches), float64(correct)/float64(batches*batchSize)))
		}

		runtime.GC()
	}

	if tracker != nil {
		tracker.MarkAsDone()
	}

	return m.Embedding.Weights()
}

func countCorrect(pred, targets []float64, ways int) int {
	correct := 0
	for i := 0; i+ways <= len(pred); i += ways {
		if argmax(pred[i:i+ways]) == argmax(targets[i:i+ways]) {
			correct++
		}
	}
	return correct
}

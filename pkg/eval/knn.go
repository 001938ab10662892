package eval

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// CosKNN labels every test embedding by majority vote of its k most
// cosine-similar train embeddings and returns the accuracy and the predicted
// labels. A tied vote goes to the label of the most similar neighbour among
// the tied labels.
func CosKNN(k int, testX [][]float64, testY []int, trainX [][]float64, trainY []int) (float64, []int, error) {
	if k < 1 {
		return 0, nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(testX) != len(testY) || len(trainX) != len(trainY) {
		return 0, nil, fmt.Errorf("embeddings and labels differ in length")
	}
	if len(trainX) == 0 {
		return 0, nil, fmt.Errorf("no train embeddings")
	}
	if len(testX) == 0 {
		return 0, []int{}, nil
	}
	k = min(k, len(trainX))

	trainNorms := make([]float64, len(trainX))
	for i, v := range trainX {
		trainNorms[i] = floats.Norm(v, 2)
	}

	type neighbour struct {
		index      int
		similarity float64
	}

	predictions := make([]int, len(testX))
	correct := 0
	neighbours := make([]neighbour, len(trainX))
	for i, query := range testX {
		queryNorm := floats.Norm(query, 2)
		for j, v := range trainX {
			neighbours[j] = neighbour{index: j, similarity: cosine(query, v, queryNorm, trainNorms[j])}
		}
		sort.SliceStable(neighbours, func(a, b int) bool {
			return neighbours[a].similarity > neighbours[b].similarity
		})

		votes := map[int]int{}
		for _, n := range neighbours[:k] {
			votes[trainY[n.index]]++
		}
		best := math.MinInt
		for _, n := range neighbours[:k] {
			label := trainY[n.index]
			if best == math.MinInt || votes[label] > votes[best] {
				best = label
			}
		}

		predictions[i] = best
		if best == testY[i] {
			correct++
		}
	}

	return float64(correct) / float64(len(testX)), predictions, nil
}

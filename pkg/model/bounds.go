package model

import "math"

func boundInt(v, min, max int) int {
	return int(math.Max(float64(min), math.Min(float64(max), float64(v))))
}

func BoundSeed(v int) int {
	return int(math.Max(0, float64(v))) // Default: 1
}

// Episodes
func BoundSamplesPerClass(v int) int {
	return boundInt(v, 1, 50) // Default: 5
}

func BoundClassesPerSet(v int) int {
	return boundInt(v, 2, 24) // Default: 5
}

func BoundMaxClassDraws(v int) int {
	return boundInt(v, 1, 1_000_000) // Default: 1000
}

// Training
func BoundBatchSize(v int) int {
	return boundInt(v, 1, 4096) // Default: 60
}

func BoundEpochs(v int) int {
	return boundInt(v, 1, 1000) // Default: 10
}

func BoundLearnRate(v float64) float64 {
	return math.Max(1e-7, math.Min(1, v)) // Default: 0.001
}

func BoundK(v int) int {
	return boundInt(v, 1, 100) // Default: 3
}

// Embedding network
func BoundConvFilters(v int) int {
	return boundInt(v, 1, 512) // Default: 12
}

func BoundKernelSize(v int) int {
	return boundInt(v, 1, 64) // Default: 3
}

func BoundPoolSize(v int) int {
	return boundInt(v, 1, 16) // Default: 2
}

func BoundEmbeddingSize(v int) int {
	return boundInt(v, 1, 8192) // Default: 1200
}

// Features
func BoundDCTLength(v int) int {
	return boundInt(v, 4, 512) // Default: 60
}

func BoundWindowLength(v int) int {
	return boundInt(v, 16, 8192) // Default: 512
}

func BoundWindowStep(v int) int {
	return boundInt(v, 1, 8192) // Default: 512
}

func BoundMinClassWindows(v int) int {
	return boundInt(v, 1, 1_000_000) // Default: SamplesPerClass
}

package model

func flattenBatchFeatures(features [][]float64, start, batchSize, featureSize int) []float64 {
	flattened := make([]float64, batchSize*featureSize)
	for i := 0; i < batchSize && start+i < len(features); i++ {
		copy(flattened[i*featureSize:], features[start+i])
	}
	return flattened
}

func unflattenRows(flattened []float64, rows, width int) [][]float64 {
	out := make([][]float64, rows)
	for i := range rows {
		out[i] = flattened[i*width : (i+1)*width : (i+1)*width]
	}
	return out
}

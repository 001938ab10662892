package model

import (
	"math"
	"math/rand/v2"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// glorotUniform draws weights from U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)),
// using rng so that initialisation is reproducible from the run seed.
func glorotUniform(rng *rand.Rand, fanIn, fanOut int) gorgonia.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		out := make([]float64, tensor.Shape(s).TotalSize())
		for i := range out {
			out[i] = (rng.Float64()*2 - 1) * limit
		}
		return out
	}
}

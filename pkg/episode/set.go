package episode

import "gorgonia.org/tensor"

// Set is the stacked episodes of one fold.
type Set struct {
	Episodes []Episode
	Ways     int
	Shots    int
}

func (s *Set) Len() int {
	return len(s.Episodes)
}

func (s *Set) SupportSize() int {
	return s.Ways * s.Shots
}

func (s *Set) FeatureLength() int {
	if len(s.Episodes) == 0 {
		return 0
	}
	return len(s.Episodes[0].Support[0])
}

// Shapes reports the stacked support, label and target shapes of the set.
func (s *Set) Shapes() (tensor.Shape, tensor.Shape, tensor.Shape) {
	n := s.SupportSize()
	return tensor.Shape{s.Len(), n + 1, s.FeatureLength(), 1},
		tensor.Shape{s.Len(), n, s.Ways},
		tensor.Shape{s.Len(), s.Ways}
}

// Slot returns the backing of a (len(indices), featureLength) batch holding
// support slot `slot` of each selected episode. Slot SupportSize() is the query.
func (s *Set) Slot(indices []int, slot int) []float64 {
	length := s.FeatureLength()
	flattened := make([]float64, len(indices)*length)
	for i, idx := range indices {
		copy(flattened[i*length:], s.Episodes[idx].Support[slot])
	}
	return flattened
}

// Support stacks the selected episodes into (len(indices), SupportSize()+1, featureLength, 1).
func (s *Set) Support(indices []int) *tensor.Dense {
	n := s.SupportSize() + 1
	length := s.FeatureLength()
	flattened := make([]float64, len(indices)*n*length)
	for i, idx := range indices {
		for slot, v := range s.Episodes[idx].Support {
			copy(flattened[(i*n+slot)*length:], v)
		}
	}
	return tensor.New(tensor.WithShape(len(indices), n, length, 1), tensor.WithBacking(flattened))
}

// Labels returns the backing of the one-hot (len(indices), SupportSize(), Ways) label batch.
func (s *Set) Labels(indices []int) []float64 {
	n := s.SupportSize()
	flattened := make([]float64, len(indices)*n*s.Ways)
	for i, idx := range indices {
		for slot, label := range s.Episodes[idx].Labels {
			flattened[(i*n+slot)*s.Ways+label] = 1.0
		}
	}
	return flattened
}

// Targets returns the backing of the one-hot (len(indices), Ways) target batch.
func (s *Set) Targets(indices []int) []float64 {
	flattened := make([]float64, len(indices)*s.Ways)
	for i, idx := range indices {
		flattened[i*s.Ways+s.Episodes[idx].Target] = 1.0
	}
	return flattened
}

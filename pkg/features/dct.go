package features

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Extractor turns segments into fixed-length DCT feature vectors.
type Extractor struct {
	WindowLength int
	WindowStep   int
	DCTLength    int

	dct *fourier.DCT
}

func NewExtractor(windowLength, windowStep, dctLength int) (*Extractor, error) {
	if windowLength < 2 {
		return nil, fmt.Errorf("window length must be at least 2, got %d", windowLength)
	}
	if windowStep < 1 {
		return nil, fmt.Errorf("window step must be positive, got %d", windowStep)
	}
	if dctLength < 1 || dctLength > windowLength {
		return nil, fmt.Errorf("dct length %d must be between 1 and the window length %d", dctLength, windowLength)
	}
	return &Extractor{
		WindowLength: windowLength,
		WindowStep:   windowStep,
		DCTLength:    dctLength,
		dct:          fourier.NewDCT(windowLength),
	}, nil
}

// FeatureLength is the length of vectors returned by Extract.
func (e *Extractor) FeatureLength() int {
	return e.DCTLength * Channels
}

// Extract slides a window over the segment and returns one feature vector per
// full window. Each vector holds the first DCTLength coefficients of every
// channel, channel by channel.
func (e *Extractor) Extract(segment Segment) [][]float64 {
	out := [][]float64{}
	signal := make([]float64, e.WindowLength)
	coefficients := make([]float64, e.WindowLength)

	for start := 0; start+e.WindowLength <= len(segment.Rows); start += e.WindowStep {
		feature := make([]float64, 0, e.FeatureLength())
		for channel := range Channels {
			for i := range e.WindowLength {
				signal[i] = segment.Rows[start+i][channel]
			}
			e.dct.Transform(coefficients, signal)
			feature = append(feature, coefficients[:e.DCTLength]...)
		}
		out = append(out, feature)
	}
	return out
}

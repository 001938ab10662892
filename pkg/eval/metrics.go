package eval

import (
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/stat"
)

type Metrics struct {
	Classes         []int
	Accuracy        float64
	ConfusionMatrix [][]float64
	ClassPrecision  []float64
	ClassRecall     []float64
	F1Scores        []float64

	Samples []int
}

// CalculateMetrics builds per-class metrics from actual and predicted labels.
// Percentages are in 0-100.
func CalculateMetrics(actual, predicted []int) Metrics {
	classes := slices.Clone(actual)
	classes = append(classes, predicted...)
	slices.Sort(classes)
	classes = slices.Compact(classes)

	index := map[int]int{}
	for i, c := range classes {
		index[c] = i
	}

	numClasses := len(classes)
	confusionMatrix := make([][]int, numClasses)
	for i := range confusionMatrix {
		confusionMatrix[i] = make([]int, numClasses)
	}
	for i := range actual {
		confusionMatrix[index[actual[i]]][index[predicted[i]]]++
	}

	metrics := Metrics{
		Classes:         classes,
		ConfusionMatrix: make([][]float64, numClasses),
		ClassPrecision:  make([]float64, numClasses),
		ClassRecall:     make([]float64, numClasses),
		F1Scores:        make([]float64, numClasses),
		Samples:         make([]int, numClasses),
	}

	// Calculate confusion matrix percentages
	for i := range numClasses {
		metrics.ConfusionMatrix[i] = make([]float64, numClasses)
		for j := range numClasses {
			metrics.Samples[i] += confusionMatrix[i][j]
		}
		for j := range numClasses {
			if metrics.Samples[i] > 0 {
				metrics.ConfusionMatrix[i][j] = float64(confusionMatrix[i][j]) / float64(metrics.Samples[i]) * 100
			}
		}
	}

	// Calculate precision and recall for each class
	for i := range numClasses {
		truePositives := confusionMatrix[i][i]
		falsePositives := 0
		falseNegatives := 0

		for j := range numClasses {
			if i != j {
				falsePositives += confusionMatrix[j][i]
				falseNegatives += confusionMatrix[i][j]
			}
		}

		if truePositives+falsePositives > 0 {
			metrics.ClassPrecision[i] = float64(truePositives) / float64(truePositives+falsePositives) * 100
		}
		if truePositives+falseNegatives > 0 {
			metrics.ClassRecall[i] = float64(truePositives) / float64(truePositives+falseNegatives) * 100
		}
		if metrics.ClassPrecision[i]+metrics.ClassRecall[i] > 0 {
			metrics.F1Scores[i] = 2 * (metrics.ClassPrecision[i] * metrics.ClassRecall[i]) /
				(metrics.ClassPrecision[i] + metrics.ClassRecall[i])
		}
	}

	correct := 0
	for i := range numClasses {
		correct += confusionMatrix[i][i]
	}
	if len(actual) > 0 {
		metrics.Accuracy = float64(correct) / float64(len(actual)) * 100
	}

	return metrics
}

func (m Metrics) Write(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ACTIVITY", "PRECISION", "RECALL", "F1 SCORE", "SAMPLES"})
	total := 0
	for i, class := range m.Classes {
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", class),
			fmt.Sprintf("%6.2f%%", m.ClassPrecision[i]),
			fmt.Sprintf("%6.2f%%", m.ClassRecall[i]),
			fmt.Sprintf("%6.2f%%", m.F1Scores[i]),
			fmt.Sprintf("%d", m.Samples[i]),
		})
		total += m.Samples[i]
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{
		"",
		fmt.Sprintf("%6.2f%%", stat.Mean(m.ClassPrecision, nil)),
		fmt.Sprintf("%6.2f%%", stat.Mean(m.ClassRecall, nil)),
		fmt.Sprintf("%6.2f%%", stat.Mean(m.F1Scores, nil)),
		fmt.Sprintf("%d", total),
	})
	t.AppendFooter(table.Row{"ACCURACY", "", "", "", fmt.Sprintf("%0.02f%%", m.Accuracy)})
	t.Render()
}

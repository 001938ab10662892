package model

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/grexie/matchnet/pkg/episode"
	"github.com/jedib0t/go-pretty/v6/table"
)

type ModelParams struct {
	MethodTag string
	Seed      uint64

	SamplesPerClass int
	ClassesPerSet   int
	MaxClassDraws   int

	BatchSize int
	Epochs    int
	LearnRate float64
	K         int

	ConvFilters   int
	KernelSize    int
	PoolSize      int
	EmbeddingSize int

	DCTLength       int
	WindowLength    int
	WindowStep      int
	MinClassWindows int

	DataDir     string
	DatasetURL  string
	CachePath   string
	ResultsPath string
	PlotPath    string
}

// FeatureLength is the length of one feature vector: a DCT of each of three
// accelerometer axes on each of three IMUs.
func (m ModelParams) FeatureLength() int {
	return m.DCTLength * 3 * 3
}

// SupportSize is the number of labelled support slots per episode.
func (m ModelParams) SupportSize() int {
	return m.SamplesPerClass * m.ClassesPerSet
}

func (m ModelParams) EpisodeParams() episode.Params {
	return episode.Params{
		Ways:          m.ClassesPerSet,
		Shots:         m.SamplesPerClass,
		MaxClassDraws: m.MaxClassDraws,
	}
}

func (m *ModelParams) Write(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendRows([]table.Row{
		{"MATCHNET_METHOD_TAG", m.MethodTag},
		{"MATCHNET_SEED", fmt.Sprintf("%d", m.Seed)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"MATCHNET_SAMPLES_PER_CLASS", fmt.Sprintf("%d", m.SamplesPerClass)},
		{"MATCHNET_CLASSES_PER_SET", fmt.Sprintf("%d", m.ClassesPerSet)},
		{"MATCHNET_MAX_CLASS_DRAWS", fmt.Sprintf("%d", m.MaxClassDraws)},
		{"MATCHNET_BATCH_SIZE", fmt.Sprintf("%d", m.BatchSize)},
		{"MATCHNET_EPOCHS", fmt.Sprintf("%d", m.Epochs)},
		{"MATCHNET_LEARN_RATE", fmt.Sprintf("%.06f", m.LearnRate)},
		{"MATCHNET_K", fmt.Sprintf("%d", m.K)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"MATCHNET_CONV_FILTERS", fmt.Sprintf("%d", m.ConvFilters)},
		{"MATCHNET_KERNEL_SIZE", fmt.Sprintf("%d", m.KernelSize)},
		{"MATCHNET_POOL_SIZE", fmt.Sprintf("%d", m.PoolSize)},
		{"MATCHNET_EMBEDDING_SIZE", fmt.Sprintf("%d", m.EmbeddingSize)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"MATCHNET_DCT_LENGTH", fmt.Sprintf("%d", m.DCTLength)},
		{"MATCHNET_WINDOW_LENGTH", fmt.Sprintf("%d", m.WindowLength)},
		{"MATCHNET_WINDOW_STEP", fmt.Sprintf("%d", m.WindowStep)},
		{"MATCHNET_MIN_CLASS_WINDOWS", fmt.Sprintf("%d", m.MinClassWindows)},
		{"Feature Length", fmt.Sprintf("%d", m.FeatureLength())},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"MATCHNET_DATA_DIR", m.DataDir},
		{"MATCHNET_CACHE_PATH", m.CachePath},
		{"MATCHNET_RESULTS_PATH", m.ResultsPath},
		{"MATCHNET_PLOT_PATH", m.PlotPath},
	})
	t.Render()
}

func NewModelParamsFromDefaults() ModelParams {
	return ModelParams{
		MethodTag: MethodTag(),
		Seed:      uint64(Seed()),

		SamplesPerClass: SamplesPerClass(),
		ClassesPerSet:   ClassesPerSet(),
		MaxClassDraws:   MaxClassDraws(),

		BatchSize: BatchSize(),
		Epochs:    Epochs(),
		LearnRate: LearnRate(),
		K:         K(),

		ConvFilters:   ConvFilters(),
		KernelSize:    KernelSize(),
		PoolSize:      PoolSize(),
		EmbeddingSize: EmbeddingSize(),

		DCTLength:       DCTLength(),
		WindowLength:    WindowLength(),
		WindowStep:      WindowStep(),
		MinClassWindows: MinClassWindows(),

		DataDir:     DataDir(),
		DatasetURL:  DatasetURL(),
		CachePath:   CachePath(),
		ResultsPath: ResultsPath(),
		PlotPath:    PlotPath(),
	}
}

func envInt(name string, def func() int, dec func(v int) int) func() int {
	return func() int {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseInt(v, 10, 32); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = int(v)
			}
		}
		return dec(value)
	}
}

func envFloat64(name string, def func() float64, dec func(v float64) float64) func() float64 {
	return func() float64 {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseFloat(v, 64); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = v
			}
		}
		return dec(value)
	}
}

func envString(name string, def func() string) func() string {
	return func() string {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			value = v
		}
		return value
	}
}

var (
	MethodTag = envString("MATCHNET_METHOD_TAG", func() string { return "mn_conv" })
	Seed      = envInt("MATCHNET_SEED", func() int { return 1 }, BoundSeed)
)

var (
	SamplesPerClass = envInt("MATCHNET_SAMPLES_PER_CLASS", func() int { return 5 }, BoundSamplesPerClass)
	ClassesPerSet   = envInt("MATCHNET_CLASSES_PER_SET", func() int { return 5 }, BoundClassesPerSet)
	MaxClassDraws   = envInt("MATCHNET_MAX_CLASS_DRAWS", func() int { return 1000 }, BoundMaxClassDraws)
)

var (
	BatchSize = envInt("MATCHNET_BATCH_SIZE", func() int { return 60 }, BoundBatchSize)
	Epochs    = envInt("MATCHNET_EPOCHS", func() int { return 10 }, BoundEpochs)
	LearnRate = envFloat64("MATCHNET_LEARN_RATE", func() float64 { return 0.001 }, BoundLearnRate)
	K         = envInt("MATCHNET_K", func() int { return 3 }, BoundK)
)

var (
	ConvFilters   = envInt("MATCHNET_CONV_FILTERS", func() int { return 12 }, BoundConvFilters)
	KernelSize    = envInt("MATCHNET_KERNEL_SIZE", func() int { return 3 }, BoundKernelSize)
	PoolSize      = envInt("MATCHNET_POOL_SIZE", func() int { return 2 }, BoundPoolSize)
	EmbeddingSize = envInt("MATCHNET_EMBEDDING_SIZE", func() int { return 1200 }, BoundEmbeddingSize)
)

var (
	DCTLength       = envInt("MATCHNET_DCT_LENGTH", func() int { return 60 }, BoundDCTLength)
	WindowLength    = envInt("MATCHNET_WINDOW_LENGTH", func() int { return 512 }, BoundWindowLength)
	WindowStep      = envInt("MATCHNET_WINDOW_STEP", func() int { return 512 }, BoundWindowStep)
	MinClassWindows = envInt("MATCHNET_MIN_CLASS_WINDOWS", func() int { return SamplesPerClass() }, BoundMinClassWindows)
)

var (
	DataDir     = envString("MATCHNET_DATA_DIR", func() string { return "data/PAMAP2_Dataset/Protocol" })
	DatasetURL  = envString("MATCHNET_DATASET_URL", func() string { return "https://archive.ics.uci.edu/static/public/231/pamap2+physical+activity+monitoring.zip" })
	CachePath   = envString("MATCHNET_CACHE_PATH", func() string { return "matchnet-cache.db" })
	ResultsPath = envString("MATCHNET_RESULTS_PATH", func() string { return MethodTag() + ".csv" })
	PlotPath    = envString("MATCHNET_PLOT_PATH", func() string { return "" })
)

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/grexie/matchnet/pkg/db"
	"github.com/grexie/matchnet/pkg/episode"
	"github.com/grexie/matchnet/pkg/eval"
	"github.com/grexie/matchnet/pkg/features"
	"github.com/grexie/matchnet/pkg/model"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/joho/godotenv"
)

func loadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			godotenv.Load(filename)
		}
	}
}

func newProgressWriter() progress.Writer {
	pw := progress.NewWriter()
	pw.SetMessageLength(40)
	pw.SetNumTrackersExpected(2)
	pw.SetSortBy(progress.SortByPercentDsc)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerLength(15)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(time.Millisecond * 100)
	pw.Style().Colors = progress.StyleColorsExample
	pw.Style().Options.PercentFormat = "%2.0f%%"
	return pw
}

func stopProgressWriter(pw progress.Writer) {
	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(100 * time.Millisecond)
	}
}

func main() {
	if _, ok := os.LookupEnv("ENV"); !ok {
		env := "development"
		os.Setenv("ENV", env)
	}
	loadEnv(".env."+os.Getenv("ENV")+".local", ".env."+os.Getenv("ENV"), ".env.local", ".env")

	ctx := context.Background()

	params := model.NewModelParamsFromDefaults()
	params.Write(os.Stdout, "Model Config")

	var store *db.ResultStore
	if mongoUrl := db.MongoURL(); mongoUrl != "" {
		database, err := db.ConnectMongo(ctx, mongoUrl)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		run := fmt.Sprintf("%s-%d-%d", params.MethodTag, params.Seed, time.Now().Unix())
		if store, err = db.NewResultStore(ctx, database, run, params.Seed); err != nil {
			log.Fatalf("Failed to prepare results collection: %v", err)
		}
	}

	rng := rand.New(rand.NewPCG(params.Seed, params.Seed))

	pw := newProgressWriter()
	go pw.Render()

	data, err := features.Read(ctx, pw, features.Options{
		DataDir:         params.DataDir,
		DatasetURL:      params.DatasetURL,
		CachePath:       params.CachePath,
		WindowLength:    params.WindowLength,
		WindowStep:      params.WindowStep,
		DCTLength:       params.DCTLength,
		MinClassWindows: params.MinClassWindows,
	})
	if err != nil {
		log.Fatalf("error reading dataset: %v", err)
	}

	results := []eval.Result{}
	for _, subject := range data.Subjects() {
		result, err := evaluateSubject(pw, params, rng, data, subject)
		if err != nil {
			log.Fatalf("subject %d: %v", subject, err)
		}

		line := result.Line()
		fmt.Println(line)
		if err := eval.AppendResult(params.ResultsPath, line); err != nil {
			log.Fatalf("error writing result: %v", err)
		}
		if store != nil {
			if err := store.Insert(ctx, result); err != nil {
				log.Fatalf("error inserting result: %v", err)
			}
		}

		results = append(results, result)
	}

	stopProgressWriter(pw)

	eval.WriteSummary(os.Stdout, "Leave One Subject Out", results)
	if store != nil {
		if err := store.Close(ctx); err != nil {
			log.Printf("error disconnecting from MongoDB: %v", err)
		}
	}
	if params.PlotPath != "" {
		if err := eval.PlotAccuracy(params.PlotPath, params.MethodTag+" accuracy", results); err != nil {
			log.Fatalf("error plotting results: %v", err)
		}
	}
}

func evaluateSubject(pw progress.Writer, params model.ModelParams, rng *rand.Rand, data features.Dataset, subject int) (eval.Result, error) {
	train, test := features.Split(data, subject)
	if len(train) == 0 {
		return eval.Result{}, fmt.Errorf("no training subjects")
	}

	set, err := episode.CreateTrainInstances(rng, train, params.EpisodeParams())
	if err != nil {
		return eval.Result{}, err
	}

	network, err := model.NewMatchingNetwork(params, rng)
	if err != nil {
		return eval.Result{}, err
	}

	weights, err := model.Train(pw, network, set, rng)
	if err != nil {
		return eval.Result{}, err
	}

	trainX, trainY := features.Flatten(train)
	testX, testY := features.Flatten(test)

	trainEmbedded, err := model.Embed(params, weights, trainX)
	if err != nil {
		return eval.Result{}, fmt.Errorf("embedding training windows: %w", err)
	}
	testEmbedded, err := model.Embed(params, weights, testX)
	if err != nil {
		return eval.Result{}, fmt.Errorf("embedding test windows: %w", err)
	}

	accuracy, predicted, err := eval.CosKNN(params.K, testEmbedded, testY, trainEmbedded, trainY)
	if err != nil {
		return eval.Result{}, err
	}

	eval.CalculateMetrics(testY, predicted).Write(os.Stdout, fmt.Sprintf("Subject %d", subject))

	return eval.NewResult(params.MethodTag, params.K, subject, accuracy), nil
}

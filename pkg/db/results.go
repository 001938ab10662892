package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grexie/matchnet/pkg/eval"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const resultsCollection = "results"

type ResultDocument struct {
	Run      string    `bson:"run"`
	Method   string    `bson:"method"`
	Scorer   string    `bson:"scorer"`
	Subject  int       `bson:"subject"`
	Accuracy float64   `bson:"accuracy"`
	Seed     uint64    `bson:"seed"`
	Created  time.Time `bson:"created"`
}

// ResultStore records fold results for one run.
type ResultStore struct {
	db   *mongo.Database
	run  string
	seed uint64
}

func NewResultStore(ctx context.Context, db *mongo.Database, run string, seed uint64) (*ResultStore, error) {
	if err := EnsureIndex(ctx, db, resultsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "run", Value: 1}, {Key: "subject", Value: 1}},
		Options: options.Index().SetName("run_subject").SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure results index: %v", err)
	}
	return &ResultStore{db: db, run: run, seed: seed}, nil
}

// Insert stores one fold result. Set MONGO_SUPPORTS_TRANSACTIONS=true to run
// the insert inside a session transaction on a replica set.
func (s *ResultStore) Insert(ctx context.Context, r eval.Result) error {
	doc := ResultDocument{
		Run:      s.run,
		Method:   r.Method,
		Scorer:   r.Scorer,
		Subject:  r.Subject,
		Accuracy: r.Accuracy,
		Seed:     s.seed,
		Created:  time.Now(),
	}
	insert := func(ctx context.Context) error {
		_, err := s.db.Collection(resultsCollection).InsertOne(ctx, doc)
		return err
	}

	if os.Getenv("MONGO_SUPPORTS_TRANSACTIONS") != "true" {
		return insert(ctx)
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, insert(sc)
	})
	return err
}

func (s *ResultStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

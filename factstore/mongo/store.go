// Package mongo wires the factstore.Store interface to MongoDB, standing in
// for a full bitemporal 6NF backend, which stays out of scope beyond
// its get/set interface. The collection is append-only: every SetFact
// inserts a new document carrying (predicate, subject, value, recorded_at)
// and earlier documents are kept, so GetFactAt can answer point-in-time
// reads over that history.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/htnkit/corestn/corerr"
)

const (
	defaultCollection = "planner_facts"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements factstore.Store against a MongoDB collection.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

type factDoc struct {
	Predicate  string    `bson:"predicate"`
	Subject    string    `bson:"subject"`
	Value      any       `bson:"value"`
	RecordedAt time.Time `bson:"recorded_at"`
}

// New constructs a Store, ensuring the (predicate, subject, recorded_at)
// index used by GetFactAt's point-in-time lookups.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collection)

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(ictx, mongo.IndexModel{
		Keys: bson.D{{Key: "predicate", Value: 1}, {Key: "subject", Value: 1}, {Key: "recorded_at", Value: -1}},
	})
	if err != nil {
		return nil, corerr.Wrap(corerr.InvalidInput, "create fact store index", err)
	}

	return &Store{coll: coll, timeout: timeout}, nil
}

// GetFact returns the most recently recorded value for (predicate, subject).
func (s *Store) GetFact(ctx context.Context, predicate, subject string) (any, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	var doc factDoc
	err := s.coll.FindOne(cctx, bson.D{{Key: "predicate", Value: predicate}, {Key: "subject", Value: subject}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, corerr.Wrap(corerr.InvalidInput, "get fact", err)
	}
	return doc.Value, true, nil
}

// SetFact inserts a new recorded value for (predicate, subject); prior
// values are retained so GetFactAt can answer historical reads.
func (s *Store) SetFact(ctx context.Context, predicate, subject string, value any) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.coll.InsertOne(cctx, factDoc{
		Predicate:  predicate,
		Subject:    subject,
		Value:      value,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		return corerr.Wrap(corerr.InvalidInput, "set fact", err)
	}
	return nil
}

// GetFactAt returns the value recorded for (predicate, subject) as of time
// at: the most recent record whose recorded_at does not exceed at.
func (s *Store) GetFactAt(ctx context.Context, predicate, subject string, at time.Time) (any, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.D{
		{Key: "predicate", Value: predicate},
		{Key: "subject", Value: subject},
		{Key: "recorded_at", Value: bson.D{{Key: "$lte", Value: at}}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	var doc factDoc
	err := s.coll.FindOne(cctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, corerr.Wrap(corerr.InvalidInput, "get fact at", err)
	}
	return doc.Value, true, nil
}

// Cleanup drops the backing collection; used by test teardown.
func (s *Store) Cleanup(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.coll.Drop(cctx); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "cleanup fact store", err)
	}
	return nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

const (
	DefaultDatabase   = "devops_dashboard"
	collectionName    = "metrics"
	countersName      = "counters"
	connectionTimeout = 10 * time.Second
)

type document struct {
	ID          string    `bson:"_id"`
	Seq         int64     `bson:"seq"`
	CPUUsage    float64   `bson:"cpuUsage"`
	MemoryUsage float64   `bson:"memoryUsage"`
	DiskUsage   float64   `bson:"diskUsage"`
	Timestamp   time.Time `bson:"timestamp"`
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	counters   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New configures a client for uri. The driver connects in the background, so
// an unreachable server surfaces on Ping or on the first operation.
func New(uri string) (*Store, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mongo uri: %w", err)
	}

	database := cs.Database
	if database == "" {
		database = DefaultDatabase
	}

	// Defaults go first so timeouts set in the uri take precedence.
	client, err := mongo.Connect(
		options.Client().
			SetConnectTimeout(connectionTimeout).
			SetServerSelectionTimeout(connectionTimeout).
			ApplyURI(uri),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	db := client.Database(database)

	return &Store{
		client:     client,
		collection: db.Collection(collectionName),
		counters:   db.Collection(countersName),
	}, nil
}

// EnsureIndexes creates the index backing MostRecent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "seq", Value: -1}},
	})
	if err != nil {
		return classify("create index", err)
	}

	return nil
}

func (s *Store) Insert(ctx context.Context, sample models.Sample) error {
	if err := sample.Validate(); err != nil {
		return store.WriteError(err)
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}

	_, err = s.collection.InsertOne(ctx, document{
		ID:          sample.ID,
		Seq:         seq,
		CPUUsage:    sample.CPUUsage,
		MemoryUsage: sample.MemoryUsage,
		DiskUsage:   sample.DiskUsage,
		Timestamp:   sample.Timestamp,
	})
	if err != nil {
		if isConnectionError(err) {
			return store.ConnectionError("insert", err)
		}

		return store.WriteError(err)
	}

	return nil
}

func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.D{{Key: "_id", Value: collectionName}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		if isConnectionError(err) {
			return 0, store.ConnectionError("insert", err)
		}

		return 0, store.WriteError(fmt.Errorf("allocating sequence: %w", err))
	}

	return counter.Seq, nil
}

func (s *Store) MostRecent(ctx context.Context) (*models.Sample, error) {
	var doc document

	err := s.collection.FindOne(
		ctx,
		bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "seq", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	if err != nil {
		return nil, classify("most recent", err)
	}

	return &models.Sample{
		ID:          doc.ID,
		CPUUsage:    doc.CPUUsage,
		MemoryUsage: doc.MemoryUsage,
		DiskUsage:   doc.DiskUsage,
		Timestamp:   doc.Timestamp.UTC(),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return store.ConnectionError("ping", err)
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func isConnectionError(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected)
}

func classify(op string, err error) error {
	if isConnectionError(err) {
		return store.ConnectionError(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hyperjump/schemalign/internal/models"
)

var (
	// ErrFailedToConnectToMongo is returned when every connection attempt failed.
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	// ErrMongoHealthcheckFailed is returned by the healthcheck probe.
	ErrMongoHealthcheckFailed = errors.New("mongo healthcheck failed")
)

// MongoConfig configures the MongoDB connection.
type MongoConfig struct {
	ConnectionURL  string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	RetryAttempts  int
	RetryInterval  time.Duration
}

func (c *MongoConfig) applyDefaults() {
	if c.Database == "" {
		c.Database = "data_quality_service"
	}
	if c.Collection == "" {
		c.Collection = "records"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
}

// ConnectMongo connects and pings, retrying RetryAttempts times.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, error) {
	cfg.applyDefaults()
	var lastErr error
	for range cfg.RetryAttempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize),
		)
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToConnectToMongo, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrFailedToConnectToMongo, lastErr)
}

// MongoHealthcheck returns a probe that pings the server.
func MongoHealthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrMongoHealthcheckFailed, err)
		}
		return nil
	}
}

// MongoSink writes records as flat documents: provenance fields, one array per column, and
// the rows under table_data.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoSink connects with cfg and returns a sink on cfg.Database/cfg.Collection.
func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	cfg.applyDefaults()
	client, err := ConnectMongo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MongoSink{client: client, collection: client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

// Healthcheck pings the server.
func (m *MongoSink) Healthcheck(ctx context.Context) error {
	return MongoHealthcheck(m.client)(ctx)
}

// Save upserts the document for rec, keyed by record ID.
func (m *MongoSink) Save(ctx context.Context, rec *models.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	_, err := m.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: rec.ID}},
		RecordDocument(rec),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo save %s: %w", rec.ID, err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// RecordDocument builds the stored document. A column whose name clashes with an existing key
// gets a "_table" suffix (repeated until unique).
func RecordDocument(rec *models.Record) bson.D {
	doc := bson.D{
		{Key: "_id", Value: rec.ID},
		{Key: "region", Value: rec.Metadata.Region},
		{Key: "school", Value: rec.Metadata.School},
		{Key: "ingestion_time", Value: rec.Metadata.IngestionTime.Format(time.RFC3339)},
		{Key: "activity", Value: rec.Metadata.Activity},
		{Key: "filename", Value: rec.Filename},
		{Key: "registry", Value: rec.Registry},
	}
	used := map[string]bool{"table_data": true}
	for _, e := range doc {
		used[e.Key] = true
	}

	for i, col := range rec.Columns {
		key := col
		for used[key] {
			key += "_table"
		}
		used[key] = true
		values := make(bson.A, len(rec.Rows))
		for r, row := range rec.Rows {
			values[r] = row[i]
		}
		doc = append(doc, bson.E{Key: key, Value: values})
	}

	rows := make(bson.A, len(rec.Rows))
	for r, row := range rec.Rows {
		m := make(bson.D, len(rec.Columns))
		for i, col := range rec.Columns {
			m[i] = bson.E{Key: col, Value: row[i]}
		}
		rows[r] = m
	}
	doc = append(doc, bson.E{Key: "table_data", Value: rows})
	return doc
}

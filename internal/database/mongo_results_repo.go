package database

import (
	"context"
	"fmt"

	"tgfb-relay/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const resultsCollectionName = "results"

// MongoResultRepository implements ResultStore for MongoDB.
type MongoResultRepository struct {
	collection *mongo.Collection
}

// NewMongoResultRepository creates a new MongoDB results repository.
func NewMongoResultRepository(db *mongo.Database) *MongoResultRepository {
	return &MongoResultRepository{
		collection: db.Collection(resultsCollectionName),
	}
}

// EnsureIndexes creates the lookup index on telegram_id. It is not unique:
// the log may legitimately hold a Failed and a later Posted entry for one id.
func (r *MongoResultRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "telegram_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create results index: %w", err)
	}
	return nil
}

// Load retrieves every record in insertion order.
func (r *MongoResultRepository) Load(ctx context.Context) ([]models.PublishRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find results: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.PublishRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode results: %v", ErrCorruptStore, err)
	}
	return records, nil
}

// Append inserts records in order. Existing documents are never touched.
func (r *MongoResultRepository) Append(ctx context.Context, records []models.PublishRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		docs = append(docs, rec)
	}
	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert results into mongodb: %w", err)
	}
	return nil
}

var _ ResultStore = (*MongoResultRepository)(nil)

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbalde7/stockly/internal/domain/models"
)

// Repository defines the local persistence operations: the cached stock
// line copies, the append-only mutation journal, and the pending-reconcile
// marks the scheduler sweeps.
type Repository interface {
	GetStockLine(ctx context.Context, stockLineID string) (*models.StockLine, error)
	UpsertStockLine(ctx context.Context, line models.StockLine) error
	MarkPendingReconcile(ctx context.Context, stockLineID string) error
	ClearPendingReconcile(ctx context.Context, stockLineID string) error
	ListPendingReconcile(ctx context.Context) ([]string, error)
	AppendMutationRecord(ctx context.Context, record models.MutationRecord) error
	ListMutationRecordsSince(ctx context.Context, since time.Time) ([]models.MutationRecord, error)
	Close(ctx context.Context) error
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

const (
	stockLinesColl = "stock_lines"
	journalColl    = "mutation_journal"
	reconcileColl  = "pending_reconcile"
)

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		dbName: dbName,
	}, nil
}

// GetStockLine loads one cached stock line; a cache miss returns (nil, nil).
func (r *MongoDBRepository) GetStockLine(ctx context.Context, stockLineID string) (*models.StockLine, error) {
	collection := r.client.Database(r.dbName).Collection(stockLinesColl)

	var line models.StockLine
	err := collection.FindOne(ctx, bson.M{"stock_line_id": stockLineID}).Decode(&line)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stock line %s: %w", stockLineID, err)
	}
	return &line, nil
}

// UpsertStockLine replaces the cached copy of a stock line.
func (r *MongoDBRepository) UpsertStockLine(ctx context.Context, line models.StockLine) error {
	collection := r.client.Database(r.dbName).Collection(stockLinesColl)

	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"stock_line_id": line.StockLineID}, line, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert stock line %s: %w", line.StockLineID, err)
	}
	return nil
}

// MarkPendingReconcile flags a stock line whose last mutation outcome was
// ambiguous so the sweep re-fetches it.
func (r *MongoDBRepository) MarkPendingReconcile(ctx context.Context, stockLineID string) error {
	collection := r.client.Database(r.dbName).Collection(reconcileColl)

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx,
		bson.M{"stock_line_id": stockLineID},
		bson.M{"$set": bson.M{"stock_line_id": stockLineID, "marked_at": time.Now()}},
		opts)
	if err != nil {
		return fmt.Errorf("failed to mark stock line %s for reconcile: %w", stockLineID, err)
	}
	return nil
}

// ClearPendingReconcile removes the mark after a successful re-fetch.
func (r *MongoDBRepository) ClearPendingReconcile(ctx context.Context, stockLineID string) error {
	collection := r.client.Database(r.dbName).Collection(reconcileColl)

	if _, err := collection.DeleteOne(ctx, bson.M{"stock_line_id": stockLineID}); err != nil {
		return fmt.Errorf("failed to clear reconcile mark for %s: %w", stockLineID, err)
	}
	return nil
}

// ListPendingReconcile returns the identifiers of all marked stock lines.
func (r *MongoDBRepository) ListPendingReconcile(ctx context.Context) ([]string, error) {
	collection := r.client.Database(r.dbName).Collection(reconcileColl)

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcile marks: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			StockLineID string `bson:"stock_line_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode reconcile mark: %w", err)
		}
		ids = append(ids, doc.StockLineID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating reconcile marks: %w", err)
	}
	return ids, nil
}

// AppendMutationRecord appends one row to the mutation journal.
func (r *MongoDBRepository) AppendMutationRecord(ctx context.Context, record models.MutationRecord) error {
	collection := r.client.Database(r.dbName).Collection(journalColl)

	if _, err := collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert mutation record: %w", err)
	}
	return nil
}

// ListMutationRecordsSince returns journal rows recorded at or after the
// given instant, oldest first. Used by the daily back-office export.
func (r *MongoDBRepository) ListMutationRecordsSince(ctx context.Context, since time.Time) ([]models.MutationRecord, error) {
	collection := r.client.Database(r.dbName).Collection(journalColl)

	opts := options.Find().SetSort(bson.M{"recorded_at": 1})
	cursor, err := collection.Find(ctx, bson.M{"recorded_at": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list mutation records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.MutationRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode mutation records: %w", err)
	}
	return records, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

// CreateIndexes enforces one active cart per owner and supports the expiry sweep.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_owner").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_active": true}),
		},
		{
			Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("active_expiry"),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (m *MongoRepository) GetActiveCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	var doc cartDocument

	filter := bson.M{"owner_id": ownerID, "is_active": true}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

func (m *MongoRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	doc, err := toDocument(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	doc.Version = 1

	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateOwner(cart.OwnerID)
		}
		return fmt.Errorf("failed to insert cart: %w", err)
	}

	cart.Version = 1
	return nil
}

func (m *MongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	doc, err := toDocument(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	doc.Version = cart.Version + 1

	filter := bson.M{"_id": cart.ID, "version": cart.Version}
	res, err := m.collection.ReplaceOne(ctx, filter, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateOwner(cart.OwnerID)
		}
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if res.MatchedCount == 0 {
		n, err := m.collection.CountDocuments(ctx, bson.M{"_id": cart.ID})
		if err != nil {
			return fmt.Errorf("failed to check cart: %w", err)
		}
		if n == 0 {
			return ErrCartNotFound
		}
		return ErrConcurrentModification
	}

	cart.Version = doc.Version
	return nil
}

func (m *MongoRepository) ListActiveCarts(ctx context.Context) ([]domain.Cart, error) {
	opts := options.Find().SetSort(bson.D{{Key: "owner_id", Value: 1}})
	cur, err := m.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer cur.Close(ctx)

	var carts []domain.Cart
	for cur.Next(ctx) {
		var doc cartDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode cart: %w", err)
		}
		c, err := doc.toDomain()
		if err != nil {
			return nil, fmt.Errorf("cart %s: %w", doc.ID, err)
		}
		carts = append(carts, *c)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return carts, nil
}

func (m *MongoRepository) DeleteInactiveExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"is_active":  false,
		"expires_at": bson.M{"$lt": now},
	}

	res, err := m.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired carts: %w", err)
	}

	return res.DeletedCount, nil
}

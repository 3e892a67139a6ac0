// Package preferences stores what each recipient allows each sender to send.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"herald/internal/constants"
	"herald/internal/decision"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

const resourceSeparator = "|"

// ResourceID identifies one preference document in config update events.
func ResourceID(recipient, sender string) string {
	return recipient + resourceSeparator + sender
}

func ParseResourceID(id string) (recipient, sender string, ok bool) {
	idx := strings.LastIndex(id, resourceSeparator)
	if idx <= 0 || idx == len(id)-1 {
		return "", "", false
	}
	return id[:idx], id[idx+1:], true
}

type Repository interface {
	decision.PreferenceStore
	UpsertPreferences(ctx context.Context, prefs *decision.RecipientPreferences) error
	DeletePreferences(ctx context.Context, recipient, sender string) error
	ListPreferences(ctx context.Context, recipient string) ([]decision.RecipientPreferences, error)
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database, collectionName string) Repository {
	return &MongoRepository{collection: db.Collection(collectionName)}
}

func (r *MongoRepository) GetPreferences(ctx context.Context, recipient, sender string) (result *decision.RecipientPreferences, err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StorePreferences, constants.DatabaseMongoDB, "get", start, err)
	}(time.Now())

	var prefs decision.RecipientPreferences
	err = r.collection.FindOne(ctx, bson.M{"recipient": recipient, "sender": sender}).Decode(&prefs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &prefs, nil
}

func (r *MongoRepository) UpsertPreferences(ctx context.Context, prefs *decision.RecipientPreferences) (err error) {
	defer func(start time.Time) {
		metrics.ObserveQuery(constants.StorePreferences, constants.DatabaseMongoDB, "upsert", start, err)
	}(time.Now())

	prefs.UpdatedAt = time.Now().UTC()

	_, err = r.collection.ReplaceOne(ctx,
		bson.M{"recipient": prefs.Recipient, "sender": prefs.Sender},
		prefs,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return nil
}

func (r *MongoRepository) DeletePreferences(ctx context.Context, recipient, sender string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"recipient": recipient, "sender": sender})
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}

	if result.DeletedCount == 0 {
		return pkgerrors.ErrNotFound.WithMessage("preferences for %s from %s not found", recipient, sender)
	}

	return nil
}

func (r *MongoRepository) ListPreferences(ctx context.Context, recipient string) ([]decision.RecipientPreferences, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sender", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"recipient": recipient}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer cursor.Close(ctx)

	var result []decision.RecipientPreferences
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}

	return result, nil
}

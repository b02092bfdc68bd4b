package services

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-shop-bot/models"
)

// RecordHandoff marks a sender as waiting for a human. Repeated requests
// keep the one open row instead of stacking new ones.
func RecordHandoff(ctx context.Context, senderID, pageID, lastMessage, reason string) error {
	collection := GetDatabase().Collection("handoffs")

	filter := bson.M{
		"sender_id": senderID,
		"page_id":   pageID,
		"resolved":  false,
	}
	update := bson.M{
		"$set": bson.M{
			"last_message": lastMessage,
			"reason":       reason,
		},
		"$setOnInsert": bson.M{
			"sender_id":  senderID,
			"page_id":    pageID,
			"resolved":   false,
			"created_at": time.Now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		slog.Error("Failed to record handoff", "senderID", senderID, "error", err)
		return err
	}

	slog.Info("Handoff recorded", "senderID", senderID, "pageID", pageID, "reason", reason)
	return nil
}

// HasOpenHandoff reports whether the bot should stay silent for a sender.
func HasOpenHandoff(ctx context.Context, senderID, pageID string) (bool, error) {
	collection := GetDatabase().Collection("handoffs")

	count, err := collection.CountDocuments(ctx, bson.M{
		"sender_id": senderID,
		"page_id":   pageID,
		"resolved":  false,
	})
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// ResolveHandoff closes a sender's open handoff so the bot resumes.
func ResolveHandoff(ctx context.Context, senderID, pageID string) error {
	collection := GetDatabase().Collection("handoffs")

	_, err := collection.UpdateMany(ctx,
		bson.M{"sender_id": senderID, "page_id": pageID, "resolved": false},
		bson.M{"$set": bson.M{"resolved": true, "resolved_at": time.Now()}},
	)
	return err
}

// ListHandoffs returns handoffs for a page, open ones first.
func ListHandoffs(ctx context.Context, pageID string, includeResolved bool, limit, skip int) ([]models.Handoff, error) {
	collection := GetDatabase().Collection("handoffs")

	filter := bson.M{"page_id": pageID}
	if !includeResolved {
		filter["resolved"] = false
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "resolved", Value: 1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var handoffs []models.Handoff
	if err := cursor.All(ctx, &handoffs); err != nil {
		return nil, err
	}

	return handoffs, nil
}

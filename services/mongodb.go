package services

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-shop-bot/models"
)

var (
	mongoClient *mongo.Client
	database    *mongo.Database
)

// GetDatabase returns the MongoDB database instance
func GetDatabase() *mongo.Database {
	return database
}

// InitMongoDB initializes MongoDB connection
func InitMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	slog.Info("Connected to MongoDB")
	mongoClient = client

	return client, nil
}

// InitServices initializes all services
func InitServices(client *mongo.Client, databaseName string) {
	database = client.Database(databaseName)

	createIndexes()
}

// createIndexes creates necessary database indexes
func createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Conversations collection indexes
	conversations := database.Collection("conversations")
	conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "page_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.M{"ad_id": 1}},
	})

	// One lead per sender per page. The unique index makes the
	// scan-then-write race from concurrent deliveries impossible.
	leads := database.Collection("leads")
	leads.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "page_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.M{"status": 1}},
		{Keys: bson.M{"updated_at": -1}},
	})

	// Ad products are looked up by attribution id
	adProducts := database.Collection("ad_products")
	adProducts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"ad_id": 1},
		Options: options.Index().SetUnique(true),
	})

	handoffs := database.Collection("handoffs")
	handoffs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "page_id", Value: 1}}},
		{Keys: bson.M{"resolved": 1}},
	})

	sessions := database.Collection("sessions")
	sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"session_id": 1},
		Options: options.Index().SetUnique(true),
	})

	users := database.Collection("users")
	users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"username": 1},
		Options: options.Index().SetUnique(true),
	})
}

// SaveTurn appends a conversation turn. Turns are never mutated.
func SaveTurn(ctx context.Context, turn *models.ConversationTurn) error {
	collection := database.Collection("conversations")
	_, err := collection.InsertOne(ctx, turn)
	return err
}

// ChatHistory represents a chat history entry handed to the model
type ChatHistory struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// GetRecentHistory fetches the last limit turns for a sender on a page,
// oldest first, for use as prompt context.
func GetRecentHistory(ctx context.Context, senderID, pageID string, limit int) ([]ChatHistory, error) {
	collection := database.Collection("conversations")

	if limit <= 0 {
		limit = 10
	}

	filter := bson.M{
		"sender_id": senderID,
		"page_id":   pageID,
		"role":      bson.M{"$in": []string{"user", "assistant"}},
	}

	findOptions := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var turns []models.ConversationTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, err
	}

	// Reverse into chronological order
	history := make([]ChatHistory, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		history = append(history, ChatHistory{
			Role:    turns[i].Role,
			Content: turns[i].Text,
		})
	}

	return history, nil
}

// GetConversation returns a sender's full transcript with pagination,
// newest first.
func GetConversation(ctx context.Context, senderID, pageID string, limit, skip int) ([]models.ConversationTurn, int64, error) {
	collection := database.Collection("conversations")

	filter := bson.M{
		"sender_id": senderID,
		"page_id":   pageID,
	}

	totalCount, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var turns []models.ConversationTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, 0, err
	}

	return turns, totalCount, nil
}

// ListConversations aggregates distinct senders for a page with their
// last message, newest conversations first.
func ListConversations(ctx context.Context, pageID string, limit, skip int) ([]bson.M, error) {
	collection := database.Collection("conversations")

	pipeline := []bson.M{
		{"$match": bson.M{"page_id": pageID}},
		{"$sort": bson.M{"timestamp": -1}},
		{"$group": bson.M{
			"_id":            "$sender_id",
			"last_text":      bson.M{"$first": "$text"},
			"last_role":      bson.M{"$first": "$role"},
			"last_timestamp": bson.M{"$first": "$timestamp"},
			"ad_id":          bson.M{"$first": "$ad_id"},
			"turn_count":     bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"last_timestamp": -1}},
		{"$skip": skip},
		{"$limit": limit},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []bson.M
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}

	return conversations, nil
}

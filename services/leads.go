package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-shop-bot/models"
)

// LeadInfo carries the fields captured so far. Empty fields are left
// untouched on update.
type LeadInfo struct {
	Name           string
	Address        string
	Phone          string
	Location       string
	ProductSummary string
}

// SaveLead creates or updates the lead row for a sender with status
// "new". Only the non-empty supplied fields are written. The upsert is
// keyed by (sender_id, page_id) with a unique index, so concurrent
// deliveries for the same sender cannot create duplicate rows.
func SaveLead(ctx context.Context, senderID, pageID, adID string, info LeadInfo) error {
	return saveLeadRow(ctx, senderID, pageID, adID, info, models.LeadStatusNew)
}

// SaveOrder is the same write with status "ordered".
func SaveOrder(ctx context.Context, senderID, pageID, adID string, info LeadInfo) error {
	return saveLeadRow(ctx, senderID, pageID, adID, info, models.LeadStatusOrdered)
}

func saveLeadRow(ctx context.Context, senderID, pageID, adID string, info LeadInfo, status string) error {
	collection := GetDatabase().Collection("leads")

	now := time.Now()

	set := bson.M{
		"status":     status,
		"updated_at": now,
	}
	if adID != "" {
		set["ad_id"] = adID
	}
	if info.Name != "" {
		set["name"] = info.Name
	}
	if info.Address != "" {
		set["address"] = info.Address
	}
	if info.Phone != "" {
		set["phone"] = info.Phone
	}
	if info.Location != "" {
		set["location"] = info.Location
	}
	if info.ProductSummary != "" {
		set["product_summary"] = info.ProductSummary
	}

	filter := bson.M{
		"sender_id": senderID,
		"page_id":   pageID,
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"lead_id":    uuid.NewString(),
			"sender_id":  senderID,
			"page_id":    pageID,
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	result, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		slog.Error("Failed to save lead",
			"senderID", senderID,
			"pageID", pageID,
			"status", status,
			"error", err)
		return err
	}

	if result.UpsertedCount > 0 {
		slog.Info("New lead created", "senderID", senderID, "pageID", pageID, "status", status)
	} else {
		slog.Info("Lead updated", "senderID", senderID, "pageID", pageID, "status", status)
	}

	return nil
}

// GetLead returns the lead for a sender, or nil when none exists.
func GetLead(ctx context.Context, senderID, pageID string) (*models.Lead, error) {
	collection := GetDatabase().Collection("leads")

	var lead models.Lead
	err := collection.FindOne(ctx, bson.M{
		"sender_id": senderID,
		"page_id":   pageID,
	}).Decode(&lead)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &lead, nil
}

// ListLeads returns leads for a page, newest first, optionally filtered
// by status.
func ListLeads(ctx context.Context, pageID, status string, limit, skip int) ([]models.Lead, int64, error) {
	collection := GetDatabase().Collection("leads")

	filter := bson.M{"page_id": pageID}
	if status != "" {
		filter["status"] = status
	}

	totalCount, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.M{"updated_at": -1}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var leads []models.Lead
	if err := cursor.All(ctx, &leads); err != nil {
		return nil, 0, err
	}

	return leads, totalCount, nil
}

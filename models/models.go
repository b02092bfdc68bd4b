package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationTurn represents one logged message in a conversation.
// Turns are append-only; history is reconstructed by reading the last
// N turns for a sender in insertion order.
type ConversationTurn struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID  string             `bson:"sender_id" json:"sender_id"`
	PageID    string             `bson:"page_id" json:"page_id"`
	AdID      string             `bson:"ad_id,omitempty" json:"ad_id,omitempty"`
	Role      string             `bson:"role" json:"role"` // "user", "assistant" or "system"
	Text      string             `bson:"text" json:"text"`
	Intent    string             `bson:"intent,omitempty" json:"intent,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Product is a single product slot inside an ad row.
type Product struct {
	Name   string   `bson:"name" json:"name"`
	Price  string   `bson:"price" json:"price"` // display string, not guaranteed numeric
	Detail string   `bson:"detail,omitempty" json:"detail,omitempty"`
	Images []string `bson:"images,omitempty" json:"images,omitempty"` // up to 3 URLs
}

// AdProducts maps an ad-attribution id to the products that ad promotes.
// Rows are sourced externally and treated as immutable by the bot; the
// catalog cache reads them through a 5-minute TTL.
type AdProducts struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AdID      string             `bson:"ad_id" json:"ad_id"`
	Products  []Product          `bson:"products" json:"products"` // up to 5 slots
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Lead statuses.
const (
	LeadStatusNew     = "new"
	LeadStatusOrdered = "ordered"
)

// Lead represents a captured prospective-customer record, upgraded to an
// order once the detail-collection flow completes. One lead per
// (sender_id, page_id), enforced by a unique index.
type Lead struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LeadID         string             `bson:"lead_id" json:"lead_id"`
	SenderID       string             `bson:"sender_id" json:"sender_id"`
	PageID         string             `bson:"page_id" json:"page_id"`
	AdID           string             `bson:"ad_id,omitempty" json:"ad_id,omitempty"`
	Name           string             `bson:"name,omitempty" json:"name,omitempty"`
	Address        string             `bson:"address,omitempty" json:"address,omitempty"`
	Phone          string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Location       string             `bson:"location,omitempty" json:"location,omitempty"`
	ProductSummary string             `bson:"product_summary,omitempty" json:"product_summary,omitempty"`
	Status         string             `bson:"status" json:"status"` // "new" or "ordered"
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// Handoff records a customer's explicit request for a human agent. While
// an open handoff exists the bot stays silent for that sender.
type Handoff struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    string             `bson:"sender_id" json:"sender_id"`
	PageID      string             `bson:"page_id" json:"page_id"`
	LastMessage string             `bson:"last_message,omitempty" json:"last_message,omitempty"`
	Reason      string             `bson:"reason,omitempty" json:"reason,omitempty"`
	Resolved    bool               `bson:"resolved" json:"resolved"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	ResolvedAt  time.Time          `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-shop-bot/config"
	"messenger-shop-bot/models"
	"messenger-shop-bot/services"
)

func setupPipeline(t *testing.T) {
	t.Helper()

	rows := []models.AdProducts{
		{
			AdID: "ad_rack",
			Products: []models.Product{
				{Name: "4 Tier Rack", Price: "Rs.5000", Detail: "Powder coated", Images: []string{"https://cdn.example.com/rack.jpg"}},
			},
		},
	}

	InitPipeline(
		&config.Config{PageTokens: map[string]string{"page1": "token1"}},
		services.NewStateStore(time.Hour),
		services.NewCatalog(time.Minute, func(ctx context.Context) ([]models.AdProducts, error) {
			return rows, nil
		}),
		nil,
	)
}

func adContext(t *testing.T) (string, []string, []models.Product) {
	t.Helper()
	return catalog.ProductsForAd(context.Background(), "ad_rack")
}

func TestReplyForIntentAvailability(t *testing.T) {
	setupPipeline(t)
	text, images, products := adContext(t)
	cc := &services.ConversationContext{}

	reply, _, answered := replyForIntent(context.Background(), cc, services.IntentAvailability, text, images, products)

	require.True(t, answered)
	assert.Contains(t, reply, "available")
	assert.Contains(t, reply, "5000")

	ok, reason := services.ValidateReply(reply, text, "rack thiyanawada")
	assert.True(t, ok, "reason: %s", reason)
}

func TestReplyForIntentPhotos(t *testing.T) {
	setupPipeline(t)
	text, images, products := adContext(t)
	cc := &services.ConversationContext{}

	reply, replyImages, answered := replyForIntent(context.Background(), cc, services.IntentPhotos, text, images, products)

	require.True(t, answered)
	assert.NotEmpty(t, reply)
	assert.Equal(t, []string{"https://cdn.example.com/rack.jpg"}, replyImages)

	_, noImages, _ := replyForIntent(context.Background(), cc, services.IntentPhotos, "", nil, nil)
	assert.Empty(t, noImages)
}

func TestReplyForIntentDelivery(t *testing.T) {
	setupPipeline(t)

	cc := &services.ConversationContext{}
	reply, _, answered := replyForIntent(context.Background(), cc, services.IntentDelivery, "", nil, nil)
	require.True(t, answered)
	assert.Contains(t, reply, services.DeliveryFeeColombo)
	assert.Contains(t, reply, services.DeliveryFeeOutstation)

	cc.Location = "kandy"
	known, _, _ := replyForIntent(context.Background(), cc, services.IntentDelivery, "", nil, nil)
	assert.Contains(t, known, services.DeliveryFeeOutstation)
	assert.NotContains(t, known, services.DeliveryFeeColombo)
}

func TestReplyForIntentTotalPrice(t *testing.T) {
	setupPipeline(t)
	text, images, products := adContext(t)

	t.Run("quantity known", func(t *testing.T) {
		cc := &services.ConversationContext{Quantity: 2}
		reply, _, answered := replyForIntent(context.Background(), cc, services.IntentTotalPrice, text, images, products)
		require.True(t, answered)
		assert.Contains(t, reply, "Rs. 10000")
	})

	t.Run("no quantity falls back to unit price", func(t *testing.T) {
		cc := &services.ConversationContext{}
		reply, _, answered := replyForIntent(context.Background(), cc, services.IntentTotalPrice, text, images, products)
		require.True(t, answered)
		assert.Contains(t, reply, "Rs.5000")
	})
}

func TestReplyForIntentHowToOrder(t *testing.T) {
	setupPipeline(t)

	t.Run("no location starts the location step", func(t *testing.T) {
		cc := &services.ConversationContext{}
		reply, _, answered := replyForIntent(context.Background(), cc, services.IntentHowToOrder, "", nil, nil)
		require.True(t, answered)
		assert.Equal(t, services.StepAskLocation, cc.Step)
		assert.Contains(t, reply, "town")
	})

	t.Run("known location jumps to name collection", func(t *testing.T) {
		cc := &services.ConversationContext{Location: "kandy"}
		_, _, answered := replyForIntent(context.Background(), cc, services.IntentHowToOrder, "", nil, nil)
		require.True(t, answered)
		assert.Equal(t, services.StepCollectName, cc.Step)
	})
}

func TestReplyForIntentGeneralIsUnanswered(t *testing.T) {
	setupPipeline(t)
	cc := &services.ConversationContext{}

	_, _, answered := replyForIntent(context.Background(), cc, services.IntentGeneral, "", nil, nil)
	assert.False(t, answered)
}

// With no Claude client configured the keyword table is the only
// classifier, so general stays general.
func TestClassifyMessageKeywordOnly(t *testing.T) {
	setupPipeline(t)

	got := classifyMessage(context.Background(), "meka kiyada", nil)
	assert.Equal(t, services.IntentPrice, got.Intent)

	general := classifyMessage(context.Background(), "hello", nil)
	assert.Equal(t, services.IntentGeneral, general.Intent)
}

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"messenger-shop-bot/config"
	"messenger-shop-bot/models"
	"messenger-shop-bot/services"
)

const handleTimeout = 60 * time.Second

// claudeConfidenceFloor: below this the Claude classification is treated
// as general rather than trusted.
const claudeConfidenceFloor = 0.6

// InboundMessage is a normalized messaging event: one customer utterance,
// possibly carrying an ad referral.
type InboundMessage struct {
	SenderID  string
	MessageID string
	Text      string
	AdRef     string
	Timestamp int64
}

// Shared pipeline dependencies, wired once from main.
var (
	appConfig  *config.Config
	stateStore *services.StateStore
	catalog    *services.Catalog
	claude     *services.ClaudeClient
)

// InitPipeline wires the message pipeline's shared services. claude may
// be nil when no API key is configured; the keyword router still works.
func InitPipeline(cfg *config.Config, store *services.StateStore, cat *services.Catalog, client *services.ClaudeClient) {
	appConfig = cfg
	stateStore = store
	catalog = cat
	claude = client
}

// HandleMessage runs the full pipeline for one inbound customer message:
// handoff silence, ad attribution, intent routing, the order dialogue,
// and reply generation. It is called on its own goroutine per event.
func HandleMessage(event InboundMessage, pageID string, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	log := slog.With("sender_id", event.SenderID, "page_id", pageID)
	token := cfg.PageTokens[pageID]
	if token == "" {
		log.Warn("No access token for page, replies disabled")
	}

	// A waiting human agent owns the conversation; the bot logs the
	// message and stays silent.
	if open, err := services.HasOpenHandoff(ctx, event.SenderID, pageID); err == nil && open {
		saveTurn(ctx, event.SenderID, pageID, "", "user", event.Text, string(services.IntentGeneral))
		broadcastTurn(pageID, event.SenderID, "user", event.Text)
		log.Info("Open handoff, bot staying silent")
		return
	}

	cc := stateStore.Get(event.SenderID, pageID)

	// Ad referral: remember the attribution and open the location flow.
	if event.AdRef != "" && cc.AdID != event.AdRef {
		handleAdReferral(ctx, cc, event, pageID, token)
		if event.Text == "" {
			return
		}
	}

	if event.Text == "" {
		return
	}

	productText, images, products := productContext(ctx, cc, event.Text)

	classification := classifyMessage(ctx, event.Text, products)
	log.Info("Classified message", "intent", classification.Intent, "confidence", classification.Confidence)

	if classification.Entities.Quantity > 0 {
		cc.Quantity = classification.Entities.Quantity
	}

	saveTurn(ctx, event.SenderID, pageID, cc.AdID, "user", event.Text, string(classification.Intent))
	broadcastTurn(pageID, event.SenderID, "user", event.Text)

	// Explicit agent request wins over everything else.
	if services.DetectAgentRequest(event.Text) {
		handleAgentRequest(ctx, cc, event, pageID, token)
		return
	}

	// The order dialogue gets first refusal on any message while a flow
	// is in progress.
	if cc.Step != services.StepNone {
		result := services.Advance(cc, event.Text, classification.Intent, products)
		applyDialogueEffects(ctx, cc, result)
		if result.Handled {
			deliverReply(ctx, event.SenderID, pageID, cc.AdID, result.Reply, nil, token)
			return
		}
		if !result.Interrupted {
			// Fell out of the flow; re-resolve products since the ad
			// context may have just been cleared.
			productText, images, products = productContext(ctx, cc, event.Text)
		}
	}

	reply, replyImages, answered := replyForIntent(ctx, cc, classification.Intent, productText, images, products)
	if !answered {
		reply = generalReply(ctx, event, pageID, productText)
		replyImages = nil
	}

	deliverReply(ctx, event.SenderID, pageID, cc.AdID, reply, replyImages, token)
}

func handleAdReferral(ctx context.Context, cc *services.ConversationContext, event InboundMessage, pageID, token string) {
	greeting := services.StartAdFlow(cc, event.AdRef)

	productText, images, _ := catalog.ProductsForAd(ctx, event.AdRef)
	if productText != "" {
		intro := "Here's what this ad is about:\n\n" + productText
		deliverReply(ctx, event.SenderID, pageID, cc.AdID, intro, images, token)
	}
	deliverReply(ctx, event.SenderID, pageID, cc.AdID, greeting, nil, token)

	slog.Info("Ad referral opened flow", "sender_id", event.SenderID, "page_id", pageID, "ad_id", event.AdRef)
}

// productContext resolves the products this message is about: the
// attributed ad's products when there is an ad, otherwise a catalog
// search over the message text.
func productContext(ctx context.Context, cc *services.ConversationContext, text string) (string, []string, []models.Product) {
	if cc.AdID != "" {
		return catalog.ProductsForAd(ctx, cc.AdID)
	}
	return catalog.SearchProducts(ctx, text)
}

// classifyMessage routes through the keyword tables first; only general
// results escalate to Claude, and only when a client is configured.
func classifyMessage(ctx context.Context, text string, products []models.Product) services.Classification {
	c := services.Classify(text)
	if c.Intent != services.IntentGeneral || claude == nil {
		return c
	}

	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}

	llm := claude.ClassifyIntent(ctx, text, names)
	if llm.Confidence < claudeConfidenceFloor {
		return c
	}
	if llm.Entities.Quantity == 0 {
		llm.Entities.Quantity = c.Entities.Quantity
	}
	return llm
}

func handleAgentRequest(ctx context.Context, cc *services.ConversationContext, event InboundMessage, pageID, token string) {
	if err := services.RecordHandoff(ctx, event.SenderID, pageID, event.Text, "customer requested human agent"); err != nil {
		slog.Error("Failed to record handoff", "error", err, "sender_id", event.SenderID)
	}

	services.GetWebSocketManager().BroadcastToPage(pageID, services.BroadcastMessage{
		Type: "handoff_requested",
		Data: map[string]string{"sender_id": event.SenderID, "last_message": event.Text},
	})

	reply := "Of course! 🙏 I've asked one of our team members to take over. They'll reply to you here shortly."
	deliverReply(ctx, event.SenderID, pageID, cc.AdID, reply, nil, token)
}

// applyDialogueEffects performs the writes the transition function asked for.
func applyDialogueEffects(ctx context.Context, cc *services.ConversationContext, result services.DialogueResult) {
	if result.SaveLead {
		info := services.LeadInfo{Location: cc.Location}
		if err := services.SaveLead(ctx, cc.SenderID, cc.PageID, cc.AdID, info); err != nil {
			slog.Error("Failed to save lead", "error", err, "sender_id", cc.SenderID)
		}
		broadcastLead(cc.PageID, cc.SenderID, "new")
	}

	if result.SaveOrder {
		_, _, products := catalog.ProductsForAd(ctx, cc.AdID)
		info := services.LeadInfo{
			Name:           cc.Name,
			Address:        cc.Address,
			Phone:          cc.Phone,
			Location:       cc.Location,
			ProductSummary: services.OrderSummary(products, cc.Quantity),
		}
		if err := services.SaveOrder(ctx, cc.SenderID, cc.PageID, cc.AdID, info); err != nil {
			slog.Error("Failed to save order", "error", err, "sender_id", cc.SenderID)
		}
		broadcastLead(cc.PageID, cc.SenderID, "ordered")
	}

	if result.ClearContext {
		stateStore.Delete(cc.SenderID, cc.PageID)
	}
}

// replyForIntent answers the question intents from catalog data alone,
// with no model call. answered is false for general and anything the
// catalog cannot answer without generation.
func replyForIntent(ctx context.Context, cc *services.ConversationContext, intent services.Intent, productText string, images []string, products []models.Product) (string, []string, bool) {
	switch intent {
	case services.IntentAvailability:
		if len(products) == 0 {
			return "Could you tell me which product you're asking about? 😊", nil, true
		}
		return "Yes, it's available! 😊\n\n" + productText, nil, true

	case services.IntentPhotos:
		if len(images) == 0 {
			return "Sorry, I don't have photos for that at the moment. 🙏", nil, true
		}
		return "Here are the photos! 😊", images, true

	case services.IntentDelivery:
		if cc.Location != "" {
			return fmt.Sprintf("Delivery to %s is %s. 🚚", cc.Location, services.DeliveryFee(cc.Location)), nil, true
		}
		return fmt.Sprintf("We deliver islandwide! 🚚 Delivery is %s for the Colombo area and %s for other areas. Which town are you in?",
			services.DeliveryFeeColombo, services.DeliveryFeeOutstation), nil, true

	case services.IntentDetails, services.IntentDimensions:
		if len(products) == 0 {
			return "Which product would you like details about? 😊", nil, true
		}
		return productText, nil, true

	case services.IntentPrice:
		if len(products) == 0 {
			return "Which product's price would you like to know? 😊", nil, true
		}
		return priceLines(products), nil, true

	case services.IntentTotalPrice:
		if len(products) == 0 {
			return "Which product would you like the total for? 😊", nil, true
		}
		return totalPriceReply(cc, products), nil, true

	case services.IntentProductList:
		text, listImages, listProducts := catalog.AllProducts(ctx, 5)
		if len(listProducts) == 0 {
			return "Our catalog is being updated right now. Please check back soon! 🙏", nil, true
		}
		return "Here's what we have: 😊\n\n" + text, listImages, true

	case services.IntentHowToOrder:
		return howToOrderReply(cc), nil, true
	}

	return "", nil, false
}

func priceLines(products []models.Product) string {
	out := ""
	for _, p := range products {
		if out != "" {
			out += "\n"
		}
		out += p.Name + " - " + p.Price
	}
	return out
}

// totalPriceReply multiplies price by quantity when both are numeric;
// display prices are not guaranteed to parse, so it degrades to the
// plain price lines.
func totalPriceReply(cc *services.ConversationContext, products []models.Product) string {
	qty := cc.Quantity
	if qty <= 1 {
		return priceLines(products)
	}

	unit := services.ParsePriceValue(products[0].Price)
	if unit == 0 {
		return priceLines(products)
	}

	return fmt.Sprintf("%d x %s = Rs. %d 😊", qty, products[0].Price, qty*unit)
}

func howToOrderReply(cc *services.ConversationContext) string {
	if cc.Location == "" {
		cc.Step = services.StepAskLocation
		cc.AskedLocation = true
		return "It's easy! 😊 First, which town are you in? I'll check the delivery charge for you."
	}
	cc.Step = services.StepCollectName
	return "Great, let's get your order started! 🎉 May I have your name please?"
}

// generalReply generates a free-form answer with Claude, validated
// against the product context before it goes out.
func generalReply(ctx context.Context, event InboundMessage, pageID, productText string) string {
	if claude == nil {
		return services.FallbackReply(productText)
	}

	history, err := services.GetRecentHistory(ctx, event.SenderID, pageID, 10)
	if err != nil {
		slog.Warn("Failed to load history", "error", err, "sender_id", event.SenderID)
	}

	reply, err := claude.GenerateReply(ctx, event.Text, productText, history)
	if err != nil {
		slog.Error("Claude generation failed", "error", err, "sender_id", event.SenderID)
		return services.FallbackReply(productText)
	}

	return services.CheckedReply(reply, productText, event.Text)
}

// deliverReply sends the text and any images, records the assistant
// turn, and pushes the event to watching dashboards.
func deliverReply(ctx context.Context, senderID, pageID, adID, reply string, images []string, token string) {
	if reply == "" {
		return
	}

	if token != "" {
		if err := services.SendMessengerReply(ctx, senderID, reply, token); err != nil {
			slog.Error("Failed to send reply", "error", err, "sender_id", senderID)
		}
		if len(images) > 0 {
			services.SendMessengerImages(ctx, senderID, images, token)
		}
	}

	saveTurn(ctx, senderID, pageID, adID, "assistant", reply, "")
	broadcastTurn(pageID, senderID, "assistant", reply)
}

func saveTurn(ctx context.Context, senderID, pageID, adID, role, text, intent string) {
	turn := &models.ConversationTurn{
		SenderID:  senderID,
		PageID:    pageID,
		AdID:      adID,
		Role:      role,
		Text:      text,
		Intent:    intent,
		Timestamp: time.Now(),
	}
	if err := services.SaveTurn(ctx, turn); err != nil {
		slog.Error("Failed to save conversation turn", "error", err, "sender_id", senderID)
	}
}

func broadcastTurn(pageID, senderID, role, text string) {
	services.GetWebSocketManager().BroadcastToPage(pageID, services.BroadcastMessage{
		Type: "new_message",
		Data: map[string]string{"sender_id": senderID, "role": role, "text": text},
	})
}

func broadcastLead(pageID, senderID, status string) {
	services.GetWebSocketManager().BroadcastToPage(pageID, services.BroadcastMessage{
		Type: "lead_updated",
		Data: map[string]string{"sender_id": senderID, "status": status},
	})
}

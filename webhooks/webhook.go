package webhooks

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"messenger-shop-bot/config"
	"messenger-shop-bot/handlers"
)

// Duplicate webhook deliveries are dropped within this window.
const dedupTTL = 5 * time.Minute

var messageDedup = NewDedupStore(dedupTTL)

func RegisterRoutes(app *fiber.App, cfg *config.Config) {
	webhook := app.Group("/webhook")

	// Webhook verification endpoint
	webhook.Get("/", verifyWebhook(cfg))

	// Webhook event handler
	webhook.Post("/", handleWebhookEvent(cfg))
}

// verifyWebhook handles Facebook webhook verification
func verifyWebhook(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && token == cfg.VerifyToken {
			slog.Info("Webhook verified successfully")
			return c.SendString(challenge)
		}

		slog.Warn("Webhook verification failed", "mode", mode)
		return c.SendStatus(fiber.StatusForbidden)
	}
}

// handleWebhookEvent processes incoming webhook events
func handleWebhookEvent(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body WebhookEvent
		if err := c.BodyParser(&body); err != nil {
			slog.Error("Failed to parse webhook body", "error", err)
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// Only process page events
		if body.Object != "page" {
			return c.SendStatus(fiber.StatusNotFound)
		}

		// Process webhook asynchronously
		go processWebhookEvent(body, cfg)

		// Return immediately to Facebook
		return c.SendString("EVENT_RECEIVED")
	}
}

// processWebhookEvent handles the webhook processing in a separate goroutine
func processWebhookEvent(body WebhookEvent, cfg *config.Config) {
	for _, entry := range body.Entry {
		pageID := entry.ID

		for _, messaging := range entry.Messaging {
			event := toInbound(messaging)
			if event == nil {
				continue
			}

			// Drop redelivered messages before any side effect
			if event.MessageID != "" && messageDedup.Seen(event.MessageID) {
				slog.Info("Dropping duplicate webhook delivery",
					"mid", event.MessageID,
					"senderID", event.SenderID,
				)
				continue
			}

			handlers.HandleMessage(*event, pageID, cfg)
		}
	}
}

// toInbound converts a raw messaging event into the handler's inbound
// form. Events with no usable payload (delivery receipts, reads) return
// nil.
func toInbound(m Messaging) *handlers.InboundMessage {
	event := &handlers.InboundMessage{
		SenderID:  m.Sender.ID,
		Timestamp: m.Timestamp,
	}

	switch {
	case m.Message != nil && m.Message.QuickReply != nil:
		event.MessageID = m.Message.MID
		event.Text = m.Message.QuickReply.Payload
	case m.Message != nil && m.Message.Text != "":
		event.MessageID = m.Message.MID
		event.Text = m.Message.Text
	case m.Postback != nil:
		event.Text = m.Postback.Payload
		event.AdRef = referralRef(m.Postback.Referral)
	case m.Referral != nil:
		// Referral-only event: the user tapped an ad but has not typed yet
		event.AdRef = referralRef(m.Referral)
	default:
		return nil
	}

	if event.AdRef == "" {
		event.AdRef = referralRef(m.Referral)
	}

	return event
}

// referralRef picks the ad attribution out of a referral: the explicit
// ref param when the ad carries one, the ad ID otherwise.
func referralRef(r *Referral) string {
	if r == nil {
		return ""
	}
	if r.Ref != "" {
		return r.Ref
	}
	return r.AdID
}

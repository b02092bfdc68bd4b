package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"messenger-shop-bot/models"
	"messenger-shop-bot/services"
)

const dashboardTimeout = 10 * time.Second

func dashboardContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dashboardTimeout)
}

// pageFromQuery validates the page_id query param against configured
// pages. On failure the 4xx response is already written.
func pageFromQuery(c *fiber.Ctx) (string, bool) {
	pageID := c.Query("page_id")
	if pageID == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page_id is required",
		})
		return "", false
	}
	if _, ok := appConfig.PageTokens[pageID]; !ok {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown page",
		})
		return "", false
	}
	return pageID, true
}

// GetLeads lists leads for a page, optionally filtered by status.
func GetLeads(c *fiber.Ctx) error {
	pageID, ok := pageFromQuery(c)
	if !ok {
		return nil
	}

	status := c.Query("status")
	limit := c.QueryInt("limit", 50)
	skip := c.QueryInt("skip", 0)

	ctx, cancel := dashboardContext()
	defer cancel()

	leads, total, err := services.ListLeads(ctx, pageID, status, limit, skip)
	if err != nil {
		slog.Error("Failed to list leads", "error", err, "page_id", pageID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve leads",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"leads": leads,
		"total": total,
		"limit": limit,
		"skip":  skip,
	})
}

// GetConversations lists conversations for a page, most recent first.
func GetConversations(c *fiber.Ctx) error {
	pageID, ok := pageFromQuery(c)
	if !ok {
		return nil
	}

	limit := c.QueryInt("limit", 50)
	skip := c.QueryInt("skip", 0)

	ctx, cancel := dashboardContext()
	defer cancel()

	conversations, err := services.ListConversations(ctx, pageID, limit, skip)
	if err != nil {
		slog.Error("Failed to list conversations", "error", err, "page_id", pageID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve conversations",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"conversations": conversations,
	})
}

// GetConversationTranscript returns the message history for one sender.
func GetConversationTranscript(c *fiber.Ctx) error {
	pageID, ok := pageFromQuery(c)
	if !ok {
		return nil
	}

	senderID := c.Params("senderID")
	if senderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sender ID is required",
		})
	}

	limit := c.QueryInt("limit", 100)
	skip := c.QueryInt("skip", 0)

	ctx, cancel := dashboardContext()
	defer cancel()

	turns, total, err := services.GetConversation(ctx, senderID, pageID, limit, skip)
	if err != nil {
		slog.Error("Failed to get conversation", "error", err, "sender_id", senderID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve conversation",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"messages": turns,
		"total":    total,
	})
}

// GetHandoffs lists handoff requests for a page.
func GetHandoffs(c *fiber.Ctx) error {
	pageID, ok := pageFromQuery(c)
	if !ok {
		return nil
	}

	includeResolved := c.QueryBool("include_resolved", false)
	limit := c.QueryInt("limit", 50)
	skip := c.QueryInt("skip", 0)

	ctx, cancel := dashboardContext()
	defer cancel()

	handoffs, err := services.ListHandoffs(ctx, pageID, includeResolved, limit, skip)
	if err != nil {
		slog.Error("Failed to list handoffs", "error", err, "page_id", pageID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve handoffs",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"handoffs": handoffs,
	})
}

// ResolveHandoff marks a sender's handoffs resolved, returning the
// conversation to the bot.
func ResolveHandoff(c *fiber.Ctx) error {
	pageID, ok := pageFromQuery(c)
	if !ok {
		return nil
	}

	senderID := c.Params("senderID")
	if senderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sender ID is required",
		})
	}

	ctx, cancel := dashboardContext()
	defer cancel()

	if err := services.ResolveHandoff(ctx, senderID, pageID); err != nil {
		slog.Error("Failed to resolve handoff", "error", err, "sender_id", senderID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve handoff",
		})
	}

	slog.Info("Handoff resolved", "sender_id", senderID, "page_id", pageID, "by", c.Locals("username"))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Handoff resolved",
	})
}

type AgentReplyRequest struct {
	Message string `json:"message"`
}

// SendAgentReply lets a dashboard agent answer a customer directly.
func SendAgentReply(c *fiber.Ctx) error {
	pageID, ok := pageFromQuery(c)
	if !ok {
		return nil
	}

	senderID := c.Params("senderID")
	if senderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sender ID is required",
		})
	}

	var req AgentReplyRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	token := appConfig.PageTokens[pageID]
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Page has no access token configured",
		})
	}

	ctx, cancel := dashboardContext()
	defer cancel()

	if err := services.SendMessengerReply(ctx, senderID, req.Message, token); err != nil {
		slog.Error("Failed to send agent reply", "error", err, "sender_id", senderID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send message",
		})
	}

	saveTurn(ctx, senderID, pageID, "", "agent", req.Message, "")
	broadcastTurn(pageID, senderID, "agent", req.Message)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Reply sent",
	})
}

// GetAdProducts lists the ad-to-products mappings.
func GetAdProducts(c *fiber.Ctx) error {
	ctx, cancel := dashboardContext()
	defer cancel()

	rows, err := services.ListAdProducts(ctx)
	if err != nil {
		slog.Error("Failed to list ad products", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve ad products",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ad_products": rows,
	})
}

type AdProductsRequest struct {
	AdID     string           `json:"ad_id"`
	Products []models.Product `json:"products"`
}

// UpsertAdProducts creates or replaces the product mapping for an ad.
// Admin only.
func UpsertAdProducts(c *fiber.Ctx) error {
	var req AdProductsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AdID == "" || len(req.Products) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ad_id and products are required",
		})
	}

	ctx, cancel := dashboardContext()
	defer cancel()

	row := &models.AdProducts{
		AdID:      req.AdID,
		Products:  req.Products,
		UpdatedAt: time.Now(),
	}
	if err := services.UpsertAdProducts(ctx, row); err != nil {
		slog.Error("Failed to upsert ad products", "error", err, "ad_id", req.AdID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save ad products",
		})
	}

	slog.Info("Ad products updated", "ad_id", req.AdID, "count", len(req.Products), "by", c.Locals("username"))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Ad products saved",
	})
}

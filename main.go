package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"messenger-shop-bot/config"
	"messenger-shop-bot/handlers"
	"messenger-shop-bot/middleware"
	"messenger-shop-bot/models"
	"messenger-shop-bot/services"
	"messenger-shop-bot/webhooks"
)

const stateIdleTTL = 6 * time.Hour

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	// Load configuration
	cfg := config.LoadConfig()
	services.GraphAPIVersion = cfg.GraphAPIVersion

	// Initialize MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := services.InitMongoDB(ctx, cfg.MongoURI)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer db.Disconnect(ctx)

	services.InitServices(db, cfg.DatabaseName)
	ensureAdminUser(ctx)

	// Background workers
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	stateStore := services.NewStateStore(stateIdleTTL)
	stateStore.StartCleanup(workerCtx, 10*time.Minute)

	catalog := services.NewCatalog(cfg.CatalogTTL, services.FetchAdRows)
	catalog.StartRefresh(workerCtx)

	services.StartSessionCleanup(workerCtx)

	var claudeClient *services.ClaudeClient
	if cfg.ClaudeAPIKey != "" {
		claudeClient = services.NewClaudeClient(cfg.ClaudeAPIKey, cfg.ClaudeModel, cfg.MaxTokens)
	} else {
		slog.Warn("No Claude API key configured, keyword routing only")
	}

	handlers.InitPipeline(cfg, stateStore, catalog, claudeClient)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:5173, http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	// Messenger webhook
	webhooks.RegisterRoutes(app, cfg)

	// Dashboard authentication
	auth := app.Group("/auth")
	auth.Post("/login", handlers.Login)
	auth.Post("/logout", handlers.Logout)
	auth.Get("/me", handlers.GetCurrentUser)

	// Dashboard API (protected)
	dashboard := app.Group("/api/dashboard", middleware.RequireAuth)
	dashboard.Get("/leads", handlers.GetLeads)
	dashboard.Get("/conversations", handlers.GetConversations)
	dashboard.Get("/conversations/:senderID", handlers.GetConversationTranscript)
	dashboard.Get("/handoffs", handlers.GetHandoffs)
	dashboard.Post("/handoffs/:senderID/resolve", handlers.ResolveHandoff)
	dashboard.Post("/conversations/:senderID/reply", handlers.SendAgentReply)
	dashboard.Get("/ad-products", handlers.GetAdProducts)
	dashboard.Post("/ad-products", middleware.RequireAdmin, handlers.UpsertAdProducts)

	// WebSocket live feed, one connection per page
	dashboard.Get("/ws/:pageID", handlers.WebSocketUpgrade, websocket.New(handlers.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "messenger-shop-bot",
		})
	})

	slog.Info("Server starting", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}

// ensureAdminUser seeds the first dashboard admin from the environment so
// a fresh deployment can log in. No-op when the user already exists or
// the variables are unset.
func ensureAdminUser(ctx context.Context) {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}

	existing, err := services.GetUserByUsername(ctx, username)
	if err != nil {
		slog.Error("Failed to check admin user", "error", err)
		return
	}
	if existing != nil {
		return
	}

	if _, err := services.CreateUser(ctx, username, password, "Administrator", models.RoleAdmin); err != nil {
		slog.Error("Failed to create admin user", "error", err)
		return
	}
	slog.Info("Seeded admin user", "username", username)
}

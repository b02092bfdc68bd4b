package webhooks

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-shop-bot/config"
)

func testApp() *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, &config.Config{VerifyToken: "secret-token"})
	return app
}

func TestVerifyWebhook(t *testing.T) {
	app := testApp()

	t.Run("valid handshake echoes the challenge", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook/?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "12345", string(body))
	})

	t.Run("wrong token is forbidden", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("wrong mode is forbidden", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook/?hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestHandleWebhookEvent(t *testing.T) {
	app := testApp()

	t.Run("page event is acknowledged immediately", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook/", strings.NewReader(`{"object":"page","entry":[]}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "EVENT_RECEIVED", string(body))
	})

	t.Run("non-page object is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook/", strings.NewReader(`{"object":"instagram"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook/", strings.NewReader(`{not json`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestToInbound(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		event := toInbound(Messaging{
			Sender:    User{ID: "user1"},
			Timestamp: 1700000000,
			Message:   &Message{MID: "mid.1", Text: "kiyada"},
		})

		require.NotNil(t, event)
		assert.Equal(t, "user1", event.SenderID)
		assert.Equal(t, "mid.1", event.MessageID)
		assert.Equal(t, "kiyada", event.Text)
		assert.Empty(t, event.AdRef)
	})

	t.Run("quick reply payload wins over text", func(t *testing.T) {
		event := toInbound(Messaging{
			Sender:  User{ID: "user1"},
			Message: &Message{MID: "mid.2", Text: "Yes", QuickReply: &QuickReply{Payload: "CONFIRM_ORDER"}},
		})

		require.NotNil(t, event)
		assert.Equal(t, "CONFIRM_ORDER", event.Text)
	})

	t.Run("postback with ad referral", func(t *testing.T) {
		event := toInbound(Messaging{
			Sender:   User{ID: "user1"},
			Postback: &Postback{Payload: "GET_STARTED", Referral: &Referral{Ref: "ad_77", Source: "ADS"}},
		})

		require.NotNil(t, event)
		assert.Equal(t, "GET_STARTED", event.Text)
		assert.Equal(t, "ad_77", event.AdRef)
	})

	t.Run("referral only event", func(t *testing.T) {
		event := toInbound(Messaging{
			Sender:   User{ID: "user1"},
			Referral: &Referral{AdID: "1234567890", Source: "ADS", Type: "OPEN_THREAD"},
		})

		require.NotNil(t, event)
		assert.Empty(t, event.Text)
		assert.Equal(t, "1234567890", event.AdRef)
	})

	t.Run("message with referral keeps both", func(t *testing.T) {
		event := toInbound(Messaging{
			Sender:   User{ID: "user1"},
			Message:  &Message{MID: "mid.3", Text: "hi"},
			Referral: &Referral{Ref: "ad_88"},
		})

		require.NotNil(t, event)
		assert.Equal(t, "hi", event.Text)
		assert.Equal(t, "ad_88", event.AdRef)
	})

	t.Run("delivery receipt is dropped", func(t *testing.T) {
		assert.Nil(t, toInbound(Messaging{Sender: User{ID: "user1"}}))
	})
}

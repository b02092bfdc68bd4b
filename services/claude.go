package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeRequest represents the request to Claude API
type ClaudeRequest struct {
	Model      string      `json:"model"`
	MaxTokens  int         `json:"max_tokens"`
	Messages   []Message   `json:"messages"`
	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`
	System     string      `json:"system,omitempty"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// Tool represents a tool that Claude can use
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ToolChoice forces the model to call a specific tool
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// InputSchema represents the schema for tool input
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property represents a property in the input schema
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Enum        []string            `json:"enum,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// ContentBlock represents a content block in Claude's response
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ClaudeResponse represents the response from Claude API
type ClaudeResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ClaudeClient calls the Claude Messages API with a fixed key and model.
type ClaudeClient struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// NewClaudeClient creates a client. An empty API key produces a client
// whose calls always fail; callers degrade per their own fallbacks.
func NewClaudeClient(apiKey, model string, maxTokens int) *ClaudeClient {
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &ClaudeClient{APIKey: apiKey, Model: model, MaxTokens: maxTokens}
}

// doRequest posts the request with one retry on transport failure.
func (c *ClaudeClient) doRequest(ctx context.Context, requestBody ClaudeRequest) (*ClaudeResponse, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("claude API key not configured")
	}

	if err := claudeRateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 45 * time.Second,
	}

	var resp *http.Response
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", claudeAPIURL, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err = client.Do(req)
		if err == nil {
			break
		}

		if os.IsTimeout(err) || strings.Contains(err.Error(), "deadline exceeded") {
			slog.Error("Claude API timeout", "error", err, "attempt", attempt)
			return nil, fmt.Errorf("claude API timeout - request took too long")
		}

		if attempt == 0 {
			slog.Warn("Claude API transport error, retrying once", "error", err)
			continue
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Claude API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("claude API error: %s", resp.Status)
	}

	var claudeResp ClaudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return nil, err
	}

	return &claudeResp, nil
}

// GenerateReply asks for a free-form customer reply grounded on the
// product context and bounded history.
func (c *ClaudeClient) GenerateReply(ctx context.Context, userMessage, productContext string, history []ChatHistory) (string, error) {
	var prompt strings.Builder

	prompt.WriteString("SHOP CONTEXT:\n")
	prompt.WriteString("You are a friendly sales assistant for a small online shop in Sri Lanka. ")
	prompt.WriteString("Customers write in Sinhala (usually transliterated in Latin script) or English. ")
	prompt.WriteString("Reply in the language the customer used, keep it short and warm.\n\n")

	if productContext != "" {
		prompt.WriteString("PRODUCTS:\n")
		prompt.WriteString(productContext)
		prompt.WriteString("\n\n")
	}

	if len(history) > 0 {
		prompt.WriteString("CONVERSATION HISTORY:\n")
		for _, h := range history {
			if h.Role == "user" {
				prompt.WriteString(fmt.Sprintf("Customer: %s\n", h.Content))
			} else {
				prompt.WriteString(fmt.Sprintf("Assistant: %s\n", h.Content))
			}
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("CURRENT CUSTOMER MESSAGE:\n")
	prompt.WriteString(userMessage)
	prompt.WriteString("\n\n")

	prompt.WriteString("INSTRUCTIONS:\n")
	prompt.WriteString("Answer using only the PRODUCTS data above. ")
	prompt.WriteString("Quote prices exactly as written there. ")
	prompt.WriteString("Never invent products, prices, materials or stock levels. ")
	prompt.WriteString("If the answer is not in the PRODUCTS data, say you will check and ask for their requirements.")

	requestBody := ClaudeRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt.String(),
			},
		},
	}

	claudeResp, err := c.doRequest(ctx, requestBody)
	if err != nil {
		return "", err
	}

	for _, content := range claudeResp.Content {
		if content.Type == "text" && content.Text != "" {
			slog.Info("Claude reply generated",
				"inputTokens", claudeResp.Usage.InputTokens,
				"outputTokens", claudeResp.Usage.OutputTokens,
			)
			return content.Text, nil
		}
	}

	return "", fmt.Errorf("no response content from Claude")
}

// intentToolInput mirrors the classify_intent tool schema.
type intentToolInput struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Entities   struct {
		Product  string `json:"product,omitempty"`
		Quantity int    `json:"quantity,omitempty"`
	} `json:"entities"`
	WantsAgent bool `json:"wants_agent,omitempty"`
}

// ClassifyIntent delegates intent classification to Claude through a
// forced tool call. Any failure degrades to the general intent with
// confidence 0.5, never an error the caller must handle.
func (c *ClaudeClient) ClassifyIntent(ctx context.Context, userMessage string, productNames []string) Classification {
	fallback := Classification{Intent: IntentGeneral, Confidence: 0.5, Entities: Entities{}}

	intentTool := Tool{
		Name:        "classify_intent",
		Description: "Classify the purpose of a customer message sent to an online shop.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"intent": {
					Type:        "string",
					Description: "The single best matching intent for the message",
					Enum:        intentNames(),
				},
				"confidence": {
					Type:        "number",
					Description: "Confidence between 0 and 1",
				},
				"entities": {
					Type:        "object",
					Description: "Entities mentioned in the message, when present",
					Properties: map[string]Property{
						"product":  {Type: "string", Description: "Product name the customer refers to"},
						"quantity": {Type: "integer", Description: "Quantity the customer asks about"},
					},
				},
			},
			Required: []string{"intent", "confidence"},
		},
	}

	var prompt strings.Builder
	prompt.WriteString("Classify this customer message. Messages are in transliterated Sinhala or English.\n\n")
	if len(productNames) > 0 {
		prompt.WriteString("Products currently discussed: ")
		prompt.WriteString(strings.Join(productNames, ", "))
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Examples:\n")
	prompt.WriteString("\"rack thiyanawada\" -> product_availability\n")
	prompt.WriteString("\"photo ekak evanna\" -> photo_request\n")
	prompt.WriteString("\"delivery kiyada\" -> delivery_cost\n")
	prompt.WriteString("\"4 tier rack kiyada\" -> price_inquiry, product=4 tier rack, quantity=4 is part of the name not a quantity\n")
	prompt.WriteString("\"racks 2k kiyada\" -> total_price, quantity=2\n\n")
	prompt.WriteString("Customer message: \"")
	prompt.WriteString(userMessage)
	prompt.WriteString("\"")

	requestBody := ClaudeRequest{
		Model:      c.Model,
		MaxTokens:  256,
		System:     "You are an intent classifier for a Sri Lankan e-commerce chatbot. Always call the classify_intent tool.",
		Messages:   []Message{{Role: "user", Content: prompt.String()}},
		Tools:      []Tool{intentTool},
		ToolChoice: &ToolChoice{Type: "tool", Name: "classify_intent"},
	}

	claudeResp, err := c.doRequest(ctx, requestBody)
	if err != nil {
		slog.Warn("Intent classification failed, using general", "error", err)
		return fallback
	}

	for _, content := range claudeResp.Content {
		if content.Type != "tool_use" || content.Name != "classify_intent" {
			continue
		}

		var input intentToolInput
		if err := json.Unmarshal(content.Input, &input); err != nil {
			slog.Warn("Failed to parse intent tool input, using general", "error", err)
			return fallback
		}

		intent, ok := parseIntent(input.Intent)
		if !ok {
			slog.Warn("Unknown intent from tool, using general", "intent", input.Intent)
			return fallback
		}

		confidence := input.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}

		return Classification{
			Intent:     intent,
			Confidence: confidence,
			Entities: Entities{
				Product:  input.Entities.Product,
				Quantity: input.Entities.Quantity,
			},
		}
	}

	slog.Warn("No tool_use block in intent response, using general")
	return fallback
}

// DetectAgentRequest reports whether the customer is explicitly asking
// for a human. Keyword check only; greetings never count.
func DetectAgentRequest(customerInput string) bool {
	input := strings.ToLower(customerInput)

	agentPhrases := []string{
		"real person",
		"human",
		"agent",
		"operator",
		"representative",
		"customer service",
		"not a bot",
		"stop bot",
		"kenek ekka katha karanna", // "talk with a person"
		"manussayek",
		"katha karanna one",
	}

	for _, phrase := range agentPhrases {
		if strings.Contains(input, phrase) {
			slog.Info("Detected customer wants a human agent",
				"input", customerInput,
				"matched_phrase", phrase)
			return true
		}
	}

	return false
}

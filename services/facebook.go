package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const fbGraphAPIBase = "https://graph.facebook.com"

// GraphAPIVersion is set from configuration at startup.
var GraphAPIVersion = "v18.0"

// SendMessengerReply sends a text reply via Messenger
func SendMessengerReply(ctx context.Context, recipientID, message, pageAccessToken string) error {
	if pageAccessToken == "" {
		slog.Warn("No page access token, skipping send", "recipientID", recipientID)
		return nil
	}

	payload := map[string]interface{}{
		"recipient": map[string]string{
			"id": recipientID,
		},
		"message": map[string]string{
			"text": message,
		},
	}

	return postMessage(ctx, payload, pageAccessToken)
}

// SendMessengerImage sends a single image attachment via Messenger
func SendMessengerImage(ctx context.Context, recipientID, imageURL, pageAccessToken string) error {
	if pageAccessToken == "" {
		slog.Warn("No page access token, skipping image send", "recipientID", recipientID)
		return nil
	}

	payload := map[string]interface{}{
		"recipient": map[string]string{
			"id": recipientID,
		},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": "image",
				"payload": map[string]interface{}{
					"url":         imageURL,
					"is_reusable": true,
				},
			},
		},
	}

	return postMessage(ctx, payload, pageAccessToken)
}

// SendMessengerImages sends each image URL in turn. A failed image is
// logged and skipped so the rest still go out.
func SendMessengerImages(ctx context.Context, recipientID string, imageURLs []string, pageAccessToken string) {
	for _, url := range imageURLs {
		if err := SendMessengerImage(ctx, recipientID, url, pageAccessToken); err != nil {
			slog.Error("Failed to send image", "error", err, "url", url)
		}
	}
}

func postMessage(ctx context.Context, payload map[string]interface{}, pageAccessToken string) error {
	url := fmt.Sprintf("%s/%s/me/messages?access_token=%s", fbGraphAPIBase, GraphAPIVersion, pageAccessToken)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("Failed to send messenger reply", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("failed to send message: %s", resp.Status)
	}

	return nil
}

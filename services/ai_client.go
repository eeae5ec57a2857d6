// services/ai_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"strun-backend/utils"
)

// AIClient relays chat turns to the hosted AI gateway (run-coach persona).
// The gateway key never reaches the mobile client.
type AIClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

const coachSystemPrompt = "You are Strun Coach, a concise running coach inside the Strun app. " +
	"Help users pick nearby territory-run tasks, pace their runs, and understand XP and token rewards. " +
	"Never give medical advice beyond general fitness guidance."

func NewAIClient() *AIClient {
	apiKey := os.Getenv("AI_GATEWAY_KEY")
	if apiKey == "" {
		log.Fatal("❌ AI_GATEWAY_KEY environment variable not set")
	}
	baseURL := os.Getenv("AI_GATEWAY_URL")
	if baseURL == "" {
		baseURL = "https://ai-gateway.vercel.sh/v1"
	}
	model := os.Getenv("AI_CHAT_MODEL")
	if model == "" {
		model = "openai/gpt-4o-mini"
	}

	return &AIClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  utils.HTTPClient,
	}
}

// ChatCompletion sends the conversation (with the server-side system
// prompt prepended) and returns the assistant reply.
func (c *AIClient) ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)

	payload := map[string]interface{}{
		"model": c.Model,
		"messages": append(
			[]map[string]string{{"role": "system", "content": coachSystemPrompt}},
			toWireMessages(messages)...,
		),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call AI gateway: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		log.Printf("AI gateway returned %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("AI gateway returned status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode AI gateway response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("AI gateway returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}

func toWireMessages(messages []ChatMessage) []map[string]string {
	wire := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, map[string]string{"role": m.Role, "content": m.Content})
	}
	return wire
}

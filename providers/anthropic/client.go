// Package anthropic ist ein minimaler Client für die Anthropic Messages API.
package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"neuro-news/config"
)

const apiVersion = "2023-06-01"

// maxTokens begrenzt die Antwortlänge; das erwartete JSON-Objekt ist klein.
const maxTokens = 512

var httpClient = &http.Client{Timeout: 60 * time.Second}

// messagesRequest ist der Request-Body der Messages API.
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

// message ist eine einzelne Nachricht im Request.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock ist ein Content-Block der Antwort.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse ist der Response-Body der Messages API.
type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// errorResponse kapselt das Fehler-Payload der API.
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client kapselt die Interaktion mit der Messages API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Anthropic Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Complete schickt System-Instruktion und User-Prompt an die Messages API
// und gibt den Text des ersten Content-Blocks zurück. Die Antwort wird als
// unvertrauter String behandelt; Validierung ist Sache des Aufrufers.
func (c *Client) Complete(system, prompt string) (string, error) {
	reqBody := messagesRequest{
		Model:     c.Config.AnthropicModel,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.Config.AnthropicBaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.Config.AnthropicAPIKey)
	req.Header.Set("anthropic-version", apiVersion)

	c.Logger.Debug("Rufe Anthropic Messages API auf", zap.String("model", c.Config.AnthropicModel))
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("anthropic api error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", fmt.Errorf("anthropic api error: status %d", resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("empty content in messages response")
	}
	return msgResp.Content[0].Text, nil
}

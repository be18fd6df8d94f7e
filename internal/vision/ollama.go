// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// OllamaClient calls Ollama's native chat endpoint. Images travel as
// base64 strings in the message's images array.
type OllamaClient struct {
	Host   string
	Model  string
	Client *http.Client
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message *ollamaMessage `json:"message"`
	Error   string         `json:"error"`
}

// Query sends instruction and the image at imagePath as a single user message.
func (c *OllamaClient) Query(ctx context.Context, instruction, imagePath string) (string, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", imagePath, err)
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model: c.Model,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: instruction,
			Images:  []string{base64.StdEncoding.EncodeToString(img)},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.Host, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", classifyTransportError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", classifyTransportError(err))
	}

	var out ollamaChatResponse
	decodeErr := json.Unmarshal(data, &out)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s: %s", ErrModelNotFound, c.Model, strings.TrimSpace(out.Error))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: ollama returned %d: %s", ErrBackend, resp.StatusCode, strings.TrimSpace(string(data)))
	case decodeErr != nil:
		return "", fmt.Errorf("%w: decoding ollama response: %v", ErrMalformedResponse, decodeErr)
	case out.Error != "":
		return "", fmt.Errorf("%w: %s", ErrBackend, out.Error)
	case out.Message == nil:
		return "", fmt.Errorf("%w: ollama response has no message", ErrMalformedResponse)
	}
	return out.Message.Content, nil
}

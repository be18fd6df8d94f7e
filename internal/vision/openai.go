// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/llamarker/pkg/types"
)

// OpenAIClient calls an OpenAI-compatible chat completions API through
// langchaingo. Images travel as data URLs.
type OpenAIClient struct {
	model string
	llm   llms.Model
}

// NewOpenAIClient builds a client for cfg. Host may point at any
// OpenAI-compatible server; an empty Host uses the library default.
func NewOpenAIClient(cfg types.VisionConfig, httpClient *http.Client) (*OpenAIClient, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
		openai.WithHTTPClient(httpClient),
	}
	if cfg.Host != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Host))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &OpenAIClient{model: cfg.Model, llm: llm}, nil
}

// Query sends instruction and the image at imagePath as one human message.
func (c *OpenAIClient) Query(ctx context.Context, instruction, imagePath string) (string, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", imagePath, err)
	}

	dataURL := "data:" + imageMIME(imagePath) + ";base64," + base64.StdEncoding.EncodeToString(img)
	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.ImageURLPart(dataURL),
			llms.TextPart(instruction),
		},
	}})
	if err != nil {
		return "", classifyOpenAIError(c.model, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}
	return resp.Choices[0].Content, nil
}

func classifyOpenAIError(model string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classifyTransportError(err)
	}
	msg := err.Error()
	if strings.Contains(msg, "model_not_found") || strings.Contains(msg, "does not exist") {
		return fmt.Errorf("%w: %s: %v", ErrModelNotFound, model, err)
	}
	return classifyTransportError(err)
}

func imageMIME(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "image/png"
}

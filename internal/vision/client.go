// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vision queries a vision-capable language model with an
// instruction and one image. It performs no retries; callers decide how to
// react to the distinguishable errors it returns.
package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pdiddy/llamarker/pkg/types"
)

// Errors returned (wrapped) by every backend.
var (
	ErrTimeout           = errors.New("vision model request timed out")
	ErrModelNotFound     = errors.New("vision model not found")
	ErrMalformedResponse = errors.New("malformed vision model response")
	ErrBackend           = errors.New("vision model backend error")
)

// Client sends one instruction plus one image to a model and returns the
// generated text. Query blocks for the model's full latency.
type Client interface {
	Query(ctx context.Context, instruction, imagePath string) (string, error)
}

// New builds the client for cfg.Backend.
func New(cfg types.VisionConfig) (Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Backend {
	case types.BackendOllama, "":
		return &OllamaClient{Host: cfg.Host, Model: cfg.Model, Client: httpClient}, nil
	case types.BackendOpenAI:
		return NewOpenAIClient(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.Backend)
	}
}

// classifyTransportError maps transport failures onto ErrTimeout where
// appropriate and ErrBackend otherwise.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackend, err)
}

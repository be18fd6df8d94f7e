// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// visionFamilies are name substrings of known vision-capable model families.
var visionFamilies = []string{"vision", "llava", "moondream", "minicpm-v", "bakllava"}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of models installed on an Ollama host.
func ListModels(ctx context.Context, client *http.Client, host string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(host, "/")+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", classifyTransportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: listing models returned %d: %s", ErrBackend, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("%w: decoding model list: %v", ErrMalformedResponse, err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// IsVisionModel reports whether name belongs to a known vision family.
func IsVisionModel(name string) bool {
	lower := strings.ToLower(name)
	for _, fam := range visionFamilies {
		if strings.Contains(lower, fam) {
			return true
		}
	}
	return false
}

// FilterVision keeps the vision-capable names, preserving order.
func FilterVision(names []string) []string {
	var out []string
	for _, n := range names {
		if IsVisionModel(n) {
			out = append(out, n)
		}
	}
	return out
}

// HasModel reports whether model is among installed, ignoring an implicit
// ":latest" tag on either side.
func HasModel(installed []string, model string) bool {
	want := strings.TrimSuffix(model, ":latest")
	for _, n := range installed {
		if strings.TrimSuffix(n, ":latest") == want {
			return true
		}
	}
	return false
}

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPProvider embeds text via a POST /v1/embeddings endpoint, per
// spec.md §4.7/§6: request {input: [string], model}, response
// {data: [{embedding: [float]}]}.
type HTTPProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	dim        int
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewHTTPProvider builds an HTTPProvider. requestsPerSecond throttles
// outbound calls so a large indexDay batch cannot saturate the
// endpoint.
func NewHTTPProvider(baseURL, model string, requestsPerSecond float64) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Embed implements Provider.
func (p *HTTPProvider) Embed(texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(embeddingsRequest{Input: texts, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings endpoint returned no data")
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	if p.dim == 0 && len(out) > 0 {
		p.dim = len(out[0])
	}
	return out, nil
}

// Dimensions implements Provider.
func (p *HTTPProvider) Dimensions() int {
	return p.dim
}

// HealthCheck probes the endpoint with a 5s timeout warmup-style probe.
func (p *HTTPProvider) HealthCheck() error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(p.baseURL + "/v1/models")
	if err != nil {
		return fmt.Errorf("embedding endpoint health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("embedding endpoint health check returned %d", resp.StatusCode)
	}
	return nil
}

package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaProvider embeds text via a locally-hosted Ollama instance's
// /api/embed endpoint. It is tried ahead of the generic HTTPProvider
// when a local model is configured, since it avoids a network hop to
// an external embeddings service.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	dim        int
}

// NewOllamaProvider builds an OllamaProvider.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements Provider, batching all texts into one request.
func (p *OllamaProvider) Embed(texts []string) ([][]float32, error) {
	data, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama embed request: %w", err)
	}

	resp, err := p.httpClient.Post(p.baseURL+"/api/embed", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaEmbedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode ollama embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}
	if p.dim == 0 && len(result.Embeddings) > 0 {
		p.dim = len(result.Embeddings[0])
	}
	return result.Embeddings, nil
}

// Dimensions implements Provider.
func (p *OllamaProvider) Dimensions() int {
	return p.dim
}

// HealthCheck verifies Ollama is reachable and the model is available.
func (p *OllamaProvider) HealthCheck() error {
	resp, err := p.httpClient.Get(p.baseURL + "/api/tags")
	if err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}

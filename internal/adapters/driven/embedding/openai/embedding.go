// Package openai provides an embedding service adapter for the OpenAI API and
// for Azure OpenAI deployments.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "text-embedding-ada-002"
	DefaultTimeout    = 60 * time.Second
	DefaultAPIVersion = "2023-05-15"

	// MaxRetries is the number of retries of a rate limited request.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the embedding service.
type Config struct {
	// APIKey is the OpenAI or Azure OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. For Azure this is the resource endpoint,
	// e.g. https://acme.openai.azure.com.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-ada-002).
	Model string

	// Deployment selects Azure OpenAI. Requests go to the named deployment
	// and authenticate with the api-key header.
	Deployment string

	// APIVersion is the Azure OpenAI api-version (default: 2023-05-15).
	APIVersion string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the default dimension for the model.
	// Only applicable to text-embedding-3-* models.
	Dimensions int

	// HTTPClient replaces the default client.
	HTTPClient *http.Client
}

// EmbeddingService generates embeddings using the OpenAI embeddings endpoint.
type EmbeddingService struct {
	client     *http.Client
	endpoint   string
	pingURL    string
	apiKey     string
	azure      bool
	model      string
	dimensions int
	maxRetries int
	retryDelay time.Duration
}

// embeddingRequest is the API request format.
type embeddingRequest struct {
	Model      string   `json:"model,omitempty"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embeddingResponse is the API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &EmbeddingService{
		client:     cfg.HTTPClient,
		apiKey:     cfg.APIKey,
		azure:      cfg.Deployment != "",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxRetries: MaxRetries,
		retryDelay: RetryDelay,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
	}
	if s.dimensions == 0 {
		var ok bool
		s.dimensions, ok = modelDimensions[cfg.Model]
		if !ok {
			s.dimensions = 1536
		}
	}

	if s.azure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai: base URL is required for Azure deployments")
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = DefaultAPIVersion
		}
		base := strings.TrimRight(cfg.BaseURL, "/") + "/openai/deployments/" + url.PathEscape(cfg.Deployment)
		query := "?api-version=" + url.QueryEscape(cfg.APIVersion)
		s.endpoint = base + "/embeddings" + query
		s.pingURL = strings.TrimRight(cfg.BaseURL, "/") + "/openai/models" + query
	} else {
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultBaseURL
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		s.endpoint = base + "/embeddings"
		s.pingURL = base + "/models"
	}

	return s, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("openai: no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
// Vectors are returned in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	in := embeddingRequest{Input: texts}
	if !s.azure {
		in.Model = s.model
	}
	// Only text-embedding-3-* models accept a dimensions override
	if strings.HasPrefix(s.model, "text-embedding-3-") && s.dimensions > 0 {
		in.Dimensions = s.dimensions
	}

	var out embeddingResponse
	if err := s.call(ctx, http.MethodPost, s.endpoint, in, &out); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, data := range out.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", data.Index)
		}
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors[data.Index] = vector
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.call(ctx, http.MethodGet, s.pingURL, nil, nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// call sends in as JSON and decodes the answer into out. Rate limited
// requests are retried with exponential backoff. Transport failures are
// reported as domain.ErrEmbeddingUnavailable.
func (s *EmbeddingService) call(ctx context.Context, method, endpoint string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("openai: marshal request: %w", err)
		}
	}

	delay := s.retryDelay
	for attempt := 0; ; attempt++ {
		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("openai: create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		s.authorize(req)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: openai: %w", domain.ErrEmbeddingUnavailable, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("openai: read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < s.maxRetries {
			logger.Debug("Embedding request rate limited, retrying in %s", delay)
			if err := wait(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("openai: status %d: %s", resp.StatusCode, errorMessage(data))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("openai: decode response: %w", err)
		}
		return nil
	}
}

func (s *EmbeddingService) authorize(req *http.Request) {
	if s.azure {
		req.Header.Set("api-key", s.apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}

// errorMessage extracts error.message from a failed response, or returns the raw body.
func errorMessage(data []byte) string {
	var e struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(data))
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

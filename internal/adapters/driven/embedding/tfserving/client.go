// Package tfserving provides an Inferencer backed by a TensorFlow Serving
// compatible REST endpoint hosting a BERT-style sentence encoder.
package tfserving

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

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.Inferencer = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8501"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the TF-Serving client.
type Config struct {
	// BaseURL is the REST API base URL (default: http://localhost:8501).
	BaseURL string

	// Model is the served model name.
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions is the embedding vector size.
	Dimensions int
}

// Client calls the predict API.
type Client struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

// instance carries one sequence in the shape the encoder signature expects.
type instance struct {
	InputIDs      []int32 `json:"input_ids"`
	AttentionMask []int32 `json:"attention_mask"`
	TokenTypeIDs  []int32 `json:"token_type_ids"`
}

type predictRequest struct {
	Instances []instance `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

// NewClient creates a new TF-Serving client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.DefaultDimensions
	}

	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (c *Client) modelURL() string {
	return c.baseURL + "/v1/models/" + url.PathEscape(c.model)
}

// Infer sends seq to the predict endpoint and returns the pooled embedding.
func (c *Client) Infer(ctx context.Context, seq domain.Sequence) ([]float32, error) {
	reqBody := predictRequest{
		Instances: []instance{{
			InputIDs:      seq.TokenIDs,
			AttentionMask: seq.AttentionMask,
			TokenTypeIDs:  seq.SegmentIDs,
		}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.modelURL()+":predict",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("tfserving error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("tfserving error (status %d): %s", resp.StatusCode, string(body))
	}

	var predResp predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if predResp.Error != "" {
		return nil, fmt.Errorf("tfserving error: %s", predResp.Error)
	}
	if len(predResp.Predictions) != 1 {
		return nil, fmt.Errorf("expected 1 prediction, got %d", len(predResp.Predictions))
	}

	// Convert float64 to float32
	pred := predResp.Predictions[0]
	embedding := make([]float32, len(pred))
	for i, v := range pred {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// Dimensions returns the embedding vector size.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// ModelName returns the served model name.
func (c *Client) ModelName() string {
	return c.model
}

// Ping checks the model status endpoint.
// This validates the model is served without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), http.NoBody)
	if err != nil {
		return fmt.Errorf("tfserving: failed to create ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tfserving: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("tfserving: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("tfserving: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

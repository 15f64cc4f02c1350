// Package gemini is a minimal client for the Generative Language API's
// generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1"

// ErrNoResponse reports an empty, blocked, or malformed completion.
var ErrNoResponse = errors.New("gemini returned no usable response")

// Client calls one Gemini model with a fixed generation config.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	config     GenerationConfig
	httpClient *http.Client
}

// GenerationConfig mirrors the API's generationConfig block.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// ChoiceConfig is the low-temperature setup used when the model must pick
// from a closed list.
func ChoiceConfig() GenerationConfig {
	return GenerationConfig{Temperature: 0.2, TopK: 1, TopP: 1, MaxOutputTokens: 2048}
}

// ClassifyConfig is the looser setup used for free-form classification.
func ClassifyConfig() GenerationConfig {
	return GenerationConfig{Temperature: 0.7}
}

// New builds a Client for the given model, e.g. "gemini-2.5-flash".
func New(apiKey, model string, config GenerationConfig) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		config:     config,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func newWithBaseURL(base, apiKey, model string, config GenerationConfig) *Client {
	c := New(apiKey, model, config)
	c.baseURL = base
	return c
}

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one prompt and returns the first candidate's trimmed text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var req generateRequest
	req.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	req.Contents[0].Parts = append(req.Contents[0].Parts, struct {
		Text string `json:"text"`
	}{Text: prompt})
	req.GenerationConfig = c.config

	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gemini %s: read: %w", c.model, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini %s: status %d: %s", c.model, resp.StatusCode, body)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("gemini %s: decode: %w", c.model, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini %s: %s", c.model, out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoResponse
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrNoResponse
	}
	return text, nil
}

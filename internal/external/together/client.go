package together

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/config"
	"github.com/wonny/stockboard/pkg/httputil"
	"github.com/wonny/stockboard/pkg/logger"
)

const systemPrompt = "You are an expert in the analysis of Stocks."

const questionTemplate = `The JSON array below holds daily stock rows. Each row has a symbol, an optional time_period window label, date, open, high, low, close, volume, sector, market_cap, pe_ratio and 52_week_change. Ratios are fractions (0.05 means 5%%); null means unknown.

data:
%s

Answer the user's question about this data concisely.
Question: %s`

// ErrMissingAPIKey is returned when TOGETHER_API_KEY is not configured
var ErrMissingAPIKey = errors.New("TOGETHER_API_KEY is not set")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client answers questions through the Together chat completions API.
// It implements contracts.Answerer.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	model      string
	maxTokens  int
	hasKey     bool
}

// NewClient creates a client; the API key is attached as a bearer header
func NewClient(httpClient *httputil.Client, cfg config.TogetherConfig, log *logger.Logger) *Client {
	if cfg.APIKey != "" {
		httpClient.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("together"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		hasKey:     cfg.APIKey != "",
	}
}

// Answer sends sample and question and returns the model's reply verbatim
func (c *Client) Answer(ctx context.Context, sample []contracts.Row, question string) (string, error) {
	if !c.hasKey {
		return "", &contracts.LLMError{Kind: contracts.LLMUnavailable, Err: ErrMissingAPIKey}
	}

	data, err := json.Marshal(sample)
	if err != nil {
		return "", fmt.Errorf("encode sample: %w", err)
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(questionTemplate, data, question)},
		},
		MaxTokens: c.maxTokens,
	}

	body, err := c.httpClient.PostJSON(ctx, c.baseURL+"/chat/completions", req)
	if err != nil {
		return "", &contracts.LLMError{Kind: contracts.LLMUnavailable, Err: err}
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &contracts.LLMError{Kind: contracts.LLMMalformedResponse, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &contracts.LLMError{Kind: contracts.LLMMalformedResponse, Err: errors.New("no choices in response")}
	}

	c.logger.WithFields(map[string]interface{}{
		"model":       c.model,
		"sample_rows": len(sample),
	}).Debug("Question answered")

	return resp.Choices[0].Message.Content, nil
}

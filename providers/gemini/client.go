package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/llm"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-pro"

type Config struct {
	APIKey string
	Model  string
	// Endpoint overrides the Gemini API base URL. Empty uses the SDK default.
	Endpoint       string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type Client struct {
	model          string
	requestTimeout time.Duration
	client         *genai.Client
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(endpoint, "/") + "/"}
	}
	c, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{
		model:          model,
		requestTimeout: cfg.RequestTimeout,
		client:         c,
	}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if strings.TrimSpace(req.Model) == "" {
		req.Model = c.model
	}
	if err := req.Validate(); err != nil {
		return llm.Result{}, fmt.Errorf("gemini: %w", err)
	}
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsData() {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, nil)
	if err != nil {
		return llm.Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return llm.Result{}, fmt.Errorf("gemini: empty response")
	}

	out := llm.Result{
		Text:     text,
		Duration: time.Since(start),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

package explain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini explainer.
type GeminiConfig struct {
	APIKey string
	Model  string
	// Timeout bounds one generation call. Zero means the request context
	// is the only bound.
	Timeout time.Duration
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Gemini explains text with Google's Gemini API. The client is created on
// first use so a missing key only fails explanation requests.
type Gemini struct {
	cfg GeminiConfig

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini returns an explainer; it does not contact the API.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Gemini{cfg: cfg}
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.cfg.Model }

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	if g.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("explain: create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Explain sends the fixed prompt and returns the model text verbatim.
func (g *Gemini) Explain(ctx context.Context, paragraph string) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(Prompt(paragraph)), nil)
	if err != nil {
		return "", fmt.Errorf("explain: gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("explain: gemini returned no candidates")
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case "", genai.FinishReasonStop, genai.FinishReasonMaxTokens:
	default:
		return "", fmt.Errorf("explain: gemini stopped generation: finish reason %s", cand.FinishReason)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("explain: gemini candidate has no content: finish reason %s", cand.FinishReason)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("explain: gemini returned empty text: finish reason %s", cand.FinishReason)
	}
	return text, nil
}

// Package advisor provides a Gemini-backed client that turns a portfolio and
// its insights into a short plain-language narrative.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/models"
)

// DefaultModel is used when the config does not name one.
const DefaultModel = "gemini-2.0-flash"

// Client implements interfaces.AdvisorClient.
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new advisor client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create advisor client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// GenerateNarrative generates AI content from a prompt
func (c *Client) GenerateNarrative(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Str("model", c.model).Msg("Generating advisor narrative")

	contents := genai.Text(prompt)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("advisor returned empty response")
	}
	return strings.TrimSpace(text), nil
}

// BuildPrompt renders the portfolio and its insight set into the narrative
// prompt. Kept separate from generation so tests can assert on its content.
func BuildPrompt(p *models.Portfolio) string {
	var sb strings.Builder

	sb.WriteString("You are a financial advisor reviewing a client's aggregated portfolio.\n\n")
	sb.WriteString(fmt.Sprintf("Total value: ₹%.0f, invested ₹%.0f, overall return %.2f%%.\n",
		p.Summary.TotalValue, p.Summary.TotalInvested, p.Summary.ReturnPercentage))
	sb.WriteString(fmt.Sprintf("Schemes: %d across %d folios.\n", p.Summary.SchemeCount, p.Summary.FolioCount))

	if len(p.AssetAllocation) > 0 {
		sb.WriteString("\nAsset allocation:\n")
		for _, a := range p.AssetAllocation {
			sb.WriteString(fmt.Sprintf("- %s: %.1f%% (₹%.0f)\n", a.AssetClass, a.Percentage, a.Value))
		}
	}

	if p.Insights != nil {
		if len(p.Insights.Risks) > 0 {
			sb.WriteString("\nIdentified risks:\n")
			for _, r := range p.Insights.Risks {
				sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", r.Severity, r.Title, r.Description))
			}
		}
		sb.WriteString(fmt.Sprintf("\nHealth score: %d/100 (%s - %s).\n",
			p.Insights.HealthScore.Score, p.Insights.HealthScore.Grade, p.Insights.HealthScore.Verdict))
	}

	sb.WriteString("\nProvide a 2-3 sentence plain-language summary of the portfolio's condition and the single most important action to take.")
	return sb.String()
}

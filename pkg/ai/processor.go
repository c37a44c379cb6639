// Package ai calls the downstream text-processing service that turns raw
// scraped articles into publishable drafts. The service is an external
// collaborator: it may fail transiently (rate limits) or permanently
// (malformed responses), and ingestion success never depends on it.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/atomwire/ingest/pkg/domain"
)

// Config holds the text-processing client settings
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // bound per model call, zero means no deadline
}

// Processor transforms raw article content using an OpenAI-compatible API
type Processor struct {
	client *openai.Client
	config Config
}

// NewProcessor creates a processor against the configured endpoint
func NewProcessor(cfg Config) *Processor {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &Processor{client: openai.NewClientWithConfig(clientConfig), config: cfg}
}

const systemPrompt = `You are an editor for a specialized news platform.
Rewrite the raw scraped article into clean publishable form.
Respond with a JSON object with exactly these keys:
- title: rewritten headline
- content: full article body in clean HTML
- excerpt: 1-2 sentence summary
- category: single category keyword
- tags: array of 2-5 topic keywords
- significance_score: integer 1-10 rating how significant the story is for the platform's audience

Write in the same language as the source article. Do not invent facts.`

// Request carries one article's raw content for processing
type Request struct {
	Title      string
	SourceName string
	Content    string
}

// ProcessText sends the article to the model and parses the structured result.
// Invalid JSON triggers a bounded re-ask; after that the failure is permanent.
func (p *Processor) ProcessText(ctx context.Context, req Request) (*domain.ProcessedContent, error) {
	prompt := p.buildPrompt(req)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       p.config.Model,
			Temperature: float32(p.config.Temperature),
			MaxTokens:   p.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		}

		resp, err := p.createCompletion(ctx, chatReq)
		if err != nil {
			return nil, fmt.Errorf("process text request: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no response from model")
		}

		result, err := parseResponse(resp.Choices[0].Message.Content)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("process text failed after 3 attempts: %w", lastErr)
}

// createCompletion runs one model call bounded by the configured timeout, so
// a hung upstream can't stall a processing worker
func (p *Processor) createCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}
	return p.client.CreateChatCompletion(ctx, req)
}

// buildPrompt assembles the user message for one article
func (p *Processor) buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source: %s\n", req.SourceName))
	sb.WriteString(fmt.Sprintf("Original title: %s\n\n", req.Title))
	sb.WriteString("Raw content:\n")
	if req.Content != "" {
		sb.WriteString(req.Content)
	} else {
		sb.WriteString(req.Title)
	}
	return sb.String()
}

// parseResponse extracts the JSON object from the model output, tolerating
// markdown code fences around it
func parseResponse(content string) (*domain.ProcessedContent, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no json object found in response")
	}

	var result domain.ProcessedContent
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("parse json response: %w", err)
	}

	if result.Title == "" || result.Content == "" {
		return nil, fmt.Errorf("incomplete response: title and content are required")
	}
	if result.SignificanceScore < 1 {
		result.SignificanceScore = 1
	} else if result.SignificanceScore > 10 {
		result.SignificanceScore = 10
	}

	return &result, nil
}

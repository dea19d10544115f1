// Package gcnl implements the moderation.Classifier port against the Google
// Cloud Natural Language sentiment API.
package gcnl

import (
	"context"
	"fmt"

	language "google.golang.org/api/language/v1"
	"google.golang.org/api/option"

	"sightline/internal/moderation"
)

// Client analyzes sentiment through the Cloud Natural Language API.
type Client struct {
	service *language.Service
}

// New creates a sentiment client authenticated by API key.
func New(ctx context.Context, apiKey string) (*Client, error) {
	service, err := language.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init language service: %w", err)
	}
	return &Client{service: service}, nil
}

func (c *Client) Classify(ctx context.Context, text string) (moderation.Sentiment, error) {
	req := &language.AnalyzeSentimentRequest{
		Document: &language.Document{
			Content: text,
			Type:    "PLAIN_TEXT",
		},
	}

	resp, err := c.service.Documents.AnalyzeSentiment(req).Context(ctx).Do()
	if err != nil {
		return moderation.Sentiment{}, fmt.Errorf("analyze sentiment: %w", err)
	}
	if resp.DocumentSentiment == nil {
		return moderation.Sentiment{}, fmt.Errorf("analyze sentiment: empty response")
	}

	return moderation.Sentiment{
		Score:     resp.DocumentSentiment.Score,
		Magnitude: resp.DocumentSentiment.Magnitude,
	}, nil
}

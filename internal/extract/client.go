// Package extract sends preprocessed statement images to a vision-capable
// Gemini model and decodes the response into transaction candidates.
package extract

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Client talks to the Gemini API. The API key is picked up by the genai SDK
// from the GEMINI_API_KEY environment variable.
type Client struct {
	model      string
	apiVersion string
}

// NewClient creates an extraction client for the given model and API version.
func NewClient(model, apiVersion string) *Client {
	return &Client{
		model:      model,
		apiVersion: apiVersion,
	}
}

// Extract sends one preprocessed image to the model and returns the decoded
// transaction candidates. Transport and auth failures come back wrapped;
// undecodable model output comes back as *ParseError with the raw text
// preserved. No retries happen here; the caller decides what a failure means
// for the batch.
func (c *Client) Extract(ctx context.Context, imageBytes []byte) ([]Candidate, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: c.apiVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: "image/jpeg",
						Data:     imageBytes,
					},
				},
			},
		},
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("extract: empty response from model")
	}

	return ParseResponse(rawText)
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Estimator using Google's Gemini models.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Use Gemini 2.0 Flash for low latency and cost efficiency.
	model := client.GenerativeModel("gemini-2.0-flash")

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"

	// Pricing should be stable, not creative.
	model.SetTemperature(0.2)

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

// EstimateTransportPrice asks the model for a traditional and a discounted
// marketplace price for the described job.
func (p *GeminiProvider) EstimateTransportPrice(ctx context.Context, query PriceQuery) (*PriceEstimate, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(buildPricePrompt(query)))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	// Clean up potential markdown formatting (JSON mode should handle this, safety first).
	cleanJSON := cleanJSONString(responseText.String())

	var result PriceEstimate
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleanJSON)
	}
	if result.TraditionalPrice <= 0 || result.MarketplacePrice <= 0 {
		return nil, fmt.Errorf("non-positive price in response: %s", cleanJSON)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence out of range in response: %s", cleanJSON)
	}

	return &result, nil
}

// buildPricePrompt constructs the instructions for the AI.
func buildPricePrompt(q PriceQuery) string {
	elevator := "no"
	if q.HasElevator {
		elevator = "yes"
	}
	return fmt.Sprintf(`Role: You are the pricing core for "CamionBack", a French road-transport marketplace.
Price the following transport job.

Job:
- Route: %s -> %s
- Road distance: %.0f km (0 means unknown)
- Cargo category: %s
- Description: %s
- Estimated weight: %.0f kg (0 means unknown)
- Floors: pickup %d, delivery %d, elevator available: %s

RULES:
1. "traditional_price" is what an established mover or freight company would quote
   for this job in France, in whole euros, all taxes included.
2. "marketplace_price" is the discounted price CamionBack should charge the client
   by routing the job to an independent transporter with spare capacity. It MUST be
   lower than traditional_price and still realistic for the transporter.
3. "confidence" in [0,1] reflects how well the description and distance pin down the
   job. Vague descriptions or unknown distance mean low confidence.
4. "reasoning" is 2-4 short lines naming the main cost drivers (distance, weight,
   handling, category). No marketing language.
5. NEVER return zero or negative prices. NEVER invent fields.

Output JSON Schema:
{
  "traditional_price": integer (euros),
  "marketplace_price": integer (euros),
  "confidence": number between 0 and 1,
  "reasoning": ["string"]
}
`, q.OriginCity, q.DestinationCity, q.DistanceKm, q.CargoCategory, q.Description,
		q.EstimatedWeight, q.FloorOrigin, q.FloorDest, elevator)
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

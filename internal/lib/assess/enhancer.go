package assess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// SummaryEnhancer produces human-readable assessments of a segmented roof
type SummaryEnhancer interface {
	Summarize(ctx context.Context, input Input) (Summary, error)
	HealthCheck(ctx context.Context) error
}

// summaryEnhancer implements SummaryEnhancer using OpenAI, falling back to a
// deterministic template when no API key is configured
type summaryEnhancer struct {
	client *openai.Client
	model  string
}

// NewSummaryEnhancer creates a SummaryEnhancer. An empty apiKey yields a
// template-only enhancer rather than an error; assessments must work offline.
func NewSummaryEnhancer(apiKey, model string) SummaryEnhancer {
	if apiKey == "" {
		return &summaryEnhancer{client: nil, model: model}
	}

	return &summaryEnhancer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

const systemPrompt = `You are a residential solar assessor. Turn rooftop segmentation data into a short, homeowner-friendly assessment.

Instructions:
- Use only the facts in the input; never invent roof details.
- Square meters are the working unit; round to one decimal.
- If the input is marked simulated, say the numbers are estimates from placeholder data.
- Judge suitability from usable area, panel count and sunshine hours when present.

Return valid JSON with these exact fields:
- headline (string) – one line, max 120 chars, no address
- narrative (string) – 2-4 sentences for a homeowner
- recommendation (enum) – "excellent" | "good" | "fair" | "poor"`

// Summarize generates an assessment for the given input
func (e *summaryEnhancer) Summarize(ctx context.Context, input Input) (Summary, error) {
	if e.client == nil {
		return e.templateSummary(input), nil
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to marshal assessment input: %w", err)
	}

	userPrompt := fmt.Sprintf("Assess this rooftop for solar panels and return structured JSON:\n\n%s", payload)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Summary{}, errors.New("no response from OpenAI API")
	}

	var summary Summary
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &summary); err != nil {
		return Summary{}, fmt.Errorf("failed to parse OpenAI JSON response: %w", err)
	}

	// Backfill anything the model left out or got wrong
	fallback := e.templateSummary(input)
	if summary.Headline == "" || len(summary.Headline) > 120 {
		summary.Headline = fallback.Headline
	}
	if summary.Narrative == "" {
		summary.Narrative = fallback.Narrative
	}
	if !validRecommendations[summary.Recommendation] {
		summary.Recommendation = fallback.Recommendation
	}

	summary.GeneratedBy = "model"
	summary.ProcessedAt = time.Now()
	return summary, nil
}

// templateSummary builds a deterministic assessment from the numbers alone
func (e *summaryEnhancer) templateSummary(input Input) Summary {
	recommendation := recommendFromEstimate(input.Panels)

	headline := fmt.Sprintf("%.1f m² usable roof, room for %d panels (%.1f kW)",
		input.Panels.UsableAreaM2, input.Panels.PanelCount, input.Panels.CapacityKw)

	narrative := fmt.Sprintf(
		"Segmentation via %s found %d roof segment(s) totaling %.1f m², of which %.1f m² is currently included. "+
			"That supports an estimated %d panels for %.1f kW of capacity.",
		input.Method, input.SegmentCount, input.TotalAreaM2, input.IncludedAreaM2,
		input.Panels.PanelCount, input.Panels.CapacityKw)
	if input.ExcludedCount > 0 {
		narrative += fmt.Sprintf(" %d segment(s) were excluded from the totals.", input.ExcludedCount)
	}
	if input.Simulated {
		narrative += " These figures come from simulated segmentation data and should be treated as rough estimates."
	}

	return Summary{
		Headline:       headline,
		Narrative:      narrative,
		Recommendation: recommendation,
		GeneratedBy:    "template",
		ProcessedAt:    time.Now(),
	}
}

// recommendFromEstimate grades suitability by installable capacity
func recommendFromEstimate(panels PanelEstimate) string {
	switch {
	case panels.CapacityKw >= 8:
		return "excellent"
	case panels.CapacityKw >= 5:
		return "good"
	case panels.CapacityKw >= 2:
		return "fair"
	default:
		return "poor"
	}
}

// HealthCheck verifies OpenAI API connectivity
func (e *summaryEnhancer) HealthCheck(ctx context.Context) error {
	if e.client == nil {
		return errors.New("OpenAI client not initialized")
	}

	_, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Test"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}

	return nil
}

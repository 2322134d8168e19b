// Package ai wraps the Gemini API behind a narrow interface so services can
// be tested against a mock instead of a live model.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

const modelName = "gemini-2.5-flash"

type ChatTurn struct {
	Role    string // "user" or "model"
	Content string
}

// BuilderResult is the structured payload the builder chat model returns.
type BuilderResult struct {
	Reply               string `json:"reply"`
	Intent              string `json:"intent"` // feature|customer|revenue|ask|general
	ProgressDelta       int    `json:"progress_delta"`
	TractionSignal      string `json:"traction_signal"`
	ValuationAdjustment string `json:"valuation_adjustment"` // up|down|none
}

// Valuation is a non-binding offer range for a project.
type Valuation struct {
	LowRange  int      `json:"low_range"`
	HighRange int      `json:"high_range"`
	Reasoning string   `json:"reasoning"`
	Signals   []string `json:"signals"`
}

type DescriptionRequest struct {
	ProjectName string
	Description string
	WhyBuilt    string
	Progress    int
	Prompts     int
	Traction    int
}

type Client interface {
	BuilderReply(ctx context.Context, projectContext, userMessage string, history []ChatTurn) (*BuilderResult, error)
	ValuationOffer(ctx context.Context, projectName, description, activitySummary string) (*Valuation, error)
	ListingDescription(ctx context.Context, req DescriptionRequest) (string, error)
}

// GeminiClient talks to the real Gemini API.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := viper.GetString("gemini.api_key")
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

const builderSystemPrompt = `You are Vamo, an AI co-pilot for startup founders.
%s

Your job:
1. Respond helpfully to their update or question (keep it concise, 2-3 sentences max).
2. Extract the intent of their message. Classify as one of: feature, customer, revenue, ask, general.
3. If the update implies progress (shipped something, talked to users, made revenue), generate an updated business analysis.
4. Return your response as JSON:
{
  "reply": "Your response text",
  "intent": "feature|customer|revenue|ask|general",
  "progress_delta": 0,
  "traction_signal": "string or empty",
  "valuation_adjustment": "up|down|none"
}

Respond with ONLY valid JSON, no markdown formatting.`

// fallbackBuilderResult is returned when the model output cannot be parsed;
// the founder's update is still saved upstream.
func fallbackBuilderResult() *BuilderResult {
	return &BuilderResult{
		Reply:               "I couldn't process that right now. Your update has been saved.",
		Intent:              "general",
		ValuationAdjustment: "none",
	}
}

func (c *GeminiClient) BuilderReply(ctx context.Context, projectContext, userMessage string, history []ChatTurn) (*BuilderResult, error) {
	model := c.client.GenerativeModel(modelName)
	model.GenerationConfig.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fmt.Sprintf(builderSystemPrompt, projectContext))},
	}

	session := model.StartChat()
	for _, turn := range history {
		session.History = append(session.History, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(userMessage))
	if err != nil {
		return nil, fmt.Errorf("builder chat: %w", err)
	}

	var result BuilderResult
	if err := json.Unmarshal([]byte(stripJSONFences(responseText(resp))), &result); err != nil {
		log.Printf("[AI] Failed to parse builder JSON response: %v", err)
		return fallbackBuilderResult(), nil
	}
	if result.Reply == "" {
		result.Reply = fallbackBuilderResult().Reply
	}
	if result.Intent == "" {
		result.Intent = "general"
	}
	if result.ValuationAdjustment == "" {
		result.ValuationAdjustment = "none"
	}
	return &result, nil
}

const valuationPrompt = `You are a startup valuation engine. Based on the following project data and activity, provide a non-binding offer range and explanation.

Project: %s
Description: %s
Activity Summary:
%s

Expected response must be valid JSON matching this schema exactly:
{
  "low_range": number,
  "high_range": number,
  "reasoning": "string explaining the offer (2-3 sentences)",
  "signals": ["list", "of", "signals"]
}`

func (c *GeminiClient) ValuationOffer(ctx context.Context, projectName, description, activitySummary string) (*Valuation, error) {
	if description == "" {
		description = "No description provided"
	}

	model := c.client.GenerativeModel(modelName)
	model.GenerationConfig.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx,
		genai.Text(fmt.Sprintf(valuationPrompt, projectName, description, activitySummary)))
	if err != nil {
		return nil, fmt.Errorf("valuation: %w", err)
	}

	var valuation Valuation
	if err := json.Unmarshal([]byte(stripJSONFences(responseText(resp))), &valuation); err != nil {
		log.Printf("[AI] Failed to parse valuation JSON response: %v", err)
		return &Valuation{
			LowRange:  1000,
			HighRange: 5000,
			Reasoning: "Early-stage project with growth potential. Valuation based on activity level.",
			Signals:   []string{"activity_metrics"},
		}, nil
	}
	if valuation.LowRange == 0 {
		valuation.LowRange = 1000
	}
	if valuation.HighRange == 0 {
		valuation.HighRange = 5000
	}
	return &valuation, nil
}

const descriptionPrompt = `You are a professional copywriter for a startup marketplace. Write a compelling, high-converting listing description for the following project.

Project Name: %s
Current Description: %s
Why Built: %s

Key Metrics:
- Development Progress: %d%%
- Founder Engagement (Prompts): %d
- Traction Signals: %d

The description should be 2-3 paragraphs.
- Paragraph 1: Hook the buyer with the value proposition and current status.
- Paragraph 2: Highlight the traction and development effort (using the metrics as proof of work).
- Paragraph 3: Explain the potential for the buyer.

Tone: Professional, exciting, investment-oriented.
Format: Plain text, no markdown headers.`

func (c *GeminiClient) ListingDescription(ctx context.Context, req DescriptionRequest) (string, error) {
	description := req.Description
	if description == "" {
		description = "N/A"
	}
	whyBuilt := req.WhyBuilt
	if whyBuilt == "" {
		whyBuilt = "N/A"
	}

	model := c.client.GenerativeModel(modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(fmt.Sprintf(descriptionPrompt,
		req.ProjectName, description, whyBuilt, req.Progress, req.Prompts, req.Traction)))
	if err != nil {
		log.Printf("[AI] Description generation failed: %v", err)
		if req.Description != "" {
			return req.Description, nil
		}
		return "A promising startup project built with Vamo.", nil
	}

	return strings.TrimSpace(responseText(resp)), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// stripJSONFences removes markdown code fences some model responses wrap
// around JSON payloads.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

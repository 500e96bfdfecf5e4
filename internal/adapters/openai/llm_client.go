package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/llm-chat-guard/internal/core"
	"github.com/mikey/llm-chat-guard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the Classifier interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// verdictResponse represents the structured response from the LLM
type verdictResponse struct {
	IsSpam      bool            `json:"is_spam"`
	Confidence  float64         `json:"confidence"`
	Signs       []core.SpamSign `json:"signs"`
	Explanation string          `json:"explanation"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyText evaluates a candidate message against recent conversation context
func (c *OpenAIClient) ClassifyText(ctx context.Context, message string, chatContext string) (*core.Verdict, error) {
	processed := c.textProcessor.ProcessText(message, c.maxBodySize)
	prompt := fmt.Sprintf(core.TextRubricPrompt, chatContext, processed)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a spam detection system for a group chat. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	return c.parseVerdict(resp.Choices[0].Message.Content)
}

// ClassifyImage evaluates an image payload with a vision request
func (c *OpenAIClient) ClassifyImage(ctx context.Context, image []byte, mimeType string) (*core.Verdict, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: core.ImageRubricPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	return c.parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict decodes the model's JSON reply into a verdict
func (c *OpenAIClient) parseVerdict(responseText string) (*core.Verdict, error) {
	var vr verdictResponse
	if err := json.Unmarshal([]byte(ExtractJSON(responseText)), &vr); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	return &core.Verdict{
		IsSpam:      vr.IsSpam,
		Confidence:  vr.Confidence,
		Signs:       vr.Signs,
		Explanation: vr.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   c.modelName,
	}, nil
}

// ExtractJSON cuts the outermost JSON object out of a model reply that
// may be wrapped in prose or code fences.
func ExtractJSON(text string) string {
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	end := -1
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			end = i + 1
			break
		}
	}
	if start >= 0 && start < end {
		return text[start:end]
	}
	return text
}

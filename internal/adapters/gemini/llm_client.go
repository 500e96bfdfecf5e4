package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-chat-guard/internal/core"
	"github.com/mikey/llm-chat-guard/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the Classifier interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
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

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyText evaluates a candidate message against recent conversation context
func (c *GeminiClient) ClassifyText(ctx context.Context, message string, chatContext string) (*core.Verdict, error) {
	processed := c.textProcessor.ProcessText(message, c.maxBodySize)
	prompt := fmt.Sprintf(core.TextRubricPrompt, chatContext, processed)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	return c.parseVerdict(resp)
}

// ClassifyImage evaluates an image payload with a vision request
func (c *GeminiClient) ClassifyImage(ctx context.Context, image []byte, mimeType string) (*core.Verdict, error) {
	format := strings.TrimPrefix(mimeType, "image/")
	if format == mimeType {
		format = "jpeg"
	}

	resp, err := c.model.GenerateContent(ctx,
		genai.ImageData(format, image),
		genai.Text(core.ImageRubricPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate vision content with Gemini: %w", err)
	}

	return c.parseVerdict(resp)
}

// parseVerdict decodes the model's JSON reply into a verdict
func (c *GeminiClient) parseVerdict(resp *genai.GenerateContentResponse) (*core.Verdict, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	var vr verdictResponse
	if err := json.Unmarshal([]byte(extractJSON(responseText)), &vr); err != nil {
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

// extractJSON cuts the outermost JSON object out of a model reply
func extractJSON(text string) string {
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

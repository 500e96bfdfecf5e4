package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-chat-guard/internal/core"
	"github.com/mikey/llm-chat-guard/internal/utils"
	"go.uber.org/zap"
)

// BedrockClient is an implementation of the Classifier interface using
// Amazon Bedrock with Anthropic Claude models (messages API)
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
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

// anthropicResponse is the shape of a Claude messages-API reply
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyText evaluates a candidate message against recent conversation context
func (c *BedrockClient) ClassifyText(ctx context.Context, message string, chatContext string) (*core.Verdict, error) {
	processed := c.textProcessor.ProcessText(message, c.maxBodySize)
	prompt := fmt.Sprintf(core.TextRubricPrompt, chatContext, processed)

	content := []map[string]interface{}{
		{"type": "text", "text": prompt},
	}
	return c.invoke(ctx, content)
}

// ClassifyImage evaluates an image payload with a vision request
func (c *BedrockClient) ClassifyImage(ctx context.Context, image []byte, mimeType string) (*core.Verdict, error) {
	content := []map[string]interface{}{
		{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": mimeType,
				"data":       base64.StdEncoding.EncodeToString(image),
			},
		},
		{"type": "text", "text": core.ImageRubricPrompt},
	}
	return c.invoke(ctx, content)
}

// invoke sends one messages-API request and decodes the verdict
func (c *BedrockClient) invoke(ctx context.Context, content []map[string]interface{}) (*core.Verdict, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        c.maxTokens,
		"temperature":       c.temperature,
		"top_p":             c.topP,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": content,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	var ar anthropicResponse
	if err := json.Unmarshal(resp.Body, &ar); err != nil {
		return nil, fmt.Errorf("failed to parse Bedrock response: %w", err)
	}

	responseText := ""
	for _, block := range ar.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("empty response from Bedrock model")
	}

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
		ModelUsed:   c.modelID,
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

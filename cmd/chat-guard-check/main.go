// chat-guard-check runs the configured classifier once against a single
// message, for tuning thresholds and reviewing rubric behavior without a
// live bot.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/llm-chat-guard/internal/config"
	"github.com/mikey/llm-chat-guard/internal/core"
	"github.com/mikey/llm-chat-guard/internal/factory"
	"github.com/mikey/llm-chat-guard/internal/logging"
	"github.com/mikey/llm-chat-guard/internal/utils"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "openai", "LLM provider (openai, bedrock, gemini)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.5, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum message size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-3-sonnet-20240229-v1:0", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-1.5-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o", "OpenAI model name")

	// Decision flags
	spamConfidence   = flag.Float64("spam-confidence", 0.7, "Confidence bar for an explicit spam classification")
	signalConfidence = flag.Float64("signal-confidence", 0.6, "Confidence bar for the corroborating-signs rule")
	minSignals       = flag.Int("min-signals", 2, "Minimum corroborating signs")

	// Input flags
	contextFile = flag.String("context", "", "File with recent chat messages, one per line")
	inputFile   = flag.String("file", "", "Input message file (use stdin if not specified)")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog     = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile  = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	textProcessor := utils.NewTextProcessor(logger)
	llmFactory := factory.NewLLMFactory(cfg, logger, textProcessor)
	classifier, err := llmFactory.CreateClassifier()
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	message, err := readMessage()
	if err != nil {
		logger.Fatal("Failed to read message", zap.Error(err))
	}

	chatContext := ""
	if *contextFile != "" {
		data, err := os.ReadFile(*contextFile)
		if err != nil {
			logger.Fatal("Failed to read context file", zap.Error(err), zap.String("file", *contextFile))
		}
		chatContext = strings.TrimRight(string(data), "\n")
	}

	policy := core.DecisionPolicy{
		SpamConfidence:   cfg.GetFloat64("spam.spam_confidence"),
		SignalConfidence: cfg.GetFloat64("spam.signal_confidence"),
		MinSignals:       cfg.GetInt("spam.min_signals"),
	}

	fmt.Printf("\n=== Message ===\n%s\n\n", message)
	fmt.Printf("=== Analysis ===\nAnalyzing message with LLM...\n")

	startTime := time.Now()
	verdict, err := classifier.ClassifyText(context.Background(), message, chatContext)
	if err == nil {
		err = core.ValidateVerdict(verdict)
	}
	if err != nil {
		logger.Error("Classification failed", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Model says spam: %t\n", verdict.IsSpam)
	fmt.Printf("Confidence: %.4f\n", verdict.Confidence)
	for _, sign := range verdict.Signs {
		fmt.Printf("Sign [%s]: %s\n", sign.Type, sign.Description)
	}
	fmt.Printf("Explanation: %s\n", verdict.Explanation)
	fmt.Printf("Model used: %s\n", verdict.ModelUsed)
	fmt.Printf("Decision: spam=%t\n", policy.IsSpam(verdict))
	fmt.Printf("Processing time: %v\n", duration)

	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
}

// readMessage reads the candidate message from a file or stdin
func readMessage() (string, error) {
	var reader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			return "", err
		}
		defer file.Close()
		reader = file
	} else {
		reader = os.Stdin
	}

	data, err := io.ReadAll(bufio.NewReader(reader))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)

	switch *provider {
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	}

	v.Set("spam.spam_confidence", *spamConfidence)
	v.Set("spam.signal_confidence", *signalConfidence)
	v.Set("spam.min_signals", *minSignals)

	return config.NewFromViper(v)
}

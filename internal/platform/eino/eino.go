package eino

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"
)

// Config represents the configuration for the LLM integration
type Config struct {
	Provider string `json:"provider"` // currently "gemini"
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// Service wraps the Eino chat model plus the raw Gemini client, which is
// needed for accurate token accounting.
type Service struct {
	config       Config
	chatModel    model.BaseChatModel
	geminiClient *genai.Client
}

// TokenUsage represents token usage information
type TokenUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

// NewService creates a new LLM service instance for the configured provider
func NewService(config Config) (*Service, error) {
	s := &Service{config: config}
	switch strings.ToLower(config.Provider) {
	case "gemini":
		if err := s.initializeGeminiModel(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s. Supported: gemini", config.Provider)
	}
	return s, nil
}

// NewServiceWithModel creates a service around a pre-configured chat model,
// used by tests to avoid real API credentials.
func NewServiceWithModel(config Config, chatModel model.BaseChatModel) *Service {
	return &Service{config: config, chatModel: chatModel}
}

func (s *Service) initializeGeminiModel() error {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: s.config.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	s.geminiClient = client

	geminiModel, err := gemini.NewChatModel(context.Background(), &gemini.Config{
		Client: client,
		Model:  s.config.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini chat model: %w", err)
	}
	s.chatModel = geminiModel
	return nil
}

// Generate runs the chat model on formatted messages.
func (s *Service) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if s.chatModel == nil {
		return nil, fmt.Errorf("chat model not initialized")
	}
	return s.chatModel.Generate(ctx, messages, options...)
}

// GenerateWithTokenUsage calls the Gemini API directly so token usage comes
// from UsageMetadata instead of estimation. Falls back to the chat model
// with estimated counts when the raw client is unavailable.
func (s *Service) GenerateWithTokenUsage(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, *TokenUsage, error) {
	if s.geminiClient == nil {
		resp, err := s.Generate(ctx, messages, options...)
		if err != nil {
			return nil, nil, err
		}
		usage := &TokenUsage{
			InputTokens:  s.CountTokensInText(messagesToText(messages)),
			OutputTokens: s.CountTokensInText(resp.Content),
		}
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		return resp, usage, nil
	}

	var contents []*genai.Content
	for _, msg := range messages {
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
	}

	response, err := s.geminiClient.Models.GenerateContent(ctx, s.config.Model, contents, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini api generation failed: %w", err)
	}

	usage := &TokenUsage{}
	if response.UsageMetadata != nil {
		usage.InputTokens = response.UsageMetadata.PromptTokenCount
		usage.OutputTokens = response.UsageMetadata.CandidatesTokenCount
		usage.TotalTokens = response.UsageMetadata.TotalTokenCount
	}

	responseContent := ""
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil && len(response.Candidates[0].Content.Parts) > 0 {
		if textPart := response.Candidates[0].Content.Parts[0].Text; textPart != "" {
			responseContent = textPart
		}
	}

	if usage.TotalTokens == 0 {
		usage.InputTokens = s.CountTokensInText(messagesToText(messages))
		usage.OutputTokens = s.CountTokensInText(responseContent)
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	return &schema.Message{Content: responseContent}, usage, nil
}

// CountTokensInText estimates tokens at the Gemini documented ratio of
// roughly four characters per token.
func (s *Service) CountTokensInText(text string) int32 {
	return int32(len(text) / 4)
}

func messagesToText(messages []*schema.Message) string {
	var text strings.Builder
	for _, msg := range messages {
		text.WriteString(msg.Content)
		text.WriteString("\n")
	}
	return text.String()
}

package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/everafter-app/server/internal/concierge/model"
	logx "github.com/everafter-app/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	Concierge *model.ConciergeModelConfig
}

// ChatModels holds the concierge chat model
type ChatModels struct {
	Concierge          *gemini.ChatModel
	ConciergeModelName string
}

// NewChatModels creates the concierge chat model with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Concierge.Model,
		Temperature: &config.Concierge.Temperature,
		MaxTokens:   &config.Concierge.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating concierge model")
		return nil, fmt.Errorf("error creating concierge model: %w", err)
	}

	return &ChatModels{
		Concierge:          chatModel,
		ConciergeModelName: config.Concierge.Model,
	}, nil
}

// NewConciergeChatModelNode creates a wrapper for the concierge chat model to be used as a node
func NewConciergeChatModelNode(chatModel *gemini.ChatModel) *gemini.ChatModel {
	return chatModel
}

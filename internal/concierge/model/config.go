package model

// ================ Config ================
type ConversationConfig struct {
	// Backend selects where conversation history lives: "sqlite" (durable)
	// or "redis" (ephemeral onboarding sessions with a TTL).
	Backend  string `envconfig:"CONVERSATION_BACKEND" default:"sqlite"`
	TTL      string `envconfig:"CONVERSATION_TTL" default:"72h"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"40"`
}

type ConciergeModelConfig struct {
	Model       string  `envconfig:"CONCIERGE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CONCIERGE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"CONCIERGE_TEMPERATURE" default:"0.6"`
}

type PromptConfig struct {
	ProductName   string `envconfig:"PROMPT_PRODUCT_NAME" default:"Everafter"`
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Juniper"`
}

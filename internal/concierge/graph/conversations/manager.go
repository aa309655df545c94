package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/model"
)

// GreetingInstruction is the synthetic user turn sent on the very first turn
// of a conversation, when there is no history and no incoming message. It is
// never persisted.
const GreetingInstruction = "The couple has just opened the chat for the first time. " +
	"Greet them warmly, introduce yourself in one or two sentences, and invite them to tell you about themselves."

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// BuildTurnContext loads the conversation and assembles the model context:
// system prompt, recent history, then the current user turn. On a greeting
// turn (no history, no message) a synthetic instruction stands in for the
// user turn. The full, untrimmed history is returned alongside so the turn
// can be persisted later without a second load.
func (mm *MessagesManager) BuildTurnContext(ctx context.Context, tenantID, conversationID, systemPrompt, userMessage string) (contextMsgs, history []*schema.Message, err error) {
	loaded, err := mm.conversationRepo.LoadHistory(ctx, tenantID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	history = loaded.Messages

	messages := make([]*schema.Message, 0, mm.maxTurns+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, trimTail(history, mm.maxTurns)...)

	switch {
	case userMessage != "":
		messages = append(messages, schema.UserMessage(userMessage))
	case len(history) == 0:
		messages = append(messages, schema.UserMessage(GreetingInstruction))
	}

	return messages, history, nil
}

// SaveTurn writes the full message list back in one replacing update: prior
// history, the user turn (absent on greeting turns), and the stripped
// assistant reply. Concurrent turns from the same tenant race here and the
// later write wins; the product accepts that.
func (mm *MessagesManager) SaveTurn(ctx context.Context, tenantID, conversationID string, history []*schema.Message, userMessage, assistantReply string) error {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, history...)
	if userMessage != "" {
		messages = append(messages, schema.UserMessage(userMessage))
	}
	messages = append(messages, schema.AssistantMessage(assistantReply, nil))

	return mm.conversationRepo.ReplaceHistory(ctx, tenantID, conversationID, messages)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}

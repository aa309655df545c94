package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// LoadHistory retrieves the conversation history for a conversation.
	// A conversation that has never been written loads as empty, not as an
	// error. A conversation owned by a different tenant is ErrNotFound.
	LoadHistory(ctx context.Context, tenantID, conversationID string) (*ConversationHistory, error)

	// ReplaceHistory writes the full message list back in one update,
	// replacing the previous value. There is no optimistic-concurrency
	// check: concurrent turns from the same tenant race and the later
	// write wins. Writing to a conversation owned by a different tenant
	// is ErrNotFound.
	ReplaceHistory(ctx context.Context, tenantID, conversationID string, messages []*schema.Message) error

	// ClearHistory removes all conversation history for a conversation.
	// Clearing a conversation that does not exist is a no-op; clearing one
	// owned by a different tenant is ErrNotFound.
	ClearHistory(ctx context.Context, tenantID, conversationID string) error
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

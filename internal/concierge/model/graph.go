package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler) or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex is required as long as it is never touched outside handlers.
type AppState struct {
	TenantID       string
	ConversationID string
	UserMessage    string            // raw user text for this turn, empty on the greeting turn
	Kernel         *WeddingKernel    // snapshot loaded by the context assembler
	History        []*schema.Message // full prior history, persisted back with the new turn
	Extraction     *Extraction       // set by the parser post-handler, read by the merger

	// Accumulated total LLM cost (USD) across model invocations for this turn.
	TotalCostUSD float64
}

// ChatInput represents one user turn entering the pipeline.
type ChatInput struct {
	TenantID       string `json:"tenant_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// TurnReply is the parser's output: the user-visible reply with the data
// region stripped, plus whatever the region contained.
type TurnReply struct {
	Reply      string
	Extraction *Extraction
}

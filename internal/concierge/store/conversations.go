package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/model"
	errx "github.com/everafter-app/server/internal/core/error"
)

// SQLite-backed conversation repository. The message list is stored as one
// JSON document and replaced wholesale on save, so a turn is a single
// statement; concurrent turns last-write-win. Every access is scoped to the
// owning tenant: a conversation id belonging to another tenant behaves like a
// missing record.

func (s *Store) LoadHistory(ctx context.Context, tenantID, conversationID string) (*model.ConversationHistory, error) {
	var ownerID, raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT tenant_id, messages FROM conversations WHERE id = ?", conversationID,
	).Scan(&ownerID, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}, nil
	}
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	if ownerID != tenantID {
		return nil, model.ErrNotFound
	}

	var msgs []*schema.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal conversation %s: %w", conversationID, err)
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (s *Store) ReplaceHistory(ctx context.Context, tenantID, conversationID string, messages []*schema.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal conversation %s: %w", conversationID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, tenant_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at
		WHERE conversations.tenant_id = excluded.tenant_id`,
		conversationID, tenantID, string(raw), now, now,
	)
	if err != nil {
		return errx.WrapStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.WrapStore(err)
	}
	if n == 0 {
		// The row exists under another tenant; the guarded upsert did nothing.
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) ClearHistory(ctx context.Context, tenantID, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = ? AND tenant_id = ?", conversationID, tenantID,
	)
	if err != nil {
		return errx.WrapStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.WrapStore(err)
	}
	if n > 0 {
		return nil
	}

	// Nothing deleted: either the conversation never existed (a no-op) or it
	// belongs to another tenant.
	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE id = ?", conversationID,
	).Scan(&exists)
	if err != nil {
		return errx.WrapStore(err)
	}
	if exists > 0 {
		return model.ErrNotFound
	}
	return nil
}

var _ model.ConversationRepository = (*Store)(nil)

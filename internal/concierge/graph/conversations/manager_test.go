package conversations

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/model"
)

type fakeRepo struct {
	histories  map[string][]*schema.Message
	replaced   int
	lastTenant string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{histories: map[string][]*schema.Message{}}
}

func (f *fakeRepo) LoadHistory(ctx context.Context, tenantID, conversationID string) (*model.ConversationHistory, error) {
	f.lastTenant = tenantID
	return &model.ConversationHistory{
		ConversationID: conversationID,
		Messages:       f.histories[conversationID],
	}, nil
}

func (f *fakeRepo) ReplaceHistory(ctx context.Context, tenantID, conversationID string, messages []*schema.Message) error {
	f.lastTenant = tenantID
	f.histories[conversationID] = messages
	f.replaced++
	return nil
}

func (f *fakeRepo) ClearHistory(ctx context.Context, tenantID, conversationID string) error {
	f.lastTenant = tenantID
	delete(f.histories, conversationID)
	return nil
}

func newTestManager(repo model.ConversationRepository, maxTurns int) *MessagesManager {
	return NewMessagesManager(repo, model.ConversationConfig{MaxTurns: maxTurns})
}

func TestBuildTurnContextFirstTurnGreeting(t *testing.T) {
	mm := newTestManager(newFakeRepo(), 10)

	msgs, history, err := mm.BuildTurnContext(context.Background(), "t1", "c1", "SYSTEM", "")
	if err != nil {
		t.Fatalf("BuildTurnContext: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %d messages, want 0", len(history))
	}
	if len(msgs) != 2 {
		t.Fatalf("context = %d messages, want system + greeting instruction", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[0].Content != "SYSTEM" {
		t.Errorf("first message = %+v, want system prompt", msgs[0])
	}
	if msgs[1].Role != schema.User || msgs[1].Content != GreetingInstruction {
		t.Errorf("second message = %+v, want greeting instruction", msgs[1])
	}
}

func TestBuildTurnContextWithMessage(t *testing.T) {
	repo := newFakeRepo()
	repo.histories["c1"] = []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello!", nil),
	}
	mm := newTestManager(repo, 10)

	msgs, history, err := mm.BuildTurnContext(context.Background(), "t1", "c1", "SYSTEM", "we picked a date")
	if err != nil {
		t.Fatalf("BuildTurnContext: %v", err)
	}
	if repo.lastTenant != "t1" {
		t.Errorf("repo loaded for tenant %q, want t1", repo.lastTenant)
	}
	if len(history) != 2 {
		t.Errorf("history = %d messages, want 2", len(history))
	}
	if len(msgs) != 4 {
		t.Fatalf("context = %d messages, want system + 2 history + user", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != schema.User || last.Content != "we picked a date" {
		t.Errorf("last message = %+v, want current user turn", last)
	}
}

func TestBuildTurnContextTrimsHistory(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 10; i++ {
		repo.histories["c1"] = append(repo.histories["c1"], schema.UserMessage("m"))
	}
	mm := newTestManager(repo, 4)

	msgs, history, err := mm.BuildTurnContext(context.Background(), "t1", "c1", "SYSTEM", "latest")
	if err != nil {
		t.Fatalf("BuildTurnContext: %v", err)
	}
	if len(history) != 10 {
		t.Errorf("history = %d messages, want full untrimmed 10", len(history))
	}
	if len(msgs) != 1+4+1 {
		t.Errorf("context = %d messages, want system + 4 trimmed + user", len(msgs))
	}
}

func TestSaveTurnReplacesFullList(t *testing.T) {
	repo := newFakeRepo()
	repo.histories["c1"] = []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello!", nil),
	}
	mm := newTestManager(repo, 10)

	history := repo.histories["c1"]
	if err := mm.SaveTurn(context.Background(), "t1", "c1", history, "we picked a date", "Lovely!"); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	got := repo.histories["c1"]
	if len(got) != 4 {
		t.Fatalf("saved = %d messages, want prior 2 + user + assistant", len(got))
	}
	if got[2].Role != schema.User || got[2].Content != "we picked a date" {
		t.Errorf("third message = %+v, want user turn", got[2])
	}
	if got[3].Role != schema.Assistant || got[3].Content != "Lovely!" {
		t.Errorf("fourth message = %+v, want assistant turn", got[3])
	}
	if repo.replaced != 1 {
		t.Errorf("ReplaceHistory called %d times, want 1", repo.replaced)
	}
}

func TestSaveTurnGreetingOmitsUserMessage(t *testing.T) {
	repo := newFakeRepo()
	mm := newTestManager(repo, 10)

	if err := mm.SaveTurn(context.Background(), "t1", "c1", nil, "", "Welcome!"); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	got := repo.histories["c1"]
	if len(got) != 1 {
		t.Fatalf("saved = %d messages, want assistant turn only", len(got))
	}
	if got[0].Role != schema.Assistant {
		t.Errorf("message = %+v, want assistant", got[0])
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/model"
	"github.com/everafter-app/server/internal/concierge/store"
	errx "github.com/everafter-app/server/internal/core/error"
)

type fakeRunner struct {
	reply   string
	err     error
	lastIn  model.ChatInput
	invoked int
}

func (f *fakeRunner) Invoke(ctx context.Context, in model.ChatInput) (string, error) {
	f.lastIn = in
	f.invoked++
	return f.reply, f.err
}

type fakeTenants struct {
	tenants map[string]*model.Tenant
}

func (f *fakeTenants) TenantByToken(ctx context.Context, token string) (*model.Tenant, error) {
	t, ok := f.tenants[token]
	if !ok {
		return nil, model.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenants) SetDisplayName(ctx context.Context, tenantID, displayName string) error {
	return nil
}

func (f *fakeTenants) SetWeddingDate(ctx context.Context, tenantID, weddingDate string) error {
	return nil
}

type fakeKernels struct {
	kernels map[string]*model.WeddingKernel
}

func (f *fakeKernels) KernelByTenant(ctx context.Context, tenantID string) (*model.WeddingKernel, error) {
	k, ok := f.kernels[tenantID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return k, nil
}

func (f *fakeKernels) SaveKernel(ctx context.Context, k *model.WeddingKernel) error {
	f.kernels[k.TenantID] = k
	return nil
}

type fakeConversations struct {
	cleared       []string
	clearedTenant string
}

func (f *fakeConversations) LoadHistory(ctx context.Context, tenantID, conversationID string) (*model.ConversationHistory, error) {
	return &model.ConversationHistory{ConversationID: conversationID}, nil
}

func (f *fakeConversations) ReplaceHistory(ctx context.Context, tenantID, conversationID string, messages []*schema.Message) error {
	return nil
}

func (f *fakeConversations) ClearHistory(ctx context.Context, tenantID, conversationID string) error {
	f.clearedTenant = tenantID
	f.cleared = append(f.cleared, conversationID)
	return nil
}

func newTestHandler(runner *fakeRunner, kernels *fakeKernels, conversations *fakeConversations) http.Handler {
	return NewHandler(Deps{
		Runner: runner,
		Tenants: &fakeTenants{tenants: map[string]*model.Tenant{
			"tok-1": {ID: "t1", Email: "t1@example.com", APIToken: "tok-1"},
		}},
		Kernels:       kernels,
		Conversations: conversations,
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatRequiresAuth(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodPost, "/api/concierge/chat", "", `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without token", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/concierge/chat", "bogus", `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for unknown token", rec.Code)
	}
}

func TestChatRejectsInvalidBody(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodPost, "/api/concierge/chat", "tok-1", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed JSON", rec.Code)
	}
}

func TestChatGeneratesConversationID(t *testing.T) {
	runner := &fakeRunner{reply: "Welcome to Everafter!"}
	h := newTestHandler(runner, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodPost, "/api/concierge/chat", "tok-1", `{"message":null,"conversationId":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Error("conversationId empty, want a generated id")
	}
	if resp.Message != "Welcome to Everafter!" {
		t.Errorf("message = %q, want runner reply", resp.Message)
	}
	if runner.lastIn.TenantID != "t1" {
		t.Errorf("runner tenant = %q, want t1", runner.lastIn.TenantID)
	}
	if runner.lastIn.Message != "" {
		t.Errorf("runner message = %q, want empty for greeting turn", runner.lastIn.Message)
	}
}

func TestChatPreservesConversationID(t *testing.T) {
	runner := &fakeRunner{reply: "Noted!"}
	h := newTestHandler(runner, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodPost, "/api/concierge/chat", "tok-1",
		`{"message":"we picked a date","conversationId":"c-42"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ConversationID != "c-42" {
		t.Errorf("conversationId = %q, want c-42", resp.ConversationID)
	}
	if runner.lastIn.ConversationID != "c-42" {
		t.Errorf("runner conversation = %q, want c-42", runner.lastIn.ConversationID)
	}
}

func TestChatMapsAppError(t *testing.T) {
	runner := &fakeRunner{err: errx.New(errors.New("upstream timeout"), http.StatusBadGateway, errx.ProviderErrorMessage)}
	h := newTestHandler(runner, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodPost, "/api/concierge/chat", "tok-1", `{"message":"hi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 from AppError", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != errx.ProviderErrorMessage {
		t.Errorf("error = %q, want safe provider message", resp.Error)
	}
	if strings.Contains(resp.Error, "upstream timeout") || resp.Details != "" {
		t.Errorf("response leaked internal error detail: %+v", resp)
	}
}

func TestChatForeignConversationIsNotFound(t *testing.T) {
	runner := &fakeRunner{err: model.ErrNotFound}
	h := newTestHandler(runner, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodPost, "/api/concierge/chat", "tok-1",
		`{"message":"hi","conversationId":"someone-elses"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for a conversation the tenant does not own", rec.Code)
	}
}

func TestKernelEndpointEmptyBeforeFirstTurn(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodGet, "/api/concierge/kernel", "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with no kernel yet", rec.Code)
	}

	var k model.WeddingKernel
	if err := json.Unmarshal(rec.Body.Bytes(), &k); err != nil {
		t.Fatalf("unmarshal kernel: %v", err)
	}
	if k.TenantID != "t1" {
		t.Errorf("tenantId = %q, want t1", k.TenantID)
	}
	if len(k.Names) != 0 {
		t.Errorf("names = %v, want empty fact sheet", k.Names)
	}
}

func TestKernelEndpointReturnsStored(t *testing.T) {
	k := model.NewWeddingKernel("t1")
	k.Names = []string{"Emma", "James"}
	k.BudgetCents = 4500000
	kernels := &fakeKernels{kernels: map[string]*model.WeddingKernel{"t1": k}}
	h := newTestHandler(&fakeRunner{}, kernels, &fakeConversations{})

	rec := doRequest(t, h, http.MethodGet, "/api/concierge/kernel", "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got model.WeddingKernel
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal kernel: %v", err)
	}
	if len(got.Names) != 2 || got.BudgetCents != 4500000 {
		t.Errorf("kernel = %+v, want stored facts", got)
	}
}

func TestResetConversation(t *testing.T) {
	conversations := &fakeConversations{}
	h := newTestHandler(&fakeRunner{}, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, conversations)

	rec := doRequest(t, h, http.MethodDelete, "/api/concierge/chat/c-42", "tok-1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if len(conversations.cleared) != 1 || conversations.cleared[0] != "c-42" {
		t.Errorf("cleared = %v, want [c-42]", conversations.cleared)
	}
	if conversations.clearedTenant != "t1" {
		t.Errorf("cleared for tenant %q, want the authenticated tenant t1", conversations.clearedTenant)
	}
}

// TestResetRejectsForeignConversation drives the real store through the full
// handler stack: a tenant deleting another tenant's conversation gets a 404
// and the owner's history is untouched.
func TestResetRejectsForeignConversation(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, tenant := range []*model.Tenant{
		{ID: "tenant-a", Email: "a@example.com", APIToken: "tok-a"},
		{ID: "tenant-b", Email: "b@example.com", APIToken: "tok-b"},
	} {
		if err := db.CreateTenant(ctx, tenant); err != nil {
			t.Fatalf("CreateTenant %s: %v", tenant.ID, err)
		}
	}
	if err := db.ReplaceHistory(ctx, "tenant-b", "conv-b", []*schema.Message{
		schema.UserMessage("we eloped once already"),
		schema.AssistantMessage("Your secret is safe with me.", nil),
	}); err != nil {
		t.Fatalf("ReplaceHistory: %v", err)
	}

	h := NewHandler(Deps{
		Runner:        &fakeRunner{},
		Tenants:       db,
		Kernels:       db,
		Conversations: db,
	})

	rec := doRequest(t, h, http.MethodDelete, "/api/concierge/chat/conv-b", "tok-a", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when deleting another tenant's conversation", rec.Code)
	}

	history, err := db.LoadHistory(ctx, "tenant-b", "conv-b")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(history.Messages) != 2 {
		t.Fatalf("owner history = %d messages, want 2 untouched", len(history.Messages))
	}

	// The owner can still delete it.
	rec = doRequest(t, h, http.MethodDelete, "/api/concierge/chat/conv-b", "tok-b", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("owner delete status = %d, want 204", rec.Code)
	}
	history, err = db.LoadHistory(ctx, "tenant-b", "conv-b")
	if err != nil {
		t.Fatalf("LoadHistory after delete: %v", err)
	}
	if len(history.Messages) != 0 {
		t.Errorf("owner history after delete = %d messages, want 0", len(history.Messages))
	}
}

func TestHealthOpen(t *testing.T) {
	h := newTestHandler(&fakeRunner{}, &fakeKernels{kernels: map[string]*model.WeddingKernel{}}, &fakeConversations{})

	rec := doRequest(t, h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without auth", rec.Code)
	}
}

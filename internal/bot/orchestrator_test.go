package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagedesk/mira/internal/ai"
	"github.com/vantagedesk/mira/internal/intent"
	"github.com/vantagedesk/mira/internal/issuelog"
	"github.com/vantagedesk/mira/internal/servicenow"
	"github.com/vantagedesk/mira/internal/ticket"
)

type fakeDesk struct {
	articles  []servicenow.Article
	incidents []servicenow.TicketSummary
	requests  []servicenow.TicketSummary
	tasks     []servicenow.TicketSummary
	statusErr error

	created   *servicenow.TicketRequest
	createRaw string
	createErr error
}

func (f *fakeDesk) SearchArticles(_ context.Context, _, _ string) ([]servicenow.Article, error) {
	return f.articles, nil
}

func (f *fakeDesk) GetUserContext(_ context.Context, _ string) (*servicenow.UserContext, error) {
	return &servicenow.UserContext{
		User:    servicenow.UserProfile{SysID: "abc", Name: "Alice Ray", Email: "alice@corp.example"},
		Devices: []string{"Dell Latitude 7440"},
	}, nil
}

func (f *fakeDesk) OpenIncidents(_ context.Context, _ string) ([]servicenow.TicketSummary, error) {
	return f.incidents, f.statusErr
}

func (f *fakeDesk) OpenRequests(_ context.Context, _ string) ([]servicenow.TicketSummary, error) {
	return f.requests, f.statusErr
}

func (f *fakeDesk) OpenTasks(_ context.Context, _ string) ([]servicenow.TicketSummary, error) {
	return f.tasks, f.statusErr
}

func (f *fakeDesk) CreateTicket(_ context.Context, req servicenow.TicketRequest) (*servicenow.CreateResult, error) {
	f.created = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	raw := f.createRaw
	if raw == "" {
		raw = `{"result":{"number":"INC0010001","sys_id":"x"}}`
	}
	return &servicenow.CreateResult{Raw: []byte(raw), Link: "https://sn.example.com/ticket"}, nil
}

// tierCompleter answers per model tier and records classifier calls.
type tierCompleter struct {
	answer          string
	answerErr       error
	label           string
	classifierCalls int
}

func (c *tierCompleter) Complete(_ context.Context, _ string, tier ai.ModelTier) (string, error) {
	if tier == ai.TierClassifier {
		c.classifierCalls++
		return c.label, nil
	}
	return c.answer, c.answerErr
}

func newTestOrchestrator(desk *fakeDesk, completer intent.Completer) (*Orchestrator, *issuelog.MemoryLog) {
	issues := issuelog.NewMemoryLog()
	resolver := ticket.NewResolver(desk)
	orch := NewOrchestrator(desk, completer, resolver, intent.DefaultRoutingTable(), issues)
	return orch, issues
}

func TestHandleTurnPasswordReset(t *testing.T) {
	completer := &tierCompleter{answer: "should not be used", label: "hardware_request"}
	orch, issues := newTestOrchestrator(&fakeDesk{}, completer)

	turn, err := orch.HandleTurn(context.Background(), "alice", "I forgot my password", false, nil)
	require.NoError(t, err)

	require.NotNil(t, turn.Metadata)
	assert.Equal(t, intent.MetadataTypePasswordReset, turn.Metadata.Type)
	assert.Contains(t, turn.Answer, "Password reset link sent to alice")

	// Short circuit: classifier never runs and the issue log is untouched.
	assert.Equal(t, 0, completer.classifierCalls)
	assert.Equal(t, 0, issues.Count("alice", "i forgot my password"))
}

func TestHandleTurnStatusQuery(t *testing.T) {
	desk := &fakeDesk{incidents: []servicenow.TicketSummary{
		{Number: "INC0010045", ShortDescription: "VPN drops", OpenedAt: "2026-08-01 09:12:00", AssignedTo: "Dan Wu"},
	}}
	completer := &tierCompleter{label: "hardware_request"}
	orch, _ := newTestOrchestrator(desk, completer)

	turn, err := orch.HandleTurn(context.Background(), "alice", "show my open incidents", false, nil)
	require.NoError(t, err)

	// Status queries never propose a ticket.
	assert.Nil(t, turn.Metadata)
	assert.Contains(t, turn.Answer, "INC0010045")
	assert.Contains(t, turn.Answer, "VPN drops")
	assert.Contains(t, turn.Answer, "Dan Wu")
	assert.Equal(t, 0, completer.classifierCalls)
}

func TestHandleTurnStatusQueryEmpty(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeDesk{}, &tierCompleter{})

	turn, err := orch.HandleTurn(context.Background(), "alice", "any open requests?", false, nil)
	require.NoError(t, err)
	assert.Contains(t, turn.Answer, "no open requests")
	assert.Nil(t, turn.Metadata)
}

func TestHandleTurnStatusQueryDegradesOnError(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeDesk{statusErr: errors.New("boom")}, &tierCompleter{})

	turn, err := orch.HandleTurn(context.Background(), "alice", "list my open tasks", false, nil)
	require.NoError(t, err)
	assert.Contains(t, turn.Answer, "couldn't retrieve your open tasks")
	assert.Nil(t, turn.Metadata)
}

func TestHandleTurnPasswordResetBeatsStatusQuery(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeDesk{}, &tierCompleter{})

	turn, err := orch.HandleTurn(context.Background(), "alice", "I'm locked out, show my open incidents", false, nil)
	require.NoError(t, err)
	require.NotNil(t, turn.Metadata)
	assert.Equal(t, intent.MetadataTypePasswordReset, turn.Metadata.Type)
}

func TestHandleTurnProposesTicket(t *testing.T) {
	desk := &fakeDesk{articles: []servicenow.Article{
		{Number: "KB001", Title: "Laptop screen troubleshooting", Content: "Check the cable..."},
	}}
	completer := &tierCompleter{answer: "Try reseating the display cable.", label: "hardware_request"}
	orch, issues := newTestOrchestrator(desk, completer)

	turn, err := orch.HandleTurn(context.Background(), "alice", "my laptop screen is broken", false, nil)
	require.NoError(t, err)

	require.NotNil(t, turn.Metadata)
	assert.Equal(t, "request", turn.Metadata.Type)
	assert.Equal(t, "hardware", turn.Metadata.Category)
	assert.Equal(t, "laptop", turn.Metadata.Subcategory)
	assert.Equal(t, "IT Hardware Support", turn.Metadata.AssignmentGroup)

	assert.Contains(t, turn.Answer, "Try reseating the display cable.")
	assert.Contains(t, turn.Answer, "Sources:")
	assert.Contains(t, turn.Answer, "Laptop screen troubleshooting")
	assert.Contains(t, turn.Answer, "open a ticket")

	assert.Equal(t, 1, issues.Count("alice", "my laptop screen is broken"))
}

func TestHandleTurnNoCategoryNoProposal(t *testing.T) {
	completer := &tierCompleter{answer: "Here's how DNS works.", label: "none"}
	orch, _ := newTestOrchestrator(&fakeDesk{}, completer)

	turn, err := orch.HandleTurn(context.Background(), "alice", "how does dns work?", false, nil)
	require.NoError(t, err)
	assert.Nil(t, turn.Metadata)
	assert.NotContains(t, turn.Answer, "open a ticket")
}

func TestHandleTurnRepeatedIssueEscalation(t *testing.T) {
	completer := &tierCompleter{answer: "Try rebooting.", label: "hardware_request"}
	orch, _ := newTestOrchestrator(&fakeDesk{}, completer)

	_, err := orch.HandleTurn(context.Background(), "alice", "my laptop screen is broken", false, nil)
	require.NoError(t, err)

	turn, err := orch.HandleTurn(context.Background(), "alice", "My laptop screen is BROKEN", false, nil)
	require.NoError(t, err)
	assert.Contains(t, turn.Answer, "raised this before")
}

func TestHandleTurnConfirmCreatesTicket(t *testing.T) {
	desk := &fakeDesk{}
	completer := &tierCompleter{answer: "Working on it.", label: "hardware_request"}
	orch, _ := newTestOrchestrator(desk, completer)

	stored := intent.DefaultRoutingTable().MetadataFor(intent.CategoryHardwareRequest)
	turn, err := orch.HandleTurn(context.Background(), "alice", "my laptop screen is broken", true, stored)
	require.NoError(t, err)

	require.NotNil(t, desk.created)
	assert.Equal(t, "hardware", desk.created.Category)
	assert.Equal(t, "laptop", desk.created.Subcategory)
	assert.Equal(t, "IT Hardware Support", desk.created.AssignmentGroup)
	assert.Equal(t, servicenow.TypeRequest, desk.created.Type)

	assert.Contains(t, turn.Answer, "Ticket Preview")
	assert.Contains(t, turn.Answer, "INC0010001")
	assert.Nil(t, turn.Metadata)
}

func TestHandleTurnConfirmSurvivesCreationFailure(t *testing.T) {
	desk := &fakeDesk{createErr: errors.New("status 403: insufficient rights")}
	completer := &tierCompleter{answer: "Working on it.", label: "hardware_request"}
	orch, _ := newTestOrchestrator(desk, completer)

	stored := intent.DefaultRoutingTable().MetadataFor(intent.CategoryHardwareRequest)
	turn, err := orch.HandleTurn(context.Background(), "alice", "my laptop screen is broken", true, stored)
	require.NoError(t, err)
	assert.Contains(t, turn.Answer, "couldn't create the ticket")
	assert.Contains(t, turn.Answer, "insufficient rights")
}

func TestHandleTurnAnswerDegradesOnModelFailure(t *testing.T) {
	completer := &tierCompleter{answerErr: errors.New("openai: status 500"), label: "none"}
	orch, _ := newTestOrchestrator(&fakeDesk{}, completer)

	turn, err := orch.HandleTurn(context.Background(), "alice", "why is the wifi slow", false, nil)
	require.NoError(t, err)
	assert.Equal(t, noAnswerFallback, turn.Answer)
}

func TestFinalizeTicketRejectsPasswordResetMetadata(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeDesk{}, &tierCompleter{})

	_, err := orch.FinalizeTicket(context.Background(), "alice", "issue", intent.PasswordResetMetadata(), nil)
	assert.Error(t, err)
}

func TestFinalizeTicketAppliesOverrides(t *testing.T) {
	desk := &fakeDesk{createRaw: `{"result":{"request_number":"REQ0042"}}`}
	orch, _ := newTestOrchestrator(desk, &tierCompleter{})

	meta := intent.DefaultRoutingTable().MetadataFor(intent.CategoryHardwareRequest)
	result, err := orch.FinalizeTicket(context.Background(), "alice", "my laptop screen is broken", meta,
		&ticket.ConfirmData{ShortDescription: "Broken laptop screen"})
	require.NoError(t, err)

	assert.Equal(t, "REQ0042", result.Number)
	require.NotNil(t, desk.created)
	assert.Equal(t, "Broken laptop screen", desk.created.ShortDescription)
	assert.Equal(t, "hardware", desk.created.Category)
}

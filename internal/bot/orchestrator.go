package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vantagedesk/mira/internal/ai"
	"github.com/vantagedesk/mira/internal/intent"
	"github.com/vantagedesk/mira/internal/issuelog"
	"github.com/vantagedesk/mira/internal/servicenow"
	"github.com/vantagedesk/mira/internal/ticket"
)

const noAnswerFallback = "Sorry, I couldn't generate an answer right now. Please try again in a moment."

// Desk is the ticketing-platform surface the orchestrator reads from.
// servicenow.Client satisfies it.
type Desk interface {
	SearchArticles(ctx context.Context, query, readableBy string) ([]servicenow.Article, error)
	GetUserContext(ctx context.Context, userID string) (*servicenow.UserContext, error)
	OpenIncidents(ctx context.Context, userID string) ([]servicenow.TicketSummary, error)
	OpenRequests(ctx context.Context, userID string) ([]servicenow.TicketSummary, error)
	OpenTasks(ctx context.Context, userID string) ([]servicenow.TicketSummary, error)
}

// Turn is the outcome of one question/answer exchange. Metadata is nil
// unless the turn surfaced a follow-up action (ticket proposal or
// password reset).
type Turn struct {
	Answer   string
	Metadata *intent.Metadata
}

// Orchestrator sequences one turn: intent short-circuits, history
// tracking, article retrieval, answer generation, classification, and
// ticket proposal or creation. It holds no per-turn state — continuation
// state (pending ticket metadata) belongs to the caller.
type Orchestrator struct {
	desk       Desk
	completer  intent.Completer
	classifier *intent.Classifier
	resolver   *ticket.Resolver
	routes     intent.RoutingTable
	issues     issuelog.Log
}

func NewOrchestrator(desk Desk, completer intent.Completer, resolver *ticket.Resolver, routes intent.RoutingTable, issues issuelog.Log) *Orchestrator {
	return &Orchestrator{
		desk:       desk,
		completer:  completer,
		classifier: intent.NewClassifier(completer),
		resolver:   resolver,
		routes:     routes,
		issues:     issues,
	}
}

// HandleTurn processes one user question. The ordering is a contract:
// password reset wins over the open-ticket check, and both bypass the
// knowledge-base answer path entirely.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, question string, confirm bool, stored *intent.Metadata) (*Turn, error) {
	if intent.DetectPasswordReset(question) {
		return &Turn{
			Answer:   passwordResetAnswer(userID),
			Metadata: intent.PasswordResetMetadata(),
		}, nil
	}

	if scope, ok := intent.DetectStatusQuery(question); ok {
		return &Turn{Answer: o.statusListing(ctx, userID, scope)}, nil
	}

	o.issues.Append(userID, question)
	repeated := issuelog.Repeated(o.issues, userID, question)

	answer := o.generateAnswer(ctx, userID, question)

	if confirm && stored != nil {
		result, err := o.resolver.Create(ctx, userID, question, stored, nil)
		if err != nil {
			log.Printf("orchestrator: ticket creation failed for %s: %v", userID, err)
			return &Turn{Answer: answer + "\n\n⚠️ I couldn't create the ticket: " + err.Error()}, nil
		}
		return &Turn{Answer: answer + "\n\n" + result.Message}, nil
	}

	category := o.classifier.Classify(ctx, question)
	meta := o.routes.MetadataFor(category)
	if meta == nil {
		return &Turn{Answer: answer}, nil
	}

	return &Turn{
		Answer:   answer + inviteSuffix(category, repeated),
		Metadata: meta,
	}, nil
}

// FinalizeTicket creates a ticket from previously surfaced intent
// metadata plus the user's confirmed field overrides.
func (o *Orchestrator) FinalizeTicket(ctx context.Context, userID, issue string, meta *intent.Metadata, confirm *ticket.ConfirmData) (*ticket.Result, error) {
	if meta != nil && meta.Type == intent.MetadataTypePasswordReset {
		return nil, fmt.Errorf("password reset intent does not produce a ticket")
	}
	return o.resolver.Create(ctx, userID, issue, meta, confirm)
}

func passwordResetAnswer(userID string) string {
	return fmt.Sprintf(
		"It looks like you're having trouble signing in. Password reset link sent to %s — follow it to set a new password. "+
			"If you're still locked out afterwards, let me know and I can open a ticket for you.",
		userID,
	)
}

// statusListing fetches and formats the requested open-ticket list.
// Fetch failures degrade to a plain apology; status queries never fail
// the turn and never propose a new ticket.
func (o *Orchestrator) statusListing(ctx context.Context, userID string, scope intent.StatusScope) string {
	var (
		tickets []servicenow.TicketSummary
		err     error
	)
	switch scope {
	case intent.ScopeRequests:
		tickets, err = o.desk.OpenRequests(ctx, userID)
	case intent.ScopeTasks:
		tickets, err = o.desk.OpenTasks(ctx, userID)
	default:
		tickets, err = o.desk.OpenIncidents(ctx, userID)
	}
	if err != nil {
		log.Printf("orchestrator: open %s lookup failed for %s: %v", scope, userID, err)
		return fmt.Sprintf("I couldn't retrieve your open %s right now. Please try again later.", scope)
	}
	if len(tickets) == 0 {
		return fmt.Sprintf("You have no open %s. 🎉", scope)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your open %s:\n", scope)
	for _, t := range tickets {
		fmt.Fprintf(&b, "- **%s** — %s (opened %s", t.Number, t.ShortDescription, t.OpenedAt)
		if t.AssignedTo != "" {
			fmt.Fprintf(&b, ", assigned to %s", t.AssignedTo)
		}
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// generateAnswer retrieves knowledge articles and asks the model to
// answer from them alone. Every collaborator failure on this path
// degrades: no articles means the model is told to say so, and a model
// failure yields a canned apology.
func (o *Orchestrator) generateAnswer(ctx context.Context, userID, question string) string {
	readableBy := ""
	if uc, err := o.desk.GetUserContext(ctx, userID); err != nil {
		log.Printf("orchestrator: user context lookup failed for %s: %v", userID, err)
	} else if uc != nil {
		readableBy = uc.User.SysID
	}

	articles, err := o.desk.SearchArticles(ctx, question, readableBy)
	if err != nil {
		log.Printf("orchestrator: article search failed for %s: %v", userID, err)
		articles = nil
	}

	answer, err := o.completer.Complete(ctx, answerPrompt(question, articles), ai.TierAnswer)
	if err != nil {
		log.Printf("orchestrator: answer generation failed for %s: %v", userID, err)
		return noAnswerFallback
	}

	if len(articles) > 0 {
		var cites strings.Builder
		cites.WriteString("\n\nSources:\n")
		for _, a := range articles {
			fmt.Fprintf(&cites, "- %s\n", a.Title)
		}
		answer += strings.TrimRight(cites.String(), "\n")
	}
	return answer
}

func answerPrompt(question string, articles []servicenow.Article) string {
	var context strings.Builder
	for i, a := range articles {
		if i > 0 {
			context.WriteString("\n\n")
		}
		fmt.Fprintf(&context, "Article Title: %s\nContent: %s", a.Title, a.Content)
	}
	if context.Len() == 0 {
		context.WriteString("(no articles found)")
	}

	return fmt.Sprintf(`You are an IT support assistant. Answer the question using ONLY the knowledge base articles provided below.
If the articles do not contain the answer, say that you could not find an answer in the knowledge base — do not invent one.

QUESTION:
%s

CONTEXT:
%s

Respond in a helpful, clear way.`, question, context.String())
}

func inviteSuffix(category intent.Category, repeated bool) string {
	suffix := fmt.Sprintf("\n\n⚠️ This looks like a %s issue. Would you like me to open a ticket for it?",
		strings.ReplaceAll(string(category), "_", " "))
	if repeated {
		suffix += " You've raised this before, so a ticket may be the fastest way to get it fixed."
	}
	return suffix
}

// Package ticket turns classified intent plus user confirmation into a
// finalized ticket against the ticketing platform.
package ticket

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vantagedesk/mira/internal/intent"
	"github.com/vantagedesk/mira/internal/servicenow"
)

// Hard-coded fallbacks, applied per field when neither the confirmation
// nor the intent metadata supplies a value.
const (
	fallbackCategory    = "incident"
	fallbackSubcategory = "general"
	fallbackGroup       = "IT Support"
	fallbackType        = servicenow.TypeIncident

	unknownNumber = "UNKNOWN"
)

// Desk is the ticketing-platform dependency of the resolver.
type Desk interface {
	GetUserContext(ctx context.Context, userID string) (*servicenow.UserContext, error)
	CreateTicket(ctx context.Context, req servicenow.TicketRequest) (*servicenow.CreateResult, error)
}

// ConfirmData carries user-edited overrides collected at confirmation
// time. Empty fields mean "keep the classified default".
type ConfirmData struct {
	ShortDescription string `json:"short_description"`
	Category         string `json:"category"`
	Subcategory      string `json:"subcategory"`
	AssignmentGroup  string `json:"assignment_group"`
	Description      string `json:"description"`
}

// Result is the outcome of a ticket creation: the normalized identifier,
// a preview message for display, and the raw platform response for audit.
type Result struct {
	Number  string `json:"number"`
	Type    string `json:"type"`
	Link    string `json:"link"`
	Message string `json:"message"`
	Raw     []byte `json:"-"`
}

type Resolver struct {
	desk Desk
}

func NewResolver(desk Desk) *Resolver {
	return &Resolver{desk: desk}
}

// Resolve merges confirmation overrides, intent metadata and fallbacks
// into a final ticket request. Precedence is confirm > metadata > fallback,
// applied independently per field: overriding one field never discards the
// classified values of the others.
func (r *Resolver) Resolve(ctx context.Context, userID, issue string, meta *intent.Metadata, confirm *ConfirmData) servicenow.TicketRequest {
	var c ConfirmData
	if confirm != nil {
		c = *confirm
	}
	var m intent.Metadata
	if meta != nil {
		m = *meta
	}

	req := servicenow.TicketRequest{
		Caller:           userID,
		ShortDescription: pick(c.ShortDescription, m.ShortDescription, issue),
		Category:         pick(c.Category, m.Category, fallbackCategory),
		Subcategory:      pick(c.Subcategory, m.Subcategory, fallbackSubcategory),
		AssignmentGroup:  pick(c.AssignmentGroup, m.AssignmentGroup, fallbackGroup),
		Type:             pick("", m.Type, fallbackType),
	}

	req.Description = c.Description
	if req.Description == "" {
		req.Description = r.buildDescription(ctx, userID, issue)
	}
	return req
}

// Create resolves the request, opens the ticket, and normalizes the
// identifier from the platform's response.
func (r *Resolver) Create(ctx context.Context, userID, issue string, meta *intent.Metadata, confirm *ConfirmData) (*Result, error) {
	req := r.Resolve(ctx, userID, issue, meta, confirm)

	created, err := r.desk.CreateTicket(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	result := &Result{
		Number: ticketNumber(created.Raw),
		Type:   displayType(created.Raw, req.Type),
		Link:   created.Link,
		Raw:    created.Raw,
	}
	result.Message = previewMessage(req, result)
	return result, nil
}

// buildDescription synthesizes a ticket description from the user's
// profile context. Lookup failures degrade to placeholders — a missing
// profile never blocks ticket creation.
func (r *Resolver) buildDescription(ctx context.Context, userID, issue string) string {
	name := "Unknown User"
	email := "not provided"
	device := "unspecified device"

	uc, err := r.desk.GetUserContext(ctx, userID)
	if err != nil {
		log.Printf("resolver: user context lookup failed for %s: %v", userID, err)
	} else if uc != nil {
		if uc.User.Name != "" {
			name = uc.User.Name
		}
		if uc.User.Email != "" {
			email = uc.User.Email
		}
		if len(uc.Devices) > 0 && uc.Devices[0] != "" {
			device = uc.Devices[0]
		}
	}

	return fmt.Sprintf(
		"Hi, this user %s needs help with the following issue:\n%s\n\nThey currently use a %s. Their work email is %s.",
		name, issue, device, email,
	)
}

// ticketNumber resolves the ticket identifier from the raw platform
// response. Different ticket types return different field names, so an
// ordered fallback chain is applied: result → number → request_number →
// task_number → UNKNOWN.
func ticketNumber(raw []byte) string {
	root := gjson.ParseBytes(raw)

	body := root.Get("result")
	if body.Type == gjson.String && body.String() != "" {
		return body.String()
	}
	if !body.IsObject() {
		body = root
	}

	for _, key := range []string{"number", "request_number", "task_number"} {
		if v := body.Get(key).String(); v != "" {
			return v
		}
	}
	return unknownNumber
}

func displayType(raw []byte, resolvedType string) string {
	t := gjson.GetBytes(raw, "result.type").String()
	if t == "" {
		t = resolvedType
	}
	if t == "" {
		t = fallbackType
	}
	return strings.ToUpper(t[:1]) + t[1:]
}

func previewMessage(req servicenow.TicketRequest, res *Result) string {
	return fmt.Sprintf(`🛠 **Ticket Preview**
- Type: `+"`%s`"+`
- Number: `+"`%s`"+`
- Short Description: %s
- Category: %s
- Subcategory: %s
- Assignment Group: %s
- Description: %s

🔗 [View Ticket](%s)`,
		res.Type, res.Number, req.ShortDescription, req.Category,
		req.Subcategory, req.AssignmentGroup, req.Description, res.Link)
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

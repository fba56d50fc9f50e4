package servicenow

// Article is a knowledge-base entry returned by the article search.
type Article struct {
	Number  string `json:"number"`
	Title   string `json:"short_description"`
	Content string `json:"text"`
}

// UserProfile holds the sys_user fields the assistant cares about.
// Any field may be empty — callers must degrade gracefully.
type UserProfile struct {
	SysID      string `json:"sys_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Title      string `json:"title"`
	Department string `json:"department"`
}

// UserContext bundles a user's profile with their assigned hardware and
// currently open tickets.
type UserContext struct {
	User        UserProfile     `json:"user"`
	Devices     []string        `json:"devices"`
	OpenTickets []TicketSummary `json:"open_tickets"`
}

// TicketSummary is one row of an open-ticket listing.
type TicketSummary struct {
	Number           string `json:"number"`
	ShortDescription string `json:"short_description"`
	OpenedAt         string `json:"opened_at"`
	AssignedTo       string `json:"assigned_to"`
}

// Ticket type values accepted by CreateTicket.
const (
	TypeIncident = "incident"
	TypeRequest  = "request"
)

// TicketRequest is a fully resolved ticket payload. It is passed to the
// platform unchanged; all fallback merging happens before construction.
type TicketRequest struct {
	Caller           string `json:"caller_id"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Subcategory      string `json:"subcategory"`
	AssignmentGroup  string `json:"assignment_group"`
	Type             string `json:"-"`
}

// CreateResult carries the raw platform response plus a display link.
// The identifier field name varies by ticket type, so the raw JSON is
// kept for the caller to resolve.
type CreateResult struct {
	Raw  []byte
	Link string
}

type hardwareRow struct {
	DisplayName string `json:"display_name"`
}

// tableEnvelope is the {"result": [...]} wrapper the Table API puts
// around every list response.
type tableEnvelope[T any] struct {
	Result []T `json:"result"`
}

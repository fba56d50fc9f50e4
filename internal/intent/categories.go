package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one of a closed set of IT-issue classifications used to
// route a ticket.
type Category string

const (
	CategoryNone            Category = ""
	CategoryAccessIssue     Category = "access_issue"
	CategoryHardwareRequest Category = "hardware_request"
	CategorySoftwareRequest Category = "software_request"
	CategoryAccountProblem  Category = "account_problem"
	CategoryTicketFollowup  Category = "ticket_followup"
	CategoryDataIssue       Category = "data_issue"
	CategoryWorkflowProblem Category = "workflow_problem"
	CategorySecurityConcern Category = "security_concern"
)

// Categories lists every valid category, in the order they are presented
// to the classifier model.
var Categories = []Category{
	CategoryAccessIssue,
	CategoryHardwareRequest,
	CategorySoftwareRequest,
	CategoryAccountProblem,
	CategoryTicketFollowup,
	CategoryDataIssue,
	CategoryWorkflowProblem,
	CategorySecurityConcern,
}

// ParseCategory normalizes a raw label and validates it against the known
// set. Anything else — including "none", empty strings and malformed model
// output — maps to CategoryNone.
func ParseCategory(label string) Category {
	normalized := Category(strings.ToLower(strings.TrimSpace(label)))
	for _, c := range Categories {
		if normalized == c {
			return c
		}
	}
	return CategoryNone
}

// Ticket type values used in routing defaults.
const (
	TicketIncident = "incident"
	TicketRequest  = "request"
)

// Routing holds the default ticket fields for a category. Entries are
// fixed at startup and never mutated afterwards.
type Routing struct {
	ShortDescription string `yaml:"short_description"`
	Category         string `yaml:"category"`
	Subcategory      string `yaml:"subcategory"`
	AssignmentGroup  string `yaml:"assignment_group"`
	Type             string `yaml:"type"`
}

var defaultRoutes = map[Category]Routing{
	CategoryAccessIssue: {
		ShortDescription: "Access issue reported via IT assistant",
		Category:         "access",
		Subcategory:      "permissions",
		AssignmentGroup:  "IT Access Management",
		Type:             TicketIncident,
	},
	CategoryHardwareRequest: {
		ShortDescription: "Hardware request reported via IT assistant",
		Category:         "hardware",
		Subcategory:      "laptop",
		AssignmentGroup:  "IT Hardware Support",
		Type:             TicketRequest,
	},
	CategorySoftwareRequest: {
		ShortDescription: "Software request reported via IT assistant",
		Category:         "software",
		Subcategory:      "application",
		AssignmentGroup:  "IT Software Support",
		Type:             TicketRequest,
	},
	CategoryAccountProblem: {
		ShortDescription: "Account problem reported via IT assistant",
		Category:         "account",
		Subcategory:      "login",
		AssignmentGroup:  "IT Support",
		Type:             TicketIncident,
	},
	CategoryTicketFollowup: {
		ShortDescription: "Follow-up on an existing ticket",
		Category:         "inquiry",
		Subcategory:      "status",
		AssignmentGroup:  "Service Desk",
		Type:             TicketIncident,
	},
	CategoryDataIssue: {
		ShortDescription: "Data issue reported via IT assistant",
		Category:         "data",
		Subcategory:      "integrity",
		AssignmentGroup:  "Data Services",
		Type:             TicketIncident,
	},
	CategoryWorkflowProblem: {
		ShortDescription: "Workflow problem reported via IT assistant",
		Category:         "workflow",
		Subcategory:      "automation",
		AssignmentGroup:  "IT Support",
		Type:             TicketIncident,
	},
	CategorySecurityConcern: {
		ShortDescription: "Security concern reported via IT assistant",
		Category:         "security",
		Subcategory:      "general",
		AssignmentGroup:  "Security Operations",
		Type:             TicketIncident,
	},
}

// RoutingTable maps categories to their default ticket fields.
type RoutingTable map[Category]Routing

// DefaultRoutingTable returns a copy of the built-in routing defaults.
func DefaultRoutingTable() RoutingTable {
	table := make(RoutingTable, len(defaultRoutes))
	for c, r := range defaultRoutes {
		table[c] = r
	}
	return table
}

// LoadRoutingTable overlays entries from a YAML file onto the built-in
// defaults. Only listed categories are replaced; unknown category keys
// are an error so routing typos fail at startup, not ticket time.
func LoadRoutingTable(path string) (RoutingTable, error) {
	table := DefaultRoutingTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routing table: %w", err)
	}

	var overrides map[string]Routing
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing routing table: %w", err)
	}

	for key, r := range overrides {
		cat := ParseCategory(key)
		if cat == CategoryNone {
			return nil, fmt.Errorf("routing table: unknown category %q", key)
		}
		if r.Type != TicketIncident && r.Type != TicketRequest {
			return nil, fmt.Errorf("routing table: category %q has invalid type %q", key, r.Type)
		}
		table[cat] = r
	}
	return table, nil
}

// MetadataTypePasswordReset marks metadata for the password-reset flow,
// which bypasses ticket routing entirely.
const MetadataTypePasswordReset = "password_reset"

// Metadata is the intent hint returned alongside a generated answer. It is
// either a category's routing defaults or the password-reset sentinel.
type Metadata struct {
	Type             string `json:"type"`
	ShortDescription string `json:"short_description,omitempty"`
	Category         string `json:"category,omitempty"`
	Subcategory      string `json:"subcategory,omitempty"`
	AssignmentGroup  string `json:"assignment_group,omitempty"`
}

// PasswordResetMetadata returns the sentinel for password-reset turns.
func PasswordResetMetadata() *Metadata {
	return &Metadata{Type: MetadataTypePasswordReset}
}

// MetadataFor builds ticket metadata from a category's routing entry.
// Returns nil when the category has no routing (including CategoryNone).
func (t RoutingTable) MetadataFor(cat Category) *Metadata {
	r, ok := t[cat]
	if !ok {
		return nil
	}
	return &Metadata{
		Type:             r.Type,
		ShortDescription: r.ShortDescription,
		Category:         r.Category,
		Subcategory:      r.Subcategory,
		AssignmentGroup:  r.AssignmentGroup,
	}
}

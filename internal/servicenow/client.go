package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

const (
	articleLimit = 5
	ticketLimit  = 25
)

// Client talks to a ServiceNow instance over the Table API using basic auth.
type Client struct {
	instance string
	username string
	password string
	http     *http.Client
}

func NewClient(instance, username, password string) *Client {
	return &Client{
		instance: instance,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchArticles runs a text query against published knowledge articles.
// When readableBy is non-empty the search is restricted to articles that
// user is permitted to read.
func (c *Client) SearchArticles(ctx context.Context, query, readableBy string) ([]Article, error) {
	sysparm := "published=true^active=true^textLIKE" + query
	if readableBy != "" {
		sysparm += "^u_readable_by=" + readableBy
	}

	q := url.Values{}
	q.Set("sysparm_query", sysparm)
	q.Set("sysparm_fields", "number,short_description,text")
	q.Set("sysparm_limit", fmt.Sprintf("%d", articleLimit))

	var env tableEnvelope[Article]
	if err := c.get(ctx, "/api/now/table/kb_knowledge", q, &env); err != nil {
		return nil, fmt.Errorf("searchArticles: %w", err)
	}
	return env.Result, nil
}

// GetUserContext looks up a user's profile, assigned hardware and open
// tickets. Missing pieces are returned empty rather than as errors.
func (c *Client) GetUserContext(ctx context.Context, userID string) (*UserContext, error) {
	q := url.Values{}
	q.Set("sysparm_query", "user_name="+userID)
	q.Set("sysparm_fields", "sys_id,name,email,title,department")
	q.Set("sysparm_limit", "1")

	var users tableEnvelope[UserProfile]
	if err := c.get(ctx, "/api/now/table/sys_user", q, &users); err != nil {
		return nil, fmt.Errorf("getUserContext: %w", err)
	}

	uc := &UserContext{}
	if len(users.Result) > 0 {
		uc.User = users.Result[0]
	}
	if uc.User.SysID == "" {
		return uc, nil
	}

	dq := url.Values{}
	dq.Set("sysparm_query", "assigned_to="+uc.User.SysID)
	dq.Set("sysparm_fields", "display_name")
	var hw tableEnvelope[hardwareRow]
	if err := c.get(ctx, "/api/now/table/alm_hardware", dq, &hw); err == nil {
		for _, h := range hw.Result {
			uc.Devices = append(uc.Devices, h.DisplayName)
		}
	}

	if tickets, err := c.OpenIncidents(ctx, userID); err == nil {
		uc.OpenTickets = tickets
	}
	return uc, nil
}

// OpenIncidents lists the user's active incidents.
func (c *Client) OpenIncidents(ctx context.Context, userID string) ([]TicketSummary, error) {
	return c.openTickets(ctx, "incident", "caller_id.user_name="+userID+"^active=true")
}

// OpenRequests lists the user's active service requests.
func (c *Client) OpenRequests(ctx context.Context, userID string) ([]TicketSummary, error) {
	return c.openTickets(ctx, "sc_request", "opened_by.user_name="+userID+"^active=true")
}

// OpenTasks lists the user's active catalog tasks.
func (c *Client) OpenTasks(ctx context.Context, userID string) ([]TicketSummary, error) {
	return c.openTickets(ctx, "sc_task", "opened_by.user_name="+userID+"^active=true")
}

func (c *Client) openTickets(ctx context.Context, table, sysparm string) ([]TicketSummary, error) {
	q := url.Values{}
	q.Set("sysparm_query", sysparm)
	q.Set("sysparm_fields", "number,short_description,opened_at,assigned_to")
	q.Set("sysparm_display_value", "true")
	q.Set("sysparm_exclude_reference_link", "true")
	q.Set("sysparm_limit", fmt.Sprintf("%d", ticketLimit))

	var env tableEnvelope[TicketSummary]
	if err := c.get(ctx, "/api/now/table/"+table, q, &env); err != nil {
		return nil, fmt.Errorf("openTickets %s: %w", table, err)
	}
	return env.Result, nil
}

// CreateTicket posts the resolved request to the table matching its type
// and returns the raw response body plus a display link. The identifier
// field differs per table, so callers resolve it from Raw.
func (c *Client) CreateTicket(ctx context.Context, req TicketRequest) (*CreateResult, error) {
	table := tableForType(req.Type)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("createTicket marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.instance+"/api/now/table/"+table, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("createTicket request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("createTicket read: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("createTicket status %d: %s", resp.StatusCode, raw)
	}

	link := "#"
	if sysID := gjson.GetBytes(raw, "result.sys_id").String(); sysID != "" {
		link = fmt.Sprintf("%s/nav_to.do?uri=%s.do?sys_id=%s", c.instance, table, sysID)
	}
	return &CreateResult{Raw: raw, Link: link}, nil
}

func tableForType(ticketType string) string {
	if ticketType == TypeRequest {
		return "sc_request"
	}
	return "incident"
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instance+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

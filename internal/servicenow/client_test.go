package servicenow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchArticles(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/kb_knowledge", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)
		gotQuery = r.URL.Query().Get("sysparm_query")

		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{
			{"number": "KB001", "short_description": "Reset Network Password", "text": "To reset your password..."},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	articles, err := c.SearchArticles(context.Background(), "password", "abc123")
	require.NoError(t, err)

	require.Len(t, articles, 1)
	assert.Equal(t, "Reset Network Password", articles[0].Title)
	assert.Contains(t, gotQuery, "textLIKEpassword")
	assert.Contains(t, gotQuery, "u_readable_by=abc123")
}

func TestSearchArticlesNoPermissionFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("sysparm_query")
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	_, err := c.SearchArticles(context.Background(), "vpn", "")
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "u_readable_by")
}

func TestGetUserContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/now/table/sys_user":
			json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{
				{"sys_id": "abc", "name": "Alice Ray", "email": "alice@corp.example", "title": "Analyst", "department": "Finance"},
			}})
		case "/api/now/table/alm_hardware":
			json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{
				{"display_name": "Dell Latitude 7440"},
			}})
		case "/api/now/table/incident":
			json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{
				{"number": "INC0010045", "short_description": "VPN drops", "opened_at": "2026-08-01 09:12:00"},
			}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	uc, err := c.GetUserContext(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "Alice Ray", uc.User.Name)
	assert.Equal(t, []string{"Dell Latitude 7440"}, uc.Devices)
	require.Len(t, uc.OpenTickets, 1)
	assert.Equal(t, "INC0010045", uc.OpenTickets[0].Number)
}

func TestGetUserContextUnknownUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	uc, err := c.GetUserContext(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, uc.User.SysID)
	assert.Empty(t, uc.Devices)
}

func TestOpenTicketTables(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *Client) ([]TicketSummary, error)
		wantTable string
	}{
		{"incidents", func(c *Client) ([]TicketSummary, error) { return c.OpenIncidents(context.Background(), "alice") }, "/api/now/table/incident"},
		{"requests", func(c *Client) ([]TicketSummary, error) { return c.OpenRequests(context.Background(), "alice") }, "/api/now/table/sc_request"},
		{"tasks", func(c *Client) ([]TicketSummary, error) { return c.OpenTasks(context.Background(), "alice") }, "/api/now/table/sc_task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				json.NewEncoder(w).Encode(map[string]any{"result": []map[string]string{}})
			}))
			defer srv.Close()

			_, err := tt.call(NewClient(srv.URL, "svc", "secret"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTable, gotPath)
		})
	}
}

func TestCreateTicket(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":{"number":"INC0012345","sys_id":"deadbeef"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	res, err := c.CreateTicket(context.Background(), TicketRequest{
		Caller:           "alice",
		ShortDescription: "Broken screen",
		Type:             TypeIncident,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/now/table/incident", gotPath)
	assert.Equal(t, "alice", gotBody["caller_id"])
	assert.Equal(t, "Broken screen", gotBody["short_description"])
	assert.Contains(t, res.Link, "sys_id=deadbeef")
	assert.Contains(t, string(res.Raw), "INC0012345")
}

func TestCreateTicketRequestTable(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"result":{"request_number":"REQ0001"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	_, err := c.CreateTicket(context.Background(), TicketRequest{Type: TypeRequest})
	require.NoError(t, err)
	assert.Equal(t, "/api/now/table/sc_request", gotPath)
}

func TestCreateTicketErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"insufficient rights"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc", "secret")
	_, err := c.CreateTicket(context.Background(), TicketRequest{Type: TypeIncident})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

package bot

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantagedesk/mira/internal/intent"
	"github.com/vantagedesk/mira/internal/session"
	"github.com/vantagedesk/mira/internal/store"
	"github.com/vantagedesk/mira/internal/ticket"
)

// ConvState tracks where a user's conversation stands between turns.
// The orchestrator itself is stateless; this is caller-owned state.
type ConvState int

const (
	AwaitingQuestion ConvState = iota
	AwaitingTicketConfirmation
)

type conversation struct {
	state        ConvState
	lastQuestion string
	pending      *intent.Metadata
}

// Handler exposes the assistant over HTTP and owns per-user conversation
// state.
type Handler struct {
	orch     *Orchestrator
	desk     Desk
	sessions *session.Manager
	store    *store.BoltStore

	mu    sync.Mutex
	convs map[string]*conversation
}

func NewHandler(orch *Orchestrator, desk Desk, sessions *session.Manager, s *store.BoltStore) *Handler {
	return &Handler{
		orch:     orch,
		desk:     desk,
		sessions: sessions,
		store:    s,
		convs:    make(map[string]*conversation),
	}
}

// Routes mounts the chat API on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/chat", h.handleChat)
	r.Post("/api/ticket/confirm", h.handleTicketConfirm)
	r.Get("/api/chat/{userID}/history", h.handleHistory)
	r.Get("/api/users/{userID}/context", h.handleUserContext)
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type chatResponse struct {
	Answer               string           `json:"answer"`
	TicketMetadata       *intent.Metadata `json:"ticket_metadata,omitempty"`
	AwaitingConfirmation bool             `json:"awaiting_confirmation"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || strings.TrimSpace(req.Question) == "" {
		http.Error(w, "user_id and question are required", http.StatusBadRequest)
		return
	}

	var resp chatResponse
	err := h.sessions.WithLock(req.UserID, func() error {
		turn, err := h.orch.HandleTurn(r.Context(), req.UserID, req.Question, false, nil)
		if err != nil {
			return err
		}

		conv := h.conv(req.UserID)
		if turn.Metadata != nil && turn.Metadata.Type != intent.MetadataTypePasswordReset {
			conv.state = AwaitingTicketConfirmation
			conv.lastQuestion = req.Question
			conv.pending = turn.Metadata
		} else {
			// Any non-ticket turn clears a stale proposal.
			conv.state = AwaitingQuestion
			conv.pending = nil
		}

		h.saveTranscript(req.UserID, req.Question, turn.Answer)
		resp = chatResponse{
			Answer:               turn.Answer,
			TicketMetadata:       turn.Metadata,
			AwaitingConfirmation: conv.state == AwaitingTicketConfirmation,
		}
		return nil
	})
	if err != nil {
		log.Printf("handler: chat turn failed for %s: %v", req.UserID, err)
		http.Error(w, "failed to process question", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type ticketConfirmRequest struct {
	UserID  string              `json:"user_id"`
	Confirm *ticket.ConfirmData `json:"confirm,omitempty"`
}

type ticketConfirmResponse struct {
	Message string         `json:"message"`
	Ticket  *ticket.Result `json:"ticket"`
}

func (h *Handler) handleTicketConfirm(w http.ResponseWriter, r *http.Request) {
	var req ticketConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	var resp ticketConfirmResponse
	status := http.StatusOK
	err := h.sessions.WithLock(req.UserID, func() error {
		conv := h.conv(req.UserID)
		if conv.state != AwaitingTicketConfirmation || conv.pending == nil {
			status = http.StatusConflict
			return nil
		}

		result, err := h.orch.FinalizeTicket(r.Context(), req.UserID, conv.lastQuestion, conv.pending, req.Confirm)
		if err != nil {
			return err
		}

		conv.state = AwaitingQuestion
		conv.pending = nil
		h.saveTranscript(req.UserID, "(Confirmed Ticket)", result.Message)
		resp = ticketConfirmResponse{Message: result.Message, Ticket: result}
		return nil
	})
	if err != nil {
		log.Printf("handler: ticket confirm failed for %s: %v", req.UserID, err)
		http.Error(w, "failed to create ticket", http.StatusInternalServerError)
		return
	}
	if status == http.StatusConflict {
		http.Error(w, "no ticket awaiting confirmation", http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	entries, err := h.store.GetTranscript(userID)
	if err != nil {
		log.Printf("handler: history lookup failed for %s: %v", userID, err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "history": entries})
}

func (h *Handler) handleUserContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	uc, err := h.desk.GetUserContext(r.Context(), userID)
	if err != nil {
		log.Printf("handler: user context failed for %s: %v", userID, err)
		http.Error(w, "failed to load user context", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, uc)
}

func (h *Handler) conv(userID string) *conversation {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.convs[userID]
	if !ok {
		c = &conversation{}
		h.convs[userID] = c
	}
	return c
}

func (h *Handler) saveTranscript(userID, question, answer string) {
	entry := store.TranscriptEntry{Question: question, Answer: answer, At: time.Now()}
	if err := h.store.AppendTranscript(userID, entry); err != nil {
		log.Printf("handler: failed to save transcript for %s: %v", userID, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: failed to encode response: %v", err)
	}
}

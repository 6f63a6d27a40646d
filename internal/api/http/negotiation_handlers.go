package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk/internal/application/engine"
	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
	"github.com/dealdesk/dealdesk/internal/infrastructure/sse"
)

type negotiationSummary struct {
	ID            string     `json:"id"`
	SellerID      string     `json:"sellerId"`
	SellerName    string     `json:"sellerName"`
	Category      string     `json:"category"`
	Mess          *string    `json:"mess,omitempty"`
	TargetPrice   int        `json:"targetPrice"`
	State         string     `json:"state"`
	FollowUpCount int        `json:"followUpCount"`
	FailureReason *string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func summarizeConversation(c *negotiation.Conversation) negotiationSummary {
	return negotiationSummary{
		ID:            c.ID.String(),
		SellerID:      c.SellerID,
		SellerName:    c.SellerName,
		Category:      string(c.Category),
		Mess:          c.Mess,
		TargetPrice:   c.TargetPrice,
		State:         string(c.State),
		FollowUpCount: c.FollowUpCount,
		FailureReason: c.FailureReason,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		CompletedAt:   c.CompletedAt,
	}
}

func (s *Server) listNegotiations(w http.ResponseWriter, r *http.Request) {
	convs := s.engine.ListVisible()
	out := make([]negotiationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, summarizeConversation(c))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"negotiations": out})
}

func (s *Server) getNegotiation(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "conversationId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid conversationId")
		return
	}
	c := s.engine.Get(id)
	if c == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "negotiation not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "conversationId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid conversationId")
		return
	}
	msgs, err := s.engine.MessagesOf(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversation_id": id, "messages": msgs})
}

type checkpointDecisionRequest struct {
	Approved bool `json:"approved"`
}

func (s *Server) decideCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "conversationId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid conversationId")
		return
	}
	kind := engine.CheckpointKind(chi.URLParam(r, "kind"))
	if kind != engine.CheckpointPurchase && kind != engine.CheckpointPayment {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown checkpoint kind")
		return
	}
	var req checkpointDecisionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if err := s.engine.ResolveCheckpoint(id, kind, req.Approved); err != nil {
		respondError(w, http.StatusConflict, "NO_PENDING_CHECKPOINT", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"checkpoint":      kind,
		"approved":        req.Approved,
	})
}

func (s *Server) completeNegotiation(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "conversationId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid conversationId")
		return
	}
	if err := s.engine.ForceComplete(r.Context(), id); err != nil {
		if errors.Is(err, negotiation.ErrAlreadyTerminal) {
			respondError(w, http.StatusConflict, "ALREADY_TERMINAL", err.Error())
			return
		}
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversation_id": id, "state": negotiation.StateCompleted})
}

type failRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) failNegotiation(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "conversationId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid conversationId")
		return
	}
	var req failRequest
	_ = decodeBody(r, &req)
	if err := s.engine.ForceFail(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, negotiation.ErrAlreadyTerminal) {
			respondError(w, http.StatusConflict, "ALREADY_TERMINAL", err.Error())
			return
		}
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversation_id": id, "state": negotiation.StateFailed})
}

func (s *Server) listOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 100, 200)
	records, err := s.outcomes.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"outcomes": records})
}

func parseCategoryParam(r *http.Request) (negotiation.Category, bool) {
	switch negotiation.Category(strings.ToUpper(chi.URLParam(r, "category"))) {
	case negotiation.CategoryLunch:
		return negotiation.CategoryLunch, true
	case negotiation.CategoryDinner:
		return negotiation.CategoryDinner, true
	default:
		return "", false
	}
}

func (s *Server) pauseCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategoryParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown category")
		return
	}
	s.oracle.Pause(category)
	respondJSON(w, http.StatusOK, map[string]interface{}{"category": category, "paused": true})
}

func (s *Server) resumeCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategoryParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "unknown category")
		return
	}
	s.oracle.Resume(category)
	respondJSON(w, http.StatusOK, map[string]interface{}{"category": category, "paused": false})
}

func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "client_id required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	client := sse.NewClient(clientID)
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Send an initial comment to flush headers and keep the connection alive.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg := <-client.MessageChan:
			if msg == nil {
				return
			}
			_, _ = w.Write([]byte("event: " + msg.Event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg.Data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

package httpapi

import (
	"encoding/base64"
	"net/http"

	"github.com/dealdesk/dealdesk/internal/application/engine"
)

type inboundRequest struct {
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	Text         string `json:"text"`
	Attachment   string `json:"attachment,omitempty"`
	ChannelID    string `json:"channel_id,omitempty"`
	ChannelName  string `json:"channel_name,omitempty"`
	MessageID    string `json:"message_id,omitempty"`
	FromOperator bool   `json:"from_operator"`
}

// inbound receives message events pushed by the relay. Operator chat
// replies resolve pending checkpoints; seller messages go to their open
// conversation; anything else is evaluated as a fresh offer.
func (s *Server) inbound(w http.ResponseWriter, r *http.Request) {
	if s.relayToken != "" && r.Header.Get("X-Relay-Token") != s.relayToken {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid relay token")
		return
	}

	var req inboundRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.SenderID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "sender_id required")
		return
	}

	var attachment []byte
	if req.Attachment != "" {
		data, err := base64.StdEncoding.DecodeString(req.Attachment)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "attachment is not valid base64")
			return
		}
		attachment = data
	}

	ctx := r.Context()
	switch {
	case req.FromOperator:
		s.engine.HandleOperatorMessage(ctx, req.Text)
		respondJSON(w, http.StatusOK, map[string]interface{}{"handled": "operator"})

	case s.engine.HasOpenWith(req.SenderID):
		s.engine.HandleSellerMessage(ctx, req.SenderID, req.Text, attachment)
		respondJSON(w, http.StatusOK, map[string]interface{}{"handled": "seller"})

	default:
		c := s.engine.AcceptOffer(ctx, engine.Offer{
			SellerID:    req.SenderID,
			SellerName:  req.SenderName,
			Text:        req.Text,
			ChannelID:   req.ChannelID,
			ChannelName: req.ChannelName,
			MessageID:   req.MessageID,
		})
		if c == nil {
			respondJSON(w, http.StatusOK, map[string]interface{}{"handled": "ignored"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"handled":         "offer",
			"conversation_id": c.ID,
		})
	}
}

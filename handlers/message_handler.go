package handlers

import (
	"encoding/json"
	"net/http"

	"go-rooms/backend/apperr"
	"go-rooms/backend/ledger"
	"go-rooms/backend/utils"
)

// MessageHandler exposes the Message Ledger over REST.
type MessageHandler struct {
	Ledger *ledger.Service
}

type sendMessageRequest struct {
	RoomID      string   `json:"roomId"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
}

type editMessageRequest struct {
	Text        *string  `json:"text"`
	Attachments []string `json:"attachments"`
}

type markReadResponse struct {
	MarkedCount int64 `json:"markedCount"`
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Invalid request body"))
		return
	}
	if req.RoomID == "" || req.Text == "" {
		respondError(w, apperr.New(apperr.InvalidArgument, "roomId and text are required"))
		return
	}
	roomID, err := parseObjectID(req.RoomID, "roomId")
	if err != nil {
		respondError(w, err)
		return
	}

	msg, err := h.Ledger.Append(r.Context(), roomID, userID, req.Text, req.Attachments)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, msg, "Message sent successfully")
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathObjectID(r, "roomId")
	if err != nil {
		respondError(w, err)
		return
	}
	page, limit := pagination(r, 20)

	messages, err := h.Ledger.GetMessages(r.Context(), roomID, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, messages, "Messages fetched")
}

func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, err := pathObjectID(r, "messageId")
	if err != nil {
		respondError(w, err)
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Invalid request body"))
		return
	}
	if req.Text == nil && req.Attachments == nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Nothing to update"))
		return
	}

	msg, err := h.Ledger.Edit(r.Context(), messageID, userID, req.Text, req.Attachments)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, msg, "Message updated successfully")
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, err := pathObjectID(r, "messageId")
	if err != nil {
		respondError(w, err)
		return
	}

	outcome, err := h.Ledger.Delete(r.Context(), messageID, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if outcome.Kind == ledger.HardDeleted {
		respond(w, http.StatusOK, nil, "Message deleted")
		return
	}
	respond(w, http.StatusOK, outcome.Message, "Message hidden for you")
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, err := decodeRoomID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	count, err := h.Ledger.MarkRead(r.Context(), roomID, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, markReadResponse{MarkedCount: count}, "Messages marked as read")
}

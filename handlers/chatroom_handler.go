package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/registry"
	"go-rooms/backend/utils"
)

// RoomHandler exposes the Room Registry over REST.
type RoomHandler struct {
	Registry *registry.Service
}

type createRoomRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	IsGroup bool     `json:"isGroup"`
}

type roomIDRequest struct {
	RoomID string `json:"roomId"`
}

type updateStatusRequest struct {
	RoomID string              `json:"roomId"`
	Status models.MemberStatus `json:"status"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Invalid request body"))
		return
	}
	members, err := parseObjectIDs(req.Members)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Registry.CreateRoom(r.Context(), userID, members, req.IsGroup, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	if result.Existing {
		// Idempotent create: same room comes back with a 200, not a
		// conflict.
		respond(w, http.StatusOK, result.Room, "Room already exists")
		return
	}
	respond(w, http.StatusCreated, result.Room, "Room created successfully")
}

func (h *RoomHandler) ListMyRooms(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	page, limit := pagination(r, 10)

	rooms, err := h.Registry.ListUserRooms(r.Context(), userID, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, rooms, "User rooms fetched")
}

func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
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

	room, err := h.Registry.JoinRoom(r.Context(), userID, roomID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, room, "Joined room successfully")
}

func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := h.Registry.LeaveRoom(r.Context(), userID, roomID)
	if err != nil {
		respondError(w, err)
		return
	}
	if outcome.RoomDeleted {
		respond(w, http.StatusOK, nil, "Left room; empty room deleted")
		return
	}
	respond(w, http.StatusOK, outcome.Room, "Left room successfully")
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := h.Registry.DeleteRoom(r.Context(), userID, roomID)
	if err != nil {
		respondError(w, err)
		return
	}
	if outcome.RoomDeleted {
		respond(w, http.StatusOK, nil, "Room deleted")
		return
	}
	respond(w, http.StatusOK, outcome.Room, "Left room successfully")
}

func (h *RoomHandler) RoomStatuses(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathObjectID(r, "roomId")
	if err != nil {
		respondError(w, err)
		return
	}

	views, err := h.Registry.ListStatuses(r.Context(), roomID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, views, "Room members with status fetched")
}

func (h *RoomHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Invalid request body"))
		return
	}
	roomID, err := parseObjectID(req.RoomID, "roomId")
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := h.Registry.UpdateMemberStatus(r.Context(), userID, roomID, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, view, "Member status updated successfully")
}

// ---- request helpers ----

func decodeRoomID(r *http.Request) (primitive.ObjectID, error) {
	var req roomIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return primitive.NilObjectID, apperr.New(apperr.InvalidArgument, "Invalid request body")
	}
	return parseObjectID(req.RoomID, "roomId")
}

func parseObjectID(s, field string) (primitive.ObjectID, error) {
	if s == "" {
		return primitive.NilObjectID, apperr.Newf(apperr.InvalidArgument, "%s is required", field)
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, apperr.Newf(apperr.InvalidArgument, "Invalid %s format", field)
	}
	return id, nil
}

func parseObjectIDs(in []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(in))
	for _, s := range in {
		id, err := parseObjectID(s, "member id")
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func pathObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	return parseObjectID(mux.Vars(r)[name], name)
}

func pagination(r *http.Request, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return page, limit
}

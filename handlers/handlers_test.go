package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-rooms/backend/fanout"
	"go-rooms/backend/ledger"
	"go-rooms/backend/middleware"
	"go-rooms/backend/notify"
	"go-rooms/backend/preview"
	"go-rooms/backend/registry"
	"go-rooms/backend/store/memstore"
)

const testSecret = "test-secret"

type nullSink struct{}

func (nullSink) DeliverRoom(string, []byte) {}
func (nullSink) DeliverUser(string, []byte) {}

// newTestRouter assembles the REST surface the way main does, on the
// in-memory store.
func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	st := memstore.New()
	channel := fanout.NewBus(nullSink{})
	projector := preview.New(st)

	rooms, err := registry.New(st, channel, projector, notify.LogNotifier{})
	require.NoError(t, err)
	messages, err := ledger.New(st, channel, projector, rooms)
	require.NoError(t, err)

	authHandler := &AuthHandler{Store: st, JWTSecret: testSecret}
	roomHandler := &RoomHandler{Registry: rooms}
	messageHandler := &MessageHandler{Ledger: messages}

	router := mux.NewRouter()
	router.HandleFunc("/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/login", authHandler.Login).Methods("POST")

	auth := router.NewRoute().Subrouter()
	auth.Use(middleware.JWT(testSecret))
	auth.HandleFunc("/rooms", roomHandler.CreateRoom).Methods("POST")
	auth.HandleFunc("/rooms", roomHandler.ListMyRooms).Methods("GET")
	auth.HandleFunc("/rooms/join", roomHandler.JoinRoom).Methods("POST")
	auth.HandleFunc("/rooms/leave", roomHandler.LeaveRoom).Methods("POST")
	auth.HandleFunc("/rooms/delete", roomHandler.DeleteRoom).Methods("POST")
	auth.HandleFunc("/rooms/{roomId}/statuses", roomHandler.RoomStatuses).Methods("GET")
	auth.HandleFunc("/rooms/status", roomHandler.UpdateStatus).Methods("POST")
	auth.HandleFunc("/messages", messageHandler.SendMessage).Methods("POST")
	auth.HandleFunc("/messages/read", messageHandler.MarkRead).Methods("POST")
	auth.HandleFunc("/messages/{roomId}", messageHandler.GetMessages).Methods("GET")
	auth.HandleFunc("/messages/{messageId}", messageHandler.EditMessage).Methods("PATCH")
	auth.HandleFunc("/messages/{messageId}", messageHandler.DeleteMessage).Methods("DELETE")
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path, token string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp APIResponse
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func registerUser(t *testing.T, router *mux.Router, name string) (id, token string) {
	t.Helper()
	rr, resp := doJSON(t, router, http.MethodPost, "/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	data := resp.Data.(map[string]interface{})
	return data["id"].(string), data["token"].(string)
}

func TestRegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)

	_, token := registerUser(t, router, "alice")
	require.NotEmpty(t, token)

	rr, resp := doJSON(t, router, http.MethodPost, "/register", "", map[string]string{
		"name":     "alice2",
		"email":    "alice@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, resp.Success)

	rr, resp = doJSON(t, router, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Success)

	rr, resp = doJSON(t, router, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, resp.Success)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rr, _ := doJSON(t, router, http.MethodGet, "/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = doJSON(t, router, http.MethodGet, "/rooms", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRoomLifecycleOverREST(t *testing.T) {
	router := newTestRouter(t)
	_, aliceToken := registerUser(t, router, "alice")
	bobID, bobToken := registerUser(t, router, "bob")

	rr, resp := doJSON(t, router, http.MethodPost, "/rooms", aliceToken, map[string]interface{}{
		"members": []string{bobID},
		"isGroup": false,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.True(t, resp.Success)
	room := resp.Data.(map[string]interface{})
	roomID := room["_id"].(string)
	assert.Equal(t, "bob", room["displayName"])

	// Creating the same pair again is the idempotent 200 path.
	rr, resp = doJSON(t, router, http.MethodPost, "/rooms", aliceToken, map[string]interface{}{
		"members": []string{bobID},
		"isGroup": false,
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Room already exists", resp.Message)

	rr, resp = doJSON(t, router, http.MethodGet, "/rooms", bobToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rooms := resp.Data.([]interface{})
	require.Len(t, rooms, 1)

	rr, _ = doJSON(t, router, http.MethodPost, "/rooms/join", bobToken, map[string]string{"roomId": roomID})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, resp = doJSON(t, router, http.MethodGet, "/rooms/"+roomID+"/statuses", aliceToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	statuses := resp.Data.([]interface{})
	assert.Len(t, statuses, 2)

	rr, _ = doJSON(t, router, http.MethodPost, "/rooms/status", aliceToken, map[string]string{
		"roomId": roomID,
		"status": "offline",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = doJSON(t, router, http.MethodPost, "/rooms/status", aliceToken, map[string]string{
		"roomId": roomID,
		"status": "away",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = doJSON(t, router, http.MethodPost, "/rooms/leave", aliceToken, map[string]string{"roomId": roomID})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, resp = doJSON(t, router, http.MethodPost, "/rooms/leave", bobToken, map[string]string{"roomId": roomID})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Left room; empty room deleted", resp.Message)
}

func TestMessageLifecycleOverREST(t *testing.T) {
	router := newTestRouter(t)
	_, aliceToken := registerUser(t, router, "alice")
	bobID, bobToken := registerUser(t, router, "bob")

	_, resp := doJSON(t, router, http.MethodPost, "/rooms", aliceToken, map[string]interface{}{
		"members": []string{bobID},
		"isGroup": false,
	})
	roomID := resp.Data.(map[string]interface{})["_id"].(string)

	rr, resp := doJSON(t, router, http.MethodPost, "/messages", aliceToken, map[string]interface{}{
		"roomId": roomID,
		"text":   "hello bob",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	messageID := resp.Data.(map[string]interface{})["id"].(string)

	rr, resp = doJSON(t, router, http.MethodGet, "/messages/"+roomID+"?page=1&limit=10", bobToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	messages := resp.Data.([]interface{})
	require.Len(t, messages, 2) // creation system message + the text

	rr, resp = doJSON(t, router, http.MethodPost, "/messages/read", bobToken, map[string]string{"roomId": roomID})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["markedCount"])

	// Only the sender may edit.
	rr, _ = doJSON(t, router, http.MethodPatch, "/messages/"+messageID, bobToken, map[string]string{"text": "hacked"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, resp = doJSON(t, router, http.MethodPatch, "/messages/"+messageID, aliceToken, map[string]string{"text": "hello again"})
	require.Equal(t, http.StatusOK, rr.Code)
	edited := resp.Data.(map[string]interface{})
	assert.Equal(t, "hello again", edited["text"])
	assert.Equal(t, true, edited["isEdited"])

	// Bob's delete only hides it for bob.
	rr, resp = doJSON(t, router, http.MethodDelete, "/messages/"+messageID, bobToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Message hidden for you", resp.Message)

	// Alice's delete removes it for everyone.
	rr, resp = doJSON(t, router, http.MethodDelete, "/messages/"+messageID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Message deleted", resp.Message)

	rr, resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/messages/%s", roomID), aliceToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)
}

func TestInvalidIDsAreRejected(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerUser(t, router, "alice")

	rr, resp := doJSON(t, router, http.MethodPost, "/rooms/join", token, map[string]string{"roomId": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, resp.Success)

	rr, _ = doJSON(t, router, http.MethodPost, "/messages", token, map[string]string{"roomId": "", "text": "hi"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"go-rooms/backend/apperr"
)

// APIResponse is the uniform envelope for every REST response; push payloads
// use the fanout event envelope instead.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

func respond(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := APIResponse{Success: status < 400, Data: data, Message: message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
	}
	respond(w, status, nil, apperr.MessageOf(err))
}

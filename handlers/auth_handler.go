package handlers

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/store"
	"go-rooms/backend/utils"
)

// AuthHandler is the identity bootstrap: it mints the tokens the middleware
// later verifies. The chat core never sees any of this — it receives the
// resolved user id from the request context.
type AuthHandler struct {
	Store     store.UserStore
	JWTSecret string
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Invalid request payload"))
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, apperr.New(apperr.InvalidArgument, "Name, email, and password are required"))
		return
	}

	existing, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, apperr.Wrap(apperr.Internal, "failed to check existing email", err))
		return
	}
	if existing != nil {
		respondError(w, apperr.New(apperr.Conflict, "Email already registered"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, apperr.Wrap(apperr.Internal, "failed to hash password", err))
		return
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Avatar:   req.Avatar,
	}
	if _, err := h.Store.InsertUser(r.Context(), user); err != nil {
		respondError(w, apperr.Wrap(apperr.Internal, "failed to register user", err))
		return
	}

	token, err := utils.GenerateJWT(user.ID, user.Name, h.JWTSecret)
	if err != nil {
		respondError(w, apperr.Wrap(apperr.Internal, "failed to sign token", err))
		return
	}
	respond(w, http.StatusCreated, authResponse{ID: user.ID.Hex(), Name: user.Name, Token: token}, "User registered successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.New(apperr.InvalidArgument, "Invalid request payload"))
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, apperr.New(apperr.InvalidArgument, "Email and password are required"))
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, apperr.Wrap(apperr.Internal, "failed to look up user", err))
		return
	}
	if user == nil {
		respond(w, http.StatusUnauthorized, nil, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respond(w, http.StatusUnauthorized, nil, "Invalid credentials")
		return
	}

	token, err := utils.GenerateJWT(user.ID, user.Name, h.JWTSecret)
	if err != nil {
		respondError(w, apperr.Wrap(apperr.Internal, "failed to sign token", err))
		return
	}
	respond(w, http.StatusOK, authResponse{ID: user.ID.Hex(), Name: user.Name, Token: token}, "Login successful")
}

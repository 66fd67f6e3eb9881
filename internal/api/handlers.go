package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fitcoach.app/server/internal/apperr"
	"fitcoach.app/server/internal/auth"
	"fitcoach.app/server/internal/core"
	"fitcoach.app/server/internal/store"
)

type APIHandler struct {
	chat      *core.ChatService
	workouts  *core.WorkoutService
	exercises *core.ExerciseService
	dbStore   *store.SQLiteStore
	tokens    *auth.TokenIssuer
	logger    *zap.Logger
}

func NewAPIHandler(chat *core.ChatService, workouts *core.WorkoutService, exercises *core.ExerciseService, dbStore *store.SQLiteStore, tokens *auth.TokenIssuer, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		chat:      chat,
		workouts:  workouts,
		exercises: exercises,
		dbStore:   dbStore,
		tokens:    tokens,
		logger:    logger,
	}
}

// Error bodies are {"error":{"message":…}} across the whole surface.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// serviceError maps the error taxonomy onto HTTP statuses.
func (h *APIHandler) serviceError(w http.ResponseWriter, err error) {
	var validation *apperr.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Message)
		return
	}
	var generation *apperr.GenerationError
	if errors.As(err, &generation) {
		h.logger.Error("completion service failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to generate AI response")
		return
	}
	h.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// Auth

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	User  *store.User `json:"user"`
	Token string      `json:"token"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "Valid email required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.dbStore.CreateUser(r.Context(), email, hashed, name)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		h.serviceError(w, err)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.dbStore.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// Chat

type SendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type SendMessageResponse struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	turn, err := h.chat.Converse(r.Context(), req.ConversationID, userIDFrom(r), req.Message)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		ConversationID: turn.ConversationID,
		Message:        turn.Reply,
		Timestamp:      turn.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *APIHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := h.chat.History(r.Context(), conversationID, userIDFrom(r))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": conversationID,
		"messages":       messages,
		"count":          len(messages),
	})
}

func (h *APIHandler) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	// Always 200, even when nothing matched.
	if _, err := h.chat.ClearHistory(r.Context(), conversationID, userIDFrom(r)); err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Conversation history cleared successfully",
	})
}

// Workout plans

func (h *APIHandler) GeneratePlanHandler(w http.ResponseWriter, r *http.Request) {
	var profile core.PlanProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, err := h.workouts.GeneratePlan(r.Context(), userIDFrom(r), profile)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          plan.ID,
		"plan":        plan.PlanContent,
		"userProfile": profile,
		"timestamp":   plan.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *APIHandler) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := h.workouts.Plans(r.Context(), userIDFrom(r))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plans": plans,
		"count": len(plans),
	})
}

func (h *APIHandler) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	plan, err := h.workouts.PlanByID(r.Context(), chi.URLParam(r, "planID"), userIDFrom(r))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "Workout plan not found")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Exercises

func (h *APIHandler) ListExercisesHandler(w http.ResponseWriter, r *http.Request) {
	filter := store.ExerciseFilter{
		Category:   r.URL.Query().Get("category"),
		Difficulty: r.URL.Query().Get("difficulty"),
		Equipment:  r.URL.Query().Get("equipment"),
	}

	exercises, err := h.exercises.List(r.Context(), filter)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exercises": exercises,
		"count":     len(exercises),
	})
}

func (h *APIHandler) SearchExercisesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	exercises, err := h.exercises.Search(r.Context(), q)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exercises": exercises,
		"count":     len(exercises),
		"query":     q,
	})
}

func (h *APIHandler) SuggestExercisesHandler(w http.ResponseWriter, r *http.Request) {
	goal := r.URL.Query().Get("goal")

	suggestions, err := h.exercises.Suggest(r.Context(), goal)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
		"count":       len(suggestions),
		"goal":        goal,
	})
}

func (h *APIHandler) GetExerciseHandler(w http.ResponseWriter, r *http.Request) {
	exercise, err := h.exercises.ByID(r.Context(), chi.URLParam(r, "exerciseID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if exercise == nil {
		writeError(w, http.StatusNotFound, "Exercise not found")
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

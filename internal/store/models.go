package store

import "time"

// Message roles. The messages table enforces the same set with a CHECK
// constraint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// AnonymousUserID is the sentinel owner recorded when a request carries no
// authenticated identity.
const AnonymousUserID = "anonymous"

type User struct {
	ID           string    `json:"id"` // UUID
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"` // UUID
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"` // UUID
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"-"` // denormalized owner, used for scoping
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Exercise struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Difficulty   string    `json:"difficulty"`
	Equipment    string    `json:"equipment"`
	MuscleGroups []string  `json:"muscle_groups"` // stored as JSON text
	Instructions string    `json:"instructions"`
	Embedding    []float32 `json:"-"` // stored as JSON text, internal
	CreatedAt    time.Time `json:"created_at"`
}

type WorkoutPlan struct {
	ID           string    `json:"id"` // UUID
	UserID       string    `json:"user_id"`
	FitnessLevel string    `json:"fitness_level"`
	Goals        string    `json:"goals"`
	PlanContent  string    `json:"plan_content"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExerciseFilter narrows ListExercises. Empty fields match everything.
type ExerciseFilter struct {
	Category   string
	Difficulty string
	Equipment  string
}

// ValidRole reports whether role is one of the three accepted values.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

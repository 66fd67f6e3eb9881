package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitcoach.app/server/internal/apperr"
	"fitcoach.app/server/internal/store"
)

const (
	planHistoryLimit = 10  // most recent plans returned per user
	planTemperature  = 0.8 // slightly more creative than chat
)

// PlanProfile is the fitness profile a workout plan is generated from.
type PlanProfile struct {
	FitnessLevel    string `json:"fitnessLevel"`
	Goals           string `json:"goals"`
	DaysPerWeek     int    `json:"daysPerWeek"`
	SessionDuration int    `json:"sessionDuration,omitempty"`
	Equipment       string `json:"equipment,omitempty"`
	Limitations     string `json:"limitations,omitempty"`
}

// WorkoutService generates and stores personalized workout plans.
type WorkoutService struct {
	dbStore *store.SQLiteStore
	llm     Completer
	timeout time.Duration
	logger  *zap.Logger
}

func NewWorkoutService(db *store.SQLiteStore, llm Completer, timeout time.Duration, logger *zap.Logger) *WorkoutService {
	return &WorkoutService{
		dbStore: db,
		llm:     llm,
		timeout: timeout,
		logger:  logger,
	}
}

func validFitnessLevel(level string) bool {
	return level == "beginner" || level == "intermediate" || level == "advanced"
}

func (p PlanProfile) validate() error {
	if !validFitnessLevel(p.FitnessLevel) {
		return apperr.Validationf("valid fitness level required (beginner, intermediate, advanced)")
	}
	if strings.TrimSpace(p.Goals) == "" {
		return apperr.Validationf("goals are required")
	}
	if p.DaysPerWeek < 1 || p.DaysPerWeek > 7 {
		return apperr.Validationf("days per week must be between 1 and 7")
	}
	if p.SessionDuration != 0 && (p.SessionDuration < 15 || p.SessionDuration > 180) {
		return apperr.Validationf("session duration must be between 15 and 180 minutes")
	}
	return nil
}

func (p PlanProfile) prompt() string {
	equipment := p.Equipment
	if equipment == "" {
		equipment = "none"
	}
	limitations := p.Limitations
	if limitations == "" {
		limitations = "None"
	}
	return fmt.Sprintf(`Create a personalized workout plan for a user with the following profile:

- Fitness Level: %s
- Goals: %s
- Available Equipment: %s
- Days per week: %d
- Duration per session: %d minutes
- Any limitations: %s

Provide a structured weekly workout plan with exercises, sets, reps, and rest periods. Format it clearly.`,
		p.FitnessLevel, p.Goals, equipment, p.DaysPerWeek, p.SessionDuration, limitations)
}

// GeneratePlan validates the profile, asks the completion service for a
// plan, and persists it for the user.
func (s *WorkoutService) GeneratePlan(ctx context.Context, userID string, profile PlanProfile) (*store.WorkoutPlan, error) {
	if userID == "" {
		userID = store.AnonymousUserID
	}
	if err := profile.validate(); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	content, err := s.llm.Complete(cctx, []ChatMessage{
		{Role: store.RoleUser, Content: profile.prompt()},
	}, GenOptions{Temperature: planTemperature})
	if err != nil {
		return nil, apperr.Generation(err)
	}

	plan := &store.WorkoutPlan{
		UserID:       userID,
		FitnessLevel: profile.FitnessLevel,
		Goals:        profile.Goals,
		PlanContent:  content,
	}
	if err := s.dbStore.CreateWorkoutPlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Plans returns the user's most recent workout plans, newest first.
func (s *WorkoutService) Plans(ctx context.Context, userID string) ([]store.WorkoutPlan, error) {
	if userID == "" {
		userID = store.AnonymousUserID
	}
	return s.dbStore.GetWorkoutPlansByUserID(ctx, userID, planHistoryLimit)
}

// PlanByID returns one of the user's plans, or nil when it does not exist
// or belongs to someone else.
func (s *WorkoutService) PlanByID(ctx context.Context, id, userID string) (*store.WorkoutPlan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Validationf("invalid workout plan ID")
	}
	if userID == "" {
		userID = store.AnonymousUserID
	}
	return s.dbStore.GetWorkoutPlanByID(ctx, id, userID)
}

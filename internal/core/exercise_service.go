package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitcoach.app/server/internal/apperr"
	"fitcoach.app/server/internal/store"
	"fitcoach.app/server/internal/utils"
)

const (
	searchResultLimit = 50

	suggestLimit        = 5   // exercises returned per suggestion query
	similarityThreshold = 0.5 // minimum cosine similarity to suggest
)

// ExerciseService serves the exercise catalog: filtered listing, text
// search, and embedding-ranked suggestions for a stated training goal.
type ExerciseService struct {
	dbStore  *store.SQLiteStore
	embedder Embedder
	timeout  time.Duration
	logger   *zap.Logger
}

func NewExerciseService(db *store.SQLiteStore, embedder Embedder, timeout time.Duration, logger *zap.Logger) *ExerciseService {
	return &ExerciseService{
		dbStore:  db,
		embedder: embedder,
		timeout:  timeout,
		logger:   logger,
	}
}

func validCategory(c string) bool {
	return c == "strength" || c == "cardio" || c == "flexibility" || c == "balance"
}

// List returns catalog entries matching the filter, name-ascending.
func (s *ExerciseService) List(ctx context.Context, filter store.ExerciseFilter) ([]store.Exercise, error) {
	if filter.Category != "" && !validCategory(filter.Category) {
		return nil, apperr.Validationf("invalid category %q", filter.Category)
	}
	if filter.Difficulty != "" && !validFitnessLevel(filter.Difficulty) {
		return nil, apperr.Validationf("invalid difficulty %q", filter.Difficulty)
	}
	return s.dbStore.ListExercises(ctx, filter)
}

// Search matches q against exercise names and descriptions.
func (s *ExerciseService) Search(ctx context.Context, q string) ([]store.Exercise, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validationf("search query is required")
	}
	return s.dbStore.SearchExercises(ctx, q, searchResultLimit)
}

// ByID returns one exercise, or nil when it does not exist.
func (s *ExerciseService) ByID(ctx context.Context, id string) (*store.Exercise, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Validationf("invalid exercise ID")
	}
	return s.dbStore.GetExerciseByID(ctx, id)
}

// ScoredExercise pairs a catalog entry with its similarity to the query.
type ScoredExercise struct {
	Exercise   store.Exercise `json:"exercise"`
	Similarity float32        `json:"similarity"`
}

// Suggest embeds the goal text and ranks catalog exercises by cosine
// similarity against their stored embeddings. Exercises without an
// embedding (catalog never seeded with -seed) are skipped, so the result
// can be empty.
func (s *ExerciseService) Suggest(ctx context.Context, goal string) ([]ScoredExercise, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, apperr.Validationf("goal is required")
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	queryEmbedding, err := s.embedder.Embed(cctx, goal)
	if err != nil {
		return nil, apperr.Generation(err)
	}

	exercises, err := s.dbStore.ListExercises(ctx, store.ExerciseFilter{})
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredExercise, 0, len(exercises))
	for _, ex := range exercises {
		if len(ex.Embedding) == 0 {
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, ex.Embedding)
		if err != nil {
			s.logger.Warn("failed to score exercise",
				zap.String("exercise_id", ex.ID), zap.Error(err))
			continue
		}
		if similarity >= similarityThreshold {
			scored = append(scored, ScoredExercise{Exercise: ex, Similarity: similarity})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > suggestLimit {
		scored = scored[:suggestLimit]
	}
	return scored, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitcoach.app/server/internal/apperr"
)

// Starter catalog inserted by SeedExercises when the table is empty.
var seedExercises = []Exercise{
	{
		Name:         "Push-ups",
		Description:  "Classic bodyweight exercise for upper body strength",
		Category:     "strength",
		Difficulty:   "beginner",
		Equipment:    "none",
		MuscleGroups: []string{"chest", "triceps", "shoulders"},
		Instructions: "Start in plank position. Lower body until chest nearly touches floor. Push back up.",
	},
	{
		Name:         "Squats",
		Description:  "Fundamental lower body exercise",
		Category:     "strength",
		Difficulty:   "beginner",
		Equipment:    "none",
		MuscleGroups: []string{"quadriceps", "glutes", "hamstrings"},
		Instructions: "Stand with feet shoulder-width apart. Lower hips back and down. Return to standing.",
	},
	{
		Name:         "Plank",
		Description:  "Core stability exercise",
		Category:     "strength",
		Difficulty:   "beginner",
		Equipment:    "none",
		MuscleGroups: []string{"core", "abs"},
		Instructions: "Hold push-up position on forearms. Keep body straight. Hold for time.",
	},
	{
		Name:         "Running",
		Description:  "Cardiovascular endurance exercise",
		Category:     "cardio",
		Difficulty:   "intermediate",
		Equipment:    "none",
		MuscleGroups: []string{"legs", "cardiovascular"},
		Instructions: "Maintain steady pace. Focus on breathing rhythm.",
	},
	{
		Name:         "Deadlift",
		Description:  "Compound strength exercise",
		Category:     "strength",
		Difficulty:   "advanced",
		Equipment:    "barbell",
		MuscleGroups: []string{"back", "glutes", "hamstrings"},
		Instructions: "Lift barbell from ground to hip level. Keep back straight. Lower with control.",
	},
}

// SeedExercises inserts the starter catalog if the exercises table is
// empty. Returns the number of rows inserted; 0 means the catalog was
// already populated.
func (s *SQLiteStore) SeedExercises(ctx context.Context) (int, error) {
	var existing int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exercises").Scan(&existing); err != nil {
		return 0, apperr.Storage("count exercises", err)
	}
	if existing > 0 {
		return 0, nil
	}

	count := 0
	for _, ex := range seedExercises {
		groups, err := json.Marshal(ex.MuscleGroups)
		if err != nil {
			return count, fmt.Errorf("failed to marshal muscle groups: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO exercises (id, name, description, category, difficulty, equipment, muscle_groups, instructions, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			uuid.NewString(), ex.Name, ex.Description, ex.Category, ex.Difficulty, ex.Equipment, string(groups), ex.Instructions, time.Now())
		if err != nil {
			return count, apperr.Storage("insert exercise", err)
		}
		count++
	}
	return count, nil
}

// EmbedExercises generates and stores an embedding for every exercise that
// does not have one yet, using the supplied embedder. Failures on single
// exercises are skipped so one bad row does not abort seeding.
func (s *SQLiteStore) EmbedExercises(ctx context.Context, embedder func(context.Context, string) ([]float32, error)) (int, error) {
	exercises, err := s.ListExercises(ctx, ExerciseFilter{})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, ex := range exercises {
		if len(ex.Embedding) > 0 {
			continue
		}
		text := ex.Name + ". " + ex.Description + ". Targets: " + strings.Join(ex.MuscleGroups, ", ")
		embedding, err := embedder(ctx, text)
		if err != nil {
			// Skip this exercise; suggestions degrade gracefully without it.
			continue
		}
		if err := s.UpdateExerciseEmbedding(ctx, ex.ID, embedding); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *SQLiteStore) UpdateExerciseEmbedding(ctx context.Context, id string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE exercises SET embedding_json = ? WHERE id = ?", string(raw), id)
	if err != nil {
		return apperr.Storage("update exercise embedding", err)
	}
	return nil
}

// ListExercises returns exercises matching the filter, ordered by name.
func (s *SQLiteStore) ListExercises(ctx context.Context, filter ExerciseFilter) ([]Exercise, error) {
	query := "SELECT id, name, description, category, difficulty, equipment, muscle_groups, instructions, embedding_json, created_at FROM exercises WHERE 1=1"
	args := []any{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Difficulty != "" {
		query += " AND difficulty = ?"
		args = append(args, filter.Difficulty)
	}
	if filter.Equipment != "" {
		query += " AND equipment = ?"
		args = append(args, filter.Equipment)
	}
	query += " ORDER BY name ASC"

	return s.queryExercises(ctx, query, args...)
}

// SearchExercises matches name or description against q, case-insensitive
// per SQLite LIKE, capped at limit rows.
func (s *SQLiteStore) SearchExercises(ctx context.Context, q string, limit int) ([]Exercise, error) {
	pattern := "%" + q + "%"
	return s.queryExercises(ctx, `
        SELECT id, name, description, category, difficulty, equipment, muscle_groups, instructions, embedding_json, created_at
        FROM exercises
        WHERE name LIKE ? OR description LIKE ?
        ORDER BY name ASC
        LIMIT ?`, pattern, pattern, limit)
}

func (s *SQLiteStore) GetExerciseByID(ctx context.Context, id string) (*Exercise, error) {
	exercises, err := s.queryExercises(ctx,
		"SELECT id, name, description, category, difficulty, equipment, muscle_groups, instructions, embedding_json, created_at FROM exercises WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, nil // Not found
	}
	return &exercises[0], nil
}

func (s *SQLiteStore) queryExercises(ctx context.Context, query string, args ...any) ([]Exercise, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("query exercises", err)
	}
	defer rows.Close()

	exercises := make([]Exercise, 0)
	for rows.Next() {
		var ex Exercise
		var description, equipment, instructions, groupsJSON, embeddingJSON sql.NullString
		if err := rows.Scan(&ex.ID, &ex.Name, &description, &ex.Category, &ex.Difficulty, &equipment, &groupsJSON, &instructions, &embeddingJSON, &ex.CreatedAt); err != nil {
			return nil, apperr.Storage("scan exercise row", err)
		}
		ex.Description = description.String
		ex.Equipment = equipment.String
		ex.Instructions = instructions.String
		if groupsJSON.String != "" {
			if err := json.Unmarshal([]byte(groupsJSON.String), &ex.MuscleGroups); err != nil {
				ex.MuscleGroups = []string{}
			}
		}
		if ex.MuscleGroups == nil {
			ex.MuscleGroups = []string{}
		}
		if embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &ex.Embedding); err != nil {
				ex.Embedding = nil
			}
		}
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

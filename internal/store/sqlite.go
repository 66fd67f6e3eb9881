package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"fitcoach.app/server/internal/apperr"
)

// ErrEmailTaken is returned by CreateUser when the email is already
// registered.
var ErrEmailTaken = errors.New("email already registered")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        name TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
        user_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS exercises (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        description TEXT,
        category TEXT CHECK (category IN ('strength', 'cardio', 'flexibility', 'balance')),
        difficulty TEXT CHECK (difficulty IN ('beginner', 'intermediate', 'advanced')),
        equipment TEXT,
        muscle_groups TEXT, -- JSON array of strings
        instructions TEXT,
        embedding_json TEXT, -- JSON array of float32, filled by -seed
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS workout_plans (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        fitness_level TEXT,
        goals TEXT,
        plan_content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
    CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
    CREATE INDEX IF NOT EXISTS idx_exercises_category ON exercises(category);
    CREATE INDEX IF NOT EXISTS idx_exercises_difficulty ON exercises(difficulty);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash, name string) (*User, error) {
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, user.Name, user.CreatedAt, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, apperr.Storage("insert user", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, apperr.Storage("query user", err)
	}
	return &user, nil
}

// Conversation methods

// CreateConversation inserts a fresh conversation owned by userID and
// returns it. An empty userID falls back to the anonymous sentinel.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	if userID == "" {
		userID = AnonymousUserID
	}
	conv := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	conv.UpdatedAt = conv.CreatedAt
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		conv.ID, conv.UserID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, apperr.Storage("insert conversation", err)
	}
	return conv, nil
}

// CountConversations returns how many conversations the user owns.
func (s *SQLiteStore) CountConversations(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, apperr.Storage("count conversations", err)
	}
	return n, nil
}

// ConversationExists reports whether the conversation exists and is owned
// by userID.
func (s *SQLiteStore) ConversationExists(ctx context.Context, conversationID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM conversations WHERE id = ? AND user_id = ?", conversationID, userID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, apperr.Storage("query conversation", err)
	}
	return true, nil
}

// Message methods

// AppendMessage inserts a single message. The role must be one of the
// three valid values.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, userID, role, content string) (*Message, error) {
	if !ValidRole(role) {
		return nil, apperr.Validationf("invalid message role %q", role)
	}
	if content == "" {
		return nil, apperr.Validationf("message content cannot be empty")
	}
	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, apperr.Storage("insert message", err)
	}
	return msg, nil
}

// GetRecentHistory returns the earliest `limit` messages for the
// conversation+user pair, ascending by creation time with insertion order
// breaking ties. Unknown conversations, and conversations owned by another
// user, yield an empty slice rather than an error.
func (s *SQLiteStore) GetRecentHistory(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	query := `
        SELECT id, conversation_id, user_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ? AND user_id = ?
        ORDER BY created_at ASC, rowid ASC
        LIMIT ?`
	return s.queryMessages(ctx, query, conversationID, userID, limit)
}

// GetLatestHistory returns the most recent `limit` messages for the
// conversation+user pair, re-sorted ascending so callers always see
// chronological order. Backs the "recent" truncation policy.
func (s *SQLiteStore) GetLatestHistory(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	query := `
        SELECT id, conversation_id, user_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ? AND user_id = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`
	messages, err := s.queryMessages(ctx, query, conversationID, userID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("query messages", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, apperr.Storage("scan message row", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate message rows", err)
	}
	return messages, nil
}

// CountMessages returns the number of messages in the conversation+user
// pair.
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND user_id = ?", conversationID, userID).Scan(&n)
	if err != nil {
		return 0, apperr.Storage("count messages", err)
	}
	return n, nil
}

// ClearHistory deletes all messages matching the conversation+user pair
// and returns the number removed. The conversation row itself survives.
// Clearing a conversation with nothing to delete is not an error.
func (s *SQLiteStore) ClearHistory(ctx context.Context, conversationID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE conversation_id = ? AND user_id = ?", conversationID, userID)
	if err != nil {
		return 0, apperr.Storage("delete messages", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SaveTurn records one completed chat turn atomically: when conversationID
// is empty a new conversation is created in the same transaction, then the
// user message and the assistant message are inserted in that order.
// Nothing persists if any statement fails.
func (s *SQLiteStore) SaveTurn(ctx context.Context, conversationID, userID, userText, assistantText string) (string, time.Time, error) {
	if userID == "" {
		userID = AnonymousUserID
	}
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", now, apperr.Storage("begin turn", err)
	}
	defer tx.Rollback()

	// A supplied id that is unknown, or owned by someone else, starts a
	// fresh conversation instead: not-found behaves like empty, and a
	// guessed token never writes into another user's conversation.
	if conversationID != "" {
		var one int
		err = tx.QueryRowContext(ctx,
			"SELECT 1 FROM conversations WHERE id = ? AND user_id = ?", conversationID, userID).Scan(&one)
		if err == sql.ErrNoRows {
			conversationID = ""
		} else if err != nil {
			return "", now, apperr.Storage("query conversation", err)
		}
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			"INSERT INTO conversations (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
			conversationID, userID, now, now)
		if err != nil {
			return "", now, apperr.Storage("insert conversation", err)
		}
	}

	// User message first so chronological replay holds even under partial
	// failure of a later statement.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), conversationID, userID, RoleUser, userText, now)
	if err != nil {
		return "", now, apperr.Storage("insert user message", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), conversationID, userID, RoleAssistant, assistantText, now)
	if err != nil {
		return "", now, apperr.Storage("insert assistant message", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", now, conversationID)
	if err != nil {
		return "", now, apperr.Storage("touch conversation", err)
	}

	if err := tx.Commit(); err != nil {
		return "", now, apperr.Storage("commit turn", err)
	}
	return conversationID, now, nil
}

// Workout plan methods

func (s *SQLiteStore) CreateWorkoutPlan(ctx context.Context, plan *WorkoutPlan) error {
	plan.ID = uuid.NewString()
	plan.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO workout_plans (id, user_id, fitness_level, goals, plan_content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		plan.ID, plan.UserID, plan.FitnessLevel, plan.Goals, plan.PlanContent, plan.CreatedAt)
	if err != nil {
		return apperr.Storage("insert workout plan", err)
	}
	return nil
}

func (s *SQLiteStore) GetWorkoutPlansByUserID(ctx context.Context, userID string, limit int) ([]WorkoutPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, fitness_level, goals, plan_content, created_at
        FROM workout_plans
        WHERE user_id = ?
        ORDER BY created_at DESC
        LIMIT ?`, userID, limit)
	if err != nil {
		return nil, apperr.Storage("query workout plans", err)
	}
	defer rows.Close()

	plans := make([]WorkoutPlan, 0)
	for rows.Next() {
		var plan WorkoutPlan
		if err := rows.Scan(&plan.ID, &plan.UserID, &plan.FitnessLevel, &plan.Goals, &plan.PlanContent, &plan.CreatedAt); err != nil {
			return nil, apperr.Storage("scan workout plan row", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *SQLiteStore) GetWorkoutPlanByID(ctx context.Context, id, userID string) (*WorkoutPlan, error) {
	var plan WorkoutPlan
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, fitness_level, goals, plan_content, created_at FROM workout_plans WHERE id = ? AND user_id = ?",
		id, userID).
		Scan(&plan.ID, &plan.UserID, &plan.FitnessLevel, &plan.Goals, &plan.PlanContent, &plan.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, apperr.Storage("query workout plan", err)
	}
	return &plan, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitcoach.app/server/internal/apperr"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", conv.UserID)
	_, err = uuid.Parse(conv.ID)
	assert.NoError(t, err, "conversation id should be a canonical UUID")

	exists, err := s.ConversationExists(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateConversation_AnonymousFallback(t *testing.T) {
	s := testStore(t)

	conv, err := s.CreateConversation(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, AnonymousUserID, conv.UserID)
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, conv.ID, "user-1", "narrator", "hello")
	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = s.AppendMessage(ctx, conv.ID, "user-1", RoleUser, "")
	require.ErrorAs(t, err, &validation)
}

func TestGetRecentHistory_OrderAndRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	require.NoError(t, err)

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		_, err := s.AppendMessage(ctx, conv.ID, "user-1", role, c)
		require.NoError(t, err)
	}

	messages, err := s.GetRecentHistory(ctx, conv.ID, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	for i, msg := range messages {
		assert.Equal(t, contents[i], msg.Content, "insertion order must be preserved")
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(messages[i-1].CreatedAt),
				"timestamps must be non-decreasing")
		}
	}
}

func TestGetRecentHistory_ReturnsEarliestN(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := s.AppendMessage(ctx, conv.ID, "user-1", RoleUser, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	messages, err := s.GetRecentHistory(ctx, conv.ID, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// The oldest three, not the newest three.
	assert.Equal(t, "msg-0", messages[0].Content)
	assert.Equal(t, "msg-2", messages[2].Content)
}

func TestGetLatestHistory_ReturnsNewestNAscending(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := s.AppendMessage(ctx, conv.ID, "user-1", RoleUser, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	messages, err := s.GetLatestHistory(ctx, conv.ID, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "msg-3", messages[0].Content)
	assert.Equal(t, "msg-5", messages[2].Content)
}

func TestGetRecentHistory_UnknownConversationIsEmpty(t *testing.T) {
	s := testStore(t)

	messages, err := s.GetRecentHistory(context.Background(), uuid.NewString(), "user-1", 20)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestGetRecentHistory_ScopedToOwner(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "alice")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, conv.ID, "alice", RoleUser, "private note")
	require.NoError(t, err)

	// A different user guessing the conversation token sees nothing.
	messages, err := s.GetRecentHistory(ctx, conv.ID, "mallory", 20)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestClearHistory_LeavesConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := s.AppendMessage(ctx, conv.ID, "user-1", RoleUser, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	deleted, err := s.ClearHistory(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 6, deleted)

	count, err := s.CountMessages(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	exists, err := s.ConversationExists(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, exists, "clearing history must not delete the conversation record")

	// Clearing again is a no-op, not an error.
	deleted, err = s.ClearHistory(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSaveTurn_NewConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	convID, _, err := s.SaveTurn(ctx, "", "user-1", "What exercises build chest muscles?", "Try push-ups and bench press.")
	require.NoError(t, err)
	_, err = uuid.Parse(convID)
	require.NoError(t, err)

	messages, err := s.GetRecentHistory(ctx, convID, "user-1", 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "What exercises build chest muscles?", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.NotEmpty(t, messages[1].Content)
}

func TestSaveTurn_ExistingConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	convID, _, err := s.SaveTurn(ctx, "", "user-1", "q1", "a1")
	require.NoError(t, err)

	sameID, _, err := s.SaveTurn(ctx, convID, "user-1", "q2", "a2")
	require.NoError(t, err)
	assert.Equal(t, convID, sameID)

	// Exactly two messages per turn.
	count, err := s.CountMessages(ctx, convID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	convs, err := s.CountConversations(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, convs)
}

func TestSaveTurn_UnknownConversationIDStartsFresh(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	supplied := uuid.NewString()
	convID, _, err := s.SaveTurn(ctx, supplied, "user-1", "q1", "a1")
	require.NoError(t, err)
	assert.NotEqual(t, supplied, convID)

	count, err := s.CountMessages(ctx, convID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveTurn_ForeignConversationIDStartsFresh(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	aliceConv, _, err := s.SaveTurn(ctx, "", "alice", "q1", "a1")
	require.NoError(t, err)

	// Mallory guessing alice's id gets her own conversation, and alice's
	// history stays untouched.
	malloryConv, _, err := s.SaveTurn(ctx, aliceConv, "mallory", "q2", "a2")
	require.NoError(t, err)
	assert.NotEqual(t, aliceConv, malloryConv)

	count, err := s.CountMessages(ctx, aliceConv, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveTurn_UserBeforeAssistantWithinSameInstant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Both rows of a turn share one timestamp; insertion order must still
	// put the user message first.
	convID, _, err := s.SaveTurn(ctx, "", "user-1", "question", "answer")
	require.NoError(t, err)

	messages, err := s.GetRecentHistory(ctx, convID, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, RoleAssistant, messages[1].Role)
}

func TestUsers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "a@example.com", "hash", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)

	_, err = s.CreateUser(ctx, "a@example.com", "hash2", "Alice Again")
	assert.True(t, errors.Is(err, ErrEmailTaken))

	found, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkoutPlans(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &WorkoutPlan{UserID: "user-1", FitnessLevel: "beginner", Goals: "strength", PlanContent: "plan A"}
	require.NoError(t, s.CreateWorkoutPlan(ctx, first))
	second := &WorkoutPlan{UserID: "user-1", FitnessLevel: "advanced", Goals: "endurance", PlanContent: "plan B"}
	require.NoError(t, s.CreateWorkoutPlan(ctx, second))

	plans, err := s.GetWorkoutPlansByUserID(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "plan B", plans[0].PlanContent, "newest plan first")

	plan, err := s.GetWorkoutPlanByID(ctx, first.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "plan A", plan.PlanContent)

	// Scoped by owner.
	foreign, err := s.GetWorkoutPlanByID(ctx, first.ID, "user-2")
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

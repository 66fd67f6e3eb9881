package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitcoach.app/server/internal/apperr"
	"fitcoach.app/server/internal/config"
	"fitcoach.app/server/internal/store"
)

// ChatService assembles the bounded context for each turn and records the
// resulting exchange.
type ChatService struct {
	dbStore *store.SQLiteStore
	llm     Completer
	cfg     config.ChatConfig
	timeout time.Duration
	logger  *zap.Logger
}

func NewChatService(db *store.SQLiteStore, llm Completer, cfg config.ChatConfig, timeout time.Duration, logger *zap.Logger) *ChatService {
	return &ChatService{
		dbStore: db,
		llm:     llm,
		cfg:     cfg,
		timeout: timeout,
		logger:  logger,
	}
}

// Turn is the outcome of one successful chat exchange.
type Turn struct {
	ConversationID string
	Reply          string
	CreatedAt      time.Time
}

// Converse runs one chat turn: validate the message, fetch bounded history
// for the conversation+user pair, submit it with the new user message, and
// persist both sides of the exchange atomically. An empty conversationID
// starts a new conversation, created only after the completion succeeds so
// a failed turn never leaves an orphan record.
func (s *ChatService) Converse(ctx context.Context, conversationID, userID, message string) (*Turn, error) {
	if userID == "" {
		userID = store.AnonymousUserID
	}

	text := strings.TrimSpace(message)
	if text == "" {
		return nil, apperr.Validationf("message cannot be empty")
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxMessageLen {
		return nil, apperr.Validationf("message too long (max %d characters)", s.cfg.MaxMessageLen)
	}
	if conversationID != "" {
		if _, err := uuid.Parse(conversationID); err != nil {
			return nil, apperr.Validationf("invalid conversation ID format")
		}
	}

	history, err := s.fetchHistory(ctx, conversationID, userID)
	if err != nil {
		// Degrade to an empty context rather than failing the turn.
		s.logger.Warn("failed to fetch conversation history",
			zap.String("conversation_id", conversationID), zap.Error(err))
		history = nil
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, ChatMessage{Role: store.RoleUser, Content: text})

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.llm.Complete(cctx, messages, GenOptions{})
	if err != nil {
		// No persistence on failure: the turn never happened.
		return nil, apperr.Generation(err)
	}

	savedID, createdAt, err := s.dbStore.SaveTurn(ctx, conversationID, userID, text, reply)
	if err != nil {
		return nil, err
	}

	return &Turn{ConversationID: savedID, Reply: reply, CreatedAt: createdAt}, nil
}

func (s *ChatService) fetchHistory(ctx context.Context, conversationID, userID string) ([]store.Message, error) {
	if conversationID == "" {
		return nil, nil
	}
	if s.cfg.HistoryOrder == config.HistoryOrderRecent {
		return s.dbStore.GetLatestHistory(ctx, conversationID, userID, s.cfg.HistoryLimit)
	}
	return s.dbStore.GetRecentHistory(ctx, conversationID, userID, s.cfg.HistoryLimit)
}

// History returns the context-window view of a conversation: the same
// bounded, ascending message list Converse would submit.
func (s *ChatService) History(ctx context.Context, conversationID, userID string) ([]store.Message, error) {
	if userID == "" {
		userID = store.AnonymousUserID
	}
	return s.fetchHistory(ctx, conversationID, userID)
}

// ClearHistory deletes the conversation's messages for this user and
// returns how many were removed. The conversation record survives.
func (s *ChatService) ClearHistory(ctx context.Context, conversationID, userID string) (int64, error) {
	if userID == "" {
		userID = store.AnonymousUserID
	}
	return s.dbStore.ClearHistory(ctx, conversationID, userID)
}

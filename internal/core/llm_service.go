package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"fitcoach.app/server/internal/config"
	"fitcoach.app/server/internal/store"
)

// ChatMessage is one entry of the ordered list submitted to the completion
// service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenOptions overrides generation parameters for a single call. Zero
// values fall back to the configured defaults.
type GenOptions struct {
	Temperature float32
	MaxTokens   int32
}

// Completer produces assistant text from an ordered message list. The
// fixed system instruction is supplied by the implementation.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage, opts GenOptions) (string, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMService wraps the Gemini client behind the Completer and Embedder
// interfaces.
type LLMService struct {
	client *genai.Client
	cfg    config.LLMConfig
	logger *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey string, cfg config.LLMConfig, logger *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client, cfg: cfg, logger: logger}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.cfg.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// Complete submits the message list, ending in a user message, and returns
// the generated text. An empty or non-text response is an error so callers
// never persist a turn without real assistant content.
func (s *LLMService) Complete(ctx context.Context, messages []ChatMessage, opts GenOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("message list is empty")
	}
	last := messages[len(messages)-1]
	if last.Role != store.RoleUser {
		return "", fmt.Errorf("last message must have role %q, got %q", store.RoleUser, last.Role)
	}

	model := s.client.GenerativeModel(s.cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(s.cfg.SystemPrompt)},
	}

	temp := s.cfg.Temperature
	if opts.Temperature != 0 {
		temp = opts.Temperature
	}
	maxTokens := s.cfg.MaxTokens
	if opts.MaxTokens != 0 {
		maxTokens = opts.MaxTokens
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	}

	session := model.StartChat()
	for _, msg := range messages[:len(messages)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			s.logger.Debug("skipping non-text response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return text.String(), nil
}

// Gemini only knows "user" and "model" roles.
func geminiRole(role string) string {
	if role == store.RoleAssistant {
		return "model"
	}
	return "user"
}

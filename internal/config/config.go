package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// History truncation policies.
const (
	HistoryOrderOldest = "oldest" // earliest-N, matches the original system
	HistoryOrderRecent = "recent" // most-recent-N
)

// DefaultSystemPrompt is the fixed instruction sent with every chat
// completion unless CHAT_SYSTEM_PROMPT overrides it.
const DefaultSystemPrompt = `You are an expert AI fitness coach and nutritionist assistant. Your role is to:

1. Provide personalized workout recommendations based on the user's fitness level, goals, and available equipment
2. Offer nutrition and diet advice aligned with their fitness objectives
3. Suggest proper exercise form and technique
4. Create custom workout plans (strength, cardio, flexibility, etc.)
5. Help track progress and adjust plans accordingly
6. Answer questions about fitness, health, and wellness
7. Motivate and encourage users on their fitness journey

Always:
- Be supportive, motivating, and professional
- Ask clarifying questions to better understand user needs
- Provide safe, evidence-based advice
- Warn users to consult medical professionals for medical concerns
- Adapt recommendations to different fitness levels (beginner, intermediate, advanced)
- Consider any limitations or injuries mentioned

Format responses with markdown: bold for exercise names and headings, tables for workout plans and nutrition info, numbered lists for sequential steps. Always provide complete responses, never end mid-sentence or mid-table.

Remember: safety first. If a user mentions pain, injury, or medical conditions, advise them to consult a healthcare professional.`

type Config struct {
	GeminiAPIKey string
	DatabasePath string
	HTTPPort     string
	JWTSecret    string
	JWTExpiry    time.Duration

	Chat ChatConfig
	LLM  LLMConfig
}

type ChatConfig struct {
	HistoryLimit  int
	HistoryOrder  string // HistoryOrderOldest or HistoryOrderRecent
	MaxMessageLen int
}

type LLMConfig struct {
	Model          string
	EmbeddingModel string
	SystemPrompt   string
	Temperature    float32
	MaxTokens      int32
	Timeout        time.Duration
}

// Load reads configuration from the environment, preferring a .env file
// when one exists.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DatabasePath: getEnv("DATABASE_PATH", "fitcoach.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiry:    time.Duration(getEnvAsInt("JWT_EXPIRY_HOURS", 24*7)) * time.Hour,
		Chat: ChatConfig{
			HistoryLimit:  getEnvAsInt("CHAT_HISTORY_LIMIT", 20),
			HistoryOrder:  getEnv("CHAT_HISTORY_ORDER", HistoryOrderOldest),
			MaxMessageLen: getEnvAsInt("CHAT_MAX_MESSAGE_LEN", 2000),
		},
		LLM: LLMConfig{
			Model:          getEnv("LLM_MODEL", "gemini-1.5-flash-latest"),
			EmbeddingModel: getEnv("LLM_EMBEDDING_MODEL", "text-embedding-004"),
			SystemPrompt:   getEnv("CHAT_SYSTEM_PROMPT", DefaultSystemPrompt),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.7),
			MaxTokens:      int32(getEnvAsInt("LLM_MAX_TOKENS", 2500)),
			Timeout:        time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		},
	}

	if cfg.GeminiAPIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.Chat.HistoryOrder != HistoryOrderOldest && cfg.Chat.HistoryOrder != HistoryOrderRecent {
		return cfg, fmt.Errorf("CHAT_HISTORY_ORDER must be %q or %q, got %q",
			HistoryOrderOldest, HistoryOrderRecent, cfg.Chat.HistoryOrder)
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

package services

import (
	"log/slog"

	"github.com/tejaswanthparasa/chatbot/internal/models"
)

// LLMParameters holds the optional sampling parameters shared by the LLM backends. A nil field leaves
// the backend's own default in place.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	MaxTokens   *int     `yaml:"maxTokens"`
	Stop        []string `yaml:"stop"`
	Seed        *int     `yaml:"seed"`
}

const (
	roleSystem   = "system"
	errLoggerKey = "error"
)

func debugTurns(logger *slog.Logger, backend, model string, turns []models.Turn) {
	logger.Debug("Request",
		slog.String("backend", backend),
		slog.String("model", model),
		slog.Int("turns", len(turns)))
}

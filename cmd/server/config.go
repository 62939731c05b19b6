package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tejaswanthparasa/chatbot/internal/handlers"
	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/services"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider   string                 `yaml:"provider"`
	Model      string                 `yaml:"model"`
	Parameters services.LLMParameters `yaml:"parameters"`
}

type config struct {
	Port         string
	SystemPrompt string
	// Endpoint is the completion URL the conversation streams from. It defaults to this server's own
	// relay.
	Endpoint string
	// Apology is nil when unset, so that an explicit empty string can disable the apology message.
	Apology *string
	Profile string

	LogLevel  string
	LogFormat string
	LogFile   string

	LLM    llmConfig
	Widget models.WidgetConfig
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

const (
	defaultPort       = "8080"
	defaultOllamaHost = "http://localhost:11434"
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string              `yaml:"port"`
		SystemPrompt string              `yaml:"systemPrompt"`
		Endpoint     string              `yaml:"endpoint"`
		Apology      *string             `yaml:"apology"`
		Profile      string              `yaml:"profile"`
		LogLevel     string              `yaml:"logLevel"`
		LogFormat    string              `yaml:"logFormat"`
		LogFile      string              `yaml:"logFile"`
		LLM          map[string]any      `yaml:"llm"`
		Widget       models.WidgetConfig `yaml:"widget"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return errors.New("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	*c = config{
		Port:         rawConfig.Port,
		SystemPrompt: rawConfig.SystemPrompt,
		Endpoint:     rawConfig.Endpoint,
		Apology:      rawConfig.Apology,
		Profile:      rawConfig.Profile,
		LogLevel:     rawConfig.LogLevel,
		LogFormat:    rawConfig.LogFormat,
		LogFile:      rawConfig.LogFile,
		LLM:          llm,
		Widget:       rawConfig.Widget,
	}
	c.applyDefaults()

	return nil
}

func (c *config) applyDefaults() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Profile == "" {
		c.Profile = models.DefaultProfile
	}
	if c.Endpoint == "" {
		c.Endpoint = "http://localhost:" + c.Port + "/api/chat"
	}
}

func (c config) apology() string {
	if c.Apology == nil {
		return transcript.DefaultApology
	}
	return *c.Apology
}

func (o ollamaConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, errors.New("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, systemPrompt, o.Parameters, logger)
}

func (o openAIConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, errors.New("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.Parameters, logger), nil
}

func (a anthropicConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, errors.New("model is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	return services.NewAnthropic(apiKey, a.BaseURL, a.Model, systemPrompt, a.Parameters, logger), nil
}

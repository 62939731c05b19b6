package models

import (
	"errors"
	"slices"

	"dario.cat/mergo"
)

// WidgetConfig holds the display configuration of a chat widget. The streaming engine never reads it;
// it is passed through to whatever renders the transcript.
type WidgetConfig struct {
	AgentName        string `yaml:"agentName" json:"agentName"`
	AgentLogo        string `yaml:"agentLogo" json:"agentLogo,omitempty"`
	HeaderBackground string `yaml:"headerBackground" json:"headerBackground"`
	HeaderTextColor  string `yaml:"headerTextColor" json:"headerTextColor"`

	UserMessageBackground string `yaml:"userMessageBackground" json:"userMessageBackground"`
	UserMessageTextColor  string `yaml:"userMessageTextColor" json:"userMessageTextColor"`
	BotMessageBackground  string `yaml:"botMessageBackground" json:"botMessageBackground"`
	BotMessageTextColor   string `yaml:"botMessageTextColor" json:"botMessageTextColor"`
	BackgroundColor       string `yaml:"backgroundColor" json:"backgroundColor"`

	WatermarkText      string `yaml:"watermarkText" json:"watermarkText"`
	WatermarkTextColor string `yaml:"watermarkTextColor" json:"watermarkTextColor"`

	PrivacyText     string `yaml:"privacyText" json:"privacyText"`
	PrivacyLinkText string `yaml:"privacyLinkText" json:"privacyLinkText"`
	PrivacyLink     string `yaml:"privacyLink" json:"privacyLink"`

	SuggestedQuestions []string `yaml:"suggestedQuestions" json:"suggestedQuestions"`

	WelcomeMessage string `yaml:"welcomeMessage" json:"welcomeMessage"`
	WelcomeEmoji   string `yaml:"welcomeEmoji" json:"welcomeEmoji"`
}

// ErrProfileNotFound is returned when no widget profile is stored under the requested name.
var ErrProfileNotFound = errors.New("profile not found")

// DefaultProfile is the name under which DefaultWidgetConfig is stored.
const DefaultProfile = "default"

// DefaultWidgetConfig returns the configuration used when no profile overrides anything.
func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		AgentName:             "Chatbase AI Agent",
		HeaderBackground:      "bg-gray-900",
		HeaderTextColor:       "text-white",
		UserMessageBackground: "bg-blue-500",
		UserMessageTextColor:  "text-white",
		BotMessageBackground:  "bg-gray-200",
		BotMessageTextColor:   "text-gray-900",
		BackgroundColor:       "bg-gray-50",
		WatermarkText:         "Powered by chatclone",
		WatermarkTextColor:    "text-gray-500",
		PrivacyText:           "By chatting, you agree to our",
		PrivacyLinkText:       "privacy policy",
		PrivacyLink:           "#",
		SuggestedQuestions: []string{
			"What is Chatbase?",
			"How do I add data to my agent?",
			"Is there a free plan?",
			"What are AI actions?",
		},
		WelcomeMessage: "Hi! I am Chatclone AI, ask me anything about Chatclone!",
		WelcomeEmoji:   "👋",
	}
}

// PresetWidgetConfigs returns the built-in partial configurations keyed by profile name. Each is meant
// to be merged onto DefaultWidgetConfig.
func PresetWidgetConfigs() map[string]WidgetConfig {
	return map[string]WidgetConfig{
		"business": {
			AgentName:             "Business Assistant",
			HeaderBackground:      "bg-slate-800",
			UserMessageBackground: "bg-blue-600",
			WatermarkText:         "Powered by Your Business",
			SuggestedQuestions: []string{
				"What services do you offer?",
				"How can I get a quote?",
				"What are your business hours?",
				"How do I contact support?",
			},
			WelcomeMessage: "Hello! I'm here to help you with your business needs.",
			WelcomeEmoji:   "💼",
		},
		"support": {
			AgentName:             "Support Agent",
			HeaderBackground:      "bg-green-600",
			UserMessageBackground: "bg-green-500",
			WatermarkText:         "Customer Support",
			SuggestedQuestions: []string{
				"How can I reset my password?",
				"Where do I find my billing information?",
				"How do I contact a human agent?",
				"What are your support hours?",
			},
			WelcomeMessage: "Hi! I'm your support assistant. How can I help you today?",
			WelcomeEmoji:   "🎧",
		},
		"ecommerce": {
			AgentName:             "Shopping Assistant",
			HeaderBackground:      "bg-purple-600",
			UserMessageBackground: "bg-purple-500",
			WatermarkText:         "Shop with confidence",
			SuggestedQuestions: []string{
				"What's your return policy?",
				"Do you offer international shipping?",
				"How can I track my order?",
				"Are there any current promotions?",
			},
			WelcomeMessage: "Welcome! I'm here to help you find what you're looking for.",
			WelcomeEmoji:   "🛍️",
		},
	}
}

// Merge returns base with every non-zero field of override applied on top of it. The result shares no
// slices with either config.
func (base WidgetConfig) Merge(override WidgetConfig) WidgetConfig {
	merged := base
	// mergo only fails on mismatched or non-struct types.
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return base
	}
	merged.SuggestedQuestions = slices.Clone(merged.SuggestedQuestions)
	return merged
}

// Greeting is the text of the welcome message shown before the first turn.
func (base WidgetConfig) Greeting() string {
	if base.WelcomeEmoji == "" {
		return base.WelcomeMessage
	}
	return base.WelcomeEmoji + " " + base.WelcomeMessage
}

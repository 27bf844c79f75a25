package api

import (
	"encoding/json"
	"time"
)

// FeatureFlags toggles optional platform features.
type FeatureFlags struct {
	EnableBilling   bool `json:"ENABLE_BILLING"`
	HideLLMSettings bool `json:"HIDE_LLM_SETTINGS"`
}

// ServerConfig is the public configuration of a platform instance.
type ServerConfig struct {
	AppMode          string       `json:"APP_MODE"`
	GitHubClientID   string       `json:"GITHUB_CLIENT_ID"`
	PostHogClientKey string       `json:"POSTHOG_CLIENT_KEY"`
	FeatureFlags     FeatureFlags `json:"FEATURE_FLAGS"`
}

// SaaS reports whether the instance runs in hosted mode.
func (c ServerConfig) SaaS() bool { return c.AppMode == "saas" }

// Conversation is one entry of the user's conversation list.
type Conversation struct {
	ID           string    `json:"conversation_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Repository   string    `json:"selected_repository,omitempty"`
	LastUpdated  time.Time `json:"last_updated_at"`
	CreatedAt    time.Time `json:"created_at"`
	RuntimeState string    `json:"runtime_status,omitempty"`
	URL          string    `json:"url,omitempty"`
}

// ConversationPage is one page of GetUserConversations.
type ConversationPage struct {
	Results    []Conversation `json:"results"`
	NextPageID string         `json:"next_page_id,omitempty"`
}

// EventPage is one page of ListEvents. Events are kept raw; decoding
// belongs to the event package.
type EventPage struct {
	Events  []json.RawMessage `json:"events"`
	HasMore bool              `json:"has_more"`
}

// Repository is a git repository the user can access.
type Repository struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	GitProvider string `json:"git_provider,omitempty"`
	IsPublic    bool   `json:"is_public"`
	StarCount   int    `json:"stargazers_count,omitempty"`
	PushedAt    string `json:"pushed_at,omitempty"`
}

// Branch is a branch of a repository.
type Branch struct {
	Name         string `json:"name"`
	CommitSHA    string `json:"commit_sha"`
	Protected    bool   `json:"protected"`
	LastPushDate string `json:"last_push_date,omitempty"`
}

// Microagent is a knowledge or repo agent loaded into a conversation.
type Microagent struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Content  string   `json:"content"`
	Triggers []string `json:"triggers"`
}

// Feedback is a rating of a conversation, optionally shared publicly.
type Feedback struct {
	Version     string            `json:"version"`
	Email       string            `json:"email"`
	Token       string            `json:"token,omitempty"`
	Polarity    string            `json:"polarity"`
	Permissions string            `json:"permissions"`
	Trajectory  []json.RawMessage `json:"trajectory,omitempty"`
}

// FeedbackResult is the platform's reply to SubmitFeedback.
type FeedbackResult struct {
	StatusCode int `json:"statusCode"`
	Body       struct {
		Message    string `json:"message"`
		FeedbackID string `json:"feedback_id"`
		Password   string `json:"password"`
	} `json:"body"`
}

// Trajectory is the full recorded event history of a conversation.
type Trajectory struct {
	Trajectory []json.RawMessage `json:"trajectory"`
}

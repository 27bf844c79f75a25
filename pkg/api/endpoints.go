package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// GetConfig fetches the public server configuration.
func (c *Client) GetConfig(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := c.do(ctx, http.MethodGet, "/api/options/config", nil, nil, &cfg); err != nil {
		return nil, fmt.Errorf("getting config: %w", err)
	}
	return &cfg, nil
}

// GetModels lists the LLM models the server can use.
func (c *Client) GetModels(ctx context.Context) ([]string, error) {
	return c.options(ctx, "models")
}

// GetAgents lists the available agent implementations.
func (c *Client) GetAgents(ctx context.Context) ([]string, error) {
	return c.options(ctx, "agents")
}

// GetSecurityAnalyzers lists the available security analyzers.
func (c *Client) GetSecurityAnalyzers(ctx context.Context) ([]string, error) {
	return c.options(ctx, "security-analyzers")
}

func (c *Client) options(ctx context.Context, name string) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/api/options/"+name, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("getting %s: %w", name, err)
	}
	return out, nil
}

// GetBalance returns the user's remaining credits.
func (c *Client) GetBalance(ctx context.Context) (string, error) {
	var out struct {
		Credits string `json:"credits"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/billing/credits", nil, nil, &out); err != nil {
		return "", fmt.Errorf("getting balance: %w", err)
	}
	return out.Credits, nil
}

// CreateCheckoutSession starts a payment for amount dollars and returns the
// URL the user should be sent to.
func (c *Client) CreateCheckoutSession(ctx context.Context, amount int) (string, error) {
	in := map[string]int{"amount": amount}
	var out struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/billing/create-checkout-session", nil, in, &out); err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return out.RedirectURL, nil
}

// GetUserConversations returns the user's most recent conversations.
func (c *Client) GetUserConversations(ctx context.Context) ([]Conversation, error) {
	var page ConversationPage
	q := url.Values{"limit": {"20"}}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", q, nil, &page); err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return page.Results, nil
}

// GetConversationURL returns the API path of a conversation.
func (c *Client) GetConversationURL(conversationID string) string {
	return "/api/conversations/" + url.PathEscape(conversationID)
}

// ListEvents fetches up to limit events with id >= startID.
// A limit of zero lets the server choose.
func (c *Client) ListEvents(ctx context.Context, conversationID string, startID int64, limit int) (*EventPage, error) {
	q := url.Values{"start_id": {strconv.FormatInt(startID, 10)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page EventPage
	if err := c.do(ctx, http.MethodGet, c.GetConversationURL(conversationID)+"/events", q, nil, &page); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return &page, nil
}

// GetTrajectory fetches the full trajectory of a conversation.
func (c *Client) GetTrajectory(ctx context.Context, conversationID string) (*Trajectory, error) {
	var out Trajectory
	if err := c.do(ctx, http.MethodGet, c.GetConversationURL(conversationID)+"/trajectory", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("getting trajectory: %w", err)
	}
	return &out, nil
}

// SubmitFeedback records feedback about a conversation.
func (c *Client) SubmitFeedback(ctx context.Context, conversationID string, fb Feedback) (*FeedbackResult, error) {
	var out FeedbackResult
	if err := c.do(ctx, http.MethodPost, c.GetConversationURL(conversationID)+"/submit-feedback", nil, fb, &out); err != nil {
		return nil, fmt.Errorf("submitting feedback: %w", err)
	}
	return &out, nil
}

// GetMicroagents lists the microagents loaded into a conversation.
func (c *Client) GetMicroagents(ctx context.Context, conversationID string) ([]Microagent, error) {
	var out struct {
		Microagents []Microagent `json:"microagents"`
	}
	if err := c.do(ctx, http.MethodGet, c.GetConversationURL(conversationID)+"/microagents", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("getting microagents: %w", err)
	}
	return out.Microagents, nil
}

// GetMicroagentPrompt returns the prompt the server suggests for turning
// the given event into a microagent.
func (c *Client) GetMicroagentPrompt(ctx context.Context, conversationID string, eventID int64) (string, error) {
	q := url.Values{"event_id": {strconv.FormatInt(eventID, 10)}}
	var out struct {
		Prompt string `json:"prompt"`
	}
	if err := c.do(ctx, http.MethodGet, c.GetConversationURL(conversationID)+"/remember_prompt", q, nil, &out); err != nil {
		return "", fmt.Errorf("getting microagent prompt: %w", err)
	}
	return out.Prompt, nil
}

// RetrieveUserGitRepositories lists the user's repositories, most recently
// pushed first.
func (c *Client) RetrieveUserGitRepositories(ctx context.Context) ([]Repository, error) {
	var out []Repository
	q := url.Values{"sort": {"pushed"}}
	if err := c.do(ctx, http.MethodGet, "/api/user/repositories", q, nil, &out); err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	return out, nil
}

// SearchGitRepositories searches public repositories by name.
func (c *Client) SearchGitRepositories(ctx context.Context, query string, perPage int) ([]Repository, error) {
	q := url.Values{
		"query":    {query},
		"per_page": {strconv.Itoa(perPage)},
	}
	var out []Repository
	if err := c.do(ctx, http.MethodGet, "/api/user/search/repositories", q, nil, &out); err != nil {
		return nil, fmt.Errorf("searching repositories: %w", err)
	}
	return out, nil
}

// GetRepositoryBranches lists the branches of owner/name.
func (c *Client) GetRepositoryBranches(ctx context.Context, repository string) ([]Branch, error) {
	q := url.Values{"repository": {repository}}
	var out []Branch
	if err := c.do(ctx, http.MethodGet, "/api/user/repository/branches", q, nil, &out); err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return out, nil
}

// SendMessage posts a user message action into a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID string, msg Message) error {
	if err := c.do(ctx, http.MethodPost, c.GetConversationURL(conversationID)+"/events", nil, msg.action(), nil); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Message is a user chat message sent to the agent.
type Message struct {
	Content   string
	ImageURLs []string
	FileURLs  []string
	Timestamp string
}

type messageArgs struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls"`
	FileURLs  []string `json:"file_urls"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type messageAction struct {
	Action string      `json:"action"`
	Args   messageArgs `json:"args"`
}

func (m Message) action() messageAction {
	args := messageArgs{
		Content:   m.Content,
		ImageURLs: m.ImageURLs,
		FileURLs:  m.FileURLs,
		Timestamp: m.Timestamp,
	}
	if args.ImageURLs == nil {
		args.ImageURLs = []string{}
	}
	if args.FileURLs == nil {
		args.FileURLs = []string{}
	}
	return messageAction{Action: "message", Args: args}
}

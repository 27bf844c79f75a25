// Package service exposes the platform reads and writes the CLI and daemon
// need, each bound to its cache key and refresh policy.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/deskdev/internal/gateway"
	"github.com/user/deskdev/internal/query"
	"github.com/user/deskdev/pkg/api"
)

// SearchPerPage is how many repositories a search returns.
const SearchPerPage = 3

// ErrNoConversationID is returned by conversation scoped reads called
// without an id.
var ErrNoConversationID = errors.New("No conversation ID provided")

// API is the platform client. *api.Client satisfies it.
type API interface {
	GetConfig(ctx context.Context) (*api.ServerConfig, error)
	GetModels(ctx context.Context) ([]string, error)
	GetAgents(ctx context.Context) ([]string, error)
	GetSecurityAnalyzers(ctx context.Context) ([]string, error)
	GetBalance(ctx context.Context) (string, error)
	CreateCheckoutSession(ctx context.Context, amount int) (string, error)
	GetUserConversations(ctx context.Context) ([]api.Conversation, error)
	GetTrajectory(ctx context.Context, conversationID string) (*api.Trajectory, error)
	SubmitFeedback(ctx context.Context, conversationID string, fb api.Feedback) (*api.FeedbackResult, error)
	GetMicroagents(ctx context.Context, conversationID string) ([]api.Microagent, error)
	GetMicroagentPrompt(ctx context.Context, conversationID string, eventID int64) (string, error)
	RetrieveUserGitRepositories(ctx context.Context) ([]api.Repository, error)
	SearchGitRepositories(ctx context.Context, query string, perPage int) ([]api.Repository, error)
	GetRepositoryBranches(ctx context.Context, repository string) ([]api.Branch, error)
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	// StaleTime and GCTime apply to the long lived reads (config,
	// options, repositories, microagents).
	StaleTime time.Duration
	GCTime    time.Duration
	// OnRetry is told about every failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// AIOptions are the choices offered when configuring an agent.
type AIOptions struct {
	Models            []string `json:"models"`
	Agents            []string `json:"agents"`
	SecurityAnalyzers []string `json:"security_analyzers"`
}

// Service is safe for concurrent use.
type Service struct {
	api      API
	cache    *query.Cache
	long     query.Options
	feedback *gateway.RetryPolicy
}

// New creates a Service over client, caching in cache.
func New(client API, cache *query.Cache, opts Options) *Service {
	if opts.StaleTime <= 0 {
		opts.StaleTime = 5 * time.Minute
	}
	if opts.GCTime <= 0 {
		opts.GCTime = 15 * time.Minute
	}
	feedback := gateway.FixedRetryPolicy(2, 500*time.Millisecond)
	feedback.OnRetry = opts.OnRetry
	return &Service{
		api:      client,
		cache:    cache,
		long:     query.Options{StaleTime: opts.StaleTime, GCTime: opts.GCTime},
		feedback: feedback,
	}
}

// Cache returns the underlying query cache.
func (s *Service) Cache() *query.Cache { return s.cache }

// Config returns the server configuration.
func (s *Service) Config(ctx context.Context) (*api.ServerConfig, error) {
	return query.Fetch(ctx, s.cache, query.Key{"config"}, s.long, s.api.GetConfig)
}

// BillingEnabled reports whether the server bills for usage.
func (s *Service) BillingEnabled(ctx context.Context) (bool, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return false, err
	}
	return cfg.SaaS() && cfg.FeatureFlags.EnableBilling, nil
}

// Balance returns the user's credits. ok is false when billing is off, in
// which case the balance is never requested.
func (s *Service) Balance(ctx context.Context) (balance string, ok bool, err error) {
	enabled, err := s.BillingEnabled(ctx)
	if err != nil {
		return "", false, err
	}
	balance, err = query.Fetch(ctx, s.cache, query.Key{"user", "balance"}, query.Options{Disabled: !enabled}, s.api.GetBalance)
	return balance, enabled, err
}

// AIConfigOptions fetches models, agents and security analyzers together.
func (s *Service) AIConfigOptions(ctx context.Context) (*AIOptions, error) {
	return query.Fetch(ctx, s.cache, query.Key{"ai-config-options"}, s.long, func(ctx context.Context) (*AIOptions, error) {
		var out AIOptions
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			out.Models, err = s.api.GetModels(ctx)
			return err
		})
		g.Go(func() (err error) {
			out.Agents, err = s.api.GetAgents(ctx)
			return err
		})
		g.Go(func() (err error) {
			out.SecurityAnalyzers, err = s.api.GetSecurityAnalyzers(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("fetch ai config options: %w", err)
		}
		return &out, nil
	})
}

// UserConversations lists the user's recent conversations.
func (s *Service) UserConversations(ctx context.Context) ([]api.Conversation, error) {
	return query.Fetch(ctx, s.cache, query.Key{"user", "conversations"}, query.Options{}, s.api.GetUserConversations)
}

// UserRepositories lists repositories the user can start conversations on.
func (s *Service) UserRepositories(ctx context.Context) ([]api.Repository, error) {
	return query.Fetch(ctx, s.cache, query.Key{"repositories"}, s.long, s.api.RetrieveUserGitRepositories)
}

// SearchRepositories searches the user's repositories. An empty query
// returns nothing without a request.
func (s *Service) SearchRepositories(ctx context.Context, q string) ([]api.Repository, error) {
	opts := s.long
	opts.Disabled = q == ""
	return query.Fetch(ctx, s.cache, query.Key{"repositories", q}, opts, func(ctx context.Context) ([]api.Repository, error) {
		return s.api.SearchGitRepositories(ctx, q, SearchPerPage)
	})
}

// RepositoryBranches lists branches of "owner/repo". An empty repository
// yields an empty list.
func (s *Service) RepositoryBranches(ctx context.Context, repository string) ([]api.Branch, error) {
	if repository == "" {
		return []api.Branch{}, nil
	}
	opts := query.Options{StaleTime: s.long.StaleTime}
	return query.Fetch(ctx, s.cache, query.Key{"repository", repository, "branches"}, opts, func(ctx context.Context) ([]api.Branch, error) {
		return s.api.GetRepositoryBranches(ctx, repository)
	})
}

// Microagents lists the microagents loaded into a conversation.
func (s *Service) Microagents(ctx context.Context, conversationID string) ([]api.Microagent, error) {
	if conversationID == "" {
		return nil, ErrNoConversationID
	}
	return query.Fetch(ctx, s.cache, query.Key{"conversation", conversationID, "microagents"}, s.long, func(ctx context.Context) ([]api.Microagent, error) {
		return s.api.GetMicroagents(ctx, conversationID)
	})
}

// MicroagentPrompt returns the suggested prompt for remembering what
// happened at eventID.
func (s *Service) MicroagentPrompt(ctx context.Context, conversationID string, eventID int64) (string, error) {
	if conversationID == "" {
		return "", ErrNoConversationID
	}
	key := query.Key{"conversation", "remember_prompt", conversationID, strconv.FormatInt(eventID, 10)}
	return query.Fetch(ctx, s.cache, key, query.Options{}, func(ctx context.Context) (string, error) {
		return s.api.GetMicroagentPrompt(ctx, conversationID, eventID)
	})
}

// Trajectory downloads a conversation's full history. It is never cached.
func (s *Service) Trajectory(ctx context.Context, conversationID string) (*api.Trajectory, error) {
	if conversationID == "" {
		return nil, ErrNoConversationID
	}
	return s.api.GetTrajectory(ctx, conversationID)
}

// SubmitFeedback sends a rating, retrying twice 500ms apart.
func (s *Service) SubmitFeedback(ctx context.Context, conversationID string, fb api.Feedback) (*api.FeedbackResult, error) {
	if conversationID == "" {
		return nil, ErrNoConversationID
	}
	var out *api.FeedbackResult
	err := s.feedback.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.api.SubmitFeedback(ctx, conversationID, fb)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCheckoutSession starts a credit purchase and returns the URL the
// user should open. The cached balance is dropped since it will change.
func (s *Service) CreateCheckoutSession(ctx context.Context, amount int) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("create checkout session: amount must be positive, got %d", amount)
	}
	url, err := s.api.CreateCheckoutSession(ctx, amount)
	if err != nil {
		return "", err
	}
	s.cache.Invalidate(query.Key{"user", "balance"})
	return url, nil
}

// Invalidate drops cached results under prefix.
func (s *Service) Invalidate(prefix ...string) int {
	return s.cache.Invalidate(query.Key(prefix))
}

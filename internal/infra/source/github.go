package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/infra/remote"
)

// GitHubSource finds trending repositories for an interest through the
// analysis bridge, which wraps the GitHub search API with authenticated
// access and pagination.
type GitHubSource struct {
	client   *remote.Client
	minStars int
	logger   *slog.Logger
}

// NewGitHubSource creates a GitHub repository source. Repositories below
// minStars are filtered upstream.
func NewGitHubSource(client *remote.Client, minStars int, logger *slog.Logger) *GitHubSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubSource{
		client:   client,
		minStars: minStars,
		logger:   logger,
	}
}

// Name implements Source.
func (s *GitHubSource) Name() string { return "github" }

type repoSearchParams struct {
	Query    string `json:"query"`
	MinStars int    `json:"min_stars"`
	Limit    int    `json:"limit"`
}

type repoResult struct {
	FullName    string    `json:"full_name"`
	Owner       string    `json:"owner"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Stars       int       `json:"stars"`
	Language    string    `json:"language"`
	PushedAt    time.Time `json:"pushed_at"`
}

// Fetch searches repositories matching the interest.
func (s *GitHubSource) Fetch(ctx context.Context, interest string, limit int) ([]*entity.ContentItem, error) {
	var repos []repoResult
	err := s.client.Call(ctx, "github.search_repos", repoSearchParams{
		Query:    interest,
		MinStars: s.minStars,
		Limit:    limit,
	}, &repos)
	if err != nil {
		return nil, fmt.Errorf("github search %q: %w", interest, err)
	}

	items := make([]*entity.ContentItem, 0, len(repos))
	for _, r := range repos {
		// Bare repository names like "git/git" are too short for the
		// downstream title quality floor, so trending repos carry a prefix.
		item := entity.NewContentItem("Trending: "+r.FullName, r.URL, entity.SourceGitHub, entity.ContentTypeRepository)
		item.Author = r.Owner
		item.Summary = r.Description
		item.PublishedAt = r.PushedAt
		item.Metadata["stars"] = r.Stars
		if r.Language != "" {
			item.Metadata["language"] = r.Language
		}
		item.Tags = []string{interest}
		item.RefreshHash()
		items = append(items, item)
	}

	s.logger.Debug("github search complete",
		slog.String("interest", interest),
		slog.Int("repos", len(items)))

	return items, nil
}

type userActivityParams struct {
	Username string `json:"username"`
	Limit    int    `json:"limit"`
}

type activityEvent struct {
	Type      string    `json:"type"`
	Repo      string    `json:"repo"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// UserActivity returns the recipient's recent public activity, used for the
// personal activity section of the newsletter. Items are tagged as user
// owned so curation never drops them on popularity grounds.
func (s *GitHubSource) UserActivity(ctx context.Context, username string, limit int) ([]*entity.ContentItem, error) {
	if username == "" {
		return nil, nil
	}

	var events []activityEvent
	err := s.client.Call(ctx, "github.user_activity", userActivityParams{
		Username: username,
		Limit:    limit,
	}, &events)
	if err != nil {
		return nil, fmt.Errorf("github activity for %s: %w", username, err)
	}

	items := make([]*entity.ContentItem, 0, len(events))
	for _, ev := range events {
		title := ev.Title
		if title == "" {
			title = fmt.Sprintf("%s on %s", ev.Type, ev.Repo)
		}
		item := entity.NewContentItem(title, ev.URL, entity.SourceGitHub, entity.ContentTypeRepository)
		item.Author = username
		item.PublishedAt = ev.CreatedAt
		item.Metadata["user_owned"] = true
		item.Metadata["event_type"] = ev.Type
		item.RefreshHash()
		items = append(items, item)
	}

	return items, nil
}

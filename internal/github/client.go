// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"commit-monitor/internal/model"
)

// Client wraps the go-github client for the manual repository sync path.
// Webhooks are the primary ingestion route; this client covers repositories
// whose history predates the webhook, and operator-triggered re-scans.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates a Client. An empty token yields an unauthenticated
// client, subject to the anonymous rate limit.
func NewClient(token string, logger *slog.Logger) *Client {
	var tc *github.Client
	if token == "" {
		tc = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc = github.NewClient(oauth2.NewClient(context.Background(), ts))
	}
	return &Client{gh: tc, logger: logger}
}

// SetBaseURL points the underlying client at a different API host. Tests
// use this with httptest servers.
func (c *Client) SetBaseURL(url string) error {
	gh, err := github.NewClient(nil).WithEnterpriseURLs(url, url)
	if err != nil {
		return err
	}
	c.gh = gh
	return nil
}

// GetRepository fetches repository details translated to the internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return &model.Repository{
		Owner:       repo.GetOwner().GetLogin(),
		Name:        repo.GetName(),
		Description: repo.Description,
		Language:    repo.Language,
		IsPrivate:   repo.GetPrivate(),
	}, nil
}

// ListCommitsSince fetches all commits authored after since, handling API
// pagination transparently. Changed-file lists require the commit detail
// endpoint, fetched per commit.
func (c *Client) ListCommitsSince(ctx context.Context, owner, name string, since time.Time) ([]model.Commit, error) {
	var all []model.Commit

	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", opts.Page)

		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}

		for _, commit := range commits {
			internal := toInternalCommit(commit)
			internal.ChangedFiles = c.changedFiles(ctx, owner, name, commit.GetSHA())
			all = append(all, internal)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// changedFiles fetches the file list for one commit. A failure here
// degrades to an empty list rather than failing the whole sync.
func (c *Client) changedFiles(ctx context.Context, owner, name, sha string) []string {
	detail, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		c.logger.Warn("Failed to fetch changed files for commit", "sha", sha, "error", err)
		return nil
	}
	files := make([]string, 0, len(detail.Files))
	for _, f := range detail.Files {
		files = append(files, f.GetFilename())
	}
	return files
}

func toInternalCommit(c *github.RepositoryCommit) model.Commit {
	return model.Commit{
		CommitHash:      c.GetSHA(),
		Author:          c.GetCommit().GetAuthor().GetName(),
		AuthorEmail:     c.GetCommit().GetAuthor().GetEmail(),
		Message:         c.GetCommit().GetMessage(),
		TimestampCommit: c.GetCommit().GetAuthor().GetDate().Time,
	}
}

package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/empirial-designs/sitesmith/internal/apperr"
)

// Client handles GitHub operations. All repositories are created under a
// single service-account owner; the owner is injected so multi-tenant
// ownership can be added later without touching the pipeline.
type Client struct {
	client *github.Client
	owner  string
}

// RepoInfo describes a freshly provisioned repository.
type RepoInfo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// NewClient creates a new GitHub client. baseURL overrides the API endpoint
// and is used by tests; empty means api.github.com.
func NewClient(token, owner, baseURL string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	gh := github.NewClient(tc)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub base URL: %w", err)
		}
		gh.BaseURL = u
	}

	return &Client{client: gh, owner: owner}, nil
}

// Owner returns the service-account login repositories are created under.
func (c *Client) Owner() string { return c.owner }

// CreateRepository creates a new empty repository under the service account.
// None of the failure modes are retried; an authentication failure should
// short-circuit the whole pipeline.
func (c *Client) CreateRepository(ctx context.Context, name, description string, private bool) (*RepoInfo, error) {
	repo := &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(private),
		AutoInit:    github.Bool(false),
	}

	created, resp, err := c.client.Repositories.Create(ctx, c.owner, repo)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case 422:
				return nil, apperr.Wrap(apperr.KindNameConflict,
					"repository name invalid or already exists", err)
			case 401:
				return nil, apperr.Wrap(apperr.KindAuth,
					"github authentication failed", err)
			case 403, 429:
				return nil, apperr.Wrap(apperr.KindRateLimited,
					"github rate limited or permission denied", err)
			}
		}
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to create repository", err)
	}

	info := &RepoInfo{
		Name:          created.GetName(),
		HTMLURL:       created.GetHTMLURL(),
		DefaultBranch: created.GetDefaultBranch(),
	}
	if created.GetOwner() != nil {
		info.Owner = created.GetOwner().GetLogin()
	}
	if info.Owner == "" {
		info.Owner = c.owner
	}
	if info.DefaultBranch == "" {
		info.DefaultBranch = "main"
	}
	return info, nil
}

package github

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/empirial-designs/sitesmith/internal/apperr"
)

// UpsertFile writes a single file through the contents endpoint, fetching
// the existing blob SHA first so an update replaces rather than conflicts.
// This is the conversational editor's commit path; the generation pipeline
// uses CommitFiles instead.
func (c *Client) UpsertFile(ctx context.Context, owner, repo, path, content, message string) (*CommitResult, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
	}

	existing, _, resp, err := c.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err == nil && existing != nil {
		opts.SHA = existing.SHA
	} else if resp == nil || resp.StatusCode != 404 {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to read existing file", err)
	}

	var written *github.RepositoryContentResponse
	if opts.SHA != nil {
		written, _, err = c.client.Repositories.UpdateFile(ctx, owner, repo, path, opts)
	} else {
		written, _, err = c.client.Repositories.CreateFile(ctx, owner, repo, path, opts)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to write file", err)
	}

	return &CommitResult{
		CommitSHA:    written.Commit.GetSHA(),
		CommitURL:    written.Commit.GetHTMLURL(),
		FilesWritten: 1,
	}, nil
}

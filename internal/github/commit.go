package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog/log"

	"github.com/empirial-designs/sitesmith/internal/apperr"
	"github.com/empirial-designs/sitesmith/internal/extract"
)

// CommitResult reports what actually landed. FilesWritten may be less than
// requested: individual blob failures drop the file from the tree rather
// than aborting the batch, so callers must report the actual count.
type CommitResult struct {
	CommitSHA    string   `json:"commit_sha"`
	CommitURL    string   `json:"commit_url"`
	FilesWritten int      `json:"files_written"`
	// Dangling is set when the commit object exists but no branch points at
	// it because the final ref update failed. Reported, never masked.
	Dangling bool     `json:"dangling,omitempty"`
	Steps    []string `json:"-"`
}

// CommitFiles publishes the extracted files as a single root commit through
// the git data API: blob per file, one tree, one commit, then a ref update.
// The tree is built from scratch (no base tree) and the commit has no
// parents, so this path only serves the very first commit of a new
// repository. The steps are a saga with no cross-step rollback; Steps
// records how far it got.
func (c *Client) CommitFiles(ctx context.Context, owner, repo string, files []extract.File, defaultBranch, message string) (*CommitResult, error) {
	result := &CommitResult{}

	entries := make([]*github.TreeEntry, 0, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.Content) == "" {
			log.Warn().Str("component", "github").Str("path", f.Path).
				Msg("skipping file with empty content")
			continue
		}

		blob, _, err := c.client.Git.CreateBlob(ctx, owner, repo, &github.Blob{
			Content:  github.String(base64.StdEncoding.EncodeToString([]byte(f.Content))),
			Encoding: github.String("base64"),
		})
		if err != nil {
			// Per-file failure: drop this file from the tree, keep going.
			log.Error().Str("component", "github").Str("path", f.Path).Err(err).
				Msg("blob creation failed, dropping file from commit")
			continue
		}

		entries = append(entries, &github.TreeEntry{
			Path: github.String(f.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
		result.Steps = append(result.Steps, "blob:"+f.Path)
	}

	if len(entries) == 0 {
		return nil, apperr.New(apperr.KindUpstream, "no file contents could be uploaded")
	}

	tree, _, err := c.client.Git.CreateTree(ctx, owner, repo, "", entries)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to create tree", err)
	}
	result.Steps = append(result.Steps, "tree")

	commit, _, err := c.client.Git.CreateCommit(ctx, owner, repo, &github.Commit{
		Message: github.String(message),
		Tree:    tree,
	}, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to create commit", err)
	}
	result.Steps = append(result.Steps, "commit")

	result.CommitSHA = commit.GetSHA()
	result.CommitURL = commit.GetHTMLURL()
	if result.CommitURL == "" {
		result.CommitURL = fmt.Sprintf("https://github.com/%s/%s/commit/%s", owner, repo, result.CommitSHA)
	}
	result.FilesWritten = len(entries)

	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + defaultBranch),
		Object: &github.GitObject{SHA: commit.SHA},
	}
	if _, _, err := c.client.Git.UpdateRef(ctx, owner, repo, ref, false); err != nil {
		if _, _, err := c.client.Git.CreateRef(ctx, owner, repo, ref); err != nil {
			// The commit object exists in the remote object store even
			// though no branch points at it yet.
			log.Error().Str("component", "github").
				Str("commit", result.CommitSHA).Err(err).
				Msg("ref update failed, commit is dangling")
			result.Dangling = true
			return result, nil
		}
	}
	result.Steps = append(result.Steps, "ref")

	return result, nil
}

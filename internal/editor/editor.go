package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/empirial-designs/sitesmith/internal/extract"
	"github.com/empirial-designs/sitesmith/internal/github"
	"github.com/empirial-designs/sitesmith/internal/llm"
	"github.com/empirial-designs/sitesmith/internal/store"
)

// Streamer streams a chat completion token by token.
type Streamer interface {
	StreamChat(ctx context.Context, messages []llm.Message, onToken func(string) error) (string, error)
}

// Committer writes a single file through the contents endpoint.
type Committer interface {
	UpsertFile(ctx context.Context, owner, repo, path, content, message string) (*github.CommitResult, error)
}

// Recorder appends edit-log rows and bumps the repository's timestamp.
type Recorder interface {
	AppendEdit(e *store.EditLogEntry) (*store.EditLogEntry, error)
	TouchRepo(id int64) error
}

// Editor is the conversational edit flow: stream the assistant's answer,
// then scan the accumulated text for a fenced code block and commit it.
// Only the first block found is committed; additional blocks in the same
// turn are ignored (one file per turn).
type Editor struct {
	streamer Streamer
	commits  Committer
	records  Recorder
	fileMap  map[string]string
}

// Request is one editor turn. Repo nil means chat only, no commit scan.
// Path, when set by the caller, overrides the language→filename table.
type Request struct {
	Repo     *store.RepoRecord
	Messages []llm.Message
	Path     string
	UserID   string
}

// Commit describes the opportunistic commit made after a stream completes.
type Commit struct {
	Path      string `json:"path"`
	CommitSHA string `json:"commit_sha"`
	CommitURL string `json:"commit_url"`
}

// New creates an editor. fileMap maps fenced-block language tags to target
// paths; unmapped languages fall back to README.md.
func New(streamer Streamer, commits Committer, records Recorder, fileMap map[string]string) *Editor {
	return &Editor{streamer: streamer, commits: commits, records: records, fileMap: fileMap}
}

// Stream runs one editor turn. Tokens are forwarded in upstream order; the
// commit scan only begins after the upstream stream signals completion, so
// commits never race in-flight token delivery.
func (e *Editor) Stream(ctx context.Context, req Request, onToken func(string) error) (string, *Commit, error) {
	full, err := e.streamer.StreamChat(ctx, req.Messages, onToken)
	if err != nil {
		return full, nil, err
	}

	if req.Repo == nil {
		return full, nil, nil
	}

	blocks := extract.Blocks(full)
	if len(blocks) == 0 {
		return full, nil, nil
	}
	block := blocks[0]
	content := strings.TrimSpace(block.Content)
	if content == "" {
		return full, nil, nil
	}

	path, err := e.resolvePath(block, req.Path)
	if err != nil {
		return full, nil, err
	}

	result, err := e.commits.UpsertFile(ctx, req.Repo.Owner, req.Repo.Name, path, content,
		fmt.Sprintf("Update %s via chat", path))
	if err != nil {
		return full, nil, err
	}

	e.recordEdit(req, path, full)

	return full, &Commit{Path: path, CommitSHA: result.CommitSHA, CommitURL: result.CommitURL}, nil
}

// resolvePath picks the commit target: an explicit caller path wins, then a
// path= annotation on the block itself, then the language table. Both path
// sources go through the same canonicalization as the generation extractor.
func (e *Editor) resolvePath(block extract.Block, explicit string) (string, error) {
	if explicit != "" {
		return extract.CleanPath(explicit)
	}
	if block.Path != "" {
		return extract.CleanPath(block.Path)
	}
	if path, ok := e.fileMap[strings.ToLower(block.Lang)]; ok {
		return path, nil
	}
	return "README.md", nil
}

// truncate shortens s to at most limit runes, never splitting a character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// recordEdit appends the edit-log row. Best effort: the commit already
// happened, so a failed write is logged.
func (e *Editor) recordEdit(req Request, path, response string) {
	prompt := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}
	if _, err := e.records.AppendEdit(&store.EditLogEntry{
		UserID:      req.UserID,
		RepoID:      req.Repo.ID,
		FilePath:    path,
		Prompt:      prompt,
		Description: truncate(response, 140),
	}); err != nil {
		log.Error().Str("component", "editor").Int64("repo_id", req.Repo.ID).Err(err).
			Msg("edit log write failed")
		return
	}
	if err := e.records.TouchRepo(req.Repo.ID); err != nil {
		log.Error().Str("component", "editor").Int64("repo_id", req.Repo.ID).Err(err).
			Msg("repository timestamp update failed")
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/empirial-designs/sitesmith/internal/classify"
	"github.com/empirial-designs/sitesmith/internal/extract"
	"github.com/empirial-designs/sitesmith/internal/github"
	"github.com/empirial-designs/sitesmith/internal/llm"
	"github.com/empirial-designs/sitesmith/internal/store"
	"github.com/empirial-designs/sitesmith/internal/task"
)

// ContentGenerator produces one raw text blob for a prompt pair.
type ContentGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Publisher provisions repositories and publishes commits.
type Publisher interface {
	Owner() string
	CreateRepository(ctx context.Context, name, description string, private bool) (*github.RepoInfo, error)
	CommitFiles(ctx context.Context, owner, repo string, files []extract.File, defaultBranch, message string) (*github.CommitResult, error)
}

// Recorder persists the RepoRecord after a successful commit.
type Recorder interface {
	UpsertRepo(r *store.RepoRecord) (*store.RepoRecord, error)
}

// Pipeline runs the generation flow: classify, name, provision, generate,
// extract, commit, persist. One request is one sequential chain of outbound
// calls; every suspension point is a network call and there is no retry
// above the model fallback list.
type Pipeline struct {
	gen     ContentGenerator
	pub     Publisher
	records Recorder
	tasks   *task.Manager
}

// New creates a pipeline.
func New(gen ContentGenerator, pub Publisher, records Recorder, tasks *task.Manager) *Pipeline {
	return &Pipeline{gen: gen, pub: pub, records: records, tasks: tasks}
}

// Run executes the pipeline for one task. Errors land in the task; the
// first failing step aborts the chain.
func (p *Pipeline) Run(ctx context.Context, taskID string) error {
	t, err := p.tasks.GetTask(taskID)
	if err != nil {
		return err
	}

	p.tasks.UpdateTask(taskID, task.StatusClassifying, "Classifying prompt...")
	intent := classify.Classify(t.Prompt)
	// An explicit website type from the request wins over keyword inference.
	if hint, ok := classify.ParseArchetype(t.TypeHint); ok {
		intent.Archetype = hint
	}

	name := classify.SanitizeName(t.RepoName)
	if name == "" {
		name = classify.NameRepo(t.Prompt, intent.Archetype)
	}

	p.tasks.UpdateTask(taskID, task.StatusProvisioning, "Creating repository...")
	info, err := p.pub.CreateRepository(ctx, name, truncate(t.Prompt, 140), false)
	if err != nil {
		p.tasks.SetTaskError(taskID, err)
		return err
	}

	p.tasks.UpdateTask(taskID, task.StatusGenerating, "Generating website content...")
	raw, err := p.gen.Generate(ctx, llm.BuildSystemPrompt(intent, t.Company), t.Prompt)
	if err != nil {
		p.tasks.SetTaskError(taskID, err)
		return err
	}

	p.tasks.UpdateTask(taskID, task.StatusExtracting, "Extracting files...")
	files, err := extract.Extract(raw)
	if err != nil {
		p.tasks.SetTaskError(taskID, err)
		return err
	}

	p.tasks.UpdateTask(taskID, task.StatusCommitting, "Publishing initial commit...")
	commit, err := p.pub.CommitFiles(ctx, info.Owner, info.Name, files,
		info.DefaultBranch, fmt.Sprintf("Initial commit: %s website", intent.Archetype))
	if err != nil {
		p.tasks.SetTaskError(taskID, err)
		return err
	}

	p.tasks.UpdateTask(taskID, task.StatusSaving, "Saving repository record...")
	result := &task.Result{
		RepoName:     info.Name,
		URL:          info.HTMLURL,
		CommitURL:    commit.CommitURL,
		FilesCreated: commit.FilesWritten,
		Archetype:    string(intent.Archetype),
		Dangling:     commit.Dangling,
	}

	// Best-effort boundary: the repository already exists remotely, so a
	// failed record write is logged and the task still completes.
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	structure, _ := json.Marshal(paths)
	rec, err := p.records.UpsertRepo(&store.RepoRecord{
		Owner:         info.Owner,
		Name:          info.Name,
		HTMLURL:       info.HTMLURL,
		FileStructure: string(structure),
		Archetype:     string(intent.Archetype),
		Prompt:        t.Prompt,
		UserID:        t.UserID,
	})
	if err != nil {
		log.Error().Str("component", "pipeline").Str("repo", info.Name).Err(err).
			Msg("repository record write failed after successful generation")
	} else {
		result.RepoID = rec.ID
	}

	return p.tasks.SetTaskResult(taskID, result)
}

// truncate shortens s to at most limit runes, never splitting a character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// ProcessTask runs the pipeline asynchronously for one task.
func (p *Pipeline) ProcessTask(taskID string) {
	if err := p.Run(context.Background(), taskID); err != nil {
		// Error is already recorded in the task.
		log.Error().Str("component", "pipeline").Str("task", taskID).Err(err).
			Msg("generation failed")
	}
}

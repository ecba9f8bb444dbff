package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empirial-designs/sitesmith/internal/apperr"
	"github.com/empirial-designs/sitesmith/internal/extract"
	"github.com/empirial-designs/sitesmith/internal/github"
	"github.com/empirial-designs/sitesmith/internal/store"
	"github.com/empirial-designs/sitesmith/internal/task"
)

type fakeGenerator struct {
	response     string
	err          error
	systemPrompt string
	userPrompt   string
}

func (f *fakeGenerator) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.systemPrompt = systemPrompt
	f.userPrompt = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakePublisher struct {
	createdName string
	createdDesc string
	createErr   error
	committed   []extract.File
	commitErr   error
}

func (f *fakePublisher) Owner() string { return "empirial" }

func (f *fakePublisher) CreateRepository(_ context.Context, name, description string, _ bool) (*github.RepoInfo, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdName = name
	f.createdDesc = description
	return &github.RepoInfo{
		Owner:         "empirial",
		Name:          name,
		HTMLURL:       "https://github.com/empirial/" + name,
		DefaultBranch: "main",
	}, nil
}

func (f *fakePublisher) CommitFiles(_ context.Context, _, repo string, files []extract.File, _, _ string) (*github.CommitResult, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.committed = files
	return &github.CommitResult{
		CommitSHA:    "abc123",
		CommitURL:    "https://github.com/empirial/" + repo + "/commit/abc123",
		FilesWritten: len(files),
	}, nil
}

type failingRecorder struct{}

func (failingRecorder) UpsertRepo(*store.RepoRecord) (*store.RepoRecord, error) {
	return nil, errors.New("database is down")
}

func generatedResponse() string {
	pad := strings.Repeat("x", 60)
	return "```json path=package.json\n{\"name\":\"acme\"}\n```\n" +
		"```tsx path=src/App.tsx\nexport default function App() { /* " + pad + " */ }\n```\n" +
		"```html path=index.html\n<html><!-- " + pad + " --></html>\n```\n"
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunEndToEnd(t *testing.T) {
	gen := &fakeGenerator{response: generatedResponse()}
	pub := &fakePublisher{}
	st := newTestStore(t)
	tasks := task.NewManager()

	p := New(gen, pub, st, tasks)

	tk, created := tasks.CreateTask("u1", "Create a landing page for Acme Corp with pricing and testimonials", "", "Acme Corp", "")
	require.True(t, created)

	require.NoError(t, p.Run(context.Background(), tk.ID))

	done, err := tasks.GetTask(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)
	require.NotNil(t, done.Result)

	// Auto-generated name: the prompt carries no explicit slug.
	assert.Regexp(t, `^landing-website-\d{6}$`, pub.createdName)
	assert.Equal(t, "landing", done.Result.Archetype)
	assert.GreaterOrEqual(t, done.Result.FilesCreated, 3)
	assert.Equal(t, "https://github.com/empirial/"+pub.createdName, done.Result.URL)
	assert.Contains(t, done.Result.CommitURL, "/commit/abc123")

	// Intent made it into the generation instructions.
	assert.Contains(t, gen.systemPrompt, "pricing")
	assert.Contains(t, gen.systemPrompt, "testimonials")
	assert.Contains(t, gen.systemPrompt, "Acme Corp")

	// RepoRecord persisted.
	rec, err := st.GetRepo(done.Result.RepoID)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Contains(t, rec.FileStructure, "package.json")
	assert.Equal(t, "landing", rec.Archetype)
}

func TestRunUsesRequestedRepoName(t *testing.T) {
	gen := &fakeGenerator{response: generatedResponse()}
	pub := &fakePublisher{}
	p := New(gen, pub, newTestStore(t), task.NewManager())

	tasks := p.tasks
	tk, _ := tasks.CreateTask("u1", "a shop", "My Shop!", "", "")
	require.NoError(t, p.Run(context.Background(), tk.ID))

	// Requested name is sanitized through the same character rule.
	assert.Equal(t, "my-shop-", pub.createdName)
}

func TestRunDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	gen := &fakeGenerator{response: generatedResponse()}
	pub := &fakePublisher{}
	tasks := task.NewManager()
	p := New(gen, pub, newTestStore(t), tasks)

	tk, _ := tasks.CreateTask("u1", strings.Repeat("é", 200), "", "", "")
	require.NoError(t, p.Run(context.Background(), tk.ID))

	assert.True(t, utf8.ValidString(pub.createdDesc))
	assert.Equal(t, 140, utf8.RuneCountInString(pub.createdDesc))
}

func TestRunTypeHintOverridesClassification(t *testing.T) {
	gen := &fakeGenerator{response: generatedResponse()}
	pub := &fakePublisher{}
	tasks := task.NewManager()
	p := New(gen, pub, newTestStore(t), tasks)

	tk, _ := tasks.CreateTask("u1", "a site about my shop", "", "", "portfolio")
	require.NoError(t, p.Run(context.Background(), tk.ID))

	done, _ := tasks.GetTask(tk.ID)
	require.NotNil(t, done.Result)
	assert.Equal(t, "portfolio", done.Result.Archetype)
}

func TestRunProvisionFailureFailsTask(t *testing.T) {
	gen := &fakeGenerator{response: generatedResponse()}
	pub := &fakePublisher{createErr: apperr.New(apperr.KindNameConflict, "repository name invalid or already exists")}
	tasks := task.NewManager()
	p := New(gen, pub, newTestStore(t), tasks)

	tk, _ := tasks.CreateTask("u1", "a shop for my-store", "", "", "")
	require.Error(t, p.Run(context.Background(), tk.ID))

	done, _ := tasks.GetTask(tk.ID)
	assert.Equal(t, task.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "already exists")
}

func TestRunExtractionFailureFailsTask(t *testing.T) {
	gen := &fakeGenerator{response: "I'm sorry, I can't do that."}
	pub := &fakePublisher{}
	tasks := task.NewManager()
	p := New(gen, pub, newTestStore(t), tasks)

	tk, _ := tasks.CreateTask("u1", "a blog", "", "", "")
	err := p.Run(context.Background(), tk.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExtraction, apperr.KindOf(err))

	done, _ := tasks.GetTask(tk.ID)
	assert.Equal(t, task.StatusFailed, done.Status)
	// No commit was attempted.
	assert.Nil(t, pub.committed)
}

func TestRunRecordWriteFailureStillCompletes(t *testing.T) {
	gen := &fakeGenerator{response: generatedResponse()}
	pub := &fakePublisher{}
	tasks := task.NewManager()
	p := New(gen, pub, failingRecorder{}, tasks)

	tk, _ := tasks.CreateTask("u1", "a portfolio", "", "", "")
	require.NoError(t, p.Run(context.Background(), tk.ID))

	// Generation success is reported even though the row write failed; the
	// repository already exists and is not rolled back.
	done, _ := tasks.GetTask(tk.ID)
	assert.Equal(t, task.StatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Zero(t, done.Result.RepoID)
}

func TestIdempotencyKeyDeduplicates(t *testing.T) {
	tasks := task.NewManager()

	first, created := tasks.CreateTask("u1", "same prompt", "", "", "")
	require.True(t, created)

	second, created := tasks.CreateTask("u1", "same prompt", "", "", "")
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A different user's identical prompt is a distinct task.
	third, created := tasks.CreateTask("u2", "same prompt", "", "", "")
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

package editor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empirial-designs/sitesmith/internal/github"
	"github.com/empirial-designs/sitesmith/internal/llm"
	"github.com/empirial-designs/sitesmith/internal/store"
)

type fakeStreamer struct {
	response string
	err      error
}

func (f *fakeStreamer) StreamChat(_ context.Context, _ []llm.Message, onToken func(string) error) (string, error) {
	// Emit the canned response in two chunks to exercise ordering.
	half := len(f.response) / 2
	for _, chunk := range []string{f.response[:half], f.response[half:]} {
		if chunk == "" {
			continue
		}
		if err := onToken(chunk); err != nil {
			return f.response, err
		}
	}
	return f.response, f.err
}

type fakeCommitter struct {
	path    string
	content string
	calls   int
	err     error
}

func (f *fakeCommitter) UpsertFile(_ context.Context, _, _, path, content, _ string) (*github.CommitResult, error) {
	f.calls++
	f.path = path
	f.content = content
	if f.err != nil {
		return nil, f.err
	}
	return &github.CommitResult{CommitSHA: "sha-1", CommitURL: "url-1", FilesWritten: 1}, nil
}

type fakeRecorder struct {
	edits   []*store.EditLogEntry
	touched []int64
}

func (f *fakeRecorder) AppendEdit(e *store.EditLogEntry) (*store.EditLogEntry, error) {
	f.edits = append(f.edits, e)
	return e, nil
}

func (f *fakeRecorder) TouchRepo(id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

func defaultFileMap() map[string]string {
	return map[string]string{"tsx": "src/App.tsx", "jsx": "src/App.tsx"}
}

func repoCtx() *store.RepoRecord {
	return &store.RepoRecord{ID: 7, Owner: "empirial", Name: "site", UserID: "u1"}
}

func userTurn(content string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: content}}
}

func TestStreamCommitsOnlyFirstBlock(t *testing.T) {
	streamer := &fakeStreamer{response: "Sure!\n```tsx\nconst first = 1;\n```\nand also\n```tsx\nconst second = 2;\n```\n"}
	committer := &fakeCommitter{}
	recorder := &fakeRecorder{}
	e := New(streamer, committer, recorder, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("change it"),
		UserID:   "u1",
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, 1, committer.calls)
	assert.Equal(t, "src/App.tsx", commit.Path)
	assert.Equal(t, "const first = 1;", committer.content)
}

func TestStreamAnnotatedBlockCommitsToAnnotatedPath(t *testing.T) {
	// Blocks in the generation pipeline's annotated form: the scan must pair
	// fences correctly and must not commit the prose between blocks.
	streamer := &fakeStreamer{response: "Sure!\n" +
		"```tsx path=src/App.tsx\nconst first = 1;\n```\n" +
		"prose between blocks\n" +
		"```tsx path=src/Other.tsx\nconst second = 2;\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("change it"),
		UserID:   "u1",
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, 1, committer.calls)
	assert.Equal(t, "src/App.tsx", commit.Path)
	assert.Equal(t, "const first = 1;", committer.content)
	assert.NotContains(t, committer.content, "prose")
}

func TestStreamExplicitPathWinsOverAnnotation(t *testing.T) {
	streamer := &fakeStreamer{response: "```tsx path=src/App.tsx\nconst x = 1;\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("move it"),
		Path:     "src/Moved.tsx",
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, "src/Moved.tsx", commit.Path)
}

func TestStreamRejectsTraversalAnnotation(t *testing.T) {
	streamer := &fakeStreamer{response: "```txt path=../../etc/passwd\nroot\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, _, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("hack it"),
	}, func(string) error { return nil })

	require.Error(t, err)
	assert.Equal(t, 0, committer.calls)
}

func TestStreamTokenOrderPreserved(t *testing.T) {
	streamer := &fakeStreamer{response: "hello world"}
	e := New(streamer, &fakeCommitter{}, &fakeRecorder{}, defaultFileMap())

	var got string
	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("hi"),
	}, func(tok string) error {
		got += tok
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Nil(t, commit) // no fenced block, no commit
}

func TestStreamUnknownLanguageFallsBackToReadme(t *testing.T) {
	streamer := &fakeStreamer{response: "```python\nprint('hi there')\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("script please"),
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, "README.md", commit.Path)
}

func TestStreamExplicitPathWinsOverTable(t *testing.T) {
	streamer := &fakeStreamer{response: "```css\nbody { margin: 0; }\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("style it"),
		Path:     "src/styles.css",
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, "src/styles.css", commit.Path)
}

func TestStreamRejectsTraversalPath(t *testing.T) {
	streamer := &fakeStreamer{response: "```css\nbody {}\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, _, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("style it"),
		Path:     "../../etc/passwd",
	}, func(string) error { return nil })

	require.Error(t, err)
	assert.Equal(t, 0, committer.calls)
}

func TestStreamNoRepoContextSkipsCommit(t *testing.T) {
	streamer := &fakeStreamer{response: "```tsx\nconst x = 1;\n```\n"}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Messages: userTurn("hi"),
	}, func(string) error { return nil })

	require.NoError(t, err)
	assert.Nil(t, commit)
	assert.Equal(t, 0, committer.calls)
}

func TestStreamAppendsEditLog(t *testing.T) {
	streamer := &fakeStreamer{response: "```tsx\nconst x = 1;\n```\n"}
	recorder := &fakeRecorder{}
	e := New(streamer, &fakeCommitter{}, recorder, defaultFileMap())

	_, _, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("make x"),
		UserID:   "u1",
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.Len(t, recorder.edits, 1)
	assert.Equal(t, "u1", recorder.edits[0].UserID)
	assert.Equal(t, int64(7), recorder.edits[0].RepoID)
	assert.Equal(t, "src/App.tsx", recorder.edits[0].FilePath)
	assert.Equal(t, "make x", recorder.edits[0].Prompt)
	assert.Equal(t, []int64{7}, recorder.touched)
}

func TestStreamDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	streamer := &fakeStreamer{response: strings.Repeat("ü", 150) + "\n```tsx\nconst x = 1;\n```\n"}
	recorder := &fakeRecorder{}
	e := New(streamer, &fakeCommitter{}, recorder, defaultFileMap())

	_, _, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("hi"),
		UserID:   "u1",
	}, func(string) error { return nil })

	require.NoError(t, err)
	require.Len(t, recorder.edits, 1)
	desc := recorder.edits[0].Description
	assert.True(t, utf8.ValidString(desc))
	assert.Equal(t, 140, utf8.RuneCountInString(desc))
}

func TestStreamUpstreamErrorNoCommit(t *testing.T) {
	streamer := &fakeStreamer{response: "```tsx\nconst x = 1;\n```\n", err: errors.New("stream broke")}
	committer := &fakeCommitter{}
	e := New(streamer, committer, &fakeRecorder{}, defaultFileMap())

	_, commit, err := e.Stream(context.Background(), Request{
		Repo:     repoCtx(),
		Messages: userTurn("hi"),
	}, func(string) error { return nil })

	require.Error(t, err)
	assert.Nil(t, commit)
	assert.Equal(t, 0, committer.calls)
}

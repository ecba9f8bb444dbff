package extract

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/empirial-designs/sitesmith/internal/apperr"
)

// File is one (path, content) pair pulled out of a model response.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// fileBlock is the primary parser for the path= annotation grammar, the wire
// contract with the generation prompt. Grammar version 1:
//
//	```<lang>? path=<path>
//	<content>
//	```
var fileBlock = regexp.MustCompile("(?m)^```" + `([\w+.-]*)[ \t]*path=(\S+)[ \t]*\r?\n(?s:(.*?))\r?\n?` + "```")

// scaffoldManifest is the positional assignment order used by the fallback
// scan. If the model emits files in a different order than this list expects,
// contents are silently mislabeled; the fallback is best-effort only.
var scaffoldManifest = []string{
	"package.json",
	"vite.config.ts",
	"src/App.tsx",
	"src/main.tsx",
	"index.html",
}

// minFallbackBlockLen filters out trivial snippets during the fallback scan.
const minFallbackBlockLen = 50

// requiredHints is the soft-validation list; missing all of these alongside a
// small file count is logged, not failed.
var requiredHints = []string{"package.json", "App.tsx", "index.html"}

// Extract pulls (path, content) pairs out of a raw model response. The
// annotated grammar is tried first; if it yields nothing, every fenced block
// is assigned positionally to the scaffold manifest. Zero files from both
// passes is a terminal error carrying a truncated prefix of the response.
func Extract(raw string) ([]File, error) {
	files := extractAnnotated(raw)

	if len(files) == 0 {
		log.Warn().Str("component", "extract").
			Msg("no annotated blocks found, falling back to positional scan")
		files = extractPositional(raw)
	}

	if len(files) == 0 {
		prefix := raw
		if len(prefix) > 200 {
			prefix = prefix[:200]
		}
		return nil, apperr.New(apperr.KindExtraction,
			fmt.Sprintf("no valid files found in model response (starts with: %q)", prefix))
	}

	validate(files)
	return files, nil
}

func extractAnnotated(raw string) []File {
	var files []File
	for _, m := range fileBlock.FindAllStringSubmatch(raw, -1) {
		p, err := CleanPath(m[2])
		if err != nil {
			log.Error().Str("component", "extract").Str("path", m[2]).Err(err).
				Msg("rejecting file with unsafe path")
			continue
		}
		files = append(files, File{Path: p, Content: strings.TrimSpace(m[3])})
	}
	return files
}

func extractPositional(raw string) []File {
	var files []File
	for i, block := range Blocks(raw) {
		if len(files) >= len(scaffoldManifest) {
			break
		}
		if len(block.Content) < minFallbackBlockLen {
			log.Warn().Str("component", "extract").Int("block", i).
				Msg("skipping short fenced block in fallback scan")
			continue
		}
		files = append(files, File{
			Path:    scaffoldManifest[len(files)],
			Content: strings.TrimSpace(block.Content),
		})
	}
	return files
}

// Block is one fenced code block with its info-line metadata. Lang is the
// language tag, Path the path= annotation when present (not canonicalized).
type Block struct {
	Lang    string
	Path    string
	Content string
}

// Blocks returns every fenced code block in raw, parsed from the real
// markdown structure rather than a second regex. Fence pairing is the
// parser's, so an annotated or otherwise unusual info line can never cause a
// closing fence to be mistaken for an opening one.
func Blocks(raw string) []Block {
	source := []byte(raw)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []Block
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fc, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var b Block
		if fc.Info != nil {
			for i, field := range strings.Fields(string(fc.Info.Segment.Value(source))) {
				if p, found := strings.CutPrefix(field, "path="); found {
					if b.Path == "" {
						b.Path = p
					}
				} else if i == 0 {
					b.Lang = field
				}
			}
		}

		var buf bytes.Buffer
		lines := fc.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		b.Content = buf.String()

		blocks = append(blocks, b)
		return ast.WalkContinue, nil
	})
	return blocks
}

// CleanPath canonicalizes a repo-relative path and rejects anything escaping
// the repository root.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\\") {
		return "", fmt.Errorf("backslash in path %q", p)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute path %q", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes repository root", p)
	}
	return clean, nil
}

// validate warns when the extraction looks incomplete: none of the expected
// scaffold filenames present and fewer than three files. Never fails.
func validate(files []File) {
	if len(files) >= 3 {
		return
	}
	for _, f := range files {
		for _, hint := range requiredHints {
			if strings.Contains(f.Path, hint) {
				return
			}
		}
	}
	log.Warn().Str("component", "extract").Int("files", len(files)).
		Msg("extraction looks incomplete: no expected scaffold files and fewer than 3 files")
}

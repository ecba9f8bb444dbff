package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/empirial-designs/sitesmith/internal/classify"
)

// The path= annotation below is the wire contract with the file extractor;
// its grammar must not change without versioning the extractor alongside it.
const systemPromptTemplate = `You are an expert web developer. Generate a complete, production-ready %s website with a %s visual style.

Output every file of the project as a separate fenced code block. Each block MUST start with the language tag followed by a path annotation, exactly like this:

` + "```tsx path=src/App.tsx" + `
// file content here
` + "```" + `

Rules:
- Use Vite + React + TypeScript (package.json, vite.config.ts, index.html, src/main.tsx, src/App.tsx).
- Every file needs its own fenced block with the path= annotation.
- Do not include any prose between code blocks.
- Keep each file complete and self-contained.%s`

// BuildSystemPrompt renders the generation instructions for an intent.
func BuildSystemPrompt(intent classify.Intent, company string) string {
	var extra strings.Builder
	if company != "" {
		fmt.Fprintf(&extra, "\n- The website is for a company named %q; use that name in headings and metadata.", company)
	}
	if len(intent.Features) > 0 {
		features := make([]string, 0, len(intent.Features))
		for f := range intent.Features {
			features = append(features, string(f))
		}
		sort.Strings(features)
		fmt.Fprintf(&extra, "\n- Include these sections: %s.", strings.Join(features, ", "))
	}
	return fmt.Sprintf(systemPromptTemplate, intent.Archetype, intent.Style, extra.String())
}

// BuildEditSystemPrompt renders the conversational-editor instructions. The
// model is asked to answer in prose and wrap any file rewrite in a single
// fenced code block.
func BuildEditSystemPrompt(repoName string) string {
	return fmt.Sprintf(`You are an expert web developer helping to iterate on the website repository %q. Answer questions conversationally. When the user asks for a code change, respond with exactly one fenced code block containing the complete updated file, using the correct language tag.`, repoName)
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/empirial-designs/sitesmith/internal/classify"
)

func testIntent() classify.Intent {
	return classify.Intent{
		Archetype: classify.ArchetypeLanding,
		Style:     classify.StyleModern,
		Features: map[classify.Feature]bool{
			classify.FeaturePricing: true,
		},
	}
}

func TestBuildSystemPromptMentionsArchetypeAndStyle(t *testing.T) {
	prompt := BuildSystemPrompt(testIntent(), "")
	assert.Contains(t, prompt, "landing website")
	assert.Contains(t, prompt, "modern visual style")
	assert.NotContains(t, prompt, "company named")
}

func TestBuildEditSystemPrompt(t *testing.T) {
	prompt := BuildEditSystemPrompt("my-cafe")
	assert.Contains(t, prompt, `"my-cafe"`)
	assert.Contains(t, prompt, "one fenced code block")
}

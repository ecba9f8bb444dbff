package llm

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/empirial-designs/sitesmith/internal/apperr"
)

// Generator wraps a Client with a fixed, ordered model fallback list. Models
// are tried in order and the first successful response wins; there is no
// delay between attempts and no distinction between transient and permanent
// failures. Responses are never merged across models.
type Generator struct {
	client Client
	models []string
}

// NewGenerator creates a generator over the given fallback list.
func NewGenerator(client Client, models []string) *Generator {
	return &Generator{client: client, models: models}
}

// Generate runs one completion through the fallback list and returns the
// first successful response's text. If every model fails the generation
// fails terminally.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userPrompt},
	}

	var lastErr error
	for _, model := range g.models {
		text, err := g.client.Complete(ctx, model, messages)
		if err != nil {
			log.Warn().Str("component", "llm").Str("model", model).Err(err).
				Msg("model failed, advancing to next in list")
			lastErr = err
			continue
		}
		return text, nil
	}

	return "", apperr.Wrap(apperr.KindExhausted, "all models unavailable", lastErr)
}

// StreamChat opens a streaming completion, falling back through the model
// list only while no stream has been established. Once tokens are flowing a
// failure is terminal; partial output is never retried on another model.
func (g *Generator) StreamChat(ctx context.Context, messages []Message, onToken func(string) error) (string, error) {
	var lastErr error
	for _, model := range g.models {
		started := false
		full, err := g.client.Stream(ctx, model, messages, func(token string) error {
			started = true
			return onToken(token)
		})
		if err == nil {
			return full, nil
		}
		if started {
			return full, apperr.Wrap(apperr.KindUpstream, "chat stream interrupted", err)
		}
		log.Warn().Str("component", "llm").Str("model", model).Err(err).
			Msg("model failed before streaming, advancing to next in list")
		lastErr = err
	}

	return "", apperr.Wrap(apperr.KindExhausted, "all models unavailable", lastErr)
}

// Package insights turns a note collection into short observations and
// suggestions produced by a hosted text-generation model.
package insights

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/notesight/internal/apperr"
	"github.com/starford/notesight/internal/models"
)

const (
	// Delimiter precedes the useful part of a model reply.
	Delimiter = "Insights:"

	// Heading prefixes every successful result.
	Heading = "Insights from your indexed notes:"

	// FallbackMessage replaces the result when the model cannot be reached.
	FallbackMessage = "Sorry, the LLM service is currently unavailable. Please try again later."

	// EmptyMessage is returned for an empty collection without a remote call.
	EmptyMessage = "No notes to analyze yet."

	promptTemplate = "You are a personal assistant that helps organize and provide insights about a user's notes. " +
		"Analyze the following notes and provide a summary with insights and suggestions on how to organize and improve them:\n\n" +
		"{notes}\n" +
		"Please provide your insights."
)

// Params are the sampling parameters sent with every request.
type Params struct {
	Temperature  float64
	MaxNewTokens int
}

// DefaultParams match the hosted gpt2 setup the prompt was tuned for.
var DefaultParams = Params{Temperature: 0.7, MaxNewTokens: 250}

// TextGenerator is the remote text-generation endpoint.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// Generator builds the prompt, calls the model and post-processes the reply.
type Generator struct {
	llm    TextGenerator
	params Params
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil logger falls back to slog.Default().
func NewGenerator(llm TextGenerator, params Params, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: llm, params: params, logger: logger}
}

// Generate returns insights for notes. Model failures follow the
// apperr.OpInsights policy: under Fallback they are logged and replaced by
// FallbackMessage, otherwise the error is returned.
func (g *Generator) Generate(ctx context.Context, notes []models.Note) (string, error) {
	if len(notes) == 0 {
		return EmptyMessage, nil
	}
	reply, err := g.llm.Generate(ctx, BuildPrompt(notes), g.params)
	if err != nil {
		if apperr.Decide(apperr.OpInsights, err) != apperr.Fallback {
			return "", err
		}
		g.logger.Warn("insights: generation failed, using fallback",
			slog.Int("notes", len(notes)),
			slog.String("error", err.Error()))
		return FallbackMessage, nil
	}
	return Heading + "\n\n" + ExtractInsights(reply), nil
}

// BuildPrompt renders notes into the instruction template.
func BuildPrompt(notes []models.Note) string {
	var b strings.Builder
	for _, n := range notes {
		b.WriteString("Title: ")
		b.WriteString(n.Title)
		b.WriteString("\nContent: ")
		b.WriteString(n.Content)
		b.WriteString("\n\n")
	}
	return strings.Replace(promptTemplate, "{notes}", b.String(), 1)
}

// ExtractInsights returns the trimmed text after the last Delimiter in reply,
// or the whole trimmed reply when the delimiter is absent.
func ExtractInsights(reply string) string {
	if i := strings.LastIndex(reply, Delimiter); i >= 0 {
		return strings.TrimSpace(reply[i+len(Delimiter):])
	}
	return strings.TrimSpace(reply)
}

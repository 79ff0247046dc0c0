package studyaids

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/openai"
)

// Kind selects the study aid variant to generate.
type Kind string

const (
	KindSummary    Kind = "summary"
	KindQuiz       Kind = "quiz"
	KindFlashcards Kind = "flashcards"
)

// IsValid reports whether the kind is one of the supported variants.
func (k Kind) IsValid() bool {
	switch k {
	case KindSummary, KindQuiz, KindFlashcards:
		return true
	}
	return false
}

// Generator produces a study aid document for a note's content. The returned
// payload is a JSON object shaped per kind.
type Generator interface {
	Generate(ctx context.Context, kind Kind, note *models.Note, pages []models.NotePage) (json.RawMessage, error)
}

const (
	summarySystemPrompt = "You summarize study notes. Respond with a JSON object " +
		`{"summary": string, "key_points": [string]}. Keep the summary under 300 words.`
	quizSystemPrompt = "You write practice quizzes from study notes. Respond with a JSON object " +
		`{"questions": [{"question": string, "options": [string], "answer_index": int, "explanation": string}]}. Write 5 questions.`
	flashcardsSystemPrompt = "You write flashcards from study notes. Respond with a JSON object " +
		`{"cards": [{"front": string, "back": string}]}. Write 10 cards.`
)

type openaiGenerator struct {
	client *openai.Client
}

// NewOpenAIGenerator builds a Generator backed by the chat-completions API.
func NewOpenAIGenerator(client *openai.Client) (Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client required")
	}
	return &openaiGenerator{client: client}, nil
}

func (g *openaiGenerator) Generate(ctx context.Context, kind Kind, note *models.Note, pages []models.NotePage) (json.RawMessage, error) {
	var system string
	switch kind {
	case KindSummary:
		system = summarySystemPrompt
	case KindQuiz:
		system = quizSystemPrompt
	case KindFlashcards:
		system = flashcardsSystemPrompt
	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid study aid kind %q", kind))
	}

	content, err := g.client.Complete(ctx, system, buildPrompt(note, pages), true)
	if err != nil {
		return nil, err
	}

	raw := json.RawMessage(content)
	if !json.Valid(raw) {
		return nil, errors.New(errors.CodeDependency, "model returned malformed study aid payload")
	}
	return raw, nil
}

func buildPrompt(note *models.Note, pages []models.NotePage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nSubject: %s\n\n", note.Title, note.Subject)
	for _, page := range pages {
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", page.PageNumber, page.Content)
	}
	return b.String()
}

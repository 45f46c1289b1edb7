package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Skibfizz/studydrop-backend/app/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmptyGeneration is returned when the model answers with no usable
// text.
var ErrEmptyGeneration = errors.New("model returned no content")

// Generator is the single chat-style completion call the feature
// endpoints depend on. The production implementation talks to Gemini;
// tests substitute a fake.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator initializes the Gemini client.
func NewGeminiGenerator(ctx context.Context, cfg config.GeminiConfig) (Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &geminiGenerator{client: client, model: model}, nil
}

func (g *geminiGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("error sending message: %w", err)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", ErrEmptyGeneration
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyGeneration
	}
	return out, nil
}

// Flashcard is one generated question/answer pair.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

func flashcardPrompt(content string, count int) string {
	return `You are a study assistant. Create exactly ` + strconv.Itoa(count) + ` flashcards from the material below.
Respond with ONLY a JSON array, no prose, where each element is {"front": "...", "back": "..."}.
Fronts are short questions or terms; backs are concise answers.

Material:
` + content
}

func summaryPrompt(transcript string) string {
	return `You are a study assistant. Summarize the lecture transcript below for a student.
Start with a one-paragraph overview, then list the key points as short bullets.

Transcript:
` + transcript
}

func humanizePrompt(text string) string {
	return `Rewrite the text below so it reads naturally, as if written by a person.
Keep the meaning and approximate length. Respond with only the rewritten text.

Text:
` + text
}

// parseFlashcards pulls the JSON card array out of the model output,
// tolerating markdown code fences around it.
func parseFlashcards(raw string) ([]Flashcard, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx != -1 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	// The model sometimes pads the array with commentary; cut to the
	// outermost brackets before unmarshaling.
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var cards []Flashcard
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &cards); err != nil {
		return nil, fmt.Errorf("decode flashcards: %w", err)
	}
	if len(cards) == 0 {
		return nil, ErrEmptyGeneration
	}
	return cards, nil
}

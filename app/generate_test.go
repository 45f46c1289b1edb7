package app

import "testing"

func TestParseFlashcardsPlainArray(t *testing.T) {
	cards, err := parseFlashcards(`[{"front":"What is osmosis?","back":"Diffusion of water across a membrane"}]`)
	if err != nil {
		t.Fatalf("parseFlashcards error = %v", err)
	}
	if len(cards) != 1 || cards[0].Front != "What is osmosis?" {
		t.Fatalf("cards = %+v", cards)
	}
}

func TestParseFlashcardsStripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"front\":\"q\",\"back\":\"a\"},{\"front\":\"q2\",\"back\":\"a2\"}]\n```"
	cards, err := parseFlashcards(raw)
	if err != nil {
		t.Fatalf("parseFlashcards error = %v", err)
	}
	if len(cards) != 2 || cards[1].Back != "a2" {
		t.Fatalf("cards = %+v", cards)
	}
}

func TestParseFlashcardsTrimsCommentary(t *testing.T) {
	raw := `Here are your flashcards: [{"front":"q","back":"a"}] Hope this helps!`
	cards, err := parseFlashcards(raw)
	if err != nil {
		t.Fatalf("parseFlashcards error = %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("cards = %+v", cards)
	}
}

func TestParseFlashcardsRejectsNonArray(t *testing.T) {
	if _, err := parseFlashcards(`I could not generate flashcards for this material.`); err == nil {
		t.Fatalf("expected error for prose output")
	}
}

func TestParseFlashcardsRejectsEmptyArray(t *testing.T) {
	if _, err := parseFlashcards(`[]`); err == nil {
		t.Fatalf("expected error for empty array")
	}
}

func TestParseFlashcardsRejectsMalformedJSON(t *testing.T) {
	if _, err := parseFlashcards(`[{"front":"q","back":]`); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

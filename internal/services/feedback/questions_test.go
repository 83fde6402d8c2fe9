package feedback

import (
	"context"
	"strings"
	"testing"

	"podium/internal/store"
)

func TestGenerateQuestionsWrapperObject(t *testing.T) {
	client := analysisClient(t, `{"questions": ["Tell me about a time you led a project.", "Describe a conflict you resolved."]}`)
	questions, err := client.GenerateQuestions(context.Background(), "engineering manager", 2)
	if err != nil {
		t.Fatalf("GenerateQuestions returned error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("questions = %v", questions)
	}
	if questions[0] != "Tell me about a time you led a project." {
		t.Fatalf("questions[0] = %q", questions[0])
	}
}

func TestGenerateQuestionsBareArray(t *testing.T) {
	client := analysisClient(t, `["One?", "Two?", "Three?"]`)
	questions, err := client.GenerateQuestions(context.Background(), "sales", 2)
	if err != nil {
		t.Fatalf("GenerateQuestions returned error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("count must be capped at the request, got %v", questions)
	}
}

func TestGenerateQuestionsClampsCount(t *testing.T) {
	client := analysisClient(t, `{"questions": ["a", "b", "c", "d", "e", "f", "g"]}`)
	questions, err := client.GenerateQuestions(context.Background(), "any topic", 50)
	if err != nil {
		t.Fatalf("GenerateQuestions returned error: %v", err)
	}
	if len(questions) != maxQuestions {
		t.Fatalf("len = %d, want %d", len(questions), maxQuestions)
	}
}

func TestGenerateQuestionsEmptyTopic(t *testing.T) {
	client := NewClient(Config{APIKey: "test", Models: []string{"demo-model"}})
	if _, err := client.GenerateQuestions(context.Background(), "   ", 3); err == nil {
		t.Fatal("expected error for blank topic")
	}
}

func TestAnalysisPromptTruncatesReference(t *testing.T) {
	long := strings.Repeat("x", maxReferenceChars+500)
	prompt := buildAnalysisPrompt(AnalysisInput{
		TranscriptText: "hello",
		Reference:      &store.ReferenceDocument{ID: "ref", Name: "doc", Content: long},
	})
	if strings.Contains(prompt, long) {
		t.Fatal("prompt must not carry the full reference text")
	}
	if !strings.Contains(prompt, strings.Repeat("x", maxReferenceChars)+"...") {
		t.Fatal("prompt must carry the truncated excerpt with an ellipsis")
	}
}

package feedback

import (
	"context"
	"fmt"
	"strings"
)

const (
	minQuestions = 1
	maxQuestions = 5
)

// GenerateQuestions produces count behavioral questions for a role or topic
// using the same candidate-fallback client as report analysis.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, count int) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("feedback questions: topic required")
	}
	if count < minQuestions {
		count = minQuestions
	}
	if count > maxQuestions {
		count = maxQuestions
	}

	content, _, err := c.CompleteJSON(ctx, QuestionSystemPrompt, buildQuestionPrompt(topic, count))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		// Some models return a bare array instead of the wrapper object.
		var bare []string
		if bareErr := DecodeModelJSON(content, &bare); bareErr != nil {
			return nil, err
		}
		parsed.Questions = bare
	}

	questions := make([]string, 0, count)
	for _, q := range parsed.Questions {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			questions = append(questions, trimmed)
		}
		if len(questions) == count {
			break
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("feedback questions: no questions in response")
	}
	return questions, nil
}

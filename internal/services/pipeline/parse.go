package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// summaryPayload is the expected shape of a summary generation response.
type summaryPayload struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// questionPayload is one element of a question generation response.
type questionPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// stripCodeFence unwraps a response wrapped in a fenced code block.
// Models frequently emit ```json ... ``` despite instructions.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty)
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseSummaryResponse parses an LLM summary response, tolerating fenced
// code blocks.
func ParseSummaryResponse(text string) (summary string, keyPoints []string, err error) {
	var payload summaryPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return "", nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return "", nil, fmt.Errorf("summary response has empty summary field")
	}
	return payload.Summary, payload.KeyPoints, nil
}

// ParseQuestionResponse parses an LLM question response, tolerating fenced
// code blocks and an object wrapper with a "questions" key.
func ParseQuestionResponse(text string) ([]questionPayload, error) {
	cleaned := stripCodeFence(text)

	var items []questionPayload
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return validateQuestions(items)
	}

	var wrapper struct {
		Questions []questionPayload `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse question response: %w", err)
	}
	return validateQuestions(wrapper.Questions)
}

func validateQuestions(items []questionPayload) ([]questionPayload, error) {
	valid := make([]questionPayload, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Question) == "" || strings.TrimSpace(item.Answer) == "" {
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("question response contains no usable items")
	}
	return valid, nil
}

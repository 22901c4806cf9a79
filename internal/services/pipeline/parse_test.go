package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare json untouched", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"uppercase tag", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without tag", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripCodeFence(tt.input))
		})
	}
}

func TestParseSummaryResponse(t *testing.T) {
	summary, keyPoints, err := ParseSummaryResponse(`{"summary": "A fine post.", "key_points": ["one", "two"]}`)
	require.NoError(t, err)
	assert.Equal(t, "A fine post.", summary)
	assert.Equal(t, []string{"one", "two"}, keyPoints)

	// Fenced responses parse the same
	summary, _, err = ParseSummaryResponse("```json\n{\"summary\": \"Fenced.\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Fenced.", summary)

	_, _, err = ParseSummaryResponse(`{"summary": "   "}`)
	require.Error(t, err)

	_, _, err = ParseSummaryResponse("Here is your summary: it was great!")
	require.Error(t, err)
}

func TestParseQuestionResponse_Array(t *testing.T) {
	items, err := ParseQuestionResponse(`[
		{"question": "Q1?", "answer": "A1"},
		{"question": "Q2?", "answer": "A2"}
	]`)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Q1?", items[0].Question)
	assert.Equal(t, "A2", items[1].Answer)
}

func TestParseQuestionResponse_ObjectWrapper(t *testing.T) {
	items, err := ParseQuestionResponse(`{"questions": [{"question": "Q?", "answer": "A"}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Q?", items[0].Question)
}

func TestParseQuestionResponse_DropsUnusableItems(t *testing.T) {
	items, err := ParseQuestionResponse(`[
		{"question": "Q1?", "answer": "A1"},
		{"question": "", "answer": "orphan answer"},
		{"question": "orphan question", "answer": "  "}
	]`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Q1?", items[0].Question)

	_, err = ParseQuestionResponse(`[{"question": "", "answer": ""}]`)
	require.Error(t, err)

	_, err = ParseQuestionResponse("not json at all")
	require.Error(t, err)
}

func TestBuildQuestionPrompt_PinsCount(t *testing.T) {
	system, user := BuildQuestionPrompt("", "My Title", "Body text", 7)
	assert.Equal(t, jsonEnforcementPrompt, system)
	assert.Contains(t, user, "Generate exactly 7 question-answer pairs.")
	assert.Contains(t, user, "Title: My Title")
	assert.Contains(t, user, "Body text")
}

func TestBuildQuestionPrompt_CustomInstructionReplacesDefaultOnly(t *testing.T) {
	custom := "Ask questions a beginner would ask."
	system, user := BuildQuestionPrompt(custom, "", "Body", 3)

	assert.Equal(t, jsonEnforcementPrompt, system, "the JSON enforcement part is not customizable")
	assert.True(t, strings.HasPrefix(user, custom))
	assert.NotContains(t, user, "expert content analyst")
	assert.Contains(t, user, "Generate exactly 3 question-answer pairs.")
}

func TestBuildQuestionRetryPrompt(t *testing.T) {
	_, user := BuildQuestionRetryPrompt("", "Title", "Body", 5, 3)
	assert.Contains(t, user, "contained 3 items instead of 5")
	assert.Contains(t, user, "Generate exactly 5 question-answer pairs.")
}

func TestBuildSummaryPrompt(t *testing.T) {
	system, user := BuildSummaryPrompt("", "Title", "Body")
	assert.Equal(t, jsonEnforcementPrompt, system)
	assert.Contains(t, user, "key_points")
	assert.Contains(t, user, "Blog post:\nBody")

	_, user = BuildSummaryPrompt("Summarize for experts.", "Title", "Body")
	assert.True(t, strings.HasPrefix(user, "Summarize for experts."))
}

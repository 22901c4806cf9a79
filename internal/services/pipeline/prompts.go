package pipeline

import (
	"fmt"
	"strings"
)

// jsonEnforcementPrompt is the fixed part of every two-part generation
// prompt. It is not publisher-customizable; the variable part comes from
// the publisher's custom prompt or the defaults below.
const jsonEnforcementPrompt = `You are a precise JSON generator. Respond with valid JSON only.
Do not include any prose, explanation, or markdown outside the JSON value.
If you use a code fence, it must contain only the JSON value.`

const defaultSummaryPrompt = `You are an expert content editor. Summarize the blog post below for readers deciding whether to read it.
Respond with a JSON object of the form:
{"summary": "<3-5 sentence summary>", "key_points": ["<point>", ...]}`

const defaultQuestionPrompt = `You are an expert content analyst. Generate questions a reader would ask about the blog post below, each with a concise, accurate answer drawn from the post.
Respond with a JSON array of the form:
[{"question": "<question>", "answer": "<answer>"}, ...]`

// BuildSummaryPrompt composes the user prompt for summary generation.
func BuildSummaryPrompt(customPrompt, title, content string) (system, user string) {
	instruction := defaultSummaryPrompt
	if customPrompt != "" {
		instruction = customPrompt
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	writeBlogSection(&b, title, content)

	return jsonEnforcementPrompt, b.String()
}

// BuildQuestionPrompt composes the user prompt for question generation,
// pinning the exact count the pipeline requires.
func BuildQuestionPrompt(customPrompt, title, content string, count int) (system, user string) {
	instruction := defaultQuestionPrompt
	if customPrompt != "" {
		instruction = customPrompt
	}

	var b strings.Builder
	b.WriteString(instruction)
	fmt.Fprintf(&b, "\n\nGenerate exactly %d question-answer pairs.\n\n", count)
	writeBlogSection(&b, title, content)

	return jsonEnforcementPrompt, b.String()
}

// BuildQuestionRetryPrompt reformulates the question prompt after a
// miscounted response, restating the required count explicitly.
func BuildQuestionRetryPrompt(customPrompt, title, content string, count, got int) (system, user string) {
	system, user = BuildQuestionPrompt(customPrompt, title, content, count)
	user = fmt.Sprintf("Your previous response contained %d items instead of %d. %s", got, count, user)
	return system, user
}

// BuildReformatPrompt asks the model to re-emit a malformed response as
// strict JSON.
func BuildReformatPrompt(malformed string) (system, user string) {
	user = fmt.Sprintf("The following response is not valid JSON. Re-emit it as strict, valid JSON with the same content and structure, and nothing else:\n\n%s", malformed)
	return jsonEnforcementPrompt, user
}

func writeBlogSection(b *strings.Builder, title, content string) {
	if title != "" {
		fmt.Fprintf(b, "Title: %s\n\n", title)
	}
	b.WriteString("Blog post:\n")
	b.WriteString(content)
}

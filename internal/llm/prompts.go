package llm

import (
	"fmt"
	"strings"
)

// Level selects how condensed the combined summary is.
type Level string

const (
	LevelShort         Level = "short"
	LevelMedium        Level = "medium"
	LevelComprehensive Level = "comprehensive"
)

// ParseLevel normalizes a user-supplied level string. Unknown values fall
// back to medium.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelShort:
		return LevelShort
	case LevelComprehensive:
		return LevelComprehensive
	default:
		return LevelMedium
	}
}

// levelInstructions maps each level to its combining instruction.
var levelInstructions = map[Level]string{
	LevelShort:         "Produce a very concise overall summary in 2-3 sentences capturing only the most essential points.",
	LevelMedium:        "Produce a well-organized overall summary of roughly 150-250 words covering the main themes and notable details.",
	LevelComprehensive: "Produce a thorough, structured overall summary covering every significant topic, with short paragraphs per theme and nothing important omitted.",
}

// FileSummaryPrompt asks for a standalone summary of one document.
func FileSummaryPrompt(content string) string {
	return fmt.Sprintf(`Summarize the following document in approximately 100-150 words. Focus on the key points and main ideas. Respond with the summary only, no preamble.

Document:
%s`, content)
}

// SummaryItem is one per-file result fed into the combined prompt.
type SummaryItem struct {
	Name    string
	Summary string
}

// CombineSummariesPrompt asks for one unified summary of several per-file
// summaries. failed lists files that could not be summarized; they are
// mentioned so the combined text can note the gap.
func CombineSummariesPrompt(items []SummaryItem, failed []string, level Level) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "File: %s\nSummary: %s\n\n", item.Name, item.Summary)
	}

	instruction, ok := levelInstructions[level]
	if !ok {
		instruction = levelInstructions[LevelMedium]
	}

	prompt := fmt.Sprintf(`You are given summaries of several documents. Combine them into a single coherent summary. %s Respond with the combined summary only.

Individual summaries:
%s`, instruction, b.String())

	if len(failed) > 0 {
		prompt += fmt.Sprintf("\nNote: the following files could not be summarized and are not represented above: %s. End the combined summary with a one-line note saying so.",
			strings.Join(failed, ", "))
	}
	return prompt
}

// StoryPrompt asks for a hackathon-style narrative about a repository's
// recent activity.
func StoryPrompt(repoName, readmeExcerpt, commitsBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write an engaging, slightly dramatic "hackathon story" about recent work on the repository %q. Base it only on the material below. Tell it as a short narrative (3-5 paragraphs) about what the developers were building and how it went. Respond with the story only.

`, repoName)
	if readmeExcerpt != "" {
		fmt.Fprintf(&b, "Project README (excerpt):\n%s\n\n", readmeExcerpt)
	}
	if commitsBlock != "" {
		fmt.Fprintf(&b, "Recent commits:\n%s\n", commitsBlock)
	} else {
		b.WriteString("Recent commits: none found; write about a quiet repository awaiting its next burst of activity.\n")
	}
	return b.String()
}

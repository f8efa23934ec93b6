// Package prompts builds the prompts used to turn questions into SQL and
// results back into answers.
package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

// HistoryEntry is one prior message included for follow-up context.
type HistoryEntry struct {
	Role string // "user" or "assistant"
	Text string
}

// maxHistoryChars caps the conversation section of a generation prompt.
// The turn-count window bounds how many entries arrive here; this bounds
// their total size so one huge message cannot crowd out the schema.
const maxHistoryChars = 4000

// windowHistory keeps the newest entries that fit within maxChars, dropping
// from the oldest end. A newest entry that alone exceeds the budget is kept
// with its text cut to fit.
func windowHistory(history []HistoryEntry, maxChars int) []HistoryEntry {
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := len(history[i].Role) + len(history[i].Text) + 2
		if used+cost > maxChars {
			if start == len(history) {
				entry := history[i]
				keep := maxChars - len(entry.Role) - 2
				if keep > 0 {
					entry.Text = entry.Text[:keep]
					return []HistoryEntry{entry}
				}
			}
			break
		}
		used += cost
		start = i
	}
	return history[start:]
}

// BuildQueryPrompt creates the prompt for generating a SQL statement from a
// natural-language question. The schema text and recent conversation give the
// model enough context to resolve follow-ups like "and only for last month".
func BuildQueryPrompt(question, schemaText, dialect string, history []HistoryEntry) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	prompt.WriteString(schemaText)
	prompt.WriteString("\n\n")

	if windowed := windowHistory(history, maxHistoryChars); len(windowed) > 0 {
		prompt.WriteString("# Recent Conversation\n\n")
		for _, h := range windowed {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", h.Role, h.Text))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Instructions\n\n")
	prompt.WriteString(fmt.Sprintf("- Write a single %s statement that answers the question.\n", dialect))
	prompt.WriteString("- Use only tables and columns from the schema above.\n")
	prompt.WriteString("- Prefer a SELECT statement; never modify data unless the question explicitly asks for it.\n")
	prompt.WriteString("- Do not include multiple statements or a trailing semicolon.\n")
	prompt.WriteString("- Return the statement in a ```sql code block with no additional commentary.\n")

	return prompt.String()
}

// BuildQueryFixerPrompt creates the prompt for repairing a statement that was
// rejected or failed to execute. The previous statement and the exact error
// are included so the model can correct rather than regenerate blindly.
func BuildQueryFixerPrompt(question, schemaText, dialect, previousQuery, errMsg string) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	prompt.WriteString(schemaText)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Previous Attempt\n\n")
	prompt.WriteString("```sql\n")
	prompt.WriteString(previousQuery)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("# Error\n\n")
	prompt.WriteString(errMsg)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Instructions\n\n")
	prompt.WriteString(fmt.Sprintf("- Fix the %s statement so it answers the question without the error above.\n", dialect))
	prompt.WriteString("- Use only tables and columns from the schema above.\n")
	prompt.WriteString("- Do not include multiple statements or a trailing semicolon.\n")
	prompt.WriteString("- Return the corrected statement in a ```sql code block with no additional commentary.\n")

	return prompt.String()
}

// BuildFinalAnswerPrompt creates the prompt for summarizing query results
// into a natural-language answer.
func BuildFinalAnswerPrompt(question, statement, resultTable string) string {
	var prompt strings.Builder

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Query\n\n")
	prompt.WriteString("```sql\n")
	prompt.WriteString(statement)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("# Results\n\n")
	prompt.WriteString(resultTable)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Instructions\n\n")
	prompt.WriteString("- Answer the question in plain language using only the results above.\n")
	prompt.WriteString("- Mention concrete numbers from the results where relevant.\n")
	prompt.WriteString("- If the results are empty, say so; do not invent data.\n")
	prompt.WriteString("- Keep the answer to a few sentences.\n")

	return prompt.String()
}

// QueryGenerationSystemMessage returns the system message for SQL generation.
func QueryGenerationSystemMessage() string {
	return `You are an expert SQL analyst. You translate questions about a database into correct, efficient SQL statements using only the schema provided.`
}

// FinalAnswerSystemMessage returns the system message for result summarization.
func FinalAnswerSystemMessage() string {
	return `You are a helpful data analyst. You explain query results clearly and concisely, without speculation beyond the data shown.`
}

var sqlFencePattern = regexp.MustCompile("(?s)```sql\\s*(.*?)```")

// ExtractSQL pulls the SQL statement out of a model response. It prefers a
// ```sql fenced block; if none is present, it falls back to the first line
// that starts a statement (SELECT or WITH). Returns an empty string when no
// SQL can be found.
func ExtractSQL(response string) string {
	if m := sqlFencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}

	// Fallback: take everything from the first SELECT/WITH line onward.
	lines := strings.Split(response, "\n")
	for i, line := range lines {
		trimmed := strings.ToUpper(strings.TrimSpace(line))
		if strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH") {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}

	return ""
}

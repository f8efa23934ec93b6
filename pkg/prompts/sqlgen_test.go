package prompts

import (
	"strings"
	"testing"
)

func TestBuildQueryPrompt(t *testing.T) {
	schema := "-- Table: customers\n-- id (uuid), name (text)"
	history := []HistoryEntry{
		{Role: "user", Text: "How many customers do we have?"},
		{Role: "assistant", Text: "You have 1,204 customers."},
	}

	prompt := BuildQueryPrompt("And how many signed up this year?", schema, "PostgreSQL", history)

	for _, want := range []string{
		"-- Table: customers",
		"How many customers do we have?",
		"And how many signed up this year?",
		"PostgreSQL",
		"```sql",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildQueryPromptWithoutHistory(t *testing.T) {
	prompt := BuildQueryPrompt("How many orders?", "-- Table: orders", "PostgreSQL", nil)
	if strings.Contains(prompt, "Recent Conversation") {
		t.Error("prompt should not include a conversation section when history is empty")
	}
}

func TestBuildQueryPromptCapsHistorySize(t *testing.T) {
	huge := strings.Repeat("x", maxHistoryChars)
	history := []HistoryEntry{
		{Role: "user", Text: "old question " + huge},
		{Role: "assistant", Text: "old answer"},
		{Role: "user", Text: "recent question"},
	}

	prompt := BuildQueryPrompt("follow-up?", "-- Table: orders", "PostgreSQL", history)

	if !strings.Contains(prompt, "recent question") {
		t.Error("newest history entry must survive the character cap")
	}
	if strings.Contains(prompt, "old question") {
		t.Error("oversized old entry must be dropped from the prompt")
	}
	if len(prompt) > maxHistoryChars+1000 {
		t.Errorf("prompt length %d not bounded by the history cap", len(prompt))
	}
}

func TestWindowHistoryTruncatesSingleOversizedEntry(t *testing.T) {
	history := []HistoryEntry{
		{Role: "user", Text: strings.Repeat("y", 500)},
	}

	windowed := windowHistory(history, 100)
	if len(windowed) != 1 {
		t.Fatalf("got %d entries, want the newest entry kept", len(windowed))
	}
	if len(windowed[0].Text) >= 500 {
		t.Error("oversized entry text must be cut to fit the budget")
	}
	if history[0].Text != strings.Repeat("y", 500) {
		t.Error("windowing must not mutate the caller's history")
	}
}

func TestBuildQueryFixerPrompt(t *testing.T) {
	prompt := BuildQueryFixerPrompt(
		"How many orders?",
		"-- Table: orders",
		"PostgreSQL",
		"SELECT count(*) FORM orders",
		`syntax error at or near "FORM"`,
	)

	for _, want := range []string{
		"SELECT count(*) FORM orders",
		`syntax error at or near "FORM"`,
		"Previous Attempt",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "sql fence",
			response: "Here you go:\n```sql\nSELECT * FROM orders\n```\nLet me know if you need more.",
			want:     "SELECT * FROM orders",
		},
		{
			name:     "fence only",
			response: "```sql\nSELECT 1\n```",
			want:     "SELECT 1",
		},
		{
			name:     "multiline statement in fence",
			response: "```sql\nSELECT id,\n       total\nFROM orders\n```",
			want:     "SELECT id,\n       total\nFROM orders",
		},
		{
			name:     "bare select fallback",
			response: "The query is:\nSELECT count(*) FROM customers",
			want:     "SELECT count(*) FROM customers",
		},
		{
			name:     "bare with fallback",
			response: "WITH t AS (SELECT 1) SELECT * FROM t",
			want:     "WITH t AS (SELECT 1) SELECT * FROM t",
		},
		{
			name:     "no sql at all",
			response: "I cannot answer that with the available schema.",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSQL(tt.response); got != tt.want {
				t.Errorf("ExtractSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

package sql

import (
	"strings"
)

// Verdict categorizes a single SQL statement by its effect on the database.
type Verdict string

const (
	// VerdictReadOnly means the statement only reads data.
	VerdictReadOnly Verdict = "READ_ONLY"
	// VerdictMutating means the statement writes data or changes schema.
	VerdictMutating Verdict = "MUTATING"
	// VerdictDestructive means the statement removes data or objects.
	VerdictDestructive Verdict = "DESTRUCTIVE"
	// VerdictUnparseable means the statement's effect could not be determined.
	// Unparseable statements are never executed.
	VerdictUnparseable Verdict = "UNPARSEABLE"
)

var (
	readOnlyKeywords = map[string]bool{
		"SELECT":  true,
		"SHOW":    true,
		"EXPLAIN": true,
	}

	mutatingKeywords = map[string]bool{
		"INSERT": true,
		"UPDATE": true,
		"MERGE":  true,
		"CREATE": true,
		"ALTER":  true,
		"GRANT":  true,
		"REVOKE": true,
	}

	destructiveKeywords = map[string]bool{
		"DELETE":   true,
		"DROP":     true,
		"TRUNCATE": true,
	}
)

// Classify determines the verdict for a single normalized SQL statement.
// Classification is by leading keyword; WITH statements are additionally
// scanned for data-modifying CTEs (PostgreSQL allows WITH ... DELETE etc.),
// and the worst keyword found anywhere in the statement wins.
func Classify(stmt string) Verdict {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return VerdictUnparseable
	}

	first := firstKeyword(stmt)
	switch {
	case destructiveKeywords[first]:
		return VerdictDestructive
	case mutatingKeywords[first]:
		return VerdictMutating
	case first == "WITH":
		return classifyWith(stmt)
	case readOnlyKeywords[first]:
		return VerdictReadOnly
	default:
		return VerdictUnparseable
	}
}

// classifyWith handles WITH statements. The CTE body can hide DML, so every
// keyword outside string literals is inspected and the worst one wins.
func classifyWith(stmt string) Verdict {
	worst := VerdictReadOnly
	sawSelect := false

	for _, word := range keywordsOutsideStrings(stmt) {
		switch {
		case destructiveKeywords[word]:
			return VerdictDestructive
		case mutatingKeywords[word]:
			worst = VerdictMutating
		case word == "SELECT":
			sawSelect = true
		}
	}

	if worst == VerdictReadOnly && !sawSelect {
		return VerdictUnparseable
	}
	return worst
}

// firstKeyword returns the first word of the statement, upper-cased, with
// leading comments skipped.
func firstKeyword(stmt string) string {
	words := keywordsOutsideStrings(stmt)
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// keywordsOutsideStrings tokenizes the statement into upper-cased words,
// skipping string literals, quoted identifiers, and comments. Quoted content
// must not influence classification: a SELECT over a column containing the
// text "DROP TABLE" is still read-only.
func keywordsOutsideStrings(stmt string) []string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	var words []string
	var current strings.Builder
	state := stateNormal
	prevChar := rune(0)

	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToUpper(current.String()))
			current.Reset()
		}
	}

	runes := []rune(stmt)
	for i := 0; i < len(runes); i++ {
		char := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case char == '\'':
				flush()
				state = stateSingleQuote
			case char == '"':
				flush()
				state = stateDoubleQuote
			case char == '-' && next == '-':
				flush()
				state = stateLineComment
				i++
			case char == '/' && next == '*':
				flush()
				state = stateBlockComment
				i++
			case char >= 'a' && char <= 'z' || char >= 'A' && char <= 'Z' || char == '_':
				current.WriteRune(char)
			default:
				flush()
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
		prevChar = char
	}
	flush()

	return words
}

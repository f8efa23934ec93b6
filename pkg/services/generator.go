package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/llm"
	"github.com/askdb-io/askdb-engine/pkg/prompts"
)

// ErrNoSQLInResponse is returned when the model reply contains no extractable
// SQL statement.
var ErrNoSQLInResponse = errors.New("model response contained no SQL statement")

// sqlGenTemperature keeps statement generation deterministic; answers get a
// little room for phrasing.
const (
	sqlGenTemperature = 0.0
	answerTemperature = 0.3
)

// QueryGenerator turns questions into SQL statements and query results back
// into natural-language answers.
type QueryGenerator interface {
	// GenerateQuery produces a SQL statement for the question, grounded on
	// the schema snapshot and recent conversation.
	GenerateQuery(ctx context.Context, question, schemaText, dialect string, history []prompts.HistoryEntry) (string, error)

	// FixQuery produces a corrected statement given the previous attempt
	// and the error it caused.
	FixQuery(ctx context.Context, question, schemaText, dialect, previousQuery, errMsg string) (string, error)

	// SummarizeResults produces a plain-language answer from query results.
	SummarizeResults(ctx context.Context, question, statement string, result *datasource.QueryResult) (string, error)
}

type queryGenerator struct {
	client llm.ChatClient
	logger *zap.Logger
}

// NewQueryGenerator creates a generator backed by the given chat client.
func NewQueryGenerator(client llm.ChatClient, logger *zap.Logger) QueryGenerator {
	return &queryGenerator{
		client: client,
		logger: logger.Named("generator"),
	}
}

func (g *queryGenerator) GenerateQuery(ctx context.Context, question, schemaText, dialect string, history []prompts.HistoryEntry) (string, error) {
	prompt := prompts.BuildQueryPrompt(question, schemaText, dialect, history)
	return g.generateSQL(ctx, prompt)
}

func (g *queryGenerator) FixQuery(ctx context.Context, question, schemaText, dialect, previousQuery, errMsg string) (string, error) {
	prompt := prompts.BuildQueryFixerPrompt(question, schemaText, dialect, previousQuery, errMsg)
	return g.generateSQL(ctx, prompt)
}

func (g *queryGenerator) generateSQL(ctx context.Context, prompt string) (string, error) {
	response, err := g.client.GenerateResponse(ctx, prompt, prompts.QueryGenerationSystemMessage(), sqlGenTemperature)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}

	statement := prompts.ExtractSQL(response)
	if statement == "" {
		g.logger.Warn("no SQL in model response",
			zap.String("model", g.client.GetModel()),
			zap.Int("response_length", len(response)))
		return "", ErrNoSQLInResponse
	}

	return statement, nil
}

func (g *queryGenerator) SummarizeResults(ctx context.Context, question, statement string, result *datasource.QueryResult) (string, error) {
	prompt := prompts.BuildFinalAnswerPrompt(question, statement, renderResultTable(result))

	answer, err := g.client.GenerateResponse(ctx, prompt, prompts.FinalAnswerSystemMessage(), answerTemperature)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

// summaryRowLimit bounds how many rows are shown to the model when writing
// the final answer; the full result still goes back to the caller.
const summaryRowLimit = 50

// renderResultTable renders query results as compact JSON lines for the
// summarization prompt.
func renderResultTable(result *datasource.QueryResult) string {
	if result == nil || result.RowCount == 0 {
		return "(no rows)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(result.Columns, ", "))

	shown := result.Rows
	if len(shown) > summaryRowLimit {
		shown = shown[:summaryRowLimit]
	}
	for _, row := range shown {
		line, err := json.Marshal(row)
		if err != nil {
			continue
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	if result.RowCount > len(shown) {
		fmt.Fprintf(&sb, "... (%d rows total)\n", result.RowCount)
	}

	return sb.String()
}

var _ QueryGenerator = (*queryGenerator)(nil)

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/audit"
	"github.com/askdb-io/askdb-engine/pkg/logging"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/prompts"
	sqlguard "github.com/askdb-io/askdb-engine/pkg/sql"
)

// ExecSession is the subset of a broker session used for query execution.
type ExecSession interface {
	Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error)
	Dialect() string
}

// TurnResult is the outcome of one generate/guard/execute turn.
type TurnResult struct {
	Statement string
	Verdict   sqlguard.Verdict
	Result    *datasource.QueryResult
	Attempts  []models.QueryAttempt
}

// ExecutorOptions bounds a turn.
type ExecutorOptions struct {
	MaxAttempts    int
	MaxRows        int
	MaxResultBytes int
	QueryTimeout   time.Duration
}

// TurnExecutor drives the generate/guard/execute loop for one question.
type TurnExecutor interface {
	// ExecuteTurn generates a statement for the question, screens it, and
	// runs it against the session. A rejected or failing statement is fed
	// back to the generator for repair; after MaxAttempts failures the turn
	// ends with ErrAttemptsExhausted. A provider failure ends the turn
	// immediately without consuming the remaining attempts. The returned
	// TurnResult always carries the attempt log, even on failure.
	ExecuteTurn(ctx context.Context, session ExecSession, question, schemaText string, history []prompts.HistoryEntry) (*TurnResult, error)

	// RunStatement screens and runs a caller-supplied statement with
	// positional parameters, bypassing generation. String parameters are
	// checked for injection patterns before execution.
	RunStatement(ctx context.Context, session ExecSession, statement string, params []any) (*datasource.QueryResult, error)
}

type turnExecutor struct {
	generator QueryGenerator
	guard     *sqlguard.Guard
	opts      ExecutorOptions
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewTurnExecutor creates a turn executor. Zero option fields get defaults.
func NewTurnExecutor(generator QueryGenerator, guard *sqlguard.Guard, opts ExecutorOptions, logger *zap.Logger) TurnExecutor {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 500
	}
	if opts.MaxResultBytes <= 0 {
		opts.MaxResultBytes = 1 << 20
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}

	return &turnExecutor{
		generator: generator,
		guard:     guard,
		opts:      opts,
		auditor:   audit.NewSecurityAuditor(logger),
		logger:    logger.Named("executor"),
	}
}

func (e *turnExecutor) ExecuteTurn(ctx context.Context, session ExecSession, question, schemaText string, history []prompts.HistoryEntry) (*TurnResult, error) {
	dialect := session.Dialect()
	attempts := make([]models.QueryAttempt, 0, e.opts.MaxAttempts)

	var lastStatement, lastErr string
	for i := 1; i <= e.opts.MaxAttempts; i++ {
		var raw string
		var err error
		if i == 1 {
			raw, err = e.generator.GenerateQuery(ctx, question, schemaText, dialect, history)
		} else {
			raw, err = e.generator.FixQuery(ctx, question, schemaText, dialect, lastStatement, lastErr)
		}
		if err != nil {
			// A reply without SQL is repairable by re-prompting. Anything
			// else has already survived the provider's own retry schedule
			// and ends the turn rather than burning statement attempts.
			if !errors.Is(err, ErrNoSQLInResponse) {
				return &TurnResult{Attempts: attempts}, err
			}
			attempts = append(attempts, models.QueryAttempt{
				Index: i,
				Error: err.Error(),
			})
			lastErr = err.Error()
			continue
		}

		statement, verdict, err := e.guard.Evaluate(raw)
		if err != nil {
			e.auditor.LogGuardrailRejection(audit.RejectionDetails{
				Verdict:   string(verdict),
				Statement: raw,
				Attempt:   i,
			})
			attempts = append(attempts, models.QueryAttempt{
				Index:     i,
				Statement: raw,
				Verdict:   string(verdict),
				Error:     err.Error(),
			})
			lastStatement, lastErr = raw, err.Error()
			continue
		}

		queryCtx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
		result, err := session.Query(queryCtx, statement, nil, e.opts.MaxRows)
		cancel()
		if err != nil {
			e.logger.Info("statement failed",
				zap.Int("attempt", i),
				zap.String("query", logging.SanitizeQuery(statement)),
				zap.String("error", logging.SanitizeError(err)))
			attempts = append(attempts, models.QueryAttempt{
				Index:     i,
				Statement: statement,
				Verdict:   string(verdict),
				Error:     err.Error(),
			})
			lastStatement, lastErr = statement, err.Error()
			continue
		}

		capResultBytes(result, e.opts.MaxResultBytes)
		attempts = append(attempts, models.QueryAttempt{
			Index:     i,
			Statement: statement,
			Verdict:   string(verdict),
		})

		e.logger.Debug("turn succeeded",
			zap.Int("attempt", i),
			zap.Int("rows", result.RowCount))

		return &TurnResult{
			Statement: statement,
			Verdict:   verdict,
			Result:    result,
			Attempts:  attempts,
		}, nil
	}

	return &TurnResult{Attempts: attempts},
		fmt.Errorf("%w after %d attempts: %s", apperrors.ErrAttemptsExhausted, e.opts.MaxAttempts, lastErr)
}

func (e *turnExecutor) RunStatement(ctx context.Context, session ExecSession, statement string, params []any) (*datasource.QueryResult, error) {
	named := make(map[string]any, len(params))
	for i, p := range params {
		named[fmt.Sprintf("$%d", i+1)] = p
	}
	if hits := sqlguard.CheckAllParameters(named); len(hits) > 0 {
		for _, hit := range hits {
			e.auditor.LogInjectionAttempt(audit.InjectionDetails{
				ParamName:   hit.ParamName,
				Fingerprint: hit.Fingerprint,
			})
		}
		return nil, fmt.Errorf("%w: parameter %s contains a SQL injection pattern",
			apperrors.ErrValidation, hits[0].ParamName)
	}

	normalized, _, err := e.guard.Evaluate(statement)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	result, err := session.Query(queryCtx, normalized, params, e.opts.MaxRows)
	if err != nil {
		return nil, err
	}

	capResultBytes(result, e.opts.MaxResultBytes)
	return result, nil
}

// capResultBytes drops trailing rows until the JSON-encoded rows fit in
// maxBytes. The row cap bounds count; this bounds payload size for wide rows.
func capResultBytes(result *datasource.QueryResult, maxBytes int) {
	size := 0
	for i, row := range result.Rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			continue
		}
		size += len(encoded)
		if size > maxBytes {
			result.Rows = result.Rows[:i]
			result.RowCount = i
			result.Truncated = true
			return
		}
	}
}

var _ TurnExecutor = (*turnExecutor)(nil)

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/logging"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/prompts"
	"github.com/askdb-io/askdb-engine/pkg/repositories"
)

// historyLimit is how many prior messages are loaded for follow-up context.
const historyLimit = 10

// SessionOpener opens broker sessions; satisfied by *datasource.Broker.
type SessionOpener interface {
	Open(ctx context.Context, desc *models.ConnectionDescriptor) (*datasource.Session, error)
}

// ConversationOrchestrator runs full question-to-answer turns and maintains
// the append-only conversation log.
type ConversationOrchestrator interface {
	// Ask answers a natural-language question against the user's named
	// database. Both the question and the outcome are appended to the
	// user's history. On failure the returned message carries the error
	// and the attempt log alongside the error itself.
	Ask(ctx context.Context, userID uuid.UUID, serviceName, question string) (*models.ChatMessage, error)

	// History returns the user's most recent messages in chronological order.
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatMessage, error)

	// Query runs a caller-supplied statement with positional parameters
	// against the user's named database, bypassing generation. The guard
	// and injection screening still apply; the result is not recorded in
	// chat history.
	Query(ctx context.Context, userID uuid.UUID, serviceName, statement string, params []any) (*datasource.QueryResult, error)
}

type conversationOrchestrator struct {
	vault        CredentialVault
	opener       SessionOpener
	introspector SchemaIntrospector
	executor     TurnExecutor
	generator    QueryGenerator
	chatRepo     repositories.ChatRepository
	promptChars  int
	logger       *zap.Logger
}

// NewConversationOrchestrator wires the full turn pipeline together.
// maxPromptChars bounds the schema snapshot included in prompts.
func NewConversationOrchestrator(
	vault CredentialVault,
	opener SessionOpener,
	introspector SchemaIntrospector,
	executor TurnExecutor,
	generator QueryGenerator,
	chatRepo repositories.ChatRepository,
	maxPromptChars int,
	logger *zap.Logger,
) ConversationOrchestrator {
	if maxPromptChars <= 0 {
		maxPromptChars = 12000
	}
	return &conversationOrchestrator{
		vault:        vault,
		opener:       opener,
		introspector: introspector,
		executor:     executor,
		generator:    generator,
		chatRepo:     chatRepo,
		promptChars:  maxPromptChars,
		logger:       logger.Named("conversation"),
	}
}

func (o *conversationOrchestrator) Ask(ctx context.Context, userID uuid.UUID, serviceName, question string) (*models.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrValidation)
	}

	// Load history before appending so the prompt excludes the current turn.
	history, err := o.chatRepo.ListRecent(ctx, userID, historyLimit)
	if err != nil {
		return nil, err
	}

	desc, err := o.vault.Retrieve(ctx, userID, serviceName)
	if err != nil {
		return nil, err
	}

	session, err := o.opener.Open(ctx, desc)
	desc.Zero()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	schemaText, err := o.introspector.Snapshot(ctx, session, o.promptChars)
	if err != nil {
		return nil, err
	}

	userMsg := &models.ChatMessage{
		UserID:  userID,
		Role:    models.RoleUser,
		Payload: models.MessagePayload{Text: question},
	}

	turn, turnErr := o.executor.ExecuteTurn(ctx, session, question, schemaText, promptHistory(history))
	if turnErr != nil {
		o.logger.Warn("turn failed",
			zap.String("user_id", userID.String()),
			zap.String("service", serviceName),
			zap.String("error", logging.SanitizeError(turnErr)))

		assistantMsg := &models.ChatMessage{
			UserID: userID,
			Role:   models.RoleAssistant,
			Payload: models.MessagePayload{
				Error:    turnErr.Error(),
				Attempts: turn.Attempts,
			},
		}
		// The pair is written together so history never carries an
		// unanswered question.
		if err := o.chatRepo.AppendPair(ctx, userMsg, assistantMsg); err != nil {
			return nil, errors.Join(turnErr, err)
		}
		return assistantMsg, turnErr
	}

	answer, err := o.generator.SummarizeResults(ctx, question, turn.Statement, turn.Result)
	if err != nil {
		// The query ran; a summarization failure should not lose the data.
		o.logger.Warn("answer summarization failed",
			zap.String("error", logging.SanitizeError(err)))
		answer = fmt.Sprintf("The query returned %d rows.", turn.Result.RowCount)
	}

	assistantMsg := &models.ChatMessage{
		UserID: userID,
		Role:   models.RoleAssistant,
		Payload: models.MessagePayload{
			Text:     answer,
			SQL:      turn.Statement,
			Columns:  turn.Result.Columns,
			Rows:     turn.Result.Rows,
			RowCount: turn.Result.RowCount,
			Attempts: turn.Attempts,
		},
	}
	if err := o.chatRepo.AppendPair(ctx, userMsg, assistantMsg); err != nil {
		return nil, err
	}

	return assistantMsg, nil
}

func (o *conversationOrchestrator) Query(ctx context.Context, userID uuid.UUID, serviceName, statement string, params []any) (*datasource.QueryResult, error) {
	desc, err := o.vault.Retrieve(ctx, userID, serviceName)
	if err != nil {
		return nil, err
	}

	session, err := o.opener.Open(ctx, desc)
	desc.Zero()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return o.executor.RunStatement(ctx, session, statement, params)
}

func (o *conversationOrchestrator) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return o.chatRepo.ListRecent(ctx, userID, limit)
}

// promptHistory converts stored messages into prompt entries, skipping
// messages with no text.
func promptHistory(messages []*models.ChatMessage) []prompts.HistoryEntry {
	entries := make([]prompts.HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		text := msg.Payload.Text
		if text == "" && msg.Payload.Error != "" {
			text = "(previous question failed: " + msg.Payload.Error + ")"
		}
		if text == "" {
			continue
		}
		entries = append(entries, prompts.HistoryEntry{
			Role: string(msg.Role),
			Text: text,
		})
	}
	return entries
}

var _ ConversationOrchestrator = (*conversationOrchestrator)(nil)

package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/prompts"
)

// mockCredentialRepo is a function-field mock for CredentialRepository.
type mockCredentialRepo struct {
	CreateFunc       func(ctx context.Context, cred *models.Credential, blob []byte) error
	UpsertFunc       func(ctx context.Context, cred *models.Credential, blob []byte) error
	GetByServiceFunc func(ctx context.Context, userID uuid.UUID, serviceName string) (*models.Credential, []byte, error)
	ListFunc         func(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error)
	UpdateBlobFunc   func(ctx context.Context, userID uuid.UUID, serviceName string, blob []byte) error
	DeleteFunc       func(ctx context.Context, userID uuid.UUID, serviceName string) error
}

func (m *mockCredentialRepo) Create(ctx context.Context, cred *models.Credential, blob []byte) error {
	return m.CreateFunc(ctx, cred, blob)
}

func (m *mockCredentialRepo) Upsert(ctx context.Context, cred *models.Credential, blob []byte) error {
	return m.UpsertFunc(ctx, cred, blob)
}

func (m *mockCredentialRepo) GetByService(ctx context.Context, userID uuid.UUID, serviceName string) (*models.Credential, []byte, error) {
	return m.GetByServiceFunc(ctx, userID, serviceName)
}

func (m *mockCredentialRepo) List(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error) {
	return m.ListFunc(ctx, userID)
}

func (m *mockCredentialRepo) UpdateBlob(ctx context.Context, userID uuid.UUID, serviceName string, blob []byte) error {
	return m.UpdateBlobFunc(ctx, userID, serviceName, blob)
}

func (m *mockCredentialRepo) Delete(ctx context.Context, userID uuid.UUID, serviceName string) error {
	return m.DeleteFunc(ctx, userID, serviceName)
}

// memoryChatRepo is an in-memory ChatRepository for orchestration tests.
type memoryChatRepo struct {
	messages []*models.ChatMessage
}

func (m *memoryChatRepo) Append(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = uuid.New()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryChatRepo) AppendPair(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error {
	if err := m.Append(ctx, userMsg); err != nil {
		return err
	}
	return m.Append(ctx, assistantMsg)
}

func (m *memoryChatRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	var out []*models.ChatMessage
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// mockGenerator is a function-field mock for QueryGenerator.
type mockGenerator struct {
	GenerateQueryFunc    func(ctx context.Context, question, schemaText, dialect string, history []prompts.HistoryEntry) (string, error)
	FixQueryFunc         func(ctx context.Context, question, schemaText, dialect, previousQuery, errMsg string) (string, error)
	SummarizeResultsFunc func(ctx context.Context, question, statement string, result *datasource.QueryResult) (string, error)

	GenerateCalls int
	FixCalls      int
}

func (m *mockGenerator) GenerateQuery(ctx context.Context, question, schemaText, dialect string, history []prompts.HistoryEntry) (string, error) {
	m.GenerateCalls++
	return m.GenerateQueryFunc(ctx, question, schemaText, dialect, history)
}

func (m *mockGenerator) FixQuery(ctx context.Context, question, schemaText, dialect, previousQuery, errMsg string) (string, error) {
	m.FixCalls++
	return m.FixQueryFunc(ctx, question, schemaText, dialect, previousQuery, errMsg)
}

func (m *mockGenerator) SummarizeResults(ctx context.Context, question, statement string, result *datasource.QueryResult) (string, error) {
	if m.SummarizeResultsFunc != nil {
		return m.SummarizeResultsFunc(ctx, question, statement, result)
	}
	return "summary", nil
}

// mockExecSession is a function-field mock for ExecSession.
type mockExecSession struct {
	QueryFunc   func(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error)
	DialectName string
}

func (m *mockExecSession) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error) {
	return m.QueryFunc(ctx, sqlQuery, params, limit)
}

func (m *mockExecSession) Dialect() string {
	if m.DialectName == "" {
		return "PostgreSQL"
	}
	return m.DialectName
}

// mockSchemaSource is a canned SchemaSource.
type mockSchemaSource struct {
	tables  []datasource.Table
	columns map[string][]datasource.Column
	fks     []datasource.ForeignKey
}

func (m *mockSchemaSource) Tables(ctx context.Context) ([]datasource.Table, error) {
	return m.tables, nil
}

func (m *mockSchemaSource) Columns(ctx context.Context, schemaName, tableName string) ([]datasource.Column, error) {
	return m.columns[schemaName+"."+tableName], nil
}

func (m *mockSchemaSource) ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	return m.fks, nil
}

func (m *mockSchemaSource) Dialect() string { return "PostgreSQL" }

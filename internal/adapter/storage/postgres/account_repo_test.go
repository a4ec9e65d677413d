package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"secure-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountColumnNames() []string {
	return []string{"id", "email", "display_name", "settlement_address", "created_at", "updated_at"}
}

func newTestAccount() *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		ID:          uuid.New(),
		Email:       "a@b.com",
		DisplayName: "a",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumnNames()).
		AddRow(a.ID, a.Email, a.DisplayName, a.SettlementAddress, a.CreatedAt, a.UpdatedAt)
}

func TestAccountRepo_FindOrCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	existing := newTestAccount()

	mock.ExpectQuery("INSERT INTO accounts(.+)ON CONFLICT \\(email\\) DO UPDATE(.+)RETURNING").
		WithArgs(pgxmock.AnyArg(), "a@b.com", "a", pgxmock.AnyArg()).
		WillReturnRows(accountRow(existing))

	got, err := repo.FindOrCreate(context.Background(), "a@b.com", "a")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID, "existing row is returned on conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_FindOrCreate_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	mock.ExpectQuery("INSERT INTO accounts").WillReturnError(errors.New("db down"))

	_, err = repo.FindOrCreate(context.Background(), "a@b.com", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find or create account")
}

func TestAccountRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()
	addr := "0x52908400098527886E0F7030069857D2E4169EE7"
	a.SettlementAddress = &addr

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))

	got, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, got.Email)
	assert.Equal(t, addr, *got.SettlementAddress)
}

func TestAccountRepo_GetByEmail_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email = \\$1").
		WithArgs("nobody@b.com").
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	got, err := repo.GetByEmail(context.Background(), "nobody@b.com")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()
	a.DisplayName = "Alice"

	mock.ExpectExec("UPDATE accounts SET display_name").
		WithArgs("Alice", a.SettlementAddress, a.UpdatedAt, a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts SET display_name").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.Update(context.Background(), a))

	err = repo.Update(context.Background(), newTestAccount())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestMessageRepo_CreateAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMessageRepo(mock)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	msg := &domain.Message{ID: uuid.New(), EscrowID: uuid.New(), SenderAccountID: uuid.New(), Content: "hi", CreatedAt: now}

	mock.ExpectExec("INSERT INTO escrow_messages").
		WithArgs(msg.ID, msg.EscrowID, msg.SenderAccountID, "hi", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM escrow_messages WHERE escrow_id = \\$1 ORDER BY created_at, seq").
		WithArgs(msg.EscrowID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "escrow_id", "sender_account_id", "content", "created_at"}).
			AddRow(msg.ID, msg.EscrowID, msg.SenderAccountID, "hi", now))

	require.NoError(t, repo.Create(ctx, msg))

	thread, err := repo.ListByEscrow(ctx, msg.EscrowID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, *msg, thread[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_ListEmptyIsNotNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMessageRepo(mock)
	mock.ExpectQuery("SELECT (.+) FROM escrow_messages").
		WillReturnRows(pgxmock.NewRows([]string{"id", "escrow_id", "sender_account_id", "content", "created_at"}))

	thread, err := repo.ListByEscrow(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, thread)
	assert.Empty(t, thread)
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	accountID := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		AccountID:    &accountID,
		Action:       domain.AuditActionConfirm,
		ResourceType: "escrow",
		ResourceID:   uuid.NewString(),
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.AccountID, "CONFIRM", "escrow", entry.ResourceID, "", "10.0.0.1", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorAndHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	ctx := context.Background()
	tx, err := NewTransactor(mock).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())
	assert.NoError(t, hc.Ping(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

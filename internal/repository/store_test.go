package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresStore_Atomically(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	t.Run("commits under the advisory lock", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
			WithArgs("account:u1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO ledger_entries`).
			WithArgs(sqlmock.AnyArg(), "u1", "credit", "40000", "salary:u1:2026-10-13", "", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.Atomically(ctx, AccountLockKey("u1"), func(repos Repositories) error {
			return repos.Ledger().Append(ctx, domain.NewCredit("u1", decimal.NewFromInt(40000), "salary:u1:2026-10-13", at))
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the closure fails", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("insufficient")

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs("approval:x").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.Atomically(ctx, "approval:x", func(Repositories) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure becomes a conflict", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO withdrawal_requests`).
			WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
		mock.ExpectRollback()

		err := store.Atomically(ctx, "account:u1", func(repos Repositories) error {
			return repos.Withdrawals().Create(ctx, &domain.WithdrawalRequest{UserID: "u1", Status: domain.WithdrawalPending})
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure means the store is unavailable", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin().WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")})

		called := false
		err := store.Atomically(ctx, "account:u1", func(Repositories) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.False(t, called)
	})
}

func TestPostgresStore_Now(t *testing.T) {
	store, mock := newMockStore(t)
	serverTime := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT now\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(serverTime))

	got, err := store.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, serverTime, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, ErrDuplicate},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrConflict},
		{"connection failure", &pq.Error{Code: "08006"}, ErrUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, ErrUnavailable},
		{"bad conn", driver.ErrBadConn, ErrUnavailable},
		{"conn done", sql.ErrConnDone, ErrUnavailable},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrUnavailable},
		{"wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), ErrDuplicate},
		{"already classified", ErrConflict, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.in), tt.want)
		})
	}

	assert.NoError(t, classify(nil))

	other := &pq.Error{Code: "42601"}
	assert.Same(t, other, classify(other))
}

func TestSQLDate(t *testing.T) {
	kampala := time.FixedZone("EAT", 3*60*60)
	midnight := time.Date(2026, 10, 13, 0, 0, 0, 0, kampala)

	assert.Equal(t, "2026-10-13", sqlDate(midnight))
	assert.Nil(t, sqlDatePtr(nil))
	assert.Equal(t, "2026-10-13", sqlDatePtr(&midnight))
}

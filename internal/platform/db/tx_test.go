package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolTransactor_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE work_schedule_detail").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewTransactor(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		_, err := Conn(ctx, mock).Exec(ctx, "UPDATE work_schedule_detail SET is_booked = TRUE")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolTransactor_RollbackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTransactor(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolTransactor_NestedReusesOuter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tr := NewTransactor(mock)
	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		outer := TxFromContext(ctx)
		return tr.WithinTx(ctx, func(inner context.Context) error {
			assert.Equal(t, outer, TxFromContext(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_FallsBackToQuerier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assert.Equal(t, Querier(mock), Conn(context.Background(), mock))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "medical_ticket_visit_id_key"}
	wrapped := fmt.Errorf("insert: %w", pgErr)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "medical_ticket_visit_id_key"))
	assert.False(t, IsUniqueViolation(wrapped, "other_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("x"), ""))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("x")))
}

func TestIsRejectedValue(t *testing.T) {
	assert.True(t, IsRejectedValue(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514", ConstraintName: "bill_total_check"})))
	assert.True(t, IsRejectedValue(&pgconn.PgError{Code: "22003"}))
	assert.False(t, IsRejectedValue(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRejectedValue(errors.New("x")))
}

package visit

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var visitColumns = []string{"id", "patient_id", "doctor_id", "appointment_id", "work_schedule_detail_id",
	"visit_type", "visit_status", "visit_date", "created_at", "updated_at"}

func TestRepoPG_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepo(mock)
	at := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	slot := "s3"
	mock.ExpectQuery("SELECT (.+) FROM visit WHERE id").WithArgs("v1").
		WillReturnRows(pgxmock.NewRows(visitColumns).
			AddRow("v1", "p1", "d1", (*string)(nil), &slot, TypeWalkIn, StatusCheckedIn, at, at, at))

	v, err := repo.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, TypeWalkIn, v.VisitType)
	assert.Nil(t, v.AppointmentID)
	assert.Equal(t, "s3", *v.WorkScheduleDetailID)

	mock.ExpectQuery("SELECT (.+) FROM visit WHERE id").WithArgs("v9").WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByID(context.Background(), "v9")
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_TransitionStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepo(mock)
	mock.ExpectExec("UPDATE visit SET visit_status").WithArgs("v1", StatusCheckedIn, StatusDoing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.TransitionStatus(context.Background(), "v1", StatusCheckedIn, StatusDoing)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

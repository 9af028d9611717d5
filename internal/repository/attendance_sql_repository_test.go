package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
)

func newAttendanceSQLRepoMock(t *testing.T) (*AttendanceSQLRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return NewAttendanceSQLRepository(sqlxDB), mock, cleanup
}

func TestAttendanceSQLRepositoryAlreadyMarked(t *testing.T) {
	repo, mock, cleanup := newAttendanceSQLRepoMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`SELECT 1 FROM attendance_records WHERE student_id = $1 AND date = $2 LIMIT 1`)
	mock.ExpectQuery(query).WithArgs("10000001", "2024-01-01").WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(query).WithArgs("10000001", "2024-01-01").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	marked, err := repo.AlreadyMarked(context.Background(), "10000001", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, marked)

	marked, err = repo.AlreadyMarked(context.Background(), "10000001", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, marked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSQLRepositoryAppend(t *testing.T) {
	repo, mock, cleanup := newAttendanceSQLRepoMock(t)
	defer cleanup()

	record := sampleRecord("10000001", models.AttendanceMethodFace)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO attendance_records (student_id, name, course, email, method, date, time)`)).
		WithArgs(record.StudentID, record.Name, record.Course, record.Email, record.Method, record.Date, record.Time).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Append(context.Background(), record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSQLRepositoryList(t *testing.T) {
	repo, mock, cleanup := newAttendanceSQLRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"student_id", "name", "course", "email", "method", "date", "time"}).
		AddRow("10000001", "Ada", "CS", "ada@example.com", "QR", "2024-01-01", "09:00:00")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT student_id, name, course, email, method, date, time FROM attendance_records WHERE 1=1 AND date = $1 AND method = $2 ORDER BY id ASC`)).
		WithArgs("2024-01-01", models.AttendanceMethodQR).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.AttendanceFilter{Date: "2024-01-01", Method: models.AttendanceMethodQR})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceMethodQR, records[0].Method)
	assert.Equal(t, "Ada", records[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSQLRepositoryEnsureSchema(t *testing.T) {
	repo, mock, cleanup := newAttendanceSQLRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS attendance_records")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

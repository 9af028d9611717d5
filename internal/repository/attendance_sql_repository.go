package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-attendance/internal/models"
)

const attendanceSchema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id BIGSERIAL PRIMARY KEY,
	student_id VARCHAR(8) NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	course TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	method VARCHAR(8) NOT NULL,
	date VARCHAR(10) NOT NULL,
	time VARCHAR(8) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_attendance_records_student_date ON attendance_records (student_id, date)`

// AttendanceSQLRepository keeps the ledger in PostgreSQL. Like the CSV
// ledger it has no uniqueness constraint on (student_id, date).
type AttendanceSQLRepository struct {
	db *sqlx.DB
}

// NewAttendanceSQLRepository constructs the repository.
func NewAttendanceSQLRepository(db *sqlx.DB) *AttendanceSQLRepository {
	return &AttendanceSQLRepository{db: db}
}

// EnsureSchema creates the ledger table when missing.
func (r *AttendanceSQLRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, attendanceSchema); err != nil {
		return fmt.Errorf("ensure attendance schema: %w", err)
	}
	return nil
}

// AlreadyMarked reports whether a record exists for studentID on date.
func (r *AttendanceSQLRepository) AlreadyMarked(ctx context.Context, studentID, date string) (bool, error) {
	var found int
	err := r.db.GetContext(ctx, &found, `SELECT 1 FROM attendance_records WHERE student_id = $1 AND date = $2 LIMIT 1`, studentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

// Append inserts record.
func (r *AttendanceSQLRepository) Append(ctx context.Context, record models.AttendanceRecord) error {
	const query = `INSERT INTO attendance_records (student_id, name, course, email, method, date, time) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		record.StudentID, record.Name, record.Course, record.Email, record.Method, record.Date, record.Time,
	); err != nil {
		return fmt.Errorf("append attendance: %w", err)
	}
	return nil
}

// List returns matching records in insertion order.
func (r *AttendanceSQLRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT student_id, name, course, email, method, date, time FROM attendance_records WHERE 1=1`)

	args := []interface{}{}
	if filter.Date != "" {
		args = append(args, filter.Date)
		fmt.Fprintf(&query, " AND date = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		fmt.Fprintf(&query, " AND student_id = $%d", len(args))
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		fmt.Fprintf(&query, " AND method = $%d", len(args))
	}
	query.WriteString(" ORDER BY id ASC")

	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

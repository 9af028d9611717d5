package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/smart-attendance/internal/models"
)

// AttendanceColumns is the header written to new ledger files.
var AttendanceColumns = []string{"student_id", "name", "course", "email", "method", "date", "time"}

// legacyMethodColumns is the positional layout of headerless ledgers.
var legacyMethodColumns = []string{"student_id", "method", "date", "time"}

// ledgerLayout describes the column order of an existing ledger file.
type ledgerLayout struct {
	columns   []string
	index     map[string]int
	headerRow bool
}

func detectLedgerLayout(first []string) ledgerLayout {
	if first == nil {
		return ledgerLayout{columns: AttendanceColumns, index: columnIndex(AttendanceColumns), headerRow: true}
	}
	if strings.EqualFold(strings.TrimSpace(first[0]), "student_id") {
		columns := make([]string, len(first))
		for i, name := range first {
			columns[i] = strings.ToLower(strings.TrimSpace(name))
		}
		return ledgerLayout{columns: columns, index: columnIndex(columns), headerRow: true}
	}
	return ledgerLayout{columns: legacyMethodColumns, index: columnIndex(legacyMethodColumns)}
}

func (l ledgerLayout) decode(row []string) models.AttendanceRecord {
	return models.AttendanceRecord{
		StudentID: field(row, l.index, "student_id"),
		Name:      field(row, l.index, "name"),
		Course:    field(row, l.index, "course"),
		Email:     field(row, l.index, "email"),
		Method:    models.AttendanceMethod(strings.ToUpper(field(row, l.index, "method"))),
		Date:      field(row, l.index, "date"),
		Time:      field(row, l.index, "time"),
	}
}

func (l ledgerLayout) encode(record models.AttendanceRecord) []string {
	row := make([]string, len(l.columns))
	for i, column := range l.columns {
		switch column {
		case "student_id":
			row[i] = record.StudentID
		case "name":
			row[i] = record.Name
		case "course":
			row[i] = record.Course
		case "email":
			row[i] = record.Email
		case "method":
			row[i] = string(record.Method)
		case "date":
			row[i] = record.Date
		case "time":
			row[i] = record.Time
		}
	}
	return row
}

// AttendanceRepository is the append-only CSV attendance ledger.
type AttendanceRepository struct {
	path string
	mu   sync.Mutex
}

// NewAttendanceRepository constructs a ledger over path. The file and its
// header are created on the first append.
func NewAttendanceRepository(path string) *AttendanceRepository {
	return &AttendanceRepository{path: path}
}

// AlreadyMarked reports whether any record exists for studentID on date.
// An absent ledger has no records.
func (r *AttendanceRepository) AlreadyMarked(ctx context.Context, studentID, date string) (bool, error) {
	records, err := r.List(ctx, models.AttendanceFilter{StudentID: studentID, Date: date})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// Append writes record at the end of the ledger using the file's own column
// layout. It does not check for an existing record.
func (r *AttendanceRepository) Append(ctx context.Context, record models.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	first, err := firstCSVRow(r.path)
	if err != nil {
		return err
	}
	layout := detectLedgerLayout(first)
	var header []string
	if layout.headerRow {
		header = layout.columns
	}
	if err := appendCSV(r.path, header, layout.encode(record)); err != nil {
		return fmt.Errorf("append attendance: %w", err)
	}
	return nil
}

// List returns matching records in file order.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	r.mu.Lock()
	rows, err := readCSV(r.path)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.AttendanceRecord{}, nil
	}

	layout := detectLedgerLayout(rows[0])
	body := rows
	if layout.headerRow {
		body = rows[1:]
	}

	records := make([]models.AttendanceRecord, 0, len(body))
	for _, row := range body {
		record := layout.decode(row)
		if record.StudentID == "" {
			continue
		}
		if filter.Matches(record) {
			records = append(records, record)
		}
	}
	return records, nil
}

package models

import "time"

// AttendanceMethod names how an attendance mark was produced.
type AttendanceMethod string

const (
	AttendanceMethodFace AttendanceMethod = "FACE"
	AttendanceMethodQR   AttendanceMethod = "QR"
)

// Valid returns true when the method is a supported value.
func (m AttendanceMethod) Valid() bool {
	switch m {
	case AttendanceMethodFace, AttendanceMethodQR:
		return true
	default:
		return false
	}
}

const (
	// DateLayout formats the ledger date column.
	DateLayout = "2006-01-02"
	// TimeLayout formats the ledger time column.
	TimeLayout = "15:04:05"
)

// AttendanceRecord is one appended ledger row.
type AttendanceRecord struct {
	StudentID string           `json:"student_id" db:"student_id"`
	Name      string           `json:"name" db:"name"`
	Course    string           `json:"course" db:"course"`
	Email     string           `json:"email" db:"email"`
	Method    AttendanceMethod `json:"method" db:"method"`
	Date      string           `json:"date" db:"date"`
	Time      string           `json:"time" db:"time"`
}

// NewAttendanceRecord stamps a record for student at the given instant.
func NewAttendanceRecord(student Student, method AttendanceMethod, at time.Time) AttendanceRecord {
	return AttendanceRecord{
		StudentID: student.ID,
		Name:      student.Name,
		Course:    student.Course,
		Email:     student.Email,
		Method:    method,
		Date:      at.Format(DateLayout),
		Time:      at.Format(TimeLayout),
	}
}

// AttendanceFilter scopes ledger listing.
type AttendanceFilter struct {
	Date      string
	StudentID string
	Method    AttendanceMethod
}

// Matches reports whether record satisfies every non-empty filter field.
func (f AttendanceFilter) Matches(record AttendanceRecord) bool {
	if f.Date != "" && record.Date != f.Date {
		return false
	}
	if f.StudentID != "" && record.StudentID != f.StudentID {
		return false
	}
	if f.Method != "" && record.Method != f.Method {
		return false
	}
	return true
}

package models

// StudentIDLength is the fixed number of digits in a student identifier.
const StudentIDLength = 8

// Student is a registered learner. Course and Email are empty for rows
// written by the older two-column registration flow.
type Student struct {
	ID     string `json:"student_id" db:"student_id"`
	Name   string `json:"name" db:"name"`
	Course string `json:"course" db:"course"`
	Email  string `json:"email" db:"email"`
}

// StudentDirectory is an id-keyed snapshot of the student store.
type StudentDirectory map[string]Student

// Lookup returns the student registered under id.
func (d StudentDirectory) Lookup(id string) (Student, bool) {
	s, ok := d[id]
	return s, ok
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// StudentFilter scopes student listing.
type StudentFilter struct {
	Search   string
	Course   string
	Page     int
	PageSize int
}

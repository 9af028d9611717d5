package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/smart-attendance/internal/models"
)

var studentColumns = []string{"student_id", "name", "course", "email"}

// StudentRepository stores registered students in a CSV file.
type StudentRepository struct {
	path string
	mu   sync.Mutex
}

// NewStudentRepository constructs the repository over path. The file is
// created on the first registration.
func NewStudentRepository(path string) *StudentRepository {
	return &StudentRepository{path: path}
}

// Path returns the backing file.
func (r *StudentRepository) Path() string {
	return r.path
}

// List returns students in file order. Rows without an id or name are skipped.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	table, err := r.load()
	return table.students, err
}

// FindByID returns the student registered under id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	students, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].ID == id {
			return &students[i], nil
		}
	}
	return nil, ErrNotFound
}

// Exists reports whether id is already registered.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Directory returns an id-keyed snapshot of the store.
func (r *StudentRepository) Directory(ctx context.Context) (models.StudentDirectory, error) {
	students, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	dir := make(models.StudentDirectory, len(students))
	for _, s := range students {
		dir[s.ID] = s
	}
	return dir, nil
}

// Create appends student. A file still carrying the two-column header is
// upgraded to the full header first so course and email are kept.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.load()
	if err != nil {
		return err
	}
	for _, existing := range table.students {
		if existing.ID == student.ID {
			return fmt.Errorf("student %s already registered", student.ID)
		}
	}

	row := studentRow(*student)
	if table.legacy {
		// Rows that List skips are carried over untouched apart from padding.
		rows := append(table.rows, row)
		if err := rewriteCSV(r.path, studentColumns, rows); err != nil {
			return fmt.Errorf("upgrade student store: %w", err)
		}
		return nil
	}
	if err := appendCSV(r.path, studentColumns, row); err != nil {
		return fmt.Errorf("register student: %w", err)
	}
	return nil
}

type studentTable struct {
	students []models.Student
	// rows holds every data row, including unusable ones, in the four
	// column layout.
	rows [][]string
	// legacy marks a store without the course and email columns.
	legacy bool
}

// load parses the file. Rows missing an id or name are kept in rows but not
// in students.
func (r *StudentRepository) load() (studentTable, error) {
	raw, err := readCSV(r.path)
	if err != nil {
		return studentTable{}, err
	}
	if len(raw) == 0 {
		return studentTable{}, nil
	}

	index := columnIndex(studentColumns)
	body := raw
	if strings.EqualFold(strings.TrimSpace(raw[0][0]), "student_id") {
		index = columnIndex(raw[0])
		body = raw[1:]
	}
	_, hasCourse := index["course"]
	_, hasEmail := index["email"]

	table := studentTable{
		students: make([]models.Student, 0, len(body)),
		rows:     make([][]string, 0, len(body)),
		legacy:   !hasCourse || !hasEmail,
	}
	for _, row := range body {
		s := models.Student{
			ID:     field(row, index, "student_id"),
			Name:   field(row, index, "name"),
			Course: field(row, index, "course"),
			Email:  field(row, index, "email"),
		}
		table.rows = append(table.rows, studentRow(s))
		if s.ID == "" || s.Name == "" {
			continue
		}
		table.students = append(table.students, s)
	}
	return table, nil
}

func studentRow(s models.Student) []string {
	return []string{s.ID, s.Name, s.Course, s.Email}
}

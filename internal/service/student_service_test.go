package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
)

type mockStudentRepo struct {
	students []models.Student
	err      error
}

func (m *mockStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.Student(nil), m.students...), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.students {
		if m.students[i].ID == id {
			s := m.students[i]
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStudentRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, err := m.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.students = append(m.students, *student)
	return nil
}

func validRegistration() RegisterStudentRequest {
	return RegisterStudentRequest{StudentID: "10000001", Name: "Ada Lovelace", Course: "Computer Science (Hons)", Email: "ada@example.com"}
}

func TestStudentServiceRegisterThenReadFromStore(t *testing.T) {
	repo := repository.NewStudentRepository(filepath.Join(t.TempDir(), "students.csv"))
	svc := NewStudentService(repo, nil, nil)
	ctx := context.Background()

	req := validRegistration()
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, req.StudentID)
	require.NoError(t, err)
	assert.Equal(t, models.Student{ID: req.StudentID, Name: req.Name, Course: req.Course, Email: req.Email}, *stored)
}

func TestStudentServiceRegisterValidation(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*RegisterStudentRequest)
		message string
	}{
		"short id":      {func(r *RegisterStudentRequest) { r.StudentID = "1234567" }, "student id must be exactly 8 digits"},
		"non digit id":  {func(r *RegisterStudentRequest) { r.StudentID = "1234567a" }, "student id must be exactly 8 digits"},
		"digit in name": {func(r *RegisterStudentRequest) { r.Name = "R2D2" }, "name must be at least 2 characters of letters, spaces or hyphens"},
		"short name":    {func(r *RegisterStudentRequest) { r.Name = "A" }, "name must be at least 2 characters of letters, spaces or hyphens"},
		"hyphens only":  {func(r *RegisterStudentRequest) { r.Name = "--" }, "name must be at least 2 characters of letters, spaces or hyphens"},
		"no letters":    {func(r *RegisterStudentRequest) { r.Name = "- -" }, "name must be at least 2 characters of letters, spaces or hyphens"},
		"bad course":    {func(r *RegisterStudentRequest) { r.Course = "CS/IT" }, "course must be at least 2 characters of letters, digits, spaces, hyphens, ampersands or parentheses"},
		"bad email":     {func(r *RegisterStudentRequest) { r.Email = "ada@" }, "email address is not valid"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &mockStudentRepo{}
			svc := NewStudentService(repo, nil, nil)
			req := validRegistration()
			tc.mutate(&req)

			_, err := svc.Register(context.Background(), req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Empty(t, repo.students)
		})
	}
}

func TestStudentServiceRegisterAcceptsUnicodeNames(t *testing.T) {
	for _, name := range []string{"José García", "Zoë", "Mary-Jane O", "  Li  "} {
		repo := &mockStudentRepo{}
		svc := NewStudentService(repo, nil, nil)
		req := validRegistration()
		req.Name = name

		student, err := svc.Register(context.Background(), req)
		require.NoError(t, err, name)
		assert.Equal(t, strings.TrimSpace(name), student.Name)
	}
}

func TestStudentServiceRegisterDuplicate(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{{ID: "10000001", Name: "Existing"}}}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceListAndGet(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{
		{ID: "10000001", Name: "Ada", Course: "CS"},
		{ID: "10000002", Name: "Grace", Course: "Math"},
		{ID: "20000003", Name: "Alan", Course: "CS"},
	}}
	svc := NewStudentService(repo, nil, nil)
	ctx := context.Background()

	students, pagination, err := svc.List(ctx, models.StudentFilter{Course: "cs", PageSize: 1, Page: 2})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "20000003", students[0].ID)
	assert.Equal(t, 2, pagination.TotalCount)

	students, _, err = svc.List(ctx, models.StudentFilter{Search: "1000"})
	require.NoError(t, err)
	assert.Len(t, students, 2)

	_, err = svc.Get(ctx, "99999999")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	dir, err := svc.Directory(ctx)
	require.NoError(t, err)
	assert.Len(t, dir, 3)
}

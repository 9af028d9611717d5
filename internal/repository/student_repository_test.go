package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
)

func TestStudentRepositoryCreateThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "students.csv")
	repo := NewStudentRepository(path)
	ctx := context.Background()

	students, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, students)

	submitted := models.Student{ID: "10000001", Name: "Ada Lovelace", Course: "Computer Science", Email: "ada@example.com"}
	require.NoError(t, repo.Create(ctx, &submitted))

	found, err := repo.FindByID(ctx, "10000001")
	require.NoError(t, err)
	assert.Equal(t, submitted, *found)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "student_id,name,course,email\n10000001,Ada Lovelace,Computer Science,ada@example.com\n", string(raw))
}

func TestStudentRepositoryRejectsDuplicate(t *testing.T) {
	repo := NewStudentRepository(filepath.Join(t.TempDir(), "students.csv"))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Student{ID: "10000001", Name: "Ada"}))
	err := repo.Create(ctx, &models.Student{ID: "10000001", Name: "Grace"})
	assert.Error(t, err)

	exists, err := repo.Exists(ctx, "10000001")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.FindByID(ctx, "10000009")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStudentRepositoryLegacyTwoColumnStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte("student_id,name\n10000001,Ada\n,Nameless\n10000003,\n"), 0o644))
	repo := NewStudentRepository(path)
	ctx := context.Background()

	students, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, models.Student{ID: "10000001", Name: "Ada"}, students[0])

	require.NoError(t, repo.Create(ctx, &models.Student{ID: "10000002", Name: "Grace Hopper", Course: "Math", Email: "grace@example.com"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "student_id,name,course,email\n10000001,Ada,,\n,Nameless,,\n10000003,,,\n10000002,Grace Hopper,Math,grace@example.com\n", string(raw))

	dir, err := repo.Directory(ctx)
	require.NoError(t, err)
	assert.Len(t, dir, 2)
	grace, ok := dir.Lookup("10000002")
	require.True(t, ok)
	assert.Equal(t, "Math", grace.Course)
}

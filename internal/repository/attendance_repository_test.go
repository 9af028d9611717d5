package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
)

func sampleRecord(id string, method models.AttendanceMethod) models.AttendanceRecord {
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	return models.NewAttendanceRecord(models.Student{ID: id, Name: "Student " + id, Course: "CS", Email: id + "@example.com"}, method, at)
}

func TestAttendanceRepositoryAlreadyMarked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "attendance.csv")
	repo := NewAttendanceRepository(path)
	ctx := context.Background()

	marked, err := repo.AlreadyMarked(ctx, "10000001", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, marked)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, repo.Append(ctx, sampleRecord("10000001", models.AttendanceMethodFace)))

	marked, err = repo.AlreadyMarked(ctx, "10000001", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.AlreadyMarked(ctx, "10000001", "2024-01-02")
	require.NoError(t, err)
	assert.False(t, marked)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"student_id,name,course,email,method,date,time\n10000001,Student 10000001,CS,10000001@example.com,FACE,2024-01-01,09:30:00\n",
		string(raw))
}

func TestAttendanceRepositoryAppendDoesNotDeduplicate(t *testing.T) {
	repo := NewAttendanceRepository(filepath.Join(t.TempDir(), "attendance.csv"))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleRecord("10000002", models.AttendanceMethodFace)))
	require.NoError(t, repo.Append(ctx, sampleRecord("10000002", models.AttendanceMethodQR)))

	records, err := repo.List(ctx, models.AttendanceFilter{StudentID: "10000002"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.AttendanceMethodFace, records[0].Method)
	assert.Equal(t, models.AttendanceMethodQR, records[1].Method)
}

func TestAttendanceRepositoryLegacyLayouts(t *testing.T) {
	t.Run("six column header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "attendance.csv")
		require.NoError(t, os.WriteFile(path, []byte("student_id,name,course,email,date,time\n10000001,Ada,CS,ada@example.com,2024-01-01,08:00:00\n"), 0o644))
		repo := NewAttendanceRepository(path)
		ctx := context.Background()

		marked, err := repo.AlreadyMarked(ctx, "10000001", "2024-01-01")
		require.NoError(t, err)
		assert.True(t, marked)

		require.NoError(t, repo.Append(ctx, sampleRecord("10000002", models.AttendanceMethodQR)))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t,
			"student_id,name,course,email,date,time\n10000001,Ada,CS,ada@example.com,2024-01-01,08:00:00\n10000002,Student 10000002,CS,10000002@example.com,2024-01-01,09:30:00\n",
			string(raw))
	})

	t.Run("headerless four column", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "attendance.csv")
		require.NoError(t, os.WriteFile(path, []byte("10000001,QR,2024-01-01,08:00:00\n"), 0o644))
		repo := NewAttendanceRepository(path)
		ctx := context.Background()

		records, err := repo.List(ctx, models.AttendanceFilter{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, models.AttendanceRecord{StudentID: "10000001", Method: models.AttendanceMethodQR, Date: "2024-01-01", Time: "08:00:00"}, records[0])

		require.NoError(t, repo.Append(ctx, sampleRecord("10000002", models.AttendanceMethodFace)))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "10000001,QR,2024-01-01,08:00:00\n10000002,FACE,2024-01-01,09:30:00\n", string(raw))
	})
}

func TestAttendanceRepositoryListFilters(t *testing.T) {
	repo := NewAttendanceRepository(filepath.Join(t.TempDir(), "attendance.csv"))
	ctx := context.Background()

	first := sampleRecord("10000001", models.AttendanceMethodFace)
	second := sampleRecord("10000002", models.AttendanceMethodQR)
	second.Date = "2024-01-02"
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	all, err := repo.List(ctx, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byDate, err := repo.List(ctx, models.AttendanceFilter{Date: "2024-01-02"})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "10000002", byDate[0].StudentID)

	byMethod, err := repo.List(ctx, models.AttendanceFilter{Method: models.AttendanceMethodFace})
	require.NoError(t, err)
	require.Len(t, byMethod, 1)
	assert.Equal(t, first, byMethod[0])
}

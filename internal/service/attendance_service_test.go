package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
	"github.com/noah-isme/smart-attendance/pkg/qrcodec"
)

func newTestAttendanceService(t *testing.T) (*AttendanceService, *repository.StudentRepository) {
	t.Helper()
	dir := t.TempDir()
	students := repository.NewStudentRepository(filepath.Join(dir, "students.csv"))
	require.NoError(t, students.Create(context.Background(), &models.Student{ID: "10000001", Name: "Ada", Course: "CS", Email: "ada@example.com"}))
	svc := NewAttendanceService(repository.NewAttendanceRepository(filepath.Join(dir, "attendance.csv")), students, nil, NewMetricsService(), nil)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC) }
	return svc, students
}

func TestAttendanceServiceAlreadyMarkedAfterMark(t *testing.T) {
	svc, _ := newTestAttendanceService(t)
	ctx := context.Background()

	marked, err := svc.AlreadyMarked(ctx, "10000001", svc.Today())
	require.NoError(t, err)
	assert.False(t, marked)

	record, err := svc.Mark(ctx, models.Student{ID: "10000001", Name: "Ada"}, models.AttendanceMethodFace)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", record.Date)
	assert.Equal(t, "10:15:00", record.Time)

	marked, err = svc.AlreadyMarked(ctx, "10000001", svc.Today())
	require.NoError(t, err)
	assert.True(t, marked)

	_, err = svc.Mark(ctx, models.Student{ID: "10000001"}, models.AttendanceMethod("WAVE"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceScanQRImage(t *testing.T) {
	svc, _ := newTestAttendanceService(t)
	ctx := context.Background()

	code, err := qrcodec.New().Encode("10000001")
	require.NoError(t, err)

	result, err := svc.ScanQRImage(ctx, bytes.NewReader(code))
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeMarked, result.Outcome)
	require.NotNil(t, result.Record)
	assert.Equal(t, models.AttendanceMethodQR, result.Record.Method)
	assert.Equal(t, "Ada", result.Record.Name)

	result, err = svc.ScanQRImage(ctx, bytes.NewReader(code))
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeAlreadyMarked, result.Outcome)

	records, err := svc.List(ctx, models.AttendanceFilter{StudentID: "10000001"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().Marks)
}

func TestAttendanceServiceScanQRImageUnknownAndBlank(t *testing.T) {
	svc, _ := newTestAttendanceService(t)
	ctx := context.Background()

	code, err := qrcodec.New().Encode("99999999")
	require.NoError(t, err)
	result, err := svc.ScanQRImage(ctx, bytes.NewReader(code))
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeUnknown, result.Outcome)
	assert.Nil(t, result.Record)

	blank := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, blank))
	_, err = svc.ScanQRImage(ctx, buf)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoCode.Code, appErrors.FromError(err).Code)

	_, err = svc.ScanQRImage(ctx, bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

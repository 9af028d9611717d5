package service

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/vision"
)

// frameResult is what a processor did with one frame.
type frameResult struct {
	annotations []vision.Annotation
	detections  int
	done        bool
}

type frameProcessor interface {
	Process(ctx context.Context, frame vision.Frame, session *Session) (frameResult, error)
}

type attendanceLedger interface {
	AlreadyMarked(ctx context.Context, studentID, date string) (bool, error)
	MarkAt(ctx context.Context, student models.Student, method models.AttendanceMethod, at time.Time) (*models.AttendanceRecord, error)
}

// attendanceMarker marks each student at most once per session and day. The
// ledger check and the append are separate steps, so two sessions on the same
// ledger can both append for the same student and day.
type attendanceMarker struct {
	ledger   attendanceLedger
	students models.StudentDirectory
	method   models.AttendanceMethod
	now      func() time.Time
	seen     map[string]struct{}
	metrics  *MetricsService
	logger   *zap.Logger
}

func newAttendanceMarker(ledger attendanceLedger, students models.StudentDirectory, method models.AttendanceMethod, now func() time.Time, metrics *MetricsService, logger *zap.Logger) *attendanceMarker {
	return &attendanceMarker{
		ledger:   ledger,
		students: students,
		method:   method,
		now:      now,
		seen:     make(map[string]struct{}),
		metrics:  metrics,
		logger:   logger,
	}
}

func (m *attendanceMarker) mark(ctx context.Context, id string, session *Session) (models.MarkOutcome, models.Student, error) {
	student, ok := m.students.Lookup(id)
	if !ok {
		m.logger.Warn("recognised id is not in the student store", zap.String("student_id", id), zap.String("method", string(m.method)))
		session.recordUnknown()
		m.metrics.RecordOutcome(m.method, models.MarkOutcomeUnknown)
		return models.MarkOutcomeUnknown, models.Student{ID: id}, nil
	}

	now := m.now()
	date := now.Format(models.DateLayout)
	key := date + "|" + id
	if _, done := m.seen[key]; done {
		return models.MarkOutcomeAlreadyMarked, student, nil
	}

	already, err := m.ledger.AlreadyMarked(ctx, id, date)
	if err != nil {
		return "", student, err
	}
	if already {
		m.seen[key] = struct{}{}
		m.metrics.RecordOutcome(m.method, models.MarkOutcomeAlreadyMarked)
		return models.MarkOutcomeAlreadyMarked, student, nil
	}

	if _, err := m.ledger.MarkAt(ctx, student, m.method, now); err != nil {
		return "", student, err
	}
	m.seen[key] = struct{}{}
	session.recordMarked(id)
	m.metrics.RecordOutcome(m.method, models.MarkOutcomeMarked)
	return models.MarkOutcomeMarked, student, nil
}

func outcomeAnnotation(outcome models.MarkOutcome, student models.Student) vision.Annotation {
	label := student.ID
	if student.Name != "" {
		label = fmt.Sprintf("%s (%s)", student.Name, student.ID)
	}
	switch outcome {
	case models.MarkOutcomeMarked:
		return vision.Annotation{Text: label + " - Marked", Color: vision.ColorMarked}
	case models.MarkOutcomeAlreadyMarked:
		return vision.Annotation{Text: label + " - Already Marked", Color: vision.ColorAlready}
	default:
		return vision.Annotation{Text: "Unknown ID: " + student.ID, Color: vision.ColorUnknown}
	}
}

func statusAnnotation(session *Session) vision.Annotation {
	return vision.Annotation{
		Text:  fmt.Sprintf("Marked: %d  (press q to quit)", session.markedCount()),
		Color: vision.ColorInfo,
	}
}

// faceProcessor recognises faces against a classifier loaded before the session started.
type faceProcessor struct {
	detector   vision.FaceDetector
	classifier vision.Classifier
	labels     *models.LabelMap
	threshold  float64
	marker     *attendanceMarker
	logger     *zap.Logger
}

func (p *faceProcessor) Process(ctx context.Context, frame vision.Frame, session *Session) (frameResult, error) {
	faces, err := p.detector.DetectFaces(frame)
	if err != nil {
		return frameResult{}, fmt.Errorf("detect faces: %w", err)
	}

	result := frameResult{detections: len(faces)}
	for _, face := range faces {
		prediction, err := p.classifier.Predict(face.Crop)
		if err != nil {
			return result, fmt.Errorf("predict face: %w", err)
		}
		if prediction.Confidence >= p.threshold {
			result.annotations = append(result.annotations, vision.Annotation{Box: face.Bounds, Text: "Unknown", Color: vision.ColorUnknown})
			continue
		}

		id, ok := p.labels.StudentID(prediction.Label)
		if !ok {
			p.logger.Warn("classifier returned a label missing from the label map", zap.Int("label", prediction.Label))
			session.recordUnknown()
			result.annotations = append(result.annotations, vision.Annotation{Box: face.Bounds, Text: "Unknown", Color: vision.ColorUnknown})
			continue
		}

		outcome, student, err := p.marker.mark(ctx, id, session)
		if err != nil {
			return result, err
		}
		annotation := outcomeAnnotation(outcome, student)
		annotation.Box = face.Bounds
		result.annotations = append(result.annotations, annotation)
	}
	result.annotations = append(result.annotations, statusAnnotation(session))
	return result, nil
}

// qrProcessor treats the decoded payload of a visible QR code as the student id.
type qrProcessor struct {
	decoder vision.QRDecoder
	marker  *attendanceMarker
}

func (p *qrProcessor) Process(ctx context.Context, frame vision.Frame, session *Session) (frameResult, error) {
	code, err := p.decoder.DecodeQR(frame)
	if err != nil {
		return frameResult{}, fmt.Errorf("decode qr: %w", err)
	}
	if code == nil || strings.TrimSpace(code.Payload) == "" {
		return frameResult{annotations: []vision.Annotation{statusAnnotation(session)}}, nil
	}

	id := strings.TrimSpace(code.Payload)
	outcome, student, err := p.marker.mark(ctx, id, session)
	if err != nil {
		return frameResult{detections: 1}, err
	}
	annotation := outcomeAnnotation(outcome, student)
	annotation.Polygon = code.Corners
	return frameResult{
		detections:  1,
		annotations: []vision.Annotation{annotation, statusAnnotation(session)},
	}, nil
}

type sampleWriter interface {
	NextIndex(studentID string) (int, error)
	Save(ctx context.Context, studentID string, index int, sample *image.Gray) (string, error)
}

// captureProcessor stores every detected face crop as a new sample until the cap is reached.
type captureProcessor struct {
	detector  vision.FaceDetector
	samples   sampleWriter
	studentID string
	limit     int
	next      int
	saved     int
}

func (p *captureProcessor) Process(ctx context.Context, frame vision.Frame, session *Session) (frameResult, error) {
	faces, err := p.detector.DetectFaces(frame)
	if err != nil {
		return frameResult{}, fmt.Errorf("detect faces: %w", err)
	}

	result := frameResult{detections: len(faces)}
	for _, face := range faces {
		if p.saved >= p.limit {
			break
		}
		if _, err := p.samples.Save(ctx, p.studentID, p.next, face.Crop); err != nil {
			return result, err
		}
		p.next++
		p.saved++
		session.recordCaptured()
		result.annotations = append(result.annotations, vision.Annotation{Box: face.Bounds, Color: vision.ColorMarked})
	}
	result.annotations = append(result.annotations, vision.Annotation{
		Text:  fmt.Sprintf("Captured: %d/%d", p.saved, p.limit),
		Color: vision.ColorInfo,
	})
	result.done = p.saved >= p.limit
	return result, nil
}

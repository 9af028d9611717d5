package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	appErrors "github.com/noah-isme/smart-attendance/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

// RegisterStudentRequest holds payload for registering students.
type RegisterStudentRequest struct {
	StudentID string `json:"student_id" validate:"required,studentid"`
	Name      string `json:"name" validate:"required,personname"`
	Course    string `json:"course" validate:"required,coursename"`
	Email     string `json:"email" validate:"required,email"`
}

var (
	studentIDPattern  = regexp.MustCompile(`^[0-9]{8}$`)
	courseNamePattern = regexp.MustCompile(`^[A-Za-z0-9 \-&()]{2,}$`)
)

var registrationMessages = map[string]string{
	"StudentID": "student id must be exactly 8 digits",
	"Name":      "name must be at least 2 characters of letters, spaces or hyphens",
	"Course":    "course must be at least 2 characters of letters, digits, spaces, hyphens, ampersands or parentheses",
	"Email":     "email address is not valid",
}

// RegisterStudentValidations adds the student field rules to validate.
func RegisterStudentValidations(validate *validator.Validate) {
	_ = validate.RegisterValidation("studentid", func(fl validator.FieldLevel) bool {
		return ValidStudentID(fl.Field().String())
	})
	_ = validate.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return ValidPersonName(fl.Field().String())
	})
	_ = validate.RegisterValidation("coursename", func(fl validator.FieldLevel) bool {
		return courseNamePattern.MatchString(fl.Field().String())
	})
}

// ValidPersonName reports whether name is at least two characters of
// letters, spaces and hyphens with at least one letter. Any Unicode letter
// counts.
func ValidPersonName(name string) bool {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	letters := 0
	for _, r := range name {
		switch {
		case r == ' ' || r == '-':
		case unicode.IsLetter(r):
			letters++
		default:
			return false
		}
	}
	return letters > 0
}

// ValidStudentID reports whether id is an 8 digit student identifier.
func ValidStudentID(id string) bool {
	return studentIDPattern.MatchString(id)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	RegisterStudentValidations(validate)
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students in registration order with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	matched := make([]models.Student, 0, len(students))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, student := range students {
		if filter.Course != "" && !strings.EqualFold(student.Course, filter.Course) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(student.Name), search) && !strings.HasPrefix(student.ID, search) {
			continue
		}
		matched = append(matched, student)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(matched)}
	return matched[start:end], pagination, nil
}

// Get returns the student registered under id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Directory returns an id-keyed snapshot of every registered student.
func (s *StudentService) Directory(ctx context.Context) (models.StudentDirectory, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student store")
	}
	dir := make(models.StudentDirectory, len(students))
	for _, student := range students {
		dir[student.ID] = student
	}
	return dir, nil
}

// Register validates and stores a new student. Students are immutable once registered.
func (s *StudentService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Name = strings.TrimSpace(req.Name)
	req.Course = strings.TrimSpace(req.Course)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, registrationMessage(err))
	}

	exists, err := s.repo.Exists(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already registered")
	}

	student := &models.Student{
		ID:     req.StudentID,
		Name:   req.Name,
		Course: req.Course,
		Email:  req.Email,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID))
	return student, nil
}

func registrationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := registrationMessages[verrs[0].StructField()]; ok {
			return msg
		}
	}
	return "invalid student payload"
}

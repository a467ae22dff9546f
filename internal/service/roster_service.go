package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/starboard-api/internal/models"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
)

type rosterStudentRepository interface {
	Get(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	Create(ctx context.Context, student *models.Student) error
}

type rosterClassRepository interface {
	Get(ctx context.Context, id string) (*models.ClassTeam, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassTeam, error)
	Create(ctx context.Context, class *models.ClassTeam) error
	StudentCount(ctx context.Context, classID string) (int, error)
}

// CreateStudentRequest holds payload for enrolling a student.
type CreateStudentRequest struct {
	FullName string `json:"full_name" validate:"required"`
	ClassID  string `json:"class_id" validate:"required"`
}

// CreateClassRequest holds payload for registering a class team.
type CreateClassRequest struct {
	Name   string `json:"name" validate:"required"`
	League string `json:"league" validate:"required"`
}

// RosterService manages the student and class team rosters.
type RosterService struct {
	students  rosterStudentRepository
	classes   rosterClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(students rosterStudentRepository, classes rosterClassRepository, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{students: students, classes: classes, validator: validate, logger: logger}
}

// ListStudents returns students and pagination metadata.
func (s *RosterService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// GetStudent returns one student.
func (s *RosterService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// CreateStudent enrolls a student into a class team.
func (s *RosterService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.classes.Get(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	student := &models.Student{
		ID:       uuid.NewString(),
		FullName: req.FullName,
		ClassID:  req.ClassID,
		Active:   true,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student enrolled", zap.String("student_id", student.ID), zap.String("class_id", student.ClassID))
	return student, nil
}

// ListClasses returns class teams matching the filter.
func (s *RosterService) ListClasses(ctx context.Context, filter models.ClassFilter) ([]models.ClassTeam, error) {
	classes, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// GetClass returns one class team.
func (s *RosterService) GetClass(ctx context.Context, id string) (*models.ClassTeam, error) {
	class, err := s.classes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// CreateClass registers a new class team.
func (s *RosterService) CreateClass(ctx context.Context, req CreateClassRequest) (*models.ClassTeam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.ClassTeam{
		ID:     uuid.NewString(),
		Name:   req.Name,
		League: req.League,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class registered", zap.String("class_id", class.ID), zap.String("league", class.League))
	return class, nil
}

// ClassRoster returns the class with its current roster size.
func (s *RosterService) ClassRoster(ctx context.Context, id string) (*models.ClassTeam, int, error) {
	class, err := s.GetClass(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.classes.StudentCount(ctx, id)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	return class, count, nil
}

package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/models"
	"github.com/noah-isme/elimu-api/internal/observability"
	"github.com/noah-isme/elimu-api/internal/repository"
	"github.com/noah-isme/elimu-api/pkg/export"
)

var (
	// ErrUnauthenticated indicates the caller identity was not resolved.
	ErrUnauthenticated = errors.New("instructor identity missing")
	// ErrInvalidStudentID indicates the student identifier is malformed.
	ErrInvalidStudentID = errors.New("invalid student id")
	// ErrNoCourses indicates the instructor owns no courses.
	ErrNoCourses = errors.New("instructor owns no courses")
	// ErrStudentNotFound indicates no user exists for the identifier.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentNotEnrolled indicates the user exists but has no enrollment in the instructor's courses.
	ErrStudentNotEnrolled = errors.New("student not enrolled in instructor courses")
)

// RosterExportHeaders is the column order of the roster CSV.
var RosterExportHeaders = []string{"Name", "Email", "Courses", "Progress", "Status", "Last Activity"}

// RosterConfig tunes paging of the roster list.
type RosterConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// RosterService aggregates the students enrolled in an instructor's courses.
type RosterService interface {
	List(ctx context.Context, instructorID string, req dto.RosterListRequest) (dto.RosterListResponse, error)
	Detail(ctx context.Context, instructorID, studentID string) (dto.StudentDetailResponse, error)
	Export(ctx context.Context, instructorID string, req dto.RosterExportRequest) ([]byte, error)
}

type rosterService struct {
	courses     repository.CourseRepository
	users       repository.UserRepository
	enrollments repository.EnrollmentRepository
	cfg         RosterConfig
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewRosterService constructs the roster service.
func NewRosterService(courses repository.CourseRepository, users repository.UserRepository, enrollments repository.EnrollmentRepository, cfg RosterConfig, logger zerolog.Logger) RosterService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = 25
	}

	return &rosterService{
		courses:     courses,
		users:       users,
		enrollments: enrollments,
		cfg:         cfg,
		logger:      logger.With().Str("component", "roster_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/elimu-api/internal/service/roster"),
	}
}

func (s *rosterService) List(ctx context.Context, instructorID string, req dto.RosterListRequest) (dto.RosterListResponse, error) {
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return dto.RosterListResponse{}, ErrUnauthenticated
	}

	req = s.normalizeListRequest(req)
	ctx, span := s.tracer.Start(ctx, "roster.list", trace.WithAttributes(
		attribute.String("roster.instructor_id", instructorID),
		attribute.Int("roster.page", req.Page),
		attribute.Int("roster.limit", req.Limit),
		attribute.Bool("roster.search", req.Search != ""),
		attribute.String("roster.status", req.Status),
	))
	defer span.End()

	response := dto.RosterListResponse{
		Items:      []dto.StudentRow{},
		Pagination: dto.RosterPagination{Page: req.Page, Limit: req.Limit},
	}

	courseIDs, err := s.courses.ListIDsByInstructor(ctx, instructorID)
	if err != nil {
		return dto.RosterListResponse{}, s.fail(span, err, "list_courses_failed")
	}
	if len(courseIDs) == 0 {
		observability.RosterStudents().WithLabelValues("list").Observe(0)
		return response, nil
	}

	rows, err := s.enrollments.ListRosterRows(ctx, repository.RosterFilter{
		CourseIDs: courseIDs,
		Status:    req.Status,
		Search:    req.Search,
	})
	if err != nil {
		return dto.RosterListResponse{}, s.fail(span, err, "list_rows_failed")
	}

	students := foldRoster(rows)
	total := len(students)

	response.Pagination.Total = int64(total)
	response.Pagination.Pages = int(math.Ceil(float64(total) / float64(req.Limit)))
	response.Items = paginate(students, req.Page, req.Limit)

	span.SetAttributes(
		attribute.Int("roster.courses", len(courseIDs)),
		attribute.Int("roster.enrollments", len(rows)),
		attribute.Int("roster.students", total),
	)
	observability.RosterStudents().WithLabelValues("list").Observe(float64(total))

	return response, nil
}

func (s *rosterService) Detail(ctx context.Context, instructorID, studentID string) (dto.StudentDetailResponse, error) {
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return dto.StudentDetailResponse{}, ErrUnauthenticated
	}

	parsed, err := uuid.Parse(strings.TrimSpace(studentID))
	if err != nil {
		return dto.StudentDetailResponse{}, ErrInvalidStudentID
	}
	studentID = parsed.String()

	ctx, span := s.tracer.Start(ctx, "roster.detail", trace.WithAttributes(
		attribute.String("roster.instructor_id", instructorID),
		attribute.String("roster.student_id", studentID),
	))
	defer span.End()

	courseIDs, err := s.courses.ListIDsByInstructor(ctx, instructorID)
	if err != nil {
		return dto.StudentDetailResponse{}, s.fail(span, err, "list_courses_failed")
	}
	if len(courseIDs) == 0 {
		return dto.StudentDetailResponse{}, ErrNoCourses
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentDetailResponse{}, ErrStudentNotFound
		}
		return dto.StudentDetailResponse{}, s.fail(span, err, "find_student_failed")
	}

	enrollments, err := s.enrollments.ListForStudent(ctx, studentID, courseIDs)
	if err != nil {
		return dto.StudentDetailResponse{}, s.fail(span, err, "list_enrollments_failed")
	}
	if len(enrollments) == 0 {
		return dto.StudentDetailResponse{}, ErrStudentNotEnrolled
	}

	return buildStudentDetail(student, enrollments), nil
}

func (s *rosterService) Export(ctx context.Context, instructorID string, req dto.RosterExportRequest) ([]byte, error) {
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return nil, ErrUnauthenticated
	}

	search := strings.TrimSpace(req.Search)
	status := normalizeStatus(req.Status)

	ctx, span := s.tracer.Start(ctx, "roster.export", trace.WithAttributes(
		attribute.String("roster.instructor_id", instructorID),
		attribute.Bool("roster.search", search != ""),
		attribute.String("roster.status", status),
	))
	defer span.End()

	table := export.NewTable(RosterExportHeaders...)

	courseIDs, err := s.courses.ListIDsByInstructor(ctx, instructorID)
	if err != nil {
		return nil, s.fail(span, err, "list_courses_failed")
	}

	if len(courseIDs) > 0 {
		rows, err := s.enrollments.ListRosterRows(ctx, repository.RosterFilter{
			CourseIDs: courseIDs,
			Status:    status,
			Search:    search,
		})
		if err != nil {
			return nil, s.fail(span, err, "list_rows_failed")
		}

		students := foldRoster(rows)
		for _, student := range students {
			if err := table.Append(exportRecord(student)...); err != nil {
				return nil, s.fail(span, err, "render_failed")
			}
		}
		span.SetAttributes(attribute.Int("roster.students", len(students)))
	}

	observability.RosterStudents().WithLabelValues("export").Observe(float64(table.Len()))

	payload, err := table.Bytes()
	if err != nil {
		return nil, s.fail(span, err, "render_failed")
	}

	return payload, nil
}

func (s *rosterService) normalizeListRequest(req dto.RosterListRequest) dto.RosterListRequest {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = s.cfg.DefaultLimit
	}
	if req.Limit > s.cfg.MaxLimit {
		req.Limit = s.cfg.MaxLimit
	}
	req.Search = strings.TrimSpace(req.Search)
	req.Status = normalizeStatus(req.Status)
	return req
}

func (s *rosterService) fail(span trace.Span, err error, status string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	s.logger.Error().Err(err).Str("stage", status).Msg("roster query failed")
	return err
}

// normalizeStatus maps the "all" sentinel and blanks to no filter. Other values
// are matched exactly.
func normalizeStatus(status string) string {
	status = strings.TrimSpace(status)
	if strings.EqualFold(status, models.EnrollmentStatusAll) {
		return ""
	}
	return status
}

func paginate(students []dto.StudentRow, page, limit int) []dto.StudentRow {
	// Compare page counts first so a huge page cannot overflow the offset.
	if page-1 >= (len(students)+limit-1)/limit {
		return []dto.StudentRow{}
	}
	start := (page - 1) * limit
	end := start + limit
	if end > len(students) {
		end = len(students)
	}
	return students[start:end]
}

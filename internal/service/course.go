package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/repository"
	"github.com/Emperor1p/nclexkeysinternational/internal/storage"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// CourseService implements the business logic for course content.
type CourseService struct {
	repo    repository.CourseRepository
	storage storage.Storage
	logger  *slog.Logger
}

// NewCourseService creates a new course service.
func NewCourseService(repo repository.CourseRepository, store storage.Storage, logger *slog.Logger) *CourseService {
	return &CourseService{
		repo:    repo,
		storage: store,
		logger:  logger,
	}
}

// UploadCourseInput holds the parameters for publishing course content.
type UploadCourseInput struct {
	Title       string
	Description string
	Program     string
	FileName    string
	ContentType string
	Size        int64
	Data        io.Reader
	CreatedBy   string
}

// UploadCourse validates the input, uploads the file, and saves metadata.
func (s *CourseService) UploadCourse(ctx context.Context, input *UploadCourseInput) (*domain.Course, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.InvalidInput("title is required")
	}

	if _, ok := domain.PlanByID(input.Program); !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown program %q", input.Program))
	}

	if input.FileName == "" {
		return nil, apperrors.InvalidInput("file name is required")
	}

	ext := filepath.Ext(input.FileName)
	if !domain.AllowedCourseExtension(ext) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("file type %q is not allowed", ext))
	}

	if input.Size <= 0 {
		return nil, apperrors.InvalidInput("file size must be greater than zero")
	}

	if input.Size > domain.MaxCourseFileSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("file size %d exceeds maximum allowed size of %d bytes", input.Size, domain.MaxCourseFileSize))
	}

	id := uuid.New().String()
	key := fmt.Sprintf("courses/%s/%s%s", input.Program, id, strings.ToLower(ext))

	if _, err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: input.ContentType,
		Size:        input.Size,
		Data:        input.Data,
	}); err != nil {
		return nil, fmt.Errorf("upload course content: %w", err)
	}

	now := time.Now().UTC()
	course := &domain.Course{
		ID:          id,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Program:     input.Program,
		ContentPath: key,
		ContentType: input.ContentType,
		SizeBytes:   input.Size,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		// Clean up the uploaded file on DB failure.
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to clean up storage after db error",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("create course record: %w", err)
	}

	s.logger.InfoContext(ctx, "course uploaded",
		slog.String("course_id", course.ID),
		slog.String("program", course.Program),
		slog.Int64("size", course.SizeBytes),
	)

	return course, nil
}

// GetCourse retrieves a course by its ID.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course by id: %w", err)
	}
	return course, nil
}

// ListCourses returns courses, optionally filtered to one program.
func (s *CourseService) ListCourses(ctx context.Context, program string) ([]domain.Course, error) {
	if program != "" {
		if _, ok := domain.PlanByID(program); !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown program %q", program))
		}
	}

	courses, err := s.repo.List(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ContentURL resolves the storage URL for a course's content.
func (s *CourseService) ContentURL(ctx context.Context, id string) (string, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get course by id: %w", err)
	}

	url, err := s.storage.GetURL(ctx, course.ContentPath)
	if err != nil {
		return "", fmt.Errorf("resolve content url: %w", err)
	}
	return url, nil
}

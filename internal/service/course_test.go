package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/storage/memory"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

type mockCourseRepo struct {
	mock.Mock
}

func (m *mockCourseRepo) Create(ctx context.Context, course *domain.Course) error {
	args := m.Called(ctx, course)
	return args.Error(0)
}

func (m *mockCourseRepo) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Course), args.Error(1)
}

func (m *mockCourseRepo) List(ctx context.Context, program string) ([]domain.Course, error) {
	args := m.Called(ctx, program)
	return args.Get(0).([]domain.Course), args.Error(1)
}

func newTestCourseService(repo *mockCourseRepo) (*CourseService, *memory.Storage) {
	store := memory.New("http://localhost:8080")
	return &CourseService{
		repo:    repo,
		storage: store,
		logger:  newTestLogger(),
	}, store
}

func uploadInput() *UploadCourseInput {
	return &UploadCourseInput{
		Title:       "Pharmacology Review",
		Description: "Unit one lecture recording",
		Program:     "nigeria",
		FileName:    "lecture-01.mp4",
		ContentType: "video/mp4",
		Size:        1024,
		Data:        strings.NewReader("video-bytes"),
		CreatedBy:   "admin-1",
	}
}

func TestUploadCourse(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, store := newTestCourseService(repo)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Course) bool {
		return c.Title == "Pharmacology Review" &&
			c.Program == "nigeria" &&
			c.SizeBytes == 1024 &&
			strings.HasPrefix(c.ContentPath, "courses/nigeria/") &&
			strings.HasSuffix(c.ContentPath, ".mp4")
	})).Return(nil)

	course, err := svc.UploadCourse(context.Background(), uploadInput())

	require.NoError(t, err)
	assert.NotEmpty(t, course.ID)

	url, err := store.GetURL(context.Background(), course.ContentPath)
	require.NoError(t, err)
	assert.Contains(t, url, course.ContentPath)
	repo.AssertExpectations(t)
}

func TestUploadCourse_DisallowedExtension(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, _ := newTestCourseService(repo)

	input := uploadInput()
	input.FileName = "malware.exe"

	_, err := svc.UploadCourse(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadCourse_TooLarge(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, _ := newTestCourseService(repo)

	input := uploadInput()
	input.Size = domain.MaxCourseFileSize + 1

	_, err := svc.UploadCourse(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUploadCourse_UnknownProgram(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, _ := newTestCourseService(repo)

	input := uploadInput()
	input.Program = "antarctica"

	_, err := svc.UploadCourse(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUploadCourse_DBFailureCleansStorage(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, store := newTestCourseService(repo)

	var uploadedKey string
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Course")).Run(func(args mock.Arguments) {
		uploadedKey = args.Get(1).(*domain.Course).ContentPath
	}).Return(errors.New("insert failed"))

	_, err := svc.UploadCourse(context.Background(), uploadInput())

	require.Error(t, err)
	_, err = store.GetURL(context.Background(), uploadedKey)
	assert.Error(t, err, "orphaned upload should be deleted")
}

func TestListCourses_UnknownProgram(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, _ := newTestCourseService(repo)

	_, err := svc.ListCourses(context.Background(), "antarctica")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListCourses(t *testing.T) {
	repo := new(mockCourseRepo)
	svc, _ := newTestCourseService(repo)

	repo.On("List", mock.Anything, "europe").Return([]domain.Course{
		{ID: "c1", Title: "UK NMC Prep", Program: "europe"},
	}, nil)

	courses, err := svc.ListCourses(context.Background(), "europe")

	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "UK NMC Prep", courses[0].Title)
}

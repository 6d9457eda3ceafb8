package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/pkg/database"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// CourseRepository implements repository.CourseRepository using PostgreSQL.
type CourseRepository struct {
	pool database.DBTX
}

// NewCourseRepository creates a new PostgreSQL-backed course repository.
func NewCourseRepository(pool database.DBTX) *CourseRepository {
	return &CourseRepository{pool: pool}
}

const courseColumns = `id, title, description, program, content_path, content_type, size_bytes, created_by, created_at, updated_at`

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *domain.Course) error {
	query := `
		INSERT INTO courses (id, title, description, program, content_path, content_type, size_bytes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		c.Program,
		c.ContentPath,
		c.ContentType,
		c.SizeBytes,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}

	return nil
}

// GetByID retrieves a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`

	var c domain.Course
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Program,
		&c.ContentPath,
		&c.ContentType,
		&c.SizeBytes,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}

	return &c, nil
}

// List returns all courses, optionally filtered by program, newest first.
func (r *CourseRepository) List(ctx context.Context, program string) ([]domain.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses`
	args := []any{}
	if program != "" {
		query += ` WHERE program = $1`
		args = append(args, program)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Description,
			&c.Program,
			&c.ContentPath,
			&c.ContentType,
			&c.SizeBytes,
			&c.CreatedBy,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course rows: %w", err)
	}

	if courses == nil {
		courses = []domain.Course{}
	}

	return courses, nil
}

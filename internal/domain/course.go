package domain

import (
	"strings"
	"time"
)

// MaxCourseFileSize is the upload ceiling for course content (500 MB).
const MaxCourseFileSize int64 = 500 * 1024 * 1024

var allowedCourseExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".pdf":  true,
	".pptx": true,
	".docx": true,
}

// AllowedCourseExtension checks an upload's file extension.
func AllowedCourseExtension(ext string) bool {
	return allowedCourseExtensions[strings.ToLower(ext)]
}

// Course is admin-created study content tied to a program/region.
type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Program     string    `json:"program"`
	ContentPath string    `json:"content_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

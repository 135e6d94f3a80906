package handler_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/handler"
	"github.com/noah-isme/elimu-api/internal/service"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func validateAgainst(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload), string(body))
}

func TestRosterListContract(t *testing.T) {
	schema := compileSchema(t, "roster_list.schema.json")
	now := time.Now().UTC()

	svc := &stubRosterService{list: dto.RosterListResponse{
		Items: []dto.StudentRow{
			{
				StudentID:    "s-1",
				Name:         "Jane Doe",
				Email:        "jane@example.com",
				Courses:      []dto.RosterCourse{{ID: "c-1", Title: "Go", Progress: 42.5, EnrolledAt: now, Status: "active"}},
				Progress:     43,
				Status:       "active",
				LastActivity: &now,
				EnrolledAt:   now,
			},
			{
				StudentID:  "s-2",
				Name:       "idle",
				Email:      "idle@example.com",
				Courses:    []dto.RosterCourse{{ID: "c-1", Title: "Go", EnrolledAt: now, Status: "active"}},
				Status:     "active",
				EnrolledAt: now,
			},
		},
		Pagination: dto.RosterPagination{Page: 1, Limit: 25, Total: 2, Pages: 1},
	}}
	app := newRosterApp(svc, instructorID, handler.ErrorPolicy{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/instructor/students", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateAgainst(t, schema, resp)
}

func TestRosterListContractEmptyRoster(t *testing.T) {
	schema := compileSchema(t, "roster_list.schema.json")
	svc := &stubRosterService{list: dto.RosterListResponse{
		Items:      []dto.StudentRow{},
		Pagination: dto.RosterPagination{Page: 1, Limit: 25},
	}}
	app := newRosterApp(svc, instructorID, handler.ErrorPolicy{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/instructor/students", nil), -1)
	require.NoError(t, err)
	validateAgainst(t, schema, resp)
}

func TestStudentDetailContract(t *testing.T) {
	schema := compileSchema(t, "student_detail.schema.json")
	now := time.Now().UTC()

	svc := &stubRosterService{detail: dto.StudentDetailResponse{
		StudentID:        "s-1",
		Name:             "Jane Doe",
		Email:            "jane@example.com",
		Country:          "KE",
		JoinedDate:       now,
		TotalCourses:     1,
		CompletedCourses: 1,
		AverageProgress:  100,
		Courses: []dto.StudentCourseDetail{{
			CourseID:         "c-1",
			Title:            "Go",
			Category:         "programming",
			Level:            "beginner",
			Progress:         100,
			Status:           "completed",
			EnrolledAt:       now,
			LastActivity:     &now,
			CompletedLessons: []string{"l1", "l2"},
		}},
	}}
	app := newRosterApp(svc, instructorID, handler.ErrorPolicy{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/instructor/students/s-1", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateAgainst(t, schema, resp)
}

func TestErrorEnvelopeContract(t *testing.T) {
	schema := compileSchema(t, "error.schema.json")

	notEnrolled := newRosterApp(&stubRosterService{err: service.ErrStudentNotEnrolled}, instructorID, handler.ErrorPolicy{})
	resp, err := notEnrolled.Test(httptest.NewRequest(http.MethodGet, "/api/v1/instructor/students/s-9", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	validateAgainst(t, schema, resp)

	failing := newRosterApp(&stubRosterService{err: errors.New("boom")}, instructorID, handler.ErrorPolicy{ExposeDetails: true})
	resp, err = failing.Test(httptest.NewRequest(http.MethodGet, "/api/v1/instructor/students/export", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	validateAgainst(t, schema, resp)
}

func TestUploadContract(t *testing.T) {
	schema := compileSchema(t, "upload.schema.json")
	svc := &mockUploadService{response: dto.UploadResponse{
		URL:      "https://res.cloudinary.com/demo/video/upload/courses/videos/intro.mp4",
		PublicID: "courses/videos/intro",
		Format:   "mp4",
		Size:     2048,
		Duration: 12.5,
		MimeType: "video/mp4",
	}}
	app := newUploadApp(svc, handler.ErrorPolicy{})

	resp, err := app.Test(multipartRequest(t, "/api/v1/upload/video", "intro.mp4", []byte("video"), nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateAgainst(t, schema, resp)
}

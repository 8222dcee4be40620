package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/http/handlers"
	"github.com/geocoder89/surveyhub/internal/registration"
	"github.com/geocoder89/surveyhub/internal/token"
	"github.com/geocoder89/surveyhub/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeRegistrar struct {
	res  registration.Result
	err  error
	seen []subject.AddRequest
}

func (f *fakeRegistrar) Register(ctx context.Context, req subject.AddRequest) (registration.Result, error) {
	f.seen = append(f.seen, req)
	if f.err != nil {
		return registration.Result{}, f.err
	}
	return f.res, nil
}

type fakeImporter struct {
	result registration.BulkImportResult
	err    error
	body   string
}

func (f *fakeImporter) ImportBatch(ctx context.Context, surveyID int64, r io.Reader) (registration.BulkImportResult, error) {
	b, _ := io.ReadAll(r)
	f.body = string(b)
	return f.result, f.err
}

type fakeWaker struct {
	calls int
}

func (f *fakeWaker) WakeDeliveries(ctx context.Context) error {
	f.calls++
	return nil
}

type fakeSubjectsReader struct {
	items         []subject.Subject
	next          *string
	hasMore       bool
	err           error
	seenCreatedAt time.Time
	seenAfterID   string
	seenLimit     int
	seenSurveyID  int64
}

func (f *fakeSubjectsReader) GetByID(ctx context.Context, id string) (subject.Subject, error) {
	return subject.Subject{}, subject.ErrNotFound
}

func (f *fakeSubjectsReader) ListBySurveyCursor(
	ctx context.Context,
	surveyID int64,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) ([]subject.Subject, *string, bool, error) {
	f.seenSurveyID = surveyID
	f.seenLimit = limit
	f.seenCreatedAt = afterCreatedAt
	f.seenAfterID = afterID
	return f.items, f.next, f.hasMore, f.err
}

func newSubjectsRouter(reg *fakeRegistrar, imp *fakeImporter, waker *fakeWaker) *gin.Engine {
	return newSubjectsRouterWithReader(reg, imp, nil, waker)
}

func newSubjectsRouterWithReader(reg *fakeRegistrar, imp *fakeImporter, reader *fakeSubjectsReader, waker *fakeWaker) *gin.Engine {
	gin.SetMode(gin.TestMode)

	var r handlers.SubjectsReader
	if reader != nil {
		r = reader
	}
	h := handlers.NewSubjectsHandler(reg, imp, r, waker)

	e := gin.New()
	e.POST("/surveys/:id/subjects", h.Register)
	e.POST("/surveys/:id/subjects/import", h.Import)
	e.GET("/surveys/:id/subjects", h.ListBySurvey)
	return e
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validBody = `{"departmentId":3,"firstName":"Jane","lastName":"Doe","email":"jane@example.com"}`

func TestRegisterSubjectCreated(t *testing.T) {
	reg := &fakeRegistrar{res: registration.Result{
		SubjectID:    "6f1f9f3e-0000-0000-0000-000000000001",
		RespondentID: "6f1f9f3e-0000-0000-0000-000000000002",
		Token:        "bc7dfw2mk",
	}}
	waker := &fakeWaker{}
	r := newSubjectsRouter(reg, &fakeImporter{}, waker)

	w := postJSON(r, "/surveys/42/subjects", validBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token != "bc7dfw2mk" {
		t.Fatalf("token = %q", resp.Token)
	}

	if len(reg.seen) != 1 || reg.seen[0].SurveyID != 42 {
		t.Fatalf("registrar saw %+v, want surveyId from URL", reg.seen)
	}
	if waker.calls != 1 {
		t.Fatalf("waker calls = %d, want 1", waker.calls)
	}
}

func TestRegisterSubjectErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"contact_required", subject.ErrContactRequired, http.StatusBadRequest},
		{"unknown_department", department.ErrNotFound, http.StatusBadRequest},
		{"duplicate_external_id", subject.ErrExternalIDExists, http.StatusConflict},
		{"missing_survey", survey.ErrNotFound, http.StatusNotFound},
		{"token_exhaustion", &token.GenerationError{SurveyID: 42, Err: token.ErrAttemptsExhausted}, http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{err: tt.err}
			waker := &fakeWaker{}
			r := newSubjectsRouter(reg, &fakeImporter{}, waker)

			w := postJSON(r, "/surveys/42/subjects", validBody)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if waker.calls != 0 {
				t.Fatalf("waker should not fire on failure")
			}
		})
	}
}

func TestRegisterSubjectBadSurveyID(t *testing.T) {
	r := newSubjectsRouter(&fakeRegistrar{}, &fakeImporter{}, &fakeWaker{})

	w := postJSON(r, "/surveys/abc/subjects", validBody)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestImportReturnsRowReport(t *testing.T) {
	imp := &fakeImporter{result: registration.BulkImportResult{
		Imported: 2,
		Failed:   1,
		Errors:   []string{"Line 3: first name is required"},
	}}
	waker := &fakeWaker{}
	r := newSubjectsRouter(&fakeRegistrar{}, imp, waker)

	csv := "3,Jane,Doe,,1990-01-02,jane@example.com\n3,John,Doe,,1991-02-03,john@example.com\n3,,Doe,,,x@y\n"

	req := httptest.NewRequest(http.MethodPost, "/surveys/42/subjects/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if imp.body != csv {
		t.Fatalf("importer did not receive raw body")
	}

	var result registration.BulkImportResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Imported != 2 || result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if waker.calls != 1 {
		t.Fatalf("waker calls = %d, want 1", waker.calls)
	}
}

func TestListSubjectsFirstPageSentinel(t *testing.T) {
	reader := &fakeSubjectsReader{}
	r := newSubjectsRouterWithReader(&fakeRegistrar{}, &fakeImporter{}, reader, &fakeWaker{})

	req := httptest.NewRequest(http.MethodGet, "/surveys/42/subjects", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if reader.seenSurveyID != 42 || reader.seenLimit != 20 {
		t.Fatalf("reader saw surveyId=%d limit=%d", reader.seenSurveyID, reader.seenLimit)
	}
	if !reader.seenCreatedAt.IsZero() {
		t.Fatalf("first page should start from the zero time, got %v", reader.seenCreatedAt)
	}

	// the sentinel id must parse as a uuid so the tuple predicate
	// against the uuid id column never errors
	id, err := uuid.Parse(reader.seenAfterID)
	if err != nil {
		t.Fatalf("first-page after id %q is not a valid uuid: %v", reader.seenAfterID, err)
	}
	if id != uuid.Nil {
		t.Fatalf("first-page after id = %s, want the nil uuid", id)
	}
}

func TestListSubjectsCursorPassthrough(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	last := "6f1f9f3e-0000-0000-0000-000000000009"

	cursor, err := utils.EncodeSubjectCursor(at, last)
	if err != nil {
		t.Fatal(err)
	}

	reader := &fakeSubjectsReader{}
	r := newSubjectsRouterWithReader(&fakeRegistrar{}, &fakeImporter{}, reader, &fakeWaker{})

	req := httptest.NewRequest(http.MethodGet, "/surveys/42/subjects?cursor="+cursor+"&limit=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if reader.seenLimit != 5 || !reader.seenCreatedAt.Equal(at) || reader.seenAfterID != last {
		t.Fatalf("reader saw limit=%d createdAt=%v afterId=%q", reader.seenLimit, reader.seenCreatedAt, reader.seenAfterID)
	}
}

func TestListSubjectsSurveyNotFound(t *testing.T) {
	reader := &fakeSubjectsReader{err: survey.ErrNotFound}
	r := newSubjectsRouterWithReader(&fakeRegistrar{}, &fakeImporter{}, reader, &fakeWaker{})

	req := httptest.NewRequest(http.MethodGet, "/surveys/42/subjects", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestImportStreamFailure(t *testing.T) {
	imp := &fakeImporter{err: errors.New("read csv stream: unexpected EOF")}
	r := newSubjectsRouter(&fakeRegistrar{}, imp, &fakeWaker{})

	req := httptest.NewRequest(http.MethodPost, "/surveys/42/subjects/import", strings.NewReader("x"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

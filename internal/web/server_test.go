package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raulbatres90/challenge-estudiantes/internal/config"
	"github.com/raulbatres90/challenge-estudiantes/internal/core"
	"github.com/raulbatres90/challenge-estudiantes/internal/metrics"
)

const header = "name,start_year,external_id,status,current_average,graduation_average\n"

type memStore struct {
	mu        sync.Mutex
	names     []string
	ids       []int64
	students  []core.Student
	runs      []core.ImportRun
	failOn    map[string]error
	loadErr   error
	loadDelay time.Duration
	persisted int
}

func (m *memStore) LoadExistingKeys(ctx context.Context) (*core.Snapshot, error) {
	if m.loadDelay > 0 {
		select {
		case <-time.After(m.loadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.NewSnapshot(m.names, m.ids), nil
}

func (m *memStore) Persist(ctx context.Context, rec core.StudentRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOn[rec.Name]; ok {
		return 0, err
	}
	m.persisted++
	id := int64(m.persisted)
	m.names = append(m.names, rec.Name)
	m.ids = append(m.ids, rec.ExternalID)
	m.students = append([]core.Student{{ID: id, StudentRecord: rec}}, m.students...)
	return id, nil
}

func (m *memStore) RecordImport(ctx context.Context, run core.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) ListStudents(ctx context.Context, limit, offset int) ([]core.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.students) {
		return nil, nil
	}
	out := m.students[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListImports(ctx context.Context, limit int) ([]core.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: time.Minute,
			RateLimit:      0,
		},
		Import: config.ImportConfig{
			MaxFileSize:    1 << 20,
			MaxConcurrent:  1,
			MaxWaitTime:    100 * time.Millisecond,
			InsertWorkers:  1,
			KeyLoadTimeout: time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, store *memStore, opts ...Option) *Server {
	t.Helper()
	cfg := testConfig()
	svc := core.NewService(store, cfg.Import.ServiceConfig())
	return NewServer(svc, cfg, opts...)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postFile(t *testing.T, s *Server, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestUpload_InsertsValidFile(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store)

	csv := header +
		"Ana,2020,1,,8.5,\n" +
		"Luis,2019,2,graduado,9,9\n"
	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", csv)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[UploadResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Inserted)
	assert.NotEmpty(t, resp.ImportID)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, "Inserted 2 students", resp.Message)

	require.Len(t, store.runs, 1)
	assert.Equal(t, "test-agent", store.runs[0].UserAgent)
	assert.Equal(t, "192.0.2.1", store.runs[0].ClientIP)
}

func TestUpload_NotBoundByRequestTimeout(t *testing.T) {
	store := &memStore{loadDelay: 80 * time.Millisecond}
	cfg := testConfig()
	cfg.Server.RequestTimeout = 20 * time.Millisecond
	s := NewServer(core.NewService(store, cfg.Import.ServiceConfig()), cfg)

	csv := header + "Ana,2020,1,,,\n"

	rec := postFile(t, s, "/api/students/validate", "alumnos.csv", csv)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())

	rec = postFile(t, s, "/api/students/upload", "alumnos.csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[UploadResponse](t, rec).Inserted)
	assert.Equal(t, 1, store.persisted)
}

func TestUpload_RejectsInvalidFile(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store)

	csv := header +
		"Ana,2020,1,,,\n" +
		",2020,2,,,\n"
	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", csv)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[RejectionResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, 1, resp.ValidCount)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 3, resp.Errors[0].Row)
	assert.Equal(t, core.ColName, resp.Errors[0].Field)
	assert.Zero(t, store.persisted)
}

func TestUpload_MissingColumn(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", "name,start_year\nAna,2020\n")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[RejectionResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 0, resp.Errors[0].Row)
	assert.Contains(t, resp.Errors[0].Message, core.ColExternalID)
}

func TestUpload_NoValidRows(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", header)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[RejectionResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, core.FieldFile, resp.Errors[0].Field)
	assert.Equal(t, 0, resp.ValidCount)
}

func TestUpload_ReportsInsertFailures(t *testing.T) {
	store := &memStore{failOn: map[string]error{"Luis": errors.New("student already exists")}}
	s := newTestServer(t, store)

	csv := header +
		"Ana,2020,1,,,\n" +
		"Luis,2020,2,,,\n" +
		"Eva,2020,3,,,\n"
	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", csv)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, 2, resp.Inserted)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Luis", resp.Errors[0].Name)
	assert.Equal(t, "DB001", resp.Errors[0].Code)
	assert.Equal(t, "Inserted 2 students with some errors", resp.Message)
}

func TestUpload_NoFile(t *testing.T) {
	s := newTestServer(t, &memStore{})

	body, contentType := multipartBody(t, "other", "x.csv", "a")
	req := httptest.NewRequest(http.MethodPost, "/api/students/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "FILE004", resp.Code)
}

func TestUpload_UnsupportedType(t *testing.T) {
	s := newTestServer(t, &memStore{})

	pdf := "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"
	rec := postFile(t, s, "/api/students/upload", "alumnos.pdf", pdf)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "FILE006", resp.Code)
}

func TestUpload_EmptyFileIsRejectedAsUnreadable(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[RejectionResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, core.FieldFile, resp.Errors[0].Field)
	assert.NotEmpty(t, resp.ImportID)
}

func TestUpload_StoreUnavailable(t *testing.T) {
	s := newTestServer(t, &memStore{loadErr: errors.New("dial tcp: connection refused")})

	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", header+"Ana,2020,1,,,\n")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "DB004", resp.Code)
}

func TestValidate_DoesNotInsert(t *testing.T) {
	store := &memStore{names: []string{"Ana"}}
	s := newTestServer(t, store)

	csv := header +
		"Ana,2020,1,,,\n" +
		"Luis,2020,2,,,\n"
	rec := postFile(t, s, "/api/students/validate", "alumnos.csv", csv)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, 2, resp.TotalRows)
	assert.Equal(t, 1, resp.ValidCount)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, core.ColName, resp.Errors[0].Field)
	assert.Zero(t, store.persisted)
	assert.Empty(t, store.runs)
}

func TestValidate_ValidFile(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := postFile(t, s, "/api/students/validate", "alumnos.csv", header+"Ana,2020,1,,,\n")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ValidateResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.NotNil(t, resp.Errors)
	require.Len(t, resp.Students, 1)
	assert.Equal(t, "Ana", resp.Students[0].Name)
}

func TestListStudents(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store)

	rec := postFile(t, s, "/api/students/upload", "alumnos.csv", header+"Ana,2020,1,,,\nLuis,2020,2,,,\n")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students?limit=1&offset=0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StudentsResponse](t, rec)
	assert.Equal(t, 1, resp.Limit)
	require.Len(t, resp.Students, 1)
	assert.Equal(t, "Luis", resp.Students[0].Name)
}

func TestListStudents_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"students":[]`)
}

func TestListImports(t *testing.T) {
	s := newTestServer(t, &memStore{})
	postFile(t, s, "/api/students/upload", "alumnos.csv", header+"Ana,2020,1,,,\n")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ImportsResponse](t, rec)
	require.Len(t, resp.Imports, 1)
	assert.Equal(t, "alumnos.csv", resp.Imports[0].FileName)
	assert.Equal(t, 1, resp.Imports[0].Inserted)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, &memStore{}, WithHealthCheck(pinger{}))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[HealthResponse](t, rec)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, 1, resp.Imports.Max)
	})

	t.Run("database down", func(t *testing.T) {
		s := newTestServer(t, &memStore{}, WithHealthCheck(pinger{err: errors.New("down")}))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[HealthResponse](t, rec)
		assert.Equal(t, "unreachable", resp.Database)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, &memStore{}, WithMetrics(m))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `student_import_http_requests_total{method="GET",route="/healthz",status="2xx"} 1`)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, &memStore{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	store := &memStore{}
	cfg := testConfig()
	cfg.Server.RateLimit = 1
	s := NewServer(core.NewService(store, cfg.Import.ServiceConfig()), cfg)
	defer s.Shutdown(context.Background())

	first := httptest.NewRecorder()
	s.Router().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := httptest.NewRecorder()
	s.Router().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: errNoFile, want: http.StatusBadRequest},
		{err: core.ErrTooManyImports, want: http.StatusServiceUnavailable},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.err.Error(), " ", "_"), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

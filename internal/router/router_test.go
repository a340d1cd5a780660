package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stemsi/earlyreg-backend/internal/config"
	"github.com/stemsi/earlyreg-backend/internal/enrollment"
	"github.com/stemsi/earlyreg-backend/internal/handler"
	"github.com/stemsi/earlyreg-backend/internal/metrics"
	"github.com/stemsi/earlyreg-backend/internal/rules"
	"github.com/stemsi/earlyreg-backend/internal/service"
	"github.com/stemsi/earlyreg-backend/internal/store"
	"github.com/stemsi/earlyreg-backend/internal/testutil"
	"github.com/stemsi/earlyreg-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

type testServer struct {
	engine     *gin.Engine
	gw         *testutil.MemoryGateway
	lastHeader http.Header
}

func testConfig() *config.Config {
	return &config.Config{GinMode: gin.TestMode, JWTSecret: "test-secret", JWTExpiry: time.Hour}
}

func newTestServer(t *testing.T, opts ...enrollment.Option) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, opts ...enrollment.Option) *testServer {
	t.Helper()

	log := testutil.NopLogger()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gw := testutil.NewMemoryGateway(testutil.SampleStudents(), testutil.SampleSubjects(), nil)
	st := store.New(gw, log)
	_, err := st.LoadAll(context.Background())
	require.NoError(t, err)

	clock := rules.NewFixedClock(testutil.Today)
	evaluator := rules.NewEvaluator(st, clock)
	committerOpts := append([]enrollment.Option{
		enrollment.WithMetrics(m),
		enrollment.WithRetry(2, time.Millisecond),
	}, opts...)
	committer := enrollment.NewCommitter(st, evaluator, gw, log, committerOpts...)

	authService := service.NewAuthService(cfg, testutil.NewMemorySessions(), st, clock)
	studentService := service.NewStudentService(st, clock)
	subjectService := service.NewSubjectService(st, evaluator, log)

	handlers := &Handlers{
		Auth:          handler.NewAuthHandler(authService, studentService),
		StudentPortal: handler.NewStudentPortalHandler(subjectService, service.NewRegistrationService(committer)),
		Subject:       handler.NewSubjectHandler(subjectService),
		WS:            handler.NewWSHandler(nil, subjectService, log, nil),
		System:        handler.NewSystemHandler(handler.PingFunc(func(context.Context) error { return nil }), st, log),
	}

	return &testServer{
		engine: SetupRouter(authService, handlers, cfg, reg, log),
		gw:     gw,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	s.lastHeader = rec.Header()

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (s *testServer) login(t *testing.T, studentID string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/student/login", "", gin.H{"student_id": studentID})
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"missing id", gin.H{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad format", gin.H{"student_id": "12345678"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown student", gin.H{"student_id": "69000001"}, http.StatusNotFound, "STUDENT_NOT_FOUND"},
		{"underage", gin.H{"student_id": "69099999"}, http.StatusUnprocessableEntity, "AGE_REQUIREMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := srv.do(t, http.MethodPost, "/api/v1/auth/student/login", "", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, errCode(env))
		})
	}

	t.Run("second login is rejected", func(t *testing.T) {
		srv.login(t, "69012345")
		code, env := srv.do(t, http.MethodPost, "/api/v1/auth/student/login", "", gin.H{"student_id": "69012345"})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "SESSION_ALREADY_ACTIVE", errCode(env))
	})
}

func TestLoginIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRatePerMinute = 2
	srv := newTestServerWithConfig(t, cfg)

	codes := make([]int, 0, 3)
	for range 3 {
		code, _ := srv.do(t, http.MethodPost, "/api/v1/auth/student/login", "", gin.H{"student_id": "69000001"})
		codes = append(codes, code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestStudentRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(t, http.MethodGet, "/api/v1/student/subjects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "TOKEN_REQUIRED", errCode(env))

	code, env = srv.do(t, http.MethodGet, "/api/v1/student/subjects", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "TOKEN_INVALID", errCode(env))
}

func TestRegistrationFlow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "69012345")

	code, env := srv.do(t, http.MethodGet, "/api/v1/student/subjects", token, nil)
	require.Equal(t, http.StatusOK, code)
	var catalog struct {
		Subjects []struct {
			ID           string `json:"subject_id"`
			CapacityInfo string `json:"capacity_info"`
		} `json:"subjects"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &catalog))
	require.Len(t, catalog.Subjects, 4)
	assert.Equal(t, "no-store", srv.lastHeader.Get("Cache-Control"))
	assert.Equal(t, "Enrolled: 29/30 students", catalog.Subjects[0].CapacityInfo)

	code, env = srv.do(t, http.MethodPost, "/api/v1/student/registrations", token, gin.H{"subject_id": "CS101"})
	require.Equal(t, http.StatusCreated, code)
	var accepted enrollment.Result
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, enrollment.StatusAccepted, accepted.Status)
	assert.Equal(t, 30, accepted.Subject.CurrentEnrollment)
	assert.True(t, accepted.Persisted)

	rejections := []struct {
		subject  string
		wantCode int
		wantErr  string
	}{
		{"CS101", http.StatusConflict, "ALREADY_REGISTERED"},
		{"CS102", http.StatusConflict, "SUBJECT_FULL"},
		{"NOPE", http.StatusNotFound, "SUBJECT_NOT_FOUND"},
	}
	for _, r := range rejections {
		code, env = srv.do(t, http.MethodPost, "/api/v1/student/registrations", token, gin.H{"subject_id": r.subject})
		assert.Equal(t, r.wantCode, code, r.subject)
		assert.Equal(t, r.wantErr, errCode(env), r.subject)
	}

	code, env = srv.do(t, http.MethodPost, "/api/v1/student/registrations", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Fields, "subject_id")

	code, env = srv.do(t, http.MethodGet, "/api/v1/student/registration/subjects", token, nil)
	require.Equal(t, http.StatusOK, code)
	var options struct {
		Subjects []struct {
			ID     string `json:"subject_id"`
			Status string `json:"status"`
		} `json:"subjects"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &options))
	got := map[string]string{}
	for _, o := range options.Subjects {
		got[o.ID] = o.Status
	}
	assert.Equal(t, map[string]string{"CS102": "FULL", "MATH999": "Available", "CS201": "Available"}, got)

	code, env = srv.do(t, http.MethodGet, "/api/v1/auth/student/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var profile struct {
		FullName           string `json:"full_name"`
		Age                int    `json:"age"`
		RegisteredSubjects []struct {
			ID string `json:"subject_id"`
		} `json:"registered_subjects"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Mr. Somchai Jaidee", profile.FullName)
	assert.Equal(t, 17, profile.Age)
	require.Len(t, profile.RegisteredSubjects, 1)
	assert.Equal(t, "CS101", profile.RegisteredSubjects[0].ID)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "69054321")

	code, _ := srv.do(t, http.MethodPost, "/api/v1/auth/student/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := srv.do(t, http.MethodGet, "/api/v1/student/subjects", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "SESSION_INVALIDATED", errCode(env))

	srv.login(t, "69054321")
}

func TestDurableFirstPersistenceFailure(t *testing.T) {
	srv := newTestServer(t, enrollment.WithCommitMode(enrollment.DurableFirst))
	srv.gw.FailAppends(-1)
	token := srv.login(t, "69012345")

	code, env := srv.do(t, http.MethodPost, "/api/v1/student/registrations", token, gin.H{"subject_id": "MATH999"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "PERSISTENCE_FAILED", errCode(env))
}

func TestMemoryFirstPersistenceFailureStillAccepts(t *testing.T) {
	srv := newTestServer(t)
	srv.gw.FailAppends(-1)
	token := srv.login(t, "69012345")

	code, env := srv.do(t, http.MethodPost, "/api/v1/student/registrations", token, gin.H{"subject_id": "MATH999"})
	require.Equal(t, http.StatusCreated, code)
	var res enrollment.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Persisted)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"redis":"ok"`)

	token := srv.login(t, "69012345")
	srv.do(t, http.MethodPost, "/api/v1/student/registrations", token, gin.H{"subject_id": "CS101"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "earlyreg_registrations_accepted_total 1")
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"request_id":"req-123"`)
}

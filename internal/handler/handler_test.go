package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/earlyreg-backend/internal/middleware"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/repository"
	"github.com/stemsi/earlyreg-backend/internal/rules"
	"github.com/stemsi/earlyreg-backend/internal/service"
	"github.com/stemsi/earlyreg-backend/internal/store"
	"github.com/stemsi/earlyreg-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSubscription struct {
	ch     chan *redis.Message
	closed atomic.Bool
}

func (s *fakeSubscription) Channel(...redis.ChannelOption) <-chan *redis.Message { return s.ch }

func (s *fakeSubscription) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeEvents struct{ sub *fakeSubscription }

func (e fakeEvents) Subscribe(context.Context) repository.Subscription { return e.sub }

func loadedStore(t *testing.T) *store.Store {
	t.Helper()
	gw := testutil.NewMemoryGateway(testutil.SampleStudents(), testutil.SampleSubjects(), nil)
	st := store.New(gw, testutil.NopLogger())
	_, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	return st
}

func newStreamServer(t *testing.T, sub *fakeSubscription) string {
	t.Helper()

	st := loadedStore(t)
	subjects := service.NewSubjectService(st, rules.NewEvaluator(st, rules.NewFixedClock(testutil.Today)), testutil.NopLogger())
	h := NewWSHandler(fakeEvents{sub: sub}, subjects, testutil.NopLogger(), nil)

	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, StudentID: "69012345"})
		c.Next()
	}, h.SubjectStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

type frame struct {
	Event    string                `json:"event"`
	Error    string                `json:"error"`
	Subjects []model.SubjectDetail `json:"subjects"`
	Data     model.EnrollmentEvent `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestSubjectStream(t *testing.T) {
	sub := &fakeSubscription{ch: make(chan *redis.Message, 4)}
	conn, _, err := websocket.DefaultDialer.Dial(newStreamServer(t, sub), nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readFrame(t, conn)
	assert.Equal(t, "snapshot", snapshot.Event)
	require.Len(t, snapshot.Subjects, 4)
	assert.Equal(t, "Enrolled: 29/30 students", snapshot.Subjects[0].CapacityInfo)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Event)

	payload, err := json.Marshal(model.EnrollmentEvent{StudentID: "69054321", SubjectID: "CS101", CurrentEnrollment: 30, MaxCapacity: 30, Full: true})
	require.NoError(t, err)
	sub.ch <- &redis.Message{Payload: "{not json"}
	sub.ch <- &redis.Message{Payload: string(payload)}

	evt := readFrame(t, conn)
	assert.Equal(t, "enrollment", evt.Event, "malformed payloads are skipped")
	assert.Equal(t, "CS101", evt.Data.SubjectID)
	assert.True(t, evt.Data.Full)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "dance"}))
	unknown := readFrame(t, conn)
	assert.Equal(t, "error", unknown.Event)
	assert.Contains(t, unknown.Error, "dance")

	close(sub.ch)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, sub.closed.Load, time.Second, 10*time.Millisecond)
}

func TestSubjectStreamRejectsForeignOrigin(t *testing.T) {
	upgrader := buildUpgrader([]string{"https://portal.example"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://PORTAL.example")
	assert.True(t, upgrader.CheckOrigin(req))

	assert.True(t, buildUpgrader(nil).CheckOrigin(req), "no list allows all")
}

func TestHealth(t *testing.T) {
	st := loadedStore(t)

	tests := []struct {
		name       string
		ping       PingFunc
		wantStatus int
		wantRedis  string
	}{
		{"redis up", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"redis down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler(tt.ping, st, testutil.NopLogger())
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

			h.Health(c)

			var body struct {
				Data healthStatus `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRedis, body.Data.Redis)
			assert.Equal(t, 4, body.Data.Subjects)
		})
	}
}

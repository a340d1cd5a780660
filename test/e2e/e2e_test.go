//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// The server under test must be running against the sample data in ./data.
const (
	defaultBaseURL  = "http://localhost:8080"
	studentID       = "69066666"
	underageStudent = "69044444"
	openSubject     = "ENG101"
	fullSubject     = "CS102"
)

var baseURL string

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	var token string

	t.Run("HealthCheck", func(t *testing.T) {
		resp, err := get("/health", "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("UnderageLoginRejected", func(t *testing.T) {
		resp, err := post("/api/v1/auth/student/login", map[string]string{"student_id": underageStudent}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d. Body: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("StudentLogin", func(t *testing.T) {
		resp, err := post("/api/v1/auth/student/login", map[string]string{"student_id": studentID}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Token string `json:"token"`
		}
		decodeData(t, resp, &body)
		if body.Token == "" {
			t.Fatal("empty token")
		}
		token = body.Token
	})
	if token == "" {
		t.FailNow()
	}
	defer func() {
		if resp, err := post("/api/v1/auth/student/logout", nil, token); err == nil {
			resp.Body.Close()
		}
	}()

	t.Run("SecondLoginRejected", func(t *testing.T) {
		resp, err := post("/api/v1/auth/student/login", map[string]string{"student_id": studentID}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("Expected 409 Conflict, got %d. Body: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("ListSubjects", func(t *testing.T) {
		resp, err := get("/api/v1/student/subjects", token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Subjects []struct {
				ID string `json:"subject_id"`
			} `json:"subjects"`
		}
		decodeData(t, resp, &body)
		if len(body.Subjects) == 0 {
			t.Error("Expected a non-empty catalog")
		}
	})

	t.Run("SubjectStreamSnapshot", func(t *testing.T) {
		wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws/v1/subjects/stream?token=" + url.QueryEscape(token)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg struct {
			Event string `json:"event"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		if msg.Event != "snapshot" {
			t.Errorf("Expected snapshot event, got %q", msg.Event)
		}
	})

	t.Run("Register", func(t *testing.T) {
		resp, err := post("/api/v1/student/registrations", map[string]string{"subject_id": openSubject}, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		// A previous run against the same data dir already holds the seat.
		switch resp.StatusCode {
		case http.StatusCreated:
		case http.StatusConflict:
			var env envelope
			_ = json.NewDecoder(resp.Body).Decode(&env)
			if env.Error == nil || env.Error.Code != "ALREADY_REGISTERED" {
				t.Fatalf("unexpected conflict: %+v", env.Error)
			}
		default:
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("DuplicateRegistrationRejected", func(t *testing.T) {
		resp, err := post("/api/v1/student/registrations", map[string]string{"subject_id": openSubject}, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("Expected 409 Conflict, got %d. Body: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("FullSubjectRejected", func(t *testing.T) {
		resp, err := post("/api/v1/student/registrations", map[string]string{"subject_id": fullSubject}, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("Expected 409 Conflict, got %d. Body: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("ProfileListsRegistration", func(t *testing.T) {
		resp, err := get("/api/v1/auth/student/me", token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			RegisteredSubjects []struct {
				ID string `json:"subject_id"`
			} `json:"registered_subjects"`
		}
		decodeData(t, resp, &body)
		found := false
		for _, s := range body.RegisteredSubjects {
			if s.ID == openSubject {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Subject %s not found in profile", openSubject)
		}
	})

	t.Run("LogoutInvalidatesToken", func(t *testing.T) {
		resp, err := post("/api/v1/auth/student/logout", nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout status %d", resp.StatusCode)
		}

		resp, err = get("/api/v1/student/subjects", token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.StatusCode)
		}
	})
}

// Helpers

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeData(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("json decode data: %v", err)
	}
}

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elimusphere/sphereauth"
	"github.com/elimusphere/sphereauth/httpapi"
	"github.com/elimusphere/sphereauth/mail"
	"github.com/elimusphere/sphereauth/store/memory"
	"github.com/redis/go-redis/v9"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	app   *httptest.Server
	inbox chan mail.Message
}

func testConfig() sphereauth.Config {
	cfg := sphereauth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.EnumerationDelayMin = 0
	cfg.PasswordReset.EnumerationDelayMax = 0
	cfg.Security.EnableLoginThrottle = false
	cfg.PasswordReset.EnableIPThrottle = false
	cfg.PasswordReset.EnableIdentifierThrottle = false
	cfg.Registration.EnableIPThrottle = false
	cfg.JWT.PrivateKey = []byte(testSigningKey)
	return cfg
}

func newFixture(t *testing.T, cfg sphereauth.Config, rdb redis.UniversalClient) *fixture {
	t.Helper()

	inbox := make(chan mail.Message, 8)
	builder := sphereauth.New().
		WithConfig(cfg).
		WithUserStore(memory.New()).
		WithMailSender(mail.SenderFunc(func(_ context.Context, msg mail.Message) error {
			inbox <- msg
			return nil
		}))
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	app := httptest.NewServer(httpapi.NewServer(engine).Router())
	t.Cleanup(app.Close)

	return &fixture{app: app, inbox: inbox}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.app.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope for %s %s: %v", method, path, err)
	}
	return resp, env
}

func (f *fixture) register(t *testing.T, name, email, password, role string) sphereauth.Identity {
	t.Helper()
	resp, env := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": password, "role": role,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d (%+v)", email, resp.StatusCode, env)
	}
	var id sphereauth.Identity
	if err := json.Unmarshal(env.Data, &id); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	return id
}

func (f *fixture) login(t *testing.T, identifier, password, role string) string {
	t.Helper()
	resp, env := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"identifier": identifier, "password": password, "role": role,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%+v)", identifier, resp.StatusCode, env)
	}
	var out struct {
		User        sphereauth.Identity `json:"user"`
		AccessToken string              `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatal("expected access token")
	}
	return out.AccessToken
}

func (f *fixture) awaitMail(t *testing.T) mail.Message {
	t.Helper()
	select {
	case msg := <-f.inbox:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reset mail")
		return mail.Message{}
	}
}

var otpPattern = regexp.MustCompile(`OTP is: (\d{6})`)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	student := f.register(t, "Amina", "amina@school.test", "secret1", "student")
	if student.RegNo == nil || *student.RegNo == "" {
		t.Fatal("expected student registration number")
	}
	teacher := f.register(t, "Baraka", "baraka@school.test", "secret2", "teacher")
	if teacher.RegNo != nil {
		t.Fatalf("teacher must not have a registration number, got %q", *teacher.RegNo)
	}

	f.login(t, *student.RegNo, "secret1", "student")
	f.login(t, "baraka@school.test", "secret2", "teacher")

	resp, env := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"identifier": "amina@school.test", "password": "wrong!", "role": "student",
	})
	if resp.StatusCode != http.StatusUnauthorized || env.Code != httpapi.CodeUnauthorized {
		t.Fatalf("expected 401/%d, got %d/%d", httpapi.CodeUnauthorized, resp.StatusCode, env.Code)
	}
}

func TestRegisterErrors(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.register(t, "Amina", "amina@school.test", "secret1", "student")

	cases := []struct {
		name   string
		body   map[string]string
		status int
		code   int
	}{
		{"duplicate", map[string]string{"name": "A", "email": "amina@school.test", "password": "secret1", "role": "student"}, http.StatusConflict, httpapi.CodeDuplicate},
		{"missing field", map[string]string{"name": "A", "email": "x@school.test", "password": "secret1"}, http.StatusBadRequest, httpapi.CodeInvalidInput},
		{"bad role", map[string]string{"name": "A", "email": "y@school.test", "password": "secret1", "role": "parent"}, http.StatusBadRequest, httpapi.CodeInvalidInput},
		{"short password", map[string]string{"name": "A", "email": "z@school.test", "password": "abc", "role": "student"}, http.StatusBadRequest, httpapi.CodePasswordPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := f.do(t, http.MethodPost, "/api/register", "", tc.body)
			if resp.StatusCode != tc.status || env.Code != tc.code {
				t.Fatalf("expected %d/%d, got %d/%d (%s)", tc.status, tc.code, resp.StatusCode, env.Code, env.Message)
			}
		})
	}
}

func TestStudentRoutesRequireTeacher(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	student := f.register(t, "Amina", "amina@school.test", "secret1", "student")
	f.register(t, "Baraka", "baraka@school.test", "secret2", "teacher")

	studentToken := f.login(t, *student.RegNo, "secret1", "student")
	teacherToken := f.login(t, "baraka@school.test", "secret2", "teacher")

	if resp, _ := f.do(t, http.MethodGet, "/api/students", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/api/students", studentToken, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student token, got %d", resp.StatusCode)
	}

	resp, env := f.do(t, http.MethodGet, "/api/students", teacherToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var students []sphereauth.StudentRecord
	if err := json.Unmarshal(env.Data, &students); err != nil {
		t.Fatalf("decode students: %v", err)
	}
	if len(students) != 1 || students[0].RegNo != *student.RegNo {
		t.Fatalf("unexpected students: %+v", students)
	}

	path := "/api/students/" + students[0].StudentID
	resp, env = f.do(t, http.MethodPut, path, teacherToken, map[string]any{
		"className": "Form 2", "attendancePercent": 92.5, "score": 85,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d (%s)", resp.StatusCode, env.Message)
	}
	var updated sphereauth.StudentRecord
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if updated.Grade == nil || *updated.Grade != "B" {
		t.Fatalf("expected grade B, got %v", updated.Grade)
	}

	if resp, env := f.do(t, http.MethodPut, path, teacherToken, map[string]any{"attendancePercent": 120}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for attendance out of range, got %d (%s)", resp.StatusCode, env.Message)
	}
	if resp, env := f.do(t, http.MethodPut, "/api/students/missing", teacherToken, map[string]any{"score": 10}); resp.StatusCode != http.StatusNotFound || env.Code != httpapi.CodeNotFound {
		t.Fatalf("expected 404, got %d/%d", resp.StatusCode, env.Code)
	}
}

func TestPasswordResetOverHTTP(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.register(t, "Amina", "amina@school.test", "secret1", "student")

	resp, env := f.do(t, http.MethodPost, "/api/auth/request-reset", "", map[string]string{"email": "nobody@school.test"})
	if resp.StatusCode != http.StatusOK || env.Message != "If the email exists, an OTP has been sent" {
		t.Fatalf("unknown email must look like success, got %d %q", resp.StatusCode, env.Message)
	}

	resp, env = f.do(t, http.MethodPost, "/api/auth/request-reset", "", map[string]string{"email": "amina@school.test"})
	if resp.StatusCode != http.StatusOK || env.Message != "If the email exists, an OTP has been sent" {
		t.Fatalf("expected generic success, got %d %q", resp.StatusCode, env.Message)
	}

	msg := f.awaitMail(t)
	if msg.To != "amina@school.test" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	m := otpPattern.FindStringSubmatch(msg.Body)
	if m == nil {
		t.Fatalf("no code in body %q", msg.Body)
	}
	code := m[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	resp, env = f.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"email": "amina@school.test", "otp": wrong, "newPassword": "newsecret",
	})
	if resp.StatusCode != http.StatusBadRequest || env.Code != httpapi.CodeInvalidOTP || env.Message != "Invalid OTP" {
		t.Fatalf("expected Invalid OTP, got %d/%d %q", resp.StatusCode, env.Code, env.Message)
	}

	resp, env = f.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"email": "amina@school.test", "otp": code, "newPassword": "newsecret",
	})
	if resp.StatusCode != http.StatusOK || env.Message != "Password reset successfully" {
		t.Fatalf("expected reset success, got %d %q", resp.StatusCode, env.Message)
	}

	f.login(t, "amina@school.test", "newsecret", "student")

	resp, env = f.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"email": "amina@school.test", "otp": code, "newPassword": "another1",
	})
	if resp.StatusCode != http.StatusBadRequest || env.Code != httpapi.CodeInvalidOTP {
		t.Fatalf("replayed code must be rejected, got %d/%d", resp.StatusCode, env.Code)
	}
}

func TestRegistrationThrottleReturns429(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.Registration.EnableIPThrottle = true
	cfg.Registration.MaxAttempts = 1
	f := newFixture(t, cfg, rdb)

	f.register(t, "Amina", "amina@school.test", "secret1", "student")
	resp, env := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Juma", "email": "juma@school.test", "password": "secret1", "role": "student",
	})
	if resp.StatusCode != http.StatusTooManyRequests || env.Code != httpapi.CodeRateLimited {
		t.Fatalf("expected 429, got %d/%d", resp.StatusCode, env.Code)
	}
}

func TestRequestIDEchoedAndHealth(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	req, _ := http.NewRequest(http.MethodGet, f.app.URL+"/health", nil)
	req.Header.Set(httpapi.RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get(httpapi.RequestIDHeader); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp, err = http.Get(f.app.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(httpapi.RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	resp, err := http.Post(f.app.URL+"/api/login", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/password"
	"github.com/dmitrijs2005/securingai/internal/server/repositories/users"
	"github.com/dmitrijs2005/securingai/internal/server/services"
	"github.com/dmitrijs2005/securingai/internal/server/session"
	"github.com/dmitrijs2005/securingai/internal/server/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeUploader struct {
	err  error
	keys []string
	body []byte
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, *in.Key)
	f.body, _ = io.ReadAll(in.Body)
	return &manager.UploadOutput{}, nil
}

type testServer struct {
	srv      *HTTPServer
	repo     *users.InMemoryRepository
	uploader *fakeUploader
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hasher, err := password.NewContext(password.SchemePBKDF2SHA256, password.NewPBKDF2SHA256(1000))
	require.NoError(t, err)

	repo := users.NewInMemoryRepository()
	sessions := session.NewManager("test-secret", time.Hour)
	up := &fakeUploader{}

	us := services.NewUserService(repo, hasher, logging.Nop())
	svc := &services.Services{
		Password: hasher,
		User:     us,
		Auth:     services.NewAuthService(us, sessions, logging.Nop()),
		Storage:  storage.NewS3ServiceWithUploader(up, time.Minute, logging.Nop()),
	}

	srv, err := NewHTTPServer(Options{Address: ":0", UploadBucket: "workflow"}, logging.Nop(), svc, sessions)
	require.NoError(t, err)

	return &testServer{srv: srv, repo: repo, uploader: up}
}

type call struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Message
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func (ts *testServer) registerAndLogin(t *testing.T, name, pw string) *http.Cookie {
	t.Helper()
	w := ts.do(t, call{method: http.MethodPost, path: "/api/user", body: map[string]string{
		"name": name, "password": pw, "confirmPassword": pw,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"username": name, "password": pw,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c := sessionCookie(w)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	return c
}

func TestStaticRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, call{method: http.MethodGet, path: "/api/hello"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello, World!", w.Body.String())

	w = ts.do(t, call{method: http.MethodGet, path: "/api/foo"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bar", w.Body.String())
}

func TestEcho(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, call{method: http.MethodPost, path: "/api/foo", body: map[string]any{"a": 1, "b": []string{"x"}}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"a":1,"b":["x"]}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/foo", strings.NewReader("a=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"unknown input"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/foo", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)
	reg := func(name, pw, confirm string) *httptest.ResponseRecorder {
		return ts.do(t, call{method: http.MethodPost, path: "/api/user", body: map[string]string{
			"name": name, "password": pw, "confirmPassword": confirm,
		}})
	}

	w := reg("alice", "pw", "pw")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":200,"message":"User alice registration successful"}`, w.Body.String())

	w = reg("alice", "pw", "pw")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"status":403,"message":"The username alice is not available."}`, w.Body.String())

	w = reg("bob", "pw", "other")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "The password and confirmation password did not match.", message(t, w))

	w = ts.do(t, call{method: http.MethodPost, path: "/api/user", body: map[string]string{"password": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginAndWorld(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.registerAndLogin(t, "alice", "pw")
	assert.True(t, cookie.HttpOnly)

	w := ts.do(t, call{method: http.MethodGet, path: "/api/world", cookie: cookie})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"name":"alice"}`, w.Body.String())

	w = ts.do(t, call{method: http.MethodGet, path: "/api/world", token: cookie.Value})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, call{method: http.MethodGet, path: "/api/world"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, call{method: http.MethodGet, path: "/api/world", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_UniformFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice", "pw")

	wrongPw := ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "alice", "password": "nope"}})
	noUser := ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "mallory", "password": "pw"}})

	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, wrongPw.Code, noUser.Code)
	assert.Equal(t, wrongPw.Body.String(), noUser.Body.String())
	assert.Equal(t, "Username or Password Error", message(t, wrongPw))
	assert.Nil(t, sessionCookie(wrongPw))
}

func TestLogout(t *testing.T) {
	t.Run("current session only", func(t *testing.T) {
		ts := newTestServer(t)
		first := ts.registerAndLogin(t, "alice", "pw")

		w := ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "alice", "password": "pw"}})
		second := sessionCookie(w)
		require.NotNil(t, second)

		w = ts.do(t, call{method: http.MethodPost, path: "/api/auth/logout", cookie: first})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "logout success", message(t, w))
		cleared := sessionCookie(w)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)

		assert.Equal(t, http.StatusUnauthorized, ts.do(t, call{method: http.MethodGet, path: "/api/world", cookie: first}).Code)
		assert.Equal(t, http.StatusOK, ts.do(t, call{method: http.MethodGet, path: "/api/world", cookie: second}).Code)
	})

	t.Run("everywhere", func(t *testing.T) {
		ts := newTestServer(t)
		first := ts.registerAndLogin(t, "alice", "pw")

		w := ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "alice", "password": "pw"}})
		second := sessionCookie(w)
		require.NotNil(t, second)

		w = ts.do(t, call{method: http.MethodPost, path: "/api/auth/logout", cookie: first, body: map[string]bool{"everywhere": true}})
		assert.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, http.StatusUnauthorized, ts.do(t, call{method: http.MethodGet, path: "/api/world", cookie: second}).Code)
	})

	t.Run("requires a session", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, call{method: http.MethodPost, path: "/api/auth/logout"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.registerAndLogin(t, "alice", "pw1")

	w := ts.do(t, call{method: http.MethodPost, path: "/api/user/password", cookie: cookie, body: map[string]string{
		"currentPassword": "wrong", "newPassword": "pw2",
	}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Password Change Failed", message(t, w))

	w = ts.do(t, call{method: http.MethodPost, path: "/api/user/password", cookie: cookie, body: map[string]string{
		"currentPassword": "pw1", "newPassword": "pw2",
	}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Password Change Successful", message(t, w))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, call{method: http.MethodGet, path: "/api/world", cookie: cookie}).Code)

	w = ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "alice", "password": "pw2"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteUser(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.registerAndLogin(t, "alice", "pw")

	w := ts.do(t, call{method: http.MethodDelete, path: "/api/user", cookie: cookie, body: map[string]string{"password": "nope"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unable to delete current user, password check failed.", message(t, w))

	w = ts.do(t, call{method: http.MethodDelete, path: "/api/user", cookie: cookie, body: map[string]string{"password": "pw"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Current user deleted successfully.", message(t, w))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, call{method: http.MethodGet, path: "/api/world", cookie: cookie}).Code)

	w = ts.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "alice", "password": "pw"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	u, err := ts.repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, u.Deleted)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.registerAndLogin(t, "alice", "pw")

	post := func(body io.Reader, contentType string, withCookie bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		if withCookie {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(w, req)
		return w
	}

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "model.bin", "weights")
		w := post(body, ct, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var out struct {
			URI string `json:"uri"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, ts.uploader.keys, 1)
		key := ts.uploader.keys[0]
		assert.Regexp(t, `^uploads/[0-9a-f-]{36}/model\.bin$`, key)
		assert.Equal(t, "s3://workflow/"+key, out.URI)
		assert.Equal(t, []byte("weights"), ts.uploader.body)
	})

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "x", "y")
		w := post(body, ct, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		ts.uploader.err = errors.New("connection refused")
		defer func() { ts.uploader.err = nil }()

		body, ct := multipartBody(t, "file", "x.txt", "y")
		w := post(body, ct, true)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("requires a session", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "x.txt", "y")
		w := post(body, ct, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTraceIDAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(TraceIDHeader))

	w = ts.do(t, call{method: http.MethodGet, path: "/api/foo"})
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))

	w = ts.do(t, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `securingai_http_requests_total{method="GET",route="/api/hello",status="200"} 1`)
}

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":        "report.pdf",
		"../../etc/passwd":  "passwd",
		`C:\Users\me\a.txt`: "a.txt",
		"":                  "file",
		"..":                "file",
		"dir/":              "dir",
		"/":                 "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeFilename(in), "input %q", in)
	}
}

func TestNewHTTPServer_ProductionReleaseMode(t *testing.T) {
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	_, err := NewHTTPServer(Options{Address: ":0"}, logging.Nop(), &services.Services{}, session.NewManager("k", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, gin.TestMode, gin.Mode())

	_, err = NewHTTPServer(Options{Address: ":0", Environment: "production"}, logging.Nop(), &services.Services{}, session.NewManager("k", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
}

func TestNewHTTPMetrics_ReusesRegisteredCollectors(t *testing.T) {
	a, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: nil, Namespace: "reuse_test"})
	require.NoError(t, err)
	b, err := NewHTTPMetrics(HTTPMetricsOptions{Namespace: "reuse_test"})
	require.NoError(t, err)
	assert.Same(t, a.Requests, b.Requests)
}

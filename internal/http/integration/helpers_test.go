package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocoder89/herapt/internal/auth"
	"github.com/geocoder89/herapt/internal/config"
	apphttp "github.com/geocoder89/herapt/internal/http"
	"github.com/geocoder89/herapt/internal/ml"
	"github.com/geocoder89/herapt/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-key"

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		ClientURL:      "http://localhost:5173",
		JWTSecret:      testSecret,
		JWTTTL:         time.Hour,
		AuthRateLimit:  1000,
		AuthRateWindow: time.Minute,
		MLRateLimit:    1000,
		MLRateWindow:   time.Minute,
	}
}

// fakeMLServer stands in for the ML service. Handlers can be swapped per test.
type fakeMLServer struct {
	*httptest.Server

	mu       sync.Mutex
	predict  http.HandlerFunc
	match    http.HandlerFunc
	calls    atomic.Int64
	lastBody []byte
}

func newFakeMLServer(t *testing.T) *fakeMLServer {
	t.Helper()

	f := &fakeMLServer{
		predict: jsonHandler(http.StatusOK, `{"predictions":[]}`),
		match:   jsonHandler(http.StatusOK, `{"matches":[]}`),
	}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)

		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.lastBody = body
		predict, match := f.predict, f.match
		f.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))

		switch r.URL.Path {
		case "/predict-career":
			predict(w, r)
		case "/match-mentor":
			match(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)

	return f
}

func (f *fakeMLServer) onPredict(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predict = h
}

func (f *fakeMLServer) onMatch(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match = h
}

func (f *fakeMLServer) body() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

type testApp struct {
	router *gin.Engine
	users  *memory.UsersRepo
	tokens *auth.Manager
	ml     *fakeMLServer
}

type appOption func(*apphttp.Deps)

func setupTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	users := memory.NewUsersRepo()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	mlServer := newFakeMLServer(t)

	client := ml.NewClient(mlServer.URL, 2*time.Second, nil)
	breaker := ml.NewBreaker(client, ml.BreakerConfig{
		Timeout:          2 * time.Second,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})

	deps := apphttp.Deps{
		Config: cfg,
		Users:  users,
		Tokens: tokens,
		ML:     breaker,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return &testApp{
		router: apphttp.NewRouter(logger, deps),
		users:  users,
		tokens: tokens,
		ml:     mlServer,
	}
}

// helpers

type authResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type apiErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Field string `json:"field"`
		Rule  string `json:"rule"`
	} `json:"errors"`
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

// function that runs a request and returns a recorder and parsed response for cookies
func doRequest(router http.Handler, method, path string, body string, opts ...requestOption) (*httptest.ResponseRecorder, *http.Response) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w, w.Result()
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func mustRegister(t *testing.T, app *testApp, body string) authResponse {
	t.Helper()

	w, _ := doRequest(app.router, http.MethodPost, "/api/auth/register", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("register got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var out authResponse
	mustReadJSON(t, w, &out)
	return out
}

func tokenCookie(t *testing.T, response *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range response.Cookies() {
		if c.Name == "token" {
			return c
		}
	}

	t.Fatalf("token cookie not found in response")

	return nil
}

package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BlocksAfterLimitAndResets(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryLimiterStore()
	clock := time.Now()
	store.now = func() time.Time { return clock }

	rl := NewRateLimiter(store, "auth", 2, time.Minute)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit().Code)
	assert.Equal(t, http.StatusOK, hit().Code)

	w := hit()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"rate_limited"`)

	clock = clock.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, hit().Code)
}

type failingCounter struct{}

func (failingCounter) IncrWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestRateLimiter_StoreFailureFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(NewRedisLimiterStore(failingCounter{}), "auth", 1, time.Minute)

	r := gin.New()
	r.GET("/x", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/run", rateLimit(newRunLimiter(RunLimit{Rate: 0.001, Burst: 2})), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusAccepted, send("10.0.0.1:1234").Code, "request %d", i)
	}

	rec := send("10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, rec).Error.Code)

	// Another client has its own bucket
	require.Equal(t, http.StatusAccepted, send("10.0.0.2:1234").Code)
}

func TestRunLimiter_ExpiresIdleClients(t *testing.T) {
	l := newRunLimiter(RunLimit{Rate: 1})
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	first := l.get("a")
	require.Same(t, first, l.get("a"))

	now = now.Add(limiterTTL + time.Second)
	require.NotNil(t, l.get("b"))
	require.NotContains(t, l.byIP, "a", "idle limiter should be pruned")
	require.NotSame(t, first, l.get("a"))
}

package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMiddleware_RejectsOverBurst(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given a limiter with burst 2 and a negligible refill rate
	l := NewIPRateLimiter(ctx, rate.Limit(0.0001), 2)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	// When / Then
	req.Equal(http.StatusNoContent, call("10.0.0.1:1000"))
	req.Equal(http.StatusNoContent, call("10.0.0.1:1001"))
	req.Equal(http.StatusTooManyRequests, call("10.0.0.1:1002"))
	req.Equal(http.StatusNoContent, call("10.0.0.2:1000"))
}

func TestSweep_RemovesRefilledBuckets(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Limit(1), 1)
	req.True(l.Allow("10.0.0.1"))
	req.Equal(1, l.Size())

	// A bucket with burst 1 refills within a second at rate 1.
	removed := l.sweep(time.Now().Add(5 * time.Second))

	req.Equal(1, removed)
	req.Equal(0, l.Size())
}

func TestClientIP(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.4:5555"
	req.Equal("192.0.2.4", ClientIP(r))

	r.RemoteAddr = "192.0.2.5"
	req.Equal("192.0.2.5", ClientIP(r))

	r.RemoteAddr = ""
	req.Equal("unknown_ip", ClientIP(r))
}

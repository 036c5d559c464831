package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	req := require.New(t)

	a := New()
	b := New()

	a.Recalls.Inc()

	req.Equal(1.0, testutil.ToFloat64(a.Recalls))
	req.Equal(0.0, testutil.ToFloat64(b.Recalls))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	req := require.New(t)

	m := New()
	m.Actions.WithLabelValues("LOGIN", "ok").Inc()
	m.OnlineSessions.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	req.Equal(http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	req.NoError(err)
	req.Contains(string(body), `chatcoord_actions_total{action="LOGIN",result="ok"} 1`)
	req.Contains(string(body), "chatcoord_online_sessions 3")
}

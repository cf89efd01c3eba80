package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDispatch(t *testing.T) {
	before := testutil.ToFloat64(dispatches.WithLabelValues("TEST", OutcomeUnknown))

	RecordDispatch("TEST", OutcomeUnknown)
	RecordDispatch("TEST", OutcomeUnknown)

	after := testutil.ToFloat64(dispatches.WithLabelValues("TEST", OutcomeUnknown))
	assert.Equal(t, before+2, after)
}

func TestSetPeers(t *testing.T) {
	SetPeers("node-a", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(registeredPeers.WithLabelValues("node-a")))

	SetPeers("node-a", 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(registeredPeers.WithLabelValues("node-a")))
}

func TestHandlerExposesCounters(t *testing.T) {
	RecordSend(true)
	RecordFrame("ClassicV1", "JOIN")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "zentalk_p2p_sends_total")
	assert.Contains(t, rec.Body.String(), "zentalk_p2p_frames_received_total")
}

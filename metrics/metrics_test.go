package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEmail(t *testing.T) {
	before := testutil.ToFloat64(EmailsSent.WithLabelValues("welcome", "failed"))
	RecordEmail("welcome", errors.New("smtp down"))
	RecordEmail("welcome", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(EmailsSent.WithLabelValues("welcome", "failed")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	OrdersPlaced.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "zipngo_orders_placed_total")
}

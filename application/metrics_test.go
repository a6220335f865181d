package application

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coniks-sys/treesync/protocol"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics("treesync")

	m.ObserveRequest(protocol.GetRootType, protocol.ReqSuccess, time.Millisecond)
	m.ObserveRequest(protocol.GetRootType, protocol.ReqSuccess, time.Millisecond)
	m.ObserveRequest(-1, protocol.ErrMalformedMessage, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("get_root", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.requests.WithLabelValues("unknown", resultName(protocol.ErrMalformedMessage))))

	m.ObserveTx(protocol.TxApplied, 0)
	m.ObserveTx(protocol.TxRejected, protocol.ErrBound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txs.WithLabelValues(protocol.TxApplied, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.txs.WithLabelValues(protocol.TxRejected, resultName(protocol.ErrBound))))

	m.SetBlock(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.blockHeight))
	m.IncStaleWrites()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleWrites))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "treesync_block_height 7"))
}

func TestRequestName(t *testing.T) {
	assert.Equal(t, "read_snapshot", requestName(protocol.ReadSnapshotType))
	assert.Equal(t, "unknown", requestName(-1))
	assert.Equal(t, "type_42", requestName(42))
}

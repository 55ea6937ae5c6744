package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCacheLookup(t *testing.T) {
	hits := DefaultMetrics.CacheLookups.WithLabelValues("getBalance", "hit")
	misses := DefaultMetrics.CacheLookups.WithLabelValues("getBalance", "miss")
	beforeHits := testutil.ToFloat64(hits)
	beforeMisses := testutil.ToFloat64(misses)

	RecordCacheLookup("getBalance", true)
	RecordCacheLookup("getBalance", false)
	RecordCacheLookup("getBalance", false)

	assert.Equal(t, beforeHits+1, testutil.ToFloat64(hits))
	assert.Equal(t, beforeMisses+2, testutil.ToFloat64(misses))
}

func TestRecordWatchLifecycle(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.ActiveWatches)

	RecordWatchStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.ActiveWatches))

	outcome := DefaultMetrics.WatchOutcomes.WithLabelValues("confirmed")
	beforeOutcome := testutil.ToFloat64(outcome)

	RecordWatchFinished("confirmed", 3)
	assert.Equal(t, before, testutil.ToFloat64(DefaultMetrics.ActiveWatches))
	assert.Equal(t, beforeOutcome+1, testutil.ToFloat64(outcome))
}

func TestRecordHistoryListing(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.HistoryDroppedFetches)
	RecordHistoryListing(2)
	assert.Equal(t, before+2, testutil.ToFloat64(DefaultMetrics.HistoryDroppedFetches))
}

func TestNewMux(t *testing.T) {
	RecordRPCCall("getTransaction", 0.01, "ok")

	server := httptest.NewServer(NewMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "tap_to_pay_solana_rpc_calls_total")
}

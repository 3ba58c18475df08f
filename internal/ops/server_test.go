package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/chain"
	"solana-sniper/internal/chain/stub"
	"solana-sniper/internal/gate"
	"solana-sniper/internal/observability"
)

type fixedStream chain.State

func (s fixedStream) State() chain.State { return chain.State(s) }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(":0", Deps{}, WithLogger(quietLogger()))
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Ready(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Slot = 4242
	s := New(":0", Deps{RPC: rpc}, WithLogger(quietLogger()))

	rec := get(t, s.Handler(), "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, float64(4242), body["slot"])

	rpc.SlotErr = errors.New("node behind")
	rec = get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "node behind")
}

func TestServer_Status(t *testing.T) {
	g := gate.New(nil)
	require.True(t, g.Open("trigger-1"))

	s := New(":0", Deps{
		Stream:   fixedStream(chain.StateStreaming),
		Gate:     g,
		Strategy: "sequential",
	}, WithLogger(quietLogger()))

	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "streaming", resp.Stream)
	assert.Equal(t, "sequential", resp.Strategy)
	require.NotNil(t, resp.Gate)
	assert.Equal(t, "in_flight", resp.Gate.PhaseName)
	assert.Equal(t, "trigger-1", resp.Gate.TriggerID)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("ops_test", reg)
	m.RecordTrigger("ineligible")

	s := New(":0", Deps{Gatherer: reg}, WithLogger(quietLogger()))
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `ops_test_trigger_evaluated_total{result="ineligible"} 1`))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", Deps{}, WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestServeMux_HealthEndpoint(t *testing.T) {
	mux := newServeMux(newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestServeMux_ListRuns_Empty(t *testing.T) {
	mux := newServeMux(newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestServeMux_ListRuns_StatusFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	params := model.RunParams{Area: "newport", Country: "GB", ResolutionMeters: 200, TimeBudgetMinutes: 45, SpeedKMH: 15}
	run, err := st.CreateRun(ctx, "newport-am", params)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))
	_, err = st.CreateRun(ctx, "newport-pm", params)
	require.NoError(t, err)

	mux := newServeMux(st)

	req := httptest.NewRequest(http.MethodGet, "/runs?status=complete", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "newport-am", runs[0].Name)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestServeMux_GetRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	params := model.RunParams{Area: "newport", Country: "GB", ResolutionMeters: 200, TimeBudgetMinutes: 45, SpeedKMH: 15}
	run, err := st.CreateRun(ctx, "newport-am", params)
	require.NoError(t, err)

	mux := newServeMux(st)

	req := httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "newport-am", got.Name)
	assert.Equal(t, "newport", got.Params.Area)
}

func TestServeMux_GetRun_NotFound(t *testing.T) {
	mux := newServeMux(newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/runs/no-such-run", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestServeMux_GetPerformance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	params := model.RunParams{Area: "newport", Country: "GB", ResolutionMeters: 200, TimeBudgetMinutes: 45, SpeedKMH: 15}
	run, err := st.CreateRun(ctx, "newport-am", params)
	require.NoError(t, err)

	records := []model.PerformanceRecord{
		{CellID: 3, Defined: true, Value: 41.5, Samples: 12, Min: 30.2, Max: 55.8},
		{CellID: 4, Defined: false},
	}
	require.NoError(t, st.SavePerformance(ctx, run.ID, records))

	mux := newServeMux(st)

	req := httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/performance", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got []model.PerformanceRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.False(t, got[1].Defined)
}

func TestShutdownOnSignal_DrainsInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln) //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- shutdownOnSignal(ctx, srv) }()

	got := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			got <- err
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			got <- fmt.Errorf("status %d", resp.StatusCode)
			return
		}
		got <- nil
	}()

	// Let the request reach the handler, then trigger shutdown while it
	// is still in flight.
	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-got)

	select {
	case err := <-shutdownErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

func TestServeMux_GetPerformance_UnknownRun(t *testing.T) {
	mux := newServeMux(newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/runs/no-such-run/performance", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

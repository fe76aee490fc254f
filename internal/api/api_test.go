package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/array-controller/db"
	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/controller"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

type fixedCase model.CaseID

func (f fixedCase) Current() model.CaseID { return model.CaseID(f) }

type fakeRequester struct {
	got  []model.CaseID
	full bool
}

func (f *fakeRequester) RequestCase(id model.CaseID) error {
	if f.full {
		return controller.ErrQueueFull
	}
	f.got = append(f.got, id)
	return nil
}

func setupTestServer(t *testing.T) (http.Handler, *sql.DB, *array.State, *fakeRequester) {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplySchema(database))

	state := array.New()
	req := &fakeRequester{}
	server := NewServer(database, state, topology.Default(), fixedCase("output_3"), req)
	return server.Handler(), database, state, req
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetBatteries(t *testing.T) {
	h, _, state, _ := setupTestServer(t)
	state.SetReading(model.Reading{Battery: 2, Volts: 3.81, InRange: true, TakenAt: time.Now()})
	state.SetCharging([]model.BatteryID{4})

	w := do(t, h, http.MethodGet, "/api/batteries", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []model.BatteryState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, model.BatteryCount)
	assert.InDelta(t, 3.81, got[1].VoltageMes, 1e-9)
	assert.True(t, got[3].IsCharging)
	assert.False(t, got[1].IsCharging)
}

func TestGetCase(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	w := do(t, h, http.MethodGet, "/api/case", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "output_3", resp.Case)
	assert.Contains(t, resp.Cases, "charge_5")
	assert.Contains(t, resp.Cases, "disconnected")
}

func TestPostCase(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		full   bool
		status int
	}{
		{"valid case", `{"case":"charge_1"}`, false, http.StatusAccepted},
		{"unknown case", `{"case":"output_7"}`, false, http.StatusBadRequest},
		{"invalid json", `not json`, false, http.StatusBadRequest},
		{"queue full", `{"case":"output_2"}`, true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _, req := setupTestServer(t)
			req.full = tt.full

			w := do(t, h, http.MethodPost, "/api/case", []byte(tt.body))
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusAccepted {
				assert.Equal(t, []model.CaseID{"charge_1"}, req.got)
			} else {
				assert.Empty(t, req.got)
			}
		})
	}
}

func TestGetReadings(t *testing.T) {
	h, database, _, _ := setupTestServer(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertReadings(database, []model.Reading{
		{Battery: 1, Kind: model.KindLoaded, Raw: 180, Volts: 3.55, Display: 3.55, InRange: true, TakenAt: now},
		{Battery: 1, Kind: model.KindUnloaded, Raw: 190, Volts: 3.74, Display: 3.74, InRange: true, TakenAt: now},
	}))

	w := do(t, h, http.MethodGet, "/api/readings?kind=loaded", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []model.Reading
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, model.KindLoaded, got[0].Kind)

	w = do(t, h, http.MethodGet, "/api/readings?kind=sagging", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSwitches_EmptyIsArray(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	w := do(t, h, http.MethodGet, "/api/switches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/switches?limit=-2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	w := do(t, h, http.MethodDelete, "/api/case", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Method not allowed", resp.Error)
}

func TestPreflight(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	w := do(t, h, http.MethodOptions, "/api/case", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

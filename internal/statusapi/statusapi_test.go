package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

type fakeStatusSource struct {
	status model.PumpStatus
}

func (f *fakeStatusSource) Status() model.PumpStatus { return f.status }

func TestHandleListPumps(t *testing.T) {
	s := New("", nil, map[string]StatusSource{
		"pump-a": &fakeStatusSource{status: model.PumpStatus{PumpID: "pump-a", State: "idle", UpdatedAt: time.Now()}},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/pumps", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.PumpStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "pump-a", got[0].PumpID)
}

func TestHandleGetPumpNotFound(t *testing.T) {
	s := New("", nil, map[string]StatusSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/pumps/missing", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetPumpFound(t *testing.T) {
	s := New("", nil, map[string]StatusSource{
		"pump-a": &fakeStatusSource{status: model.PumpStatus{PumpID: "pump-a", State: "running", ActiveZone: "Zone 1"}},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/pumps/pump-a", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.PumpStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "running", got.State)
	require.Equal(t, "Zone 1", got.ActiveZone)
}

func TestHandleRunZoneUnavailableWithoutManualController(t *testing.T) {
	s := New("", nil, map[string]StatusSource{}, nil)

	body := strings.NewReader(`{"zone_id":"zone-1","duration_sec":30}`)
	req := httptest.NewRequest(http.MethodPost, "/manual/run-zone", body)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleStopPumpUnavailableWithoutManualController(t *testing.T) {
	s := New("", nil, map[string]StatusSource{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/manual/stop-pump/pump-a", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleForceUnlockUnavailableWithoutManualController(t *testing.T) {
	s := New("", nil, map[string]StatusSource{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/manual/force-unlock/pump-a", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"telegram_parser/internal/flightplan"
	"telegram_parser/internal/geo"
	"telegram_parser/internal/importer"
	"telegram_parser/internal/refdata"
	"telegram_parser/internal/storage"
	"telegram_parser/internal/telegram"
)

// fakeStore implements FlightStore, StatsStore and FlightSink in memory.
type fakeStore struct {
	flights map[string]*telegram.FlightRecord
	stored  []*telegram.FlightRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{flights: make(map[string]*telegram.FlightRecord)}
}

func (f *fakeStore) GetFlight(_ context.Context, sid string) (*telegram.FlightRecord, error) {
	return f.flights[sid], nil
}

func (f *fakeStore) CountFlights(context.Context) (int64, error) {
	return int64(len(f.flights)), nil
}

func (f *fakeStore) ListRegions(context.Context) ([]geo.Region, error) {
	return []geo.Region{{ID: 1, Name: "Московская область"}}, nil
}

func (f *fakeStore) RegionStats(context.Context, time.Time, time.Time) ([]storage.RegionStat, error) {
	return []storage.RegionStat{{RegionID: 1, RegionName: "Московская область", Flights: 3}}, nil
}

func (f *fakeStore) Timeline(context.Context, time.Time, time.Time) ([]storage.TimelinePoint, error) {
	return []storage.TimelinePoint{{Day: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Flights: 3}}, nil
}

func (f *fakeStore) CountBy(context.Context, string) (map[string]uint64, error) {
	return map[string]uint64{"BLA": 2, "AER": 1}, nil
}

func (f *fakeStore) StoreFlights(_ context.Context, recs []*telegram.FlightRecord) error {
	f.stored = append(f.stored, recs...)
	return nil
}

func testServer(store *fakeStore, cfg Config) *Server {
	logger := slog.New(slog.DiscardHandler)
	parser := flightplan.New(refdata.NewDirectory(nil, nil), nil)
	imp := importer.New(parser, 2, logger)
	return New(store, store, store, imp, cfg, logger)
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, r)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(newFakeStore(), Config{Port: 8081})

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v", resp["status"])
	}
}

func TestGetFlight(t *testing.T) {
	store := newFakeStore()
	store.flights["7772251137"] = &telegram.FlightRecord{SID: "7772251137", AircraftType: "BLA"}
	s := testServer(store, Config{})

	rec := doRequest(s, http.MethodGet, "/flights/7772251137", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got telegram.FlightRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.SID != "7772251137" || got.AircraftType != "BLA" {
		t.Errorf("record = %+v", got)
	}

	if rec := doRequest(s, http.MethodGet, "/flights/0000000000", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing SID: status = %d", rec.Code)
	}
}

func TestRegionStats(t *testing.T) {
	s := testServer(newFakeStore(), Config{})

	rec := doRequest(s, http.MethodGet, "/stats/regions?from=2025-01-01&to=2025-03-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats []storage.RegionStat
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].RegionName != "Московская область" {
		t.Errorf("stats = %+v", stats)
	}

	if rec := doRequest(s, http.MethodGet, "/stats/regions?from=01.01.2025", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d", rec.Code)
	}
}

func TestCountByRequiresColumn(t *testing.T) {
	s := testServer(newFakeStore(), Config{})

	if rec := doRequest(s, http.MethodGet, "/stats/count", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/stats/count?by=aircraft_type", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestImportEndpoint(t *testing.T) {
	store := newFakeStore()
	s := testServer(store, Config{})

	body := `{"center":"Московский","shr":"(SHR-ZZZZZ\n-ZZZZ0600\n-M0000/M0050 /ZONA R0,5 5509N03737E/\nOPR/ИВАНОВ REG/RF12345 TYP/BLA SID/7772251137)"}
{"center":"Московский","shr":"(SHR-ZZZZZ ПУСТО)"}
`
	rec := doRequest(s, http.MethodPost, "/import", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp ImportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || resp.Imported != 1 || resp.Failed != 1 {
		t.Errorf("response = %+v", resp)
	}
	if len(store.stored) != 1 || store.stored[0].SID != "7772251137" {
		t.Errorf("stored = %+v", store.stored)
	}

	if rec := doRequest(s, http.MethodPost, "/import", "{broken"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
	if rec := doRequest(s, http.MethodPost, "/import", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: status = %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := testServer(newFakeStore(), Config{
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})

	tests := []struct {
		name       string
		target     string
		header     string
		value      string
		wantStatus int
	}{
		{"no key", "/flights/1", "", "", http.StatusUnauthorized},
		{"wrong key", "/flights/1", "X-API-Key", "nope", http.StatusForbidden},
		{"x-api-key", "/flights/1", "X-API-Key", "test-key-123", http.StatusNotFound},
		{"bearer", "/flights/1", "Authorization", "Bearer another-key", http.StatusNotFound},
		{"query param", "/flights/1?api_key=test-key-123", "", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, r)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	// Health never needs a key.
	if rec := doRequest(s, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health with auth on: status = %d", rec.Code)
	}
}

func TestUnconfiguredBackends(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{}, slog.New(slog.DiscardHandler))

	for _, target := range []string{"/flights/1", "/regions", "/stats/regions", "/stats/timeline"} {
		if rec := doRequest(s, http.MethodGet, target, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
	if rec := doRequest(s, http.MethodPost, "/import", "{}"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/import: status = %d", rec.Code)
	}
}

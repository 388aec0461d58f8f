// Package api provides the REST API over parsed flight records: per-SID
// lookup from PostgreSQL, aggregate statistics from ClickHouse, and a
// JSONL import endpoint.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"telegram_parser/internal/geo"
	"telegram_parser/internal/importer"
	"telegram_parser/internal/storage"
	"telegram_parser/internal/telegram"
)

// FlightStore is the canonical per-SID store backing lookups.
// *storage.PostgresDB satisfies it.
type FlightStore interface {
	GetFlight(ctx context.Context, sid string) (*telegram.FlightRecord, error)
	CountFlights(ctx context.Context) (int64, error)
	ListRegions(ctx context.Context) ([]geo.Region, error)
}

// StatsStore serves the aggregate queries. *storage.ClickHouseDB
// satisfies it.
type StatsStore interface {
	RegionStats(ctx context.Context, from, to time.Time) ([]storage.RegionStat, error)
	Timeline(ctx context.Context, from, to time.Time) ([]storage.TimelinePoint, error)
	CountBy(ctx context.Context, column string) (map[string]uint64, error)
}

// FlightSink receives freshly imported records. *storage.DB satisfies it.
type FlightSink interface {
	StoreFlights(ctx context.Context, recs []*telegram.FlightRecord) error
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string
}

// Server provides REST access to parsed flight data.
type Server struct {
	flights FlightStore
	stats   StatsStore
	sink    FlightSink
	imp     *importer.Importer
	logger  *slog.Logger

	port        int
	authEnabled bool
	apiKeys     map[string]bool
}

// New creates the API server. stats, sink, and imp may be nil when the
// corresponding backends are not configured; their endpoints then return
// 503.
func New(flights FlightStore, stats StatsStore, sink FlightSink, imp *importer.Importer, cfg Config, logger *slog.Logger) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		flights:     flights,
		stats:       stats,
		sink:        sink,
		imp:         imp,
		logger:      logger,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", s.Router())
	})

	addr := ":" + strconv.Itoa(s.port)
	s.logger.Info("api listening", "addr", addr, "auth", s.authEnabled)
	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Health stays open even with auth on.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authEnabled {
			r.Use(s.authMiddleware)
		}

		r.Get("/flights/{sid}", s.handleGetFlight)
		r.Get("/regions", s.handleListRegions)
		r.Get("/stats/regions", s.handleRegionStats)
		r.Get("/stats/timeline", s.handleTimeline)
		r.Get("/stats/count", s.handleCountBy)
		r.Post("/import", s.handleImport)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.flights != nil {
		if n, err := s.flights.CountFlights(r.Context()); err == nil {
			resp["flights"] = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFlight(w http.ResponseWriter, r *http.Request) {
	if s.flights == nil {
		writeError(w, http.StatusServiceUnavailable, "flight store not configured")
		return
	}

	sid := chi.URLParam(r, "sid")
	rec, err := s.flights.GetFlight(r.Context(), sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no flight with SID "+sid)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	if s.flights == nil {
		writeError(w, http.StatusServiceUnavailable, "flight store not configured")
		return
	}

	regions, err := s.flights.ListRegions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleRegionStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats store not configured")
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.stats.RegionStats(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats store not configured")
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.stats.Timeline(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleCountBy(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats store not configured")
		return
	}

	column := r.URL.Query().Get("by")
	if column == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'by' is required")
		return
	}

	counts, err := s.stats.CountBy(r.Context(), column)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ImportResponse wraps the batch result returned to the caller.
type ImportResponse struct {
	Total    int                 `json:"total"`
	Imported int                 `json:"imported"`
	Failed   int                 `json:"failed"`
	Errors   []importer.RowError `json:"errors,omitempty"`
}

// handleImport ingests a JSONL body of telegram triplets, parses them and
// stores the survivors. Rows that fail to parse are reported, not fatal.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.imp == nil || s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "import not configured")
		return
	}

	rows, err := importer.ReadJSONL(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "empty import body")
		return
	}

	res, err := s.imp.Process(r.Context(), rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(res.Records) > 0 {
		if err := s.sink.StoreFlights(r.Context(), res.Records); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Total:    res.Total,
		Imported: res.Imported,
		Failed:   res.Failed,
		Errors:   res.Errors,
	})
}

// parsePeriod reads the optional from/to query parameters (YYYY-MM-DD).
// Missing bounds default to the last 30 days.
func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

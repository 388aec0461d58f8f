// Package storage provides persistent storage for parsed flight records:
// PostgreSQL as the canonical per-SID store, ClickHouse for aggregate
// analytics, and a single-file SQLite store for offline imports.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"telegram_parser/internal/telegram"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for flight analytics. Rows are
// denormalized snapshots of the canonical flights; re-imports append and
// the ReplacingMergeTree collapses duplicates by SID in the background.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			sid             String,
			flight_date     Date,
			center_name     LowCardinality(String),
			aircraft_type   LowCardinality(String),
			operator        String,
			region_id       Int64,
			region_name     LowCardinality(String),
			duration_min    Int32,
			min_altitude_m  Int32,
			max_altitude_m  Int32,
			dep_lat         Float64,
			dep_lon         Float64,
			zone_type       LowCardinality(String),
			imported_at     DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = ReplacingMergeTree(imported_at)
		PARTITION BY toYYYYMM(flight_date)
		ORDER BY (region_name, flight_date, sid)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// analyticsRows filters a batch down to records the analytics table can
// hold. A record without a start timestamp has no flight_date to partition
// on (a zero time would land in a garbage 1970 bucket), so it stays in the
// canonical store only.
func analyticsRows(recs []*telegram.FlightRecord) []*telegram.FlightRecord {
	out := make([]*telegram.FlightRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.StartTS != nil {
			out = append(out, rec)
		}
	}
	return out
}

// InsertFlights appends a batch of flight records to the analytics table.
// Records without a start timestamp are skipped, not rejected.
func (d *ClickHouseDB) InsertFlights(ctx context.Context, recs []*telegram.FlightRecord) error {
	recs = analyticsRows(recs)
	if len(recs) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO flights (sid, flight_date, center_name, aircraft_type, operator,
			region_id, region_name, duration_min, min_altitude_m, max_altitude_m,
			dep_lat, dep_lon, zone_type)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range recs {
		flightDate := *rec.StartTS
		var regionID int64
		if rec.RegionID != nil {
			regionID = *rec.RegionID
		}
		var depLat, depLon float64
		if rec.Dep.HasPosition() {
			depLat, depLon = *rec.Dep.Lat, *rec.Dep.Lon
		}

		err := batch.Append(
			rec.SID, flightDate, rec.CenterName, rec.AircraftType, rec.Operator,
			regionID, rec.RegionName,
			int32(intOrZero(rec.DurationMin)),
			int32(intOrZero(rec.MinAltM)), int32(intOrZero(rec.MaxAltM)),
			depLat, depLon, string(rec.Zone.Type),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// RegionStat is one row of the per-region aggregate.
type RegionStat struct {
	RegionID    int64  `json:"region_id"`
	RegionName  string `json:"region_name"`
	Flights     uint64 `json:"flights"`
	TotalMin    uint64 `json:"total_duration_min"`
	AvgDuration float64 `json:"avg_duration_min"`
}

// RegionStats aggregates flight counts and durations per region within
// the date range. Zero time bounds mean unbounded.
func (d *ClickHouseDB) RegionStats(ctx context.Context, from, to time.Time) ([]RegionStat, error) {
	query := `
		SELECT region_id, region_name, count() AS flights,
			sum(duration_min) AS total_min, avg(duration_min) AS avg_min
		FROM flights FINAL
	`
	conds, args := dateRange(from, to)
	if conds != "" {
		query += " WHERE " + conds
	}
	query += " GROUP BY region_id, region_name ORDER BY flights DESC"

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query region stats: %w", err)
	}
	defer rows.Close()

	var stats []RegionStat
	for rows.Next() {
		var s RegionStat
		var totalMin uint64
		if err := rows.Scan(&s.RegionID, &s.RegionName, &s.Flights, &totalMin, &s.AvgDuration); err != nil {
			return nil, fmt.Errorf("scan region stats: %w", err)
		}
		s.TotalMin = totalMin
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// TimelinePoint is one day of the flight-count timeline.
type TimelinePoint struct {
	Day     time.Time `json:"day"`
	Flights uint64    `json:"flights"`
}

// Timeline returns per-day flight counts within the date range.
func (d *ClickHouseDB) Timeline(ctx context.Context, from, to time.Time) ([]TimelinePoint, error) {
	query := `SELECT flight_date, count() FROM flights FINAL`
	conds, args := dateRange(from, to)
	if conds != "" {
		query += " WHERE " + conds
	}
	query += " GROUP BY flight_date ORDER BY flight_date"

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var points []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.Day, &p.Flights); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// CountBy returns flight counts grouped by one of the low-cardinality
// dimension columns.
func (d *ClickHouseDB) CountBy(ctx context.Context, column string) (map[string]uint64, error) {
	validColumns := map[string]bool{
		"aircraft_type": true,
		"operator":      true,
		"center_name":   true,
		"region_name":   true,
		"zone_type":     true,
	}
	if !validColumns[column] {
		return nil, fmt.Errorf("invalid column: %s", column)
	}

	query := fmt.Sprintf("SELECT %s, count() FROM flights FINAL GROUP BY %s ORDER BY count() DESC", column, column)
	rows, err := d.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var v string
		var n uint64
		if err := rows.Scan(&v, &n); err != nil {
			return nil, fmt.Errorf("scan count by %s: %w", column, err)
		}
		counts[v] = n
	}
	return counts, rows.Err()
}

// Count returns the total number of flights in the analytics table.
func (d *ClickHouseDB) Count(ctx context.Context) (uint64, error) {
	var n uint64
	row := d.conn.QueryRow(ctx, "SELECT count() FROM flights FINAL")
	err := row.Scan(&n)
	return n, err
}

func dateRange(from, to time.Time) (string, []interface{}) {
	var conds string
	var args []interface{}
	if !from.IsZero() {
		conds = "flight_date >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		if conds != "" {
			conds += " AND "
		}
		conds += "flight_date <= ?"
		args = append(args, to)
	}
	return conds, args
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

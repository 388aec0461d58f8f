package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_parser/internal/geo"
	"telegram_parser/internal/telegram"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool. Postgres is the canonical
// flight store: one row per SID, re-imports upsert in place.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		id          BIGINT PRIMARY KEY,
		name        TEXT NOT NULL,
		name_latin  TEXT
	);

	CREATE TABLE IF NOT EXISTS flights (
		sid                 TEXT PRIMARY KEY,
		id                  TEXT NOT NULL,
		flight_id           TEXT,
		registration        TEXT,
		aircraft_type       TEXT,
		operator            TEXT,
		center_name         TEXT,

		dep_date            TEXT,
		dep_time            TEXT,
		dep_lat             DOUBLE PRECISION,
		dep_lon             DOUBLE PRECISION,
		dep_aerodrome_code  TEXT,
		dep_aerodrome_name  TEXT,

		arr_date            TEXT,
		arr_time            TEXT,
		arr_lat             DOUBLE PRECISION,
		arr_lon             DOUBLE PRECISION,
		arr_aerodrome_code  TEXT,
		arr_aerodrome_name  TEXT,

		start_ts            TIMESTAMPTZ,
		end_ts              TIMESTAMPTZ,
		duration_min        INTEGER,

		min_altitude_m      INTEGER,
		max_altitude_m      INTEGER,
		phone_numbers       JSONB,
		zone                JSONB,

		region_id           BIGINT,
		region_name         TEXT NOT NULL,

		raw_shr             TEXT,
		raw_dep             TEXT,
		raw_arr             TEXT,

		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_flights_region ON flights(region_id);
	CREATE INDEX IF NOT EXISTS idx_flights_start_ts ON flights(start_ts);
	CREATE INDEX IF NOT EXISTS idx_flights_operator ON flights(operator);
	CREATE INDEX IF NOT EXISTS idx_flights_aircraft_type ON flights(aircraft_type);
	CREATE INDEX IF NOT EXISTS idx_flights_registration ON flights(registration);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertFlight inserts or replaces a flight record keyed by SID.
func (d *PostgresDB) UpsertFlight(ctx context.Context, rec *telegram.FlightRecord) error {
	phonesJSON, _ := json.Marshal(rec.Phones)
	zoneJSON, _ := json.Marshal(rec.Zone)

	_, err := d.pool.Exec(ctx, `
		INSERT INTO flights (
			sid, id, flight_id, registration, aircraft_type, operator, center_name,
			dep_date, dep_time, dep_lat, dep_lon, dep_aerodrome_code, dep_aerodrome_name,
			arr_date, arr_time, arr_lat, arr_lon, arr_aerodrome_code, arr_aerodrome_name,
			start_ts, end_ts, duration_min,
			min_altitude_m, max_altitude_m, phone_numbers, zone,
			region_id, region_name, raw_shr, raw_dep, raw_arr
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
		ON CONFLICT (sid) DO UPDATE SET
			id = EXCLUDED.id,
			flight_id = EXCLUDED.flight_id,
			registration = EXCLUDED.registration,
			aircraft_type = EXCLUDED.aircraft_type,
			operator = EXCLUDED.operator,
			center_name = EXCLUDED.center_name,
			dep_date = EXCLUDED.dep_date,
			dep_time = EXCLUDED.dep_time,
			dep_lat = EXCLUDED.dep_lat,
			dep_lon = EXCLUDED.dep_lon,
			dep_aerodrome_code = EXCLUDED.dep_aerodrome_code,
			dep_aerodrome_name = EXCLUDED.dep_aerodrome_name,
			arr_date = EXCLUDED.arr_date,
			arr_time = EXCLUDED.arr_time,
			arr_lat = EXCLUDED.arr_lat,
			arr_lon = EXCLUDED.arr_lon,
			arr_aerodrome_code = EXCLUDED.arr_aerodrome_code,
			arr_aerodrome_name = EXCLUDED.arr_aerodrome_name,
			start_ts = EXCLUDED.start_ts,
			end_ts = EXCLUDED.end_ts,
			duration_min = EXCLUDED.duration_min,
			min_altitude_m = EXCLUDED.min_altitude_m,
			max_altitude_m = EXCLUDED.max_altitude_m,
			phone_numbers = EXCLUDED.phone_numbers,
			zone = EXCLUDED.zone,
			region_id = EXCLUDED.region_id,
			region_name = EXCLUDED.region_name,
			raw_shr = EXCLUDED.raw_shr,
			raw_dep = EXCLUDED.raw_dep,
			raw_arr = EXCLUDED.raw_arr,
			updated_at = NOW()
	`,
		rec.SID, rec.ID, rec.FlightID, rec.Registration, rec.AircraftType, rec.Operator, rec.CenterName,
		rec.Dep.Date, rec.Dep.TimeHHMM, rec.Dep.Lat, rec.Dep.Lon, rec.Dep.AerodromeCode, rec.Dep.AerodromeName,
		rec.Arr.Date, rec.Arr.TimeHHMM, rec.Arr.Lat, rec.Arr.Lon, rec.Arr.AerodromeCode, rec.Arr.AerodromeName,
		rec.StartTS, rec.EndTS, rec.DurationMin,
		rec.MinAltM, rec.MaxAltM, phonesJSON, zoneJSON,
		rec.RegionID, rec.RegionName, rec.RawSHR, rec.RawDEP, rec.RawARR,
	)
	return err
}

// GetFlight retrieves a flight by SID. A missing SID returns (nil, nil).
func (d *PostgresDB) GetFlight(ctx context.Context, sid string) (*telegram.FlightRecord, error) {
	var rec telegram.FlightRecord
	var phonesJSON, zoneJSON []byte

	err := d.pool.QueryRow(ctx, `
		SELECT sid, id, flight_id, registration, aircraft_type, operator, center_name,
			dep_date, dep_time, dep_lat, dep_lon, dep_aerodrome_code, dep_aerodrome_name,
			arr_date, arr_time, arr_lat, arr_lon, arr_aerodrome_code, arr_aerodrome_name,
			start_ts, end_ts, duration_min,
			min_altitude_m, max_altitude_m, phone_numbers, zone,
			region_id, region_name, raw_shr, raw_dep, raw_arr
		FROM flights WHERE sid = $1
	`, sid).Scan(
		&rec.SID, &rec.ID, &rec.FlightID, &rec.Registration, &rec.AircraftType, &rec.Operator, &rec.CenterName,
		&rec.Dep.Date, &rec.Dep.TimeHHMM, &rec.Dep.Lat, &rec.Dep.Lon, &rec.Dep.AerodromeCode, &rec.Dep.AerodromeName,
		&rec.Arr.Date, &rec.Arr.TimeHHMM, &rec.Arr.Lat, &rec.Arr.Lon, &rec.Arr.AerodromeCode, &rec.Arr.AerodromeName,
		&rec.StartTS, &rec.EndTS, &rec.DurationMin,
		&rec.MinAltM, &rec.MaxAltM, &phonesJSON, &zoneJSON,
		&rec.RegionID, &rec.RegionName, &rec.RawSHR, &rec.RawDEP, &rec.RawARR,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal(phonesJSON, &rec.Phones)
	_ = json.Unmarshal(zoneJSON, &rec.Zone)
	return &rec, nil
}

// CountFlights returns the number of stored flights.
func (d *PostgresDB) CountFlights(ctx context.Context) (int64, error) {
	var n int64
	err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flights`).Scan(&n)
	return n, err
}

// UpsertRegion inserts or updates one region reference row. The region
// table mirrors the boundary dataset so reports can join on region_id.
func (d *PostgresDB) UpsertRegion(ctx context.Context, r geo.Region) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO regions (id, name, name_latin)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			name_latin = EXCLUDED.name_latin
	`, r.ID, r.Name, r.NameLatin)
	return err
}

// RegionWriter is the subset of PostgresDB used by SyncRegions.
type RegionWriter interface {
	UpsertRegion(ctx context.Context, r geo.Region) error
}

// SyncRegions mirrors the boundary dataset into the regions table so
// ListRegions serves the same set the locator resolves against. Meant to
// run at startup, after CreateSchema.
func SyncRegions(ctx context.Context, w RegionWriter, regions []geo.Region) error {
	for _, r := range regions {
		if err := w.UpsertRegion(ctx, r); err != nil {
			return fmt.Errorf("upsert region %d: %w", r.ID, err)
		}
	}
	return nil
}

// ListRegions returns all known regions ordered by name.
func (d *PostgresDB) ListRegions(ctx context.Context) ([]geo.Region, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, COALESCE(name_latin, '') FROM regions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []geo.Region
	for rows.Next() {
		var r geo.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.NameLatin); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"telegram_parser/internal/telegram"
)

// SQLiteDB is a single-file flight store for offline imports and local
// inspection, mirroring the Postgres flights table.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps readers unblocked while an import is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
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
		dep_lat             REAL,
		dep_lon             REAL,
		dep_aerodrome_code  TEXT,
		dep_aerodrome_name  TEXT,
		arr_date            TEXT,
		arr_time            TEXT,
		arr_lat             REAL,
		arr_lon             REAL,
		arr_aerodrome_code  TEXT,
		arr_aerodrome_name  TEXT,
		start_ts            TEXT,
		end_ts              TEXT,
		duration_min        INTEGER,
		min_altitude_m      INTEGER,
		max_altitude_m      INTEGER,
		phone_numbers       TEXT,
		zone                TEXT,
		region_id           INTEGER,
		region_name         TEXT NOT NULL,
		raw_shr             TEXT,
		raw_dep             TEXT,
		raw_arr             TEXT,
		created_at          TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_flights_region ON flights(region_name);
	CREATE INDEX IF NOT EXISTS idx_flights_start_ts ON flights(start_ts);
	CREATE INDEX IF NOT EXISTS idx_flights_operator ON flights(operator);
	`

	_, err := db.Exec(schema)
	return err
}

// UpsertFlight inserts or replaces a flight record keyed by SID.
func (d *SQLiteDB) UpsertFlight(rec *telegram.FlightRecord) error {
	phonesJSON, _ := json.Marshal(rec.Phones)
	zoneJSON, _ := json.Marshal(rec.Zone)

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO flights (
			sid, id, flight_id, registration, aircraft_type, operator, center_name,
			dep_date, dep_time, dep_lat, dep_lon, dep_aerodrome_code, dep_aerodrome_name,
			arr_date, arr_time, arr_lat, arr_lon, arr_aerodrome_code, arr_aerodrome_name,
			start_ts, end_ts, duration_min,
			min_altitude_m, max_altitude_m, phone_numbers, zone,
			region_id, region_name, raw_shr, raw_dep, raw_arr
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.SID, rec.ID, rec.FlightID, rec.Registration, rec.AircraftType, rec.Operator, rec.CenterName,
		rec.Dep.Date, rec.Dep.TimeHHMM, rec.Dep.Lat, rec.Dep.Lon, rec.Dep.AerodromeCode, rec.Dep.AerodromeName,
		rec.Arr.Date, rec.Arr.TimeHHMM, rec.Arr.Lat, rec.Arr.Lon, rec.Arr.AerodromeCode, rec.Arr.AerodromeName,
		timePtrString(rec.StartTS), timePtrString(rec.EndTS), rec.DurationMin,
		rec.MinAltM, rec.MaxAltM, string(phonesJSON), string(zoneJSON),
		rec.RegionID, rec.RegionName, rec.RawSHR, rec.RawDEP, rec.RawARR,
	)
	return err
}

// GetFlight retrieves a flight by SID. A missing SID returns (nil, nil).
func (d *SQLiteDB) GetFlight(sid string) (*telegram.FlightRecord, error) {
	var rec telegram.FlightRecord
	var phonesJSON, zoneJSON string
	var startTS, endTS sql.NullString

	err := d.db.QueryRow(`
		SELECT sid, id, flight_id, registration, aircraft_type, operator, center_name,
			dep_date, dep_time, dep_lat, dep_lon, dep_aerodrome_code, dep_aerodrome_name,
			arr_date, arr_time, arr_lat, arr_lon, arr_aerodrome_code, arr_aerodrome_name,
			start_ts, end_ts, duration_min,
			min_altitude_m, max_altitude_m, phone_numbers, zone,
			region_id, region_name, raw_shr, raw_dep, raw_arr
		FROM flights WHERE sid = ?
	`, sid).Scan(
		&rec.SID, &rec.ID, &rec.FlightID, &rec.Registration, &rec.AircraftType, &rec.Operator, &rec.CenterName,
		&rec.Dep.Date, &rec.Dep.TimeHHMM, &rec.Dep.Lat, &rec.Dep.Lon, &rec.Dep.AerodromeCode, &rec.Dep.AerodromeName,
		&rec.Arr.Date, &rec.Arr.TimeHHMM, &rec.Arr.Lat, &rec.Arr.Lon, &rec.Arr.AerodromeCode, &rec.Arr.AerodromeName,
		&startTS, &endTS, &rec.DurationMin,
		&rec.MinAltM, &rec.MaxAltM, &phonesJSON, &zoneJSON,
		&rec.RegionID, &rec.RegionName, &rec.RawSHR, &rec.RawDEP, &rec.RawARR,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.StartTS = parseStoredTime(startTS)
	rec.EndTS = parseStoredTime(endTS)
	_ = json.Unmarshal([]byte(phonesJSON), &rec.Phones)
	_ = json.Unmarshal([]byte(zoneJSON), &rec.Zone)
	return &rec, nil
}

// ListFlights returns every stored flight ordered by SID. The zone and
// phone columns are decoded from their JSON form.
func (d *SQLiteDB) ListFlights() ([]*telegram.FlightRecord, error) {
	rows, err := d.db.Query(`SELECT sid FROM flights ORDER BY sid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sids []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		sids = append(sids, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recs := make([]*telegram.FlightRecord, 0, len(sids))
	for _, sid := range sids {
		rec, err := d.GetFlight(sid)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// CountFlights returns the number of stored flights.
func (d *SQLiteDB) CountFlights() (int64, error) {
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM flights`).Scan(&n)
	return n, err
}

// RegionCounts returns flight counts per region name.
func (d *SQLiteDB) RegionCounts() (map[string]int64, error) {
	rows, err := d.db.Query(`SELECT region_name, COUNT(*) FROM flights GROUP BY region_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func timePtrString(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
